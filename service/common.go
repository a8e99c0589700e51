package service

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Process hooks, swapped out by tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

func outf(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format, args...)
}

func outln(args ...interface{}) {
	fmt.Fprintln(stdout, args...)
}

// confirm asks a yes/no question; anything but y or Y is a no.
func confirm(question string) bool {
	outf("%s [y/N] ", question)
	var response string
	fmt.Fscanln(stdin, &response)
	response = strings.TrimSpace(response)
	return response == "y" || response == "Y"
}

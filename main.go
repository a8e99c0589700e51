package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"postsapi/app/config"
	"postsapi/app/logger"
	"postsapi/service"
)

const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	RealMain()
}

// RealMain dispatches the command line. Split from main so tests can stub exit.
func RealMain() {
	if len(os.Args) < 2 {
		printHelp()
		exit(1)
		return
	}

	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "help":
		printHelp()
	case "version":
		fmt.Printf("postsapi version %s\n", CliVersion)
	case "serve":
		exit(serve())
	case "db":
		exit(db(os.Args[2:]))
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		exit(1)
	}
}

func printHelp() {
	helpText := `Usage: postsapi <command> [options]
Commands:
  help                           Display this help message.
  version                        Show version information.
  serve                          Run the posts API server.
  db <command>                   Manage the database (init, clean, backup, restore <file>, seed, help).

Configuration is read from POSTS_* environment variables and an optional .env file.
`
	fmt.Println(helpText)
}

func loadConfig() (*config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		return nil, false
	}
	return cfg, true
}

// serve runs the API until SIGINT or SIGTERM.
func serve() int {
	cfg, ok := loadConfig()
	if !ok {
		return 1
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.RunAppServer(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited")
		return 1
	}
	log.Info().Msg("server stopped")
	return 0
}

func db(args []string) int {
	cfg, ok := loadConfig()
	if !ok {
		return 1
	}
	return service.HandleCommand(cfg, logger.New(cfg), args)
}

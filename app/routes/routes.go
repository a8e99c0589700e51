package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"postsapi/app/controllers"
	"postsapi/app/middleware"
	"postsapi/app/repositories"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SetupRoutes defines the application's routes and returns a router. The
// posts resource is mounted under basePath.
func SetupRoutes(store repositories.PostStore, log zerolog.Logger, basePath string) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = jsonStatus(http.StatusNotFound, "Not found")
	router.MethodNotAllowedHandler = jsonStatus(http.StatusMethodNotAllowed, "Method not allowed")

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.ContentTypeJSON)

	router.HandleFunc("/healthz", health).Methods("GET")

	postController := controllers.NewPostController(store, log)

	posts := router.PathPrefix(strings.TrimSuffix(basePath, "/")).Subrouter()
	posts.HandleFunc("", postController.Index).Methods("GET")
	posts.HandleFunc("/", postController.Index).Methods("GET")
	posts.HandleFunc("", postController.Create).Methods("POST")
	posts.HandleFunc("/", postController.Create).Methods("POST")
	posts.HandleFunc("/{id}", postController.Show).Methods("GET")
	posts.HandleFunc("/{id}", postController.Edit).Methods("PUT")
	posts.HandleFunc("/{id}", postController.Delete).Methods("DELETE")
	posts.HandleFunc("/{id}/comments", postController.Comments).Methods("GET")

	return router
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jsonStatus(status int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]string{"message": message})
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"postsapi/app/models"
	"postsapi/app/repositories"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Client-facing messages.
const (
	msgNotFound       = "The post with the specified ID does not exist"
	msgMissingFields  = "Please provide title and contents for the post"
	msgListFailed     = "The posts information could not be retrieved"
	msgRetrieveFailed = "The post information could not be retrieved"
	msgSaveFailed     = "There was an error while saving the post to the database"
)

// ErrorResponse is the body of every non-2xx answer. Error carries the raw
// store failure and is only filled in by Create, Delete and Comments.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// PostController handles HTTP requests for blog posts
type PostController struct {
	store repositories.PostStore
	log   zerolog.Logger
}

// NewPostController creates a new PostController
func NewPostController(store repositories.PostStore, log zerolog.Logger) *PostController {
	return &PostController{
		store: store,
		log:   log.With().Str("component", "posts").Logger(),
	}
}

// Index handles listing all posts
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := pc.store.Find(r.Context(), repositories.Criteria{Query: r.URL.Query()})
	if err != nil {
		pc.logger(r).Error().Err(err).Str("op", "list").Msg("failed to list posts")
		pc.sendError(w, http.StatusInternalServerError, msgListFailed, nil)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	pc.sendJSON(w, http.StatusOK, posts)
}

// Show handles displaying a single post
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	post, err := pc.store.FindByID(r.Context(), id)
	if err != nil {
		pc.logger(r).Error().Err(err).Str("op", "show").Str("id", id).Msg("failed to fetch post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, nil)
		return
	}
	if post == nil {
		pc.sendError(w, http.StatusNotFound, msgNotFound, nil)
		return
	}
	pc.sendJSON(w, http.StatusOK, post)
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	input := models.DecodePostInput(r.Body)
	if err := input.Validate(); err != nil {
		pc.sendError(w, http.StatusBadRequest, msgMissingFields, nil)
		return
	}

	post, err := pc.insert(r, input)
	if err != nil {
		pc.logger(r).Error().Err(err).Str("op", "create").Msg("failed to save post")
		pc.sendError(w, http.StatusInternalServerError, msgSaveFailed, err)
		return
	}
	pc.sendJSON(w, http.StatusCreated, post)
}

func (pc *PostController) insert(r *http.Request, input models.PostInput) (*models.Post, error) {
	id, err := pc.store.Insert(r.Context(), input)
	if err != nil {
		return nil, err
	}
	post, err := pc.store.FindByID(r.Context(), strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, repositories.ErrNotFound
	}
	return post, nil
}

// Edit handles updating an existing post and answers with the stored
// result of the update.
func (pc *PostController) Edit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	input := models.DecodePostInput(r.Body)
	log := pc.logger(r).With().Str("op", "update").Str("id", id).Logger()

	existing, err := pc.store.FindByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, nil)
		return
	}
	if existing == nil {
		pc.sendError(w, http.StatusNotFound, msgNotFound, nil)
		return
	}
	if err := input.Validate(); err != nil {
		pc.sendError(w, http.StatusBadRequest, msgMissingFields, nil)
		return
	}

	if _, err := pc.store.Update(r.Context(), id, input); err != nil {
		log.Error().Err(err).Msg("failed to update post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, nil)
		return
	}
	updated, err := pc.store.FindByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch updated post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, nil)
		return
	}
	if updated == nil {
		// removed by a concurrent request between update and re-fetch
		pc.sendError(w, http.StatusNotFound, msgNotFound, nil)
		return
	}
	pc.sendJSON(w, http.StatusOK, updated)
}

// Delete handles deleting a post and answers with the post as it was
// before removal.
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log := pc.logger(r).With().Str("op", "delete").Str("id", id).Logger()

	post, err := pc.store.FindByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, err)
		return
	}
	if post == nil {
		pc.sendError(w, http.StatusNotFound, msgNotFound, nil)
		return
	}

	if _, err := pc.store.Remove(r.Context(), id); err != nil {
		log.Error().Err(err).Msg("failed to remove post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, err)
		return
	}
	pc.sendJSON(w, http.StatusOK, post)
}

// Comments handles listing the comments of a post
func (pc *PostController) Comments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log := pc.logger(r).With().Str("op", "comments").Str("id", id).Logger()

	post, err := pc.store.FindByID(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch post")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, err)
		return
	}
	if post == nil {
		pc.sendError(w, http.StatusNotFound, msgNotFound, nil)
		return
	}

	comments, err := pc.store.FindPostComments(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch comments")
		pc.sendError(w, http.StatusInternalServerError, msgRetrieveFailed, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	pc.sendJSON(w, http.StatusOK, comments)
}

// Helper methods for consistent response handling

// logger prefers the request scoped logger installed by middleware.
func (pc *PostController) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &pc.log
}

func (pc *PostController) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		pc.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (pc *PostController) sendError(w http.ResponseWriter, status int, message string, cause error) {
	body := ErrorResponse{Message: message}
	if cause != nil {
		body.Error = cause.Error()
	}
	pc.sendJSON(w, status, body)
}

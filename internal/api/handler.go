package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/doubtsolver/doubtd/internal/answer"
	"github.com/doubtsolver/doubtd/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Generator produces an answer for a question; failures are data, not errors.
type Generator interface {
	Generate(ctx context.Context, question string) answer.Result
}

// Deps holds the handler's dependencies.
type Deps struct {
	Store     storage.Store
	Generator Generator
	Token     string // optional; non-empty enables bearer auth on /api routes
}

// NewHandler returns the REST API for the question lifecycle, mounted under
// /api, plus a /health endpoint.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/questions", handleCreateQuestion(deps))
		r.Post("/questions/{id}/regenerate", handleRegenerate(deps))
		r.Get("/questions/{id}", handleGetQuestion(deps))
		r.Delete("/questions/{id}", handleDeleteQuestion(deps))
		r.Get("/users/{userID}/questions", handleListUserQuestions(deps))
		r.Delete("/users/{userID}/questions", handleDeleteUserQuestions(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type createQuestionRequest struct {
	Question *string `json:"question"`
	UserID   *int64  `json:"userId"`
}

func handleCreateQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createQuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Question == nil {
			httpError(w, http.StatusBadRequest, "question is required")
			return
		}
		if strings.TrimSpace(*req.Question) == "" {
			httpError(w, http.StatusBadRequest, "question must not be empty")
			return
		}

		q, err := deps.Store.Create(*req.Question, req.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to save question: %v", err)
			return
		}

		resolveAndRespond(w, r, deps, q)
	}
}

func handleRegenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}

		q, err := deps.Store.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get question: %v", err)
			return
		}

		resolveAndRespond(w, r, deps, q)
	}
}

// resolveAndRespond runs one generation attempt for q, persists the outcome,
// and writes the updated record. The write succeeds either way; only the
// HTTP status reflects the generation result.
func resolveAndRespond(w http.ResponseWriter, r *http.Request, deps Deps, q storage.Question) {
	res := deps.Generator.Generate(r.Context(), q.Text)

	var outcome storage.Outcome
	if res.Err != "" {
		outcome = storage.Failed(res.Err)
	} else {
		outcome = storage.Answered(res.Answer)
	}

	updated, err := deps.Store.SetOutcome(q.ID, outcome)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to update question: %v", err)
		return
	}

	status := http.StatusOK
	if res.Err != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, updated)
}

func handleGetQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}

		q, err := deps.Store.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to get question: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func handleDeleteQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}

		existed, err := deps.Store.Delete(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to delete question: %v", err)
			return
		}
		if !existed {
			httpError(w, http.StatusNotFound, "question not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Question deleted successfully"})
	}
}

func handleListUserQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusOK, []storage.Question{})
			return
		}

		questions, err := deps.Store.ListByUser(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to list questions: %v", err)
			return
		}
		if questions == nil {
			questions = []storage.Question{}
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

func handleDeleteUserQuestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err == nil {
			if err := deps.Store.DeleteByUser(userID); err != nil {
				httpError(w, http.StatusInternalServerError, "failed to delete questions: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "All questions deleted successfully"})
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"message": fmt.Sprintf(format, args...)})
}

package tasks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/lightly-tasks/internal/identity"
)

const maxTextLen = 500

type createTaskRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type editTaskRequest struct {
	Text string `json:"text"`
}

type profileResponse struct {
	Name string `json:"name"`
	Profile
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

func RegisterRoutes(r chi.Router, s *Store) {
	r.Get("/tasks", listTasks(s))
	r.Post("/tasks", createTask(s))
	r.Post("/tasks/{id}/toggle", toggleTask(s))
	r.Patch("/tasks/{id}", editTask(s))
	r.Delete("/tasks/{id}", removeTask(s))
	r.Get("/categories", listCategories(s))
	r.Get("/profile", getProfile(s))
}

func listTasks(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status, err := ParseStatus(q.Get("status"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{
				Error:   "validation_error",
				Details: []fieldError{{Field: "status", Message: "status must be one of All, Active, Done"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, s.Filter(Filter{Status: status, Search: q.Get("q")}))
	}
}

func createTask(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
			return
		}
		if vErrs := validateText(req.Text); len(vErrs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation_error", Details: vErrs})
			return
		}

		res, ok := s.Add(req.Text, req.Category)
		if !ok {
			writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation_error"})
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func toggleTask(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Toggle(chi.URLParam(r, "id")))
	}
}

func editTask(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
			return
		}
		if vErrs := validateText(req.Text); len(vErrs) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation_error", Details: vErrs})
			return
		}
		writeJSON(w, http.StatusOK, s.Edit(chi.URLParam(r, "id"), req.Text))
	}
}

// removeTask deletes without asking; confirming is up to the client.
func removeTask(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Remove(chi.URLParam(r, "id")))
	}
}

func listCategories(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Categories())
	}
}

func getProfile(s *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		writeJSON(w, http.StatusOK, profileResponse{Name: id.Name(), Profile: s.Profile()})
	}
}

func validateText(text string) []fieldError {
	var errs []fieldError

	if strings.TrimSpace(text) == "" {
		errs = append(errs, fieldError{
			Field:   "text",
			Message: "text is required",
		})
	}

	if l := len(text); l > maxTextLen {
		errs = append(errs, fieldError{
			Field:   "text",
			Message: fmt.Sprintf("text must be at most %d characters", maxTextLen),
		})
	}

	return errs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

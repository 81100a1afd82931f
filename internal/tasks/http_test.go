package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/lightly-tasks/internal/identity"
	"github.com/s1natex/lightly-tasks/internal/storage"
)

func newTestServer(t *testing.T) (*chi.Mux, *Store) {
	t.Helper()
	s := newTestStore(t, storage.NewMemory())
	r := chi.NewRouter()
	RegisterRoutes(r, s)
	return r, s
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse JSON: %v (body=%s)", err, rec.Body.String())
	}
	return v
}

func TestPostTasks_Success(t *testing.T) {
	r, _ := newTestServer(t)

	rec := do(r, http.MethodPost, "/tasks", `{"text":"learn chi","category":"Study"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body=%s", rec.Code, rec.Body.String())
	}

	got := decode[AddResult](t, rec)
	if got.Task.ID == "" {
		t.Errorf("expected non-empty ID")
	}
	if got.Task.Text != "learn chi" {
		t.Errorf("expected Text=learn chi, got %q", got.Task.Text)
	}
	if got.Task.Done || got.Task.CompletedAt != nil {
		t.Errorf("new tasks should be pending")
	}
	if got.Task.CreatedAt == 0 {
		t.Errorf("expected CreatedAt to be set")
	}
	if !got.CategoryAdded || got.Categories[len(got.Categories)-1] != "Study" {
		t.Errorf("expected Study to be registered, got %+v", got)
	}
}

func TestPostTasks_TextRequired(t *testing.T) {
	r, s := newTestServer(t)

	rec := do(r, http.MethodPost, "/tasks", `{"text":"   "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d, body=%s", rec.Code, rec.Body.String())
	}
	errResp := decode[errResponse](t, rec)
	if errResp.Error != "validation_error" || len(errResp.Details) == 0 || errResp.Details[0].Field != "text" {
		t.Errorf("unexpected error body %+v", errResp)
	}
	if len(s.Tasks()) != 0 {
		t.Errorf("rejected add must not create a task")
	}
}

func TestPostTasks_InvalidJSON(t *testing.T) {
	r, _ := newTestServer(t)

	rec := do(r, http.MethodPost, "/tasks", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d, body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[errResponse](t, rec).Error; got != "invalid_json" {
		t.Errorf("expected error invalid_json, got %q", got)
	}
}

func TestGetTasks_FiltersByStatusAndSearch(t *testing.T) {
	r, s := newTestServer(t)

	milk, _ := s.Add("Buy milk", "Shopping")
	s.Add("Buy bread", "Shopping")
	s.Add("Email Bob", "Work")
	s.Toggle(milk.Task.ID)

	list := decode[[]Task](t, do(r, http.MethodGet, "/tasks", ""))
	if len(list) != 3 || list[0].Text != "Email Bob" {
		t.Fatalf("expected all 3 tasks newest first, got %+v", list)
	}

	list = decode[[]Task](t, do(r, http.MethodGet, "/tasks?status=active&q=BUY", ""))
	if len(list) != 1 || list[0].Text != "Buy bread" {
		t.Fatalf("unexpected active+search result %+v", list)
	}

	list = decode[[]Task](t, do(r, http.MethodGet, "/tasks?status=Done", ""))
	if len(list) != 1 || list[0].ID != milk.Task.ID {
		t.Fatalf("unexpected done result %+v", list)
	}

	rec := do(r, http.MethodGet, "/tasks?status=archived", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestGetTasks_EmptyIsArray(t *testing.T) {
	r, _ := newTestServer(t)

	rec := do(r, http.MethodGet, "/tasks", "")
	if body := bytes.TrimSpace(rec.Body.Bytes()); string(body) != "[]" {
		t.Fatalf("expected [], got %s", body)
	}
}

func TestToggleEditRemove(t *testing.T) {
	r, s := newTestServer(t)
	res, _ := s.Add("draft", "")
	id := res.Task.ID

	list := decode[[]Task](t, do(r, http.MethodPost, "/tasks/"+id+"/toggle", ""))
	if !list[0].Done || list[0].CompletedAt == nil {
		t.Fatalf("expected task completed, got %+v", list[0])
	}

	list = decode[[]Task](t, do(r, http.MethodPatch, "/tasks/"+id, `{"text":"final"}`))
	if list[0].Text != "final" {
		t.Fatalf("expected edited text, got %q", list[0].Text)
	}

	rec := do(r, http.MethodPatch, "/tasks/"+id, `{"text":""}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank edit, got %d", rec.Code)
	}
	if got, _ := s.Get(id); got.Text != "final" {
		t.Fatalf("blank edit changed text to %q", got.Text)
	}

	list = decode[[]Task](t, do(r, http.MethodDelete, "/tasks/"+id, ""))
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", list)
	}

	rec = do(r, http.MethodDelete, "/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deleting twice should still be 200, got %d", rec.Code)
	}
}

func TestGetCategories(t *testing.T) {
	r, s := newTestServer(t)
	s.Add("x", "Errands")

	cats := decode[[]string](t, do(r, http.MethodGet, "/categories", ""))
	if cats[0] != DefaultCategory || cats[len(cats)-1] != "Errands" {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestGetProfile(t *testing.T) {
	r, s := newTestServer(t)
	a, _ := s.Add("a", "")
	s.Add("b", "")
	s.Toggle(a.Task.ID)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(identity.NewContext(context.Background(), identity.Identity{Email: "dana@example.com"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	got := decode[profileResponse](t, rec)
	if got.Name != "dana" {
		t.Errorf("expected name from email, got %q", got.Name)
	}
	if got.Total != 2 || got.Done != 1 || got.Streak != 1 {
		t.Errorf("unexpected profile %+v", got)
	}
}

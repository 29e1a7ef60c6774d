package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"todosync/internal/todo"
)

// fakeServer is an in-memory stand-in for the Appwrite documents API.
type fakeServer struct {
	mu       sync.Mutex
	docs     []document
	next     int
	headers  []http.Header
	failWith int
}

func (f *fakeServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.headers = append(f.headers, req.Header.Clone())
			status := f.failWith
			f.mu.Unlock()
			if status != 0 {
				writeJSON(w, status, map[string]any{"message": "server on fire", "code": status, "type": "general_unknown"})
				return
			}
			if req.Header.Get("X-Appwrite-Project") != "proj" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "missing project", "code": 401, "type": "general_access_forbidden"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/v1/databases/{db}/collections/{coll}/documents", func(r chi.Router) {
		r.Get("/", f.list)
		r.Post("/", f.create)
		r.Patch("/{id}", f.update)
		r.Delete("/{id}", f.remove)
	})
	return r
}

func (f *fakeServer) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := 25, 0
	for _, raw := range r.URL.Query()["queries[]"] {
		var q struct {
			Method string `json:"method"`
			Values []int  `json:"values"`
		}
		if err := json.Unmarshal([]byte(raw), &q); err != nil || len(q.Values) != 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad query"})
			return
		}
		switch q.Method {
		case "limit":
			limit = q.Values[0]
		case "offset":
			offset = q.Values[0]
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	end := min(offset+limit, len(f.docs))
	page := []document{}
	if offset < len(f.docs) {
		page = append(page, f.docs[offset:end]...)
	}
	writeJSON(w, http.StatusOK, documentList{Total: len(f.docs), Documents: page})
}

func (f *fakeServer) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	if req.DocumentID != uniqueID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "expected unique()"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	d := document{ID: fmt.Sprintf("doc%03d", f.next)}
	d.Text, _ = req.Data["text"].(string)
	d.Completed, _ = req.Data["completed"].(bool)
	f.docs = append(f.docs, d)
	writeJSON(w, http.StatusCreated, d)
}

func (f *fakeServer) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.ID != id {
			continue
		}
		if v, ok := req.Data["text"].(string); ok {
			d.Text = v
		}
		if v, ok := req.Data["completed"].(bool); ok {
			d.Completed = v
		}
		f.docs[i] = d
		writeJSON(w, http.StatusOK, d)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Document with the requested ID could not be found.", "code": 404, "type": "document_not_found"})
}

func (f *fakeServer) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.ID == id {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Document with the requested ID could not be found.", "code": 404, "type": "document_not_found"})
}

func (f *fakeServer) seed(docs ...document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, docs...)
}

func (f *fakeServer) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = status
}

func (f *fakeServer) requests() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.headers...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, project string) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{}
	server := httptest.NewServer(fake.routes())
	t.Cleanup(server.Close)

	c, err := New(Options{
		Endpoint:     server.URL + "/v1/",
		Project:      project,
		APIKey:       "secret",
		DatabaseID:   "main",
		CollectionID: "todos",
		Timeout:      5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, fake
}

func TestClientCRUD(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "proj")

	created, err := c.Create(ctx, "buy milk", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Text != "buy milk" || created.Completed {
		t.Fatalf("unexpected created document: %+v", created)
	}

	updated, err := c.Update(ctx, created.ID, todo.CompletedPatch(true))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Completed || updated.Text != "buy milk" {
		t.Errorf("unexpected updated document: %+v", updated)
	}

	items, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0] != updated {
		t.Errorf("unexpected list: %+v", items)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, err = c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list after delete, got %+v", items)
	}
}

func TestClientListPages(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, "proj")
	for i := 0; i < PageSize*2+5; i++ {
		fake.seed(document{ID: fmt.Sprintf("d%d", i), Text: fmt.Sprintf("task %d", i)})
	}

	items, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != PageSize*2+5 {
		t.Fatalf("expected %d items, got %d", PageSize*2+5, len(items))
	}
	if items[len(items)-1].ID != fmt.Sprintf("d%d", PageSize*2+4) {
		t.Errorf("pages out of order: last id %s", items[len(items)-1].ID)
	}
	if got := len(fake.requests()); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}
}

func TestClientHeaders(t *testing.T) {
	c, fake := newTestClient(t, "proj")
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	h := fake.requests()[0]
	if got := h.Get("X-Appwrite-Project"); got != "proj" {
		t.Errorf("X-Appwrite-Project: %q", got)
	}
	if got := h.Get("X-Appwrite-Key"); got != "secret" {
		t.Errorf("X-Appwrite-Key: %q", got)
	}
	if h.Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestClientNotFound(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "proj")

	_, err := c.Update(ctx, "nope", todo.TextPatch("x"))
	if !errors.Is(err, todo.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != "document_not_found" {
		t.Errorf("Update: expected APIError with type, got %#v", err)
	}
	if err := c.Delete(ctx, "nope"); !errors.Is(err, todo.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestClientServerErrors(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestClient(t, "wrong")
	_, err := c.List(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if errors.Is(err, todo.ErrNotFound) {
		t.Error("401 should not match ErrNotFound")
	}

	c, fake := newTestClient(t, "proj")
	fake.fail(http.StatusInternalServerError)
	if _, err := c.Create(ctx, "x", false); !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if apiErr.Message != "server on fire" {
		t.Errorf("message not decoded: %q", apiErr.Message)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{DatabaseID: "d", CollectionID: "c"}, nil); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := New(Options{Endpoint: "http://x", DatabaseID: "d"}, nil); err == nil {
		t.Error("expected error for missing collection")
	}
}

func TestClientWithView(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, "proj")
	fake.seed(document{ID: "a", Text: "existing"})

	v := todo.NewView(c, nil)
	if err := v.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := v.Create(ctx, "added"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.Toggle(ctx, "a"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	fake.fail(http.StatusServiceUnavailable)
	before := v.Snapshot()
	if err := v.Delete(ctx, "a"); err == nil {
		t.Fatal("expected delete to fail")
	}
	after := v.Snapshot()
	if len(after.Items) != len(before.Items) || after.Items[0] != before.Items[0] {
		t.Errorf("failed delete changed cache: %+v", after.Items)
	}
	if !after.Items[0].Completed || after.Items[1].Text != "added" {
		t.Errorf("unexpected cache: %+v", after.Items)
	}
}

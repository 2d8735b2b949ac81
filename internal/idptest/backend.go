package idptest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Course mirrors the backend's course resource.
type Course struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Instructor  string `json:"instructor"`
}

// Request is a request the backend received.
type Request struct {
	Method string
	Path   string
	Query  string
	Token  string
	Body   []byte
}

// Backend is an in-memory course REST service guarded by bearer tokens.
type Backend struct {
	Server *httptest.Server

	mu             sync.Mutex
	authorize      func(token string) bool
	courses        []Course
	nextID         int64
	realmRoles     []string
	omitRealm      bool
	resourceAccess map[string][]string
	failures       map[string]failure
	requests       []Request
}

type failure struct {
	status int
	body   string
}

func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		nextID:   1,
		failures: make(map[string]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/me", b.me)
	mux.HandleFunc("GET /api/courses", b.list)
	mux.HandleFunc("POST /api/courses", b.create)
	mux.HandleFunc("GET /api/courses/search", b.search)
	mux.HandleFunc("GET /api/courses/instructor/{name}", b.byInstructor)
	mux.HandleFunc("GET /api/courses/{id}", b.get)
	mux.HandleFunc("PUT /api/courses/{id}", b.update)
	mux.HandleFunc("DELETE /api/courses/{id}", b.delete)

	b.Server = httptest.NewServer(b.guard(mux))
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

// SetAuthorizer decides which bearer tokens are accepted. Nil accepts any non-empty token.
func (b *Backend) SetAuthorizer(fn func(token string) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorize = fn
}

// SetRoles sets the realm roles returned by /api/me.
func (b *Backend) SetRoles(roles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realmRoles = roles
	b.omitRealm = false
}

// OmitRealmAccess makes /api/me answer without a realm_access claim.
func (b *Backend) OmitRealmAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitRealm = true
}

// SetResourceRoles sets resource_access.<client>.roles on /api/me.
func (b *Backend) SetResourceRoles(client string, roles ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resourceAccess == nil {
		b.resourceAccess = make(map[string][]string)
	}
	b.resourceAccess[client] = roles
}

// Fail makes every request matching "METHOD /path" answer with status and body.
func (b *Backend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, body: body}
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Seed appends courses, assigning IDs.
func (b *Backend) Seed(courses ...Course) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range courses {
		c.ID = b.nextID
		b.nextID++
		b.courses = append(b.courses, c)
	}
}

func (b *Backend) Courses() []Course {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Course(nil), b.courses...)
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestCount counts requests matching method and path.
func (b *Backend) RequestCount(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		token, ok := BearerToken(r)

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Token:  token,
			Body:   body,
		})
		f, forced := b.failures[r.Method+" "+r.URL.Path]
		authorize := b.authorize
		b.mu.Unlock()

		if !ok || (authorize != nil && !authorize(token)) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if forced {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	claims := map[string]any{"sub": "user-1"}
	if !b.omitRealm {
		roles := b.realmRoles
		if roles == nil {
			roles = []string{}
		}
		claims["realm_access"] = map[string]any{"roles": roles}
	}
	if len(b.resourceAccess) > 0 {
		access := make(map[string]any, len(b.resourceAccess))
		for client, roles := range b.resourceAccess {
			access[client] = map[string]any{"roles": roles}
		}
		claims["resource_access"] = access
	}
	writeJSON(w, http.StatusOK, claims)
}

func (b *Backend) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.Courses())
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	var c Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed course"})
		return
	}

	b.mu.Lock()
	c.ID = b.nextID
	b.nextID++
	b.courses = append(b.courses, c)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	title := strings.ToLower(r.URL.Query().Get("title"))
	var out []Course
	for _, c := range b.Courses() {
		if strings.Contains(strings.ToLower(c.Title), title) {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (b *Backend) byInstructor(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var out []Course
	for _, c := range b.Courses() {
		if c.Instructor == name {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	idx, ok := b.find(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	c := b.courses[idx]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	idx, ok := b.find(w, r)
	if !ok {
		return
	}
	var c Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed course"})
		return
	}

	b.mu.Lock()
	c.ID = b.courses[idx].ID
	b.courses[idx] = c
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	idx, ok := b.find(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	b.courses = append(b.courses[:idx], b.courses[idx+1:]...)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) find(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid id"})
		return 0, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.courses {
		if c.ID == id {
			return i, true
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "course not found"})
	return 0, false
}

func nonNil(in []Course) []Course {
	if in == nil {
		return []Course{}
	}
	return in
}

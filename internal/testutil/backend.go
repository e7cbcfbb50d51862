package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/buildagent/buildagent/internal/plan"
)

// Request is one call received by a FakeBackend.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Decode unmarshals the request body into v.
func (r Request) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("failed to decode %s %s body %q: %v", r.Method, r.Path, r.Body, err)
	}
}

type failure struct {
	status int
	detail string
}

// FakeBackend is an in-memory workflow backend served over httptest. It
// keeps just enough state for the client and commands to be exercised end
// to end, records every request, and can be told to fail specific routes.
type FakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []Request
	failures map[string]failure
	projects map[int]map[string]any
	nextID   int
	phases   []plan.Phase
	status   plan.ExecutionStatus
	logs     []map[string]any
	commands []string
}

// NewFakeBackend starts a FakeBackend that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		failures: make(map[string]failure),
		projects: make(map[int]map[string]any),
		nextID:   1,
	}
	f.server = httptest.NewServer(f.routes())
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the server root.
func (f *FakeBackend) URL() string {
	return f.server.URL
}

// Fail makes every request to method and path answer with status and a
// {"detail": detail} body.
func (f *FakeBackend) Fail(method, path string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = failure{status: status, detail: detail}
}

// SetPhases replaces the task list the backend serves.
func (f *FakeBackend) SetPhases(phases []plan.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = phases
}

// SetStatus replaces the execution status the backend serves.
func (f *FakeBackend) SetStatus(status plan.ExecutionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// AddProject stores a project and returns its id.
func (f *FakeBackend) AddProject(idea string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addProjectLocked(idea)
}

// Must be called with mu held.
func (f *FakeBackend) addProjectLocked(idea string) int {
	id := f.nextID
	f.nextID++
	f.projects[id] = map[string]any{
		"id":         id,
		"idea":       idea,
		"status":     "created",
		"created_at": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format("2006-01-02T15:04:05.000000"),
	}
	return id
}

// Requests returns every request received so far.
func (f *FakeBackend) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Count returns how many requests hit method and path.
func (f *FakeBackend) Count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Commands returns the execution commands received, in order.
func (f *FakeBackend) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *FakeBackend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/projects/", f.createProject)
	mux.HandleFunc("GET /api/projects/{id}", f.getProject)
	mux.HandleFunc("PATCH /api/projects/{id}", f.updateProject)

	mux.HandleFunc("POST /api/repos/select", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RepoURL string `json:"repo_url"`
		}
		_ = json.Unmarshal(readBody(r), &body)
		writeJSON(w, http.StatusOK, map[string]any{
			"repo_path": fmt.Sprintf("./repos/%s_demo", r.URL.Query().Get("project_id")),
			"status":    "cloned",
		})
	})
	mux.HandleFunc("POST /api/repos/analyze", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"directory_structure": map[string]any{"README.md": "file"},
			"tech_stack":          []string{"Go"},
			"routing":             []string{},
			"components":          []string{},
			"apis":                []string{},
			"models":              []string{},
			"db_schema":           map[string]any{},
		})
	})

	mux.HandleFunc("POST /api/plan/questions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"questions": []any{}})
	})
	mux.HandleFunc("POST /api/plan/generate", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"plan_id": 1, "plan_document": "# Plan"})
	})
	mux.HandleFunc("POST /api/plan/approve-section", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.Unmarshal(readBody(r), &body)
		writeJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("GET /api/plan/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 1, "questions": []any{}, "answers": map[string]any{}, "plan_document": "# Plan",
		})
	})

	mux.HandleFunc("POST /api/tasks/generate", f.servePhases)
	mux.HandleFunc("GET /api/tasks/{id}", f.servePhases)

	design := func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": id, "architecture": "graph TD; A-->B", "sequence_diagram": "",
			"api_structure": map[string]any{}, "db_changes": map[string]any{},
			"data_flow": "", "approved": false,
		})
	}
	mux.HandleFunc("POST /api/design/generate/{id}", design)
	mux.HandleFunc("GET /api/design/phase/{id}", design)
	mux.HandleFunc("PATCH /api/design/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Approved bool `json:"approved"`
		}
		_ = json.Unmarshal(readBody(r), &body)
		id, _ := strconv.Atoi(r.PathValue("id"))
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "approved": body.Approved})
	})
	mux.HandleFunc("POST /api/design/approve-all/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		n := len(f.phases)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"approved_count": n, "total_phases": n, "message": fmt.Sprintf("Approved %d design(s)", n),
		})
	})

	mux.HandleFunc("POST /api/execution/start", f.startExecution)
	mux.HandleFunc("POST /api/execution/command", f.executionCommand)
	mux.HandleFunc("GET /api/execution/logs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		logs := append([]map[string]any{}, f.logs...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
	})
	mux.HandleFunc("GET /api/execution/status/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status := f.status
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /api/testing/run-command", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"stdout": "12 passed", "stderr": "", "returncode": 0})
	})
	mux.HandleFunc("GET /api/testing/test-logs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"logs": []map[string]any{
			{"id": 1, "content": "12 passed", "created_at": "2026-01-02T03:04:05"},
		}})
	})

	mux.HandleFunc("POST /api/pr/create", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"pr_id": 1, "branch_name": "buildagent/feature", "pr_url": "https://github.com/acme/demo/pull/7", "pr_number": 7,
		})
	})
	mux.HandleFunc("GET /api/pr/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 1, "branch_name": "buildagent/feature", "pr_url": "https://github.com/acme/demo/pull/7",
			"pr_number": 7, "status": "open", "created_at": "2026-01-02T03:04:05",
		})
	})

	return f.record(mux)
}

// record logs the request and applies injected failures before routing.
func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		fail, ok := f.failures[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if ok {
			writeJSON(w, fail.status, map[string]string{"detail": fail.detail})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) createProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Idea string `json:"idea"`
	}
	if err := json.Unmarshal(readBody(r), &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "invalid body"}}})
		return
	}
	f.mu.Lock()
	id := f.addProjectLocked(body.Idea)
	p := f.projects[id]
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeBackend) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := f.project(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Project not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeBackend) updateProject(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.Unmarshal(readBody(r), &body)

	f.mu.Lock()
	id, _ := strconv.Atoi(r.PathValue("id"))
	p, ok := f.projects[id]
	if ok {
		for k, v := range body {
			if v != "" {
				p[k] = v
			}
		}
		p = maps.Clone(p)
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Project not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeBackend) project(raw string) (map[string]any, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(p), true
}

func (f *FakeBackend) servePhases(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	phases := append([]plan.Phase{}, f.phases...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"phases": phases})
}

func (f *FakeBackend) startExecution(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	pending := 0
	for _, p := range f.phases {
		for _, t := range p.Tasks {
			if t.Status == plan.TaskPending {
				pending++
			}
		}
	}
	f.status.Running = true
	f.logs = append(f.logs, map[string]any{
		"id": len(f.logs) + 1, "task_id": nil, "log_type": "agent_message",
		"content": "Execution started", "created_at": "2026-01-02T03:04:05.123456",
	})
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "Execution started", "tasks_count": pending})
}

func (f *FakeBackend) executionCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	_ = json.Unmarshal(readBody(r), &body)

	f.mu.Lock()
	f.commands = append(f.commands, body.Command)
	f.status.Running = body.Command == "play"
	f.mu.Unlock()

	messages := map[string]string{
		"play":  "Execution resumed",
		"pause": "Execution paused",
		"stop":  "Execution stopped",
	}
	msg, ok := messages[body.Command]
	if !ok {
		msg = "Unknown command"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func readBody(r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

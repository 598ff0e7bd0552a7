package thread

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"threadbot/settings"
)

const (
	testCredential  = "sk-x"
	testAssistantID = "asst_1"
	testThreadID    = "th_1"
)

// fakeBackend is an in-process stand-in for the assistants API.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu sync.Mutex
	// most recent first, like the real API
	messages []openai.Message
	// statuses handed out by create run followed by each poll
	runStatuses []openai.RunStatus
	runStarted  int64
	runPolls    int
	runCount    int
	nextID      int

	failList          bool
	failCreateMessage bool
	failCreateRun     bool
	failRetrieve      bool

	requests        []string
	lastAuth        string
	lastBeta        string
	lastContentType string
	lastListLimit   string
	createdRoles    []string
	createdContent  []string
	createdBodies   []map[string]json.RawMessage
	runAssistantIDs []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:           t,
		runStatuses: []openai.RunStatus{openai.RunStatusCompleted},
		runStarted:  1_700_000_000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/threads/{thread}/messages", b.listMessages)
	mux.HandleFunc("POST /v1/threads/{thread}/messages", b.createMessage)
	mux.HandleFunc("POST /v1/threads/{thread}/runs", b.createRun)
	mux.HandleFunc("GET /v1/threads/{thread}/runs/{run}", b.retrieveRun)
	b.server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) factory() APIFactory {
	return NewOpenAIFactory(b.server.URL+"/v1", "v2", nil)
}

func (b *fakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.lastAuth = r.Header.Get("Authorization")
		b.lastBeta = r.Header.Get("OpenAI-Beta")
		b.lastContentType = r.Header.Get("Content-Type")
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) count(request string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r == request {
			n++
		}
	}
	return n
}

func (b *fakeBackend) totalRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// seed adds a confirmed message as the newest entry of the thread.
func (b *fakeBackend) seed(role string, text string) openai.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(role, text)
}

func (b *fakeBackend) addLocked(role string, text string) openai.Message {
	b.nextID++
	message := openai.Message{
		ID:        fmt.Sprintf("msg_%d", b.nextID),
		Object:    "thread.message",
		CreatedAt: b.nextID,
		ThreadID:  testThreadID,
		Role:      role,
		Content: []openai.MessageContent{
			{Type: "text", Text: &openai.MessageText{Value: text}},
		},
	}
	b.messages = append([]openai.Message{message}, b.messages...)
	return message
}

func (b *fakeBackend) fail(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
}

func (b *fakeBackend) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.t.Errorf("encode response: %s", err)
	}
}

func (b *fakeBackend) listMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastListLimit = r.URL.Query().Get("limit")
	if b.failList {
		b.fail(w)
		return
	}
	b.writeJSON(w, map[string]any{
		"object":   "list",
		"data":     b.messages,
		"has_more": false,
	})
}

func (b *fakeBackend) createMessage(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		b.t.Errorf("decode create message: %s", err)
	}
	var req struct {
		Role    string
		Content string
	}
	if err := json.Unmarshal(body["role"], &req.Role); err != nil {
		b.t.Errorf("decode create message role: %s", err)
	}
	if err := json.Unmarshal(body["content"], &req.Content); err != nil {
		b.t.Errorf("decode create message content: %s", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreateMessage {
		b.fail(w)
		return
	}
	b.createdBodies = append(b.createdBodies, body)
	b.createdRoles = append(b.createdRoles, req.Role)
	b.createdContent = append(b.createdContent, req.Content)
	b.writeJSON(w, b.addLocked(req.Role, req.Content))
}

func (b *fakeBackend) createRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssistantID string `json:"assistant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.t.Errorf("decode create run: %s", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreateRun {
		b.fail(w)
		return
	}
	b.runAssistantIDs = append(b.runAssistantIDs, req.AssistantID)
	b.runPolls = 0
	b.runCount++
	b.writeJSON(w, b.runLocked(r.PathValue("thread"), fmt.Sprintf("run_%d", b.runCount)))
}

func (b *fakeBackend) retrieveRun(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRetrieve {
		b.fail(w)
		return
	}
	b.runPolls++
	b.writeJSON(w, b.runLocked(r.PathValue("thread"), r.PathValue("run")))
}

// runLocked returns the run in the status for the current poll; the last
// configured status repeats. A completed run adds the assistant reply
// tagged with the run id.
func (b *fakeBackend) runLocked(threadID string, runID string) openai.Run {
	i := b.runPolls
	if i >= len(b.runStatuses) {
		i = len(b.runStatuses) - 1
	}
	status := b.runStatuses[i]
	run := openai.Run{
		ID:          runID,
		Object:      "thread.run",
		ThreadID:    threadID,
		AssistantID: testAssistantID,
		Status:      status,
	}
	if status != openai.RunStatusQueued {
		started := b.runStarted
		run.StartedAt = &started
	}
	if status == openai.RunStatusCompleted {
		b.addLocked(openai.ChatMessageRoleAssistant, "hello from the assistant")
		b.messages[0].RunID = &runID
	}
	return run
}

type staticSettings settings.Values

func (s staticSettings) Get() settings.Values {
	return settings.Values(s)
}

func completeSettings() staticSettings {
	return staticSettings{
		Credential:  testCredential,
		AssistantID: testAssistantID,
		ThreadID:    testThreadID,
	}
}

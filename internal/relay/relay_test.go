package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/internal/sse"
)

const helloBody = `{"messages":[{"role":"user","content":"hello"}],"language":"en"}`

func serve(t *testing.T, r *Relay, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, r.Handle(e.NewContext(req, rec)))
	return rec
}

func decodeFrames(t *testing.T, body string) []string {
	t.Helper()
	var dec sse.Decoder
	frames := dec.Feed([]byte(body))
	return append(frames, dec.Flush()...)
}

func chunkFrame(text string) string {
	b, _ := json.Marshal(sse.ChunkFrame{Chunk: text})
	return string(b)
}

func errorFrame(message string) string {
	b, _ := json.Marshal(sse.ErrorFrame{Error: message})
	return string(b)
}

func upstreamFrame(text string) string {
	return fmt.Sprintf("data: {\"id\":\"x\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", text)
}

// fakeUpstream answers each attempt with the next status; 200 streams frames.
type fakeUpstream struct {
	statuses []int
	frames   []string
	attempts atomic.Int32
	lastBody atomic.Value
	lastAuth atomic.Value
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.attempts.Add(1)) - 1
	body, _ := io.ReadAll(r.Body)
	f.lastBody.Store(body)
	f.lastAuth.Store(r.Header.Get("Authorization"))

	status := http.StatusOK
	if n < len(f.statuses) {
		status = f.statuses[n]
	}
	if status != http.StatusOK {
		http.Error(w, `{"error":"nope"}`, status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, frame := range f.frames {
		_, _ = io.WriteString(w, frame)
		w.(http.Flusher).Flush()
	}
}

func liveRelay(t *testing.T, upstreamURL string) *Relay {
	t.Helper()
	return New(Config{
		APIKey:     "test-key",
		BaseURL:    upstreamURL,
		RetryDelay: 50 * time.Millisecond,
	}, nil, zap.NewNop())
}

func TestHandle_RejectsInvalidRequests(t *testing.T) {
	r := New(Config{Mock: true}, nil, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "missing messages", body: `{"language":"en"}`},
		{name: "empty messages", body: `{"messages":[]}`},
		{name: "non-array messages", body: `{"messages":{"role":"user"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, r, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
			frames := decodeFrames(t, rec.Body.String())
			require.Len(t, frames, 2)
			assert.Contains(t, frames[0], `"error"`)
			assert.Equal(t, sse.Done, frames[1])
		})
	}
}

func TestHandle_MockModeIsDeterministic(t *testing.T) {
	r := New(Config{MockDelay: 10 * time.Millisecond}, nil, zap.NewNop())
	require.True(t, r.Config().MockMode())

	start := time.Now()
	first := serve(t, r, helloBody)
	elapsed := time.Since(start)
	second := serve(t, r, helloBody)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	frames := decodeFrames(t, first.Body.String())
	fragments := MockFragments(entities.LanguageEnglish)
	require.Len(t, frames, len(fragments)+1)
	for i, fragment := range fragments {
		assert.Equal(t, chunkFrame(fragment), frames[i])
	}
	assert.Equal(t, sse.Done, frames[len(frames)-1])
	assert.True(t, strings.HasPrefix(frames[0], `{"chunk":"{\"type\":\"card\"`))
	assert.NotContains(t, first.Body.String(), `"error"`)
	assert.GreaterOrEqual(t, elapsed, time.Duration(len(fragments)-1)*10*time.Millisecond)
}

func TestHandle_MockModeStreamingHeaders(t *testing.T) {
	rec := serve(t, New(Config{Mock: true, APIKey: "set", MockDelay: time.Millisecond}, nil, zap.NewNop()), helloBody)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestConfig_Mode(t *testing.T) {
	assert.True(t, Config{}.MockMode())
	assert.True(t, Config{APIKey: "k", Mock: true}.MockMode())
	assert.False(t, Config{APIKey: "k"}.MockMode())
	assert.False(t, Config{ForceLive: true}.MockMode())

	cfg := Config{}.withDefaults()
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.RetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.MockDelay)
}

func TestHandle_LiveRelaysChunksInOrder(t *testing.T) {
	up := &fakeUpstream{frames: []string{
		upstreamFrame("<card"),
		"data: {this is not json\n\n",
		": keep-alive comment\n\n",
		upstreamFrame(" title=\"hi\""),
		upstreamFrame(""),
		upstreamFrame("/>"),
		"data: [DONE]\n\n",
		upstreamFrame("after done"),
	}}
	srv := httptest.NewServer(up)
	defer srv.Close()

	rec := serve(t, liveRelay(t, srv.URL), `{
		"messages": [
			{"role":"user","content":"first"},
			{"role":"assistant","content":"ok"},
			{"role":"user","content":"describe","images":["https://img/a.png","https://img/b.png"]}
		],
		"language": "ar"
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		chunkFrame("<card"),
		chunkFrame(" title=\"hi\""),
		chunkFrame("/>"),
		sse.Done,
	}, decodeFrames(t, rec.Body.String()))

	assert.Equal(t, "Bearer test-key", up.lastAuth.Load())

	var sent struct {
		Model    string            `json:"model"`
		Stream   bool              `json:"stream"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(up.lastBody.Load().([]byte), &sent))
	assert.True(t, sent.Stream)
	assert.Equal(t, defaultModel, sent.Model)
	require.Len(t, sent.Messages, 4)

	var system entities.ChatMessage
	require.NoError(t, json.Unmarshal(sent.Messages[0], &system))
	assert.Equal(t, entities.RoleSystem, system.Role)
	assert.Equal(t, languageDirectives[entities.LanguageArabic], system.Content.Text)

	assert.JSONEq(t, `{"role":"user","content":[
		{"type":"image_url","image_url":{"url":"https://img/a.png"}},
		{"type":"image_url","image_url":{"url":"https://img/b.png"}},
		{"type":"text","text":"describe"}
	]}`, string(sent.Messages[3]))
}

func TestHandle_LiveAppendsPreviousStateDirective(t *testing.T) {
	up := &fakeUpstream{frames: []string{upstreamFrame("x"), "data: [DONE]\n\n"}}
	srv := httptest.NewServer(up)
	defer srv.Close()

	serve(t, liveRelay(t, srv.URL), `{
		"messages": [{"role":"user","content":"make it red"}],
		"model": "custom-model",
		"sessionId": "s1",
		"previousState": {"component":"Button","color":"blue"}
	}`)

	var sent completionRequest
	require.NoError(t, json.Unmarshal(up.lastBody.Load().([]byte), &sent))
	assert.Equal(t, "custom-model", sent.Model)
	require.Len(t, sent.Messages, 3)
	last := sent.Messages[2]
	assert.Equal(t, entities.RoleSystem, last.Role)
	assert.True(t, strings.HasPrefix(last.Content.Text, stateDirective))
	assert.Contains(t, last.Content.Text, `{"component":"Button","color":"blue"}`)
}

func TestHandle_RetriesOnceAfterColdStart(t *testing.T) {
	up := &fakeUpstream{
		statuses: []int{http.StatusServiceUnavailable},
		frames:   []string{upstreamFrame("a"), upstreamFrame("b"), "data: [DONE]\n\n"},
	}
	srv := httptest.NewServer(up)
	defer srv.Close()

	start := time.Now()
	rec := serve(t, liveRelay(t, srv.URL), `{"messages":[{"role":"user","content":"hi"}],"previousState":"card-v1"}`)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int32(2), up.attempts.Load())
	assert.Equal(t, []string{chunkFrame("a"), chunkFrame("b"), sse.Done}, decodeFrames(t, rec.Body.String()))

	// Retry carries the same session context
	assert.Contains(t, string(up.lastBody.Load().([]byte)), "card-v1")
}

func TestHandle_SecondFailureIsTerminal(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantAttempts int32
		wantMessage  string
	}{
		{
			name:         "503 twice",
			statuses:     []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable},
			wantAttempts: 2,
			wantMessage:  MessageUnavailable,
		},
		{
			name:         "500 then 401",
			statuses:     []int{http.StatusInternalServerError, http.StatusUnauthorized},
			wantAttempts: 2,
			wantMessage:  MessageAuthFailed,
		},
		{
			name:         "429 is not retried",
			statuses:     []int{http.StatusTooManyRequests},
			wantAttempts: 1,
			wantMessage:  MessageRateLimited,
		},
		{
			name:         "502 is not retried",
			statuses:     []int{http.StatusBadGateway},
			wantAttempts: 1,
			wantMessage:  MessageUnavailable,
		},
		{
			name:         "400 is not retried",
			statuses:     []int{http.StatusBadRequest},
			wantAttempts: 1,
			wantMessage:  MessageStreamFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{statuses: tt.statuses, frames: []string{upstreamFrame("never"), "data: [DONE]\n\n"}}
			srv := httptest.NewServer(up)
			defer srv.Close()

			rec := serve(t, liveRelay(t, srv.URL), helloBody)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantAttempts, up.attempts.Load())
			assert.Equal(t, []string{errorFrame(tt.wantMessage), sse.Done}, decodeFrames(t, rec.Body.String()))
		})
	}
}

func TestHandle_NetworkErrorBecomesErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := serve(t, liveRelay(t, url), helloBody)

	assert.Equal(t, []string{errorFrame(MessageStreamFailed), sse.Done}, decodeFrames(t, rec.Body.String()))
}

func TestHandle_StreamEndWithoutDone(t *testing.T) {
	up := &fakeUpstream{frames: []string{upstreamFrame("a"), strings.TrimSuffix(upstreamFrame("tail"), "\n\n")}}
	srv := httptest.NewServer(up)
	defer srv.Close()

	rec := serve(t, liveRelay(t, srv.URL), helloBody)

	assert.Equal(t, []string{chunkFrame("a"), chunkFrame("tail"), sse.Done}, decodeFrames(t, rec.Body.String()))
}

func TestHandle_TimeoutIsReported(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, upstreamFrame("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	r := New(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, nil, zap.NewNop())
	rec := serve(t, r, helloBody)

	assert.Equal(t, []string{chunkFrame("partial"), errorFrame(MessageTimedOut), sse.Done}, decodeFrames(t, rec.Body.String()))
}

// syncRecorder is a ResponseWriter safe for concurrent inspection
type syncRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	writes chan struct{}
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{header: http.Header{}, writes: make(chan struct{}, 16)}
}

func (s *syncRecorder) Header() http.Header { return s.header }
func (s *syncRecorder) WriteHeader(int)     {}
func (s *syncRecorder) Flush()              {}

func (s *syncRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.buf.Write(p)
	select {
	case s.writes <- struct{}{}:
	default:
	}
	return n, err
}

func (s *syncRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestStream_ClientDisconnectAbortsUpstream(t *testing.T) {
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, upstreamFrame("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	r := liveRelay(t, srv.URL)
	rec := newSyncRecorder()
	clientCtx, disconnect := context.WithCancel(context.Background())
	sw, err := sse.NewWriter(clientCtx, rec)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Stream(clientCtx, entities.StreamRequest{
			Messages: []entities.ChatMessage{entities.NewTextMessage(entities.RoleUser, "hi")},
			Language: entities.LanguageEnglish,
		}, sw)
	}()

	select {
	case <-rec.writes:
	case <-time.After(2 * time.Second):
		t.Fatal("first chunk was not relayed")
	}
	disconnect()

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream request was not aborted")
	}
	<-done

	assert.Equal(t, []string{chunkFrame("first")}, decodeFrames(t, rec.String()))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, MessageTimedOut, Classify(context.DeadlineExceeded))
	assert.Equal(t, MessageTimedOut, Classify(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, MessageRateLimited, Classify(&UpstreamError{StatusCode: 429}))
	assert.Equal(t, MessageUnavailable, Classify(&UpstreamError{StatusCode: 503}))
	assert.Equal(t, MessageAuthFailed, Classify(&UpstreamError{StatusCode: 403}))
	assert.Equal(t, MessageStreamFailed, Classify(&UpstreamError{StatusCode: 404}))
	assert.Equal(t, MessageStreamFailed, Classify(io.ErrUnexpectedEOF))
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/internal/auth"
	"github.com/satriahrh/genui-relay/internal/relay"
	"github.com/satriahrh/genui-relay/internal/websocket"
	"github.com/satriahrh/genui-relay/usecase"
)

type noopProcessor struct{}

func (noopProcessor) ProcessTurn(context.Context, *usecase.Conversation, []byte) (*usecase.TurnResult, error) {
	return nil, nil
}

func newTestServer(t *testing.T, authenticator *auth.Authenticator) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	logger := zap.NewNop()

	hub := websocket.NewHub(noopProcessor{}, websocket.Config{}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	InitRoutes(e, Dependencies{
		Relay:  relay.New(relay.Config{Mock: true, MockDelay: time.Millisecond}, nil, logger),
		Hub:    hub,
		Auth:   authenticator,
		Logger: logger,
	})

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/voice"
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, HealthResponse{Status: "ok", Service: "genui-relay", Mode: "mock"}, body)
}

func TestChatStreamRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/chat/stream", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
}

func TestVoiceRoute_Open(t *testing.T) {
	srv, hub := newTestServer(t, nil)

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ActiveSessions() == 1 }, time.Second, 5*time.Millisecond)
}

func TestVoiceRoute_RequiresToken(t *testing.T) {
	authenticator := auth.NewAuthenticator("s3cret")
	srv, _ := newTestServer(t, authenticator)

	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorillaws.DefaultDialer.Dial(wsURL(srv)+"?token=bogus", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := authenticator.IssueToken("user-1", time.Minute)
	require.NoError(t, err)

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	conn.Close()

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err = gorillaws.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRequestBody_ToStreamRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "missing messages", body: `{"language":"en"}`, wantErr: ErrEmptyMessages},
		{name: "empty messages", body: `{"messages":[]}`, wantErr: ErrEmptyMessages},
		{name: "non-array messages", body: `{"messages":"hello"}`, wantErr: ErrEmptyMessages},
		{name: "null messages", body: `{"messages":null}`, wantErr: ErrEmptyMessages},
		{name: "valid", body: `{"messages":[{"role":"user","content":"hello"}],"language":"ar"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body StreamRequestBody
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))

			_, err := body.ToStreamRequest()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStreamRequestBody_SessionContext(t *testing.T) {
	raw := `{
		"messages": [{"role":"user","content":"make it blue"}],
		"language": "en",
		"sessionId": "s-1",
		"messageId": "m-9",
		"previousState": {"type":"card","title":"Weather"}
	}`
	var body StreamRequestBody
	require.NoError(t, json.Unmarshal([]byte(raw), &body))

	req, err := body.ToStreamRequest()
	require.NoError(t, err)
	require.NotNil(t, req.SessionContext)
	assert.Equal(t, "s-1", req.SessionContext.SessionID)
	assert.Equal(t, "m-9", req.SessionContext.MessageID)
	assert.True(t, req.SessionContext.HasPreviousState())
	assert.JSONEq(t, `{"type":"card","title":"Weather"}`, string(req.SessionContext.PreviousState))

	// And back to the wire shape
	again, err := NewStreamRequestBody(req)
	require.NoError(t, err)
	assert.Equal(t, "s-1", again.SessionID)
	assert.JSONEq(t, `[{"role":"user","content":"make it blue"}]`, string(again.Messages))
}

func TestSessionContext_HasPreviousState(t *testing.T) {
	var nilCtx *SessionContext
	assert.False(t, nilCtx.HasPreviousState())
	assert.False(t, (&SessionContext{}).HasPreviousState())
	assert.False(t, (&SessionContext{PreviousState: json.RawMessage("null")}).HasPreviousState())
	assert.True(t, (&SessionContext{PreviousState: json.RawMessage(`"x"`)}).HasPreviousState())
}

// Package sse implements the data-line framing shared by the chat stream relay
// and its clients: "data: <payload>\n\n" frames terminated by "data: [DONE]".
package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Done is the terminal sentinel payload
const Done = "[DONE]"

const dataPrefix = "data: "

// ChunkFrame carries one piece of streamed text
type ChunkFrame struct {
	Chunk string `json:"chunk"`
}

// ErrorFrame carries a terminal, human readable error
type ErrorFrame struct {
	Error string `json:"error"`
}

// Frame is the decode side of ChunkFrame / ErrorFrame
type Frame struct {
	Chunk *string `json:"chunk,omitempty"`
	Error *string `json:"error,omitempty"`
}

// Decode splits carry+chunk into lines. The last line may be incomplete and is
// returned as the new carry; every complete line starting with "data: " is
// returned with the prefix stripped.
func Decode(chunk []byte, carry string) ([]string, string) {
	text := carry + string(chunk)
	lines := strings.Split(text, "\n")

	newCarry := lines[len(lines)-1]
	var frames []string
	for _, line := range lines[:len(lines)-1] {
		if payload, ok := dataPayload(line); ok {
			frames = append(frames, payload)
		}
	}
	return frames, newCarry
}

func dataPayload(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return strings.TrimPrefix(line, dataPrefix), true
}

// Decoder keeps the carry-over fragment between network reads
type Decoder struct {
	carry string
}

// Feed decodes the next network chunk
func (d *Decoder) Feed(chunk []byte) []string {
	var frames []string
	frames, d.carry = Decode(chunk, d.carry)
	return frames
}

// Flush returns the trailing unterminated line as a frame, if it is a data line.
// Call it once the underlying stream has ended.
func (d *Decoder) Flush() []string {
	carry := d.carry
	d.carry = ""
	if payload, ok := dataPayload(carry); ok {
		return []string{payload}
	}
	return nil
}

// Encode serializes a payload as a single frame. The Done sentinel is written
// literally, anything else as JSON.
func Encode(payload any) ([]byte, error) {
	if s, ok := payload.(string); ok && s == Done {
		return []byte(dataPrefix + Done + "\n\n"), nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	out := make([]byte, 0, len(dataPrefix)+len(b)+2)
	out = append(out, dataPrefix...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out, nil
}

// ParseFrame decodes a frame payload. done is true for the sentinel.
func ParseFrame(payload string) (frame Frame, done bool, err error) {
	if strings.TrimSpace(payload) == Done {
		return Frame{}, true, nil
	}
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return Frame{}, false, fmt.Errorf("malformed frame: %w", err)
	}
	return frame, false, nil
}

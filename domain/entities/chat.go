package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role represents the role of a message sender
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ContentPartType identifies the kind of a multi-part content entry
type ContentPartType string

const (
	ContentPartText     ContentPartType = "text"
	ContentPartImageURL ContentPartType = "image_url"
)

// ImageURL is the provider wire shape for an image reference
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is a single entry of a multi-part message content
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// ImagePart builds an image content part
func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentPartImageURL, ImageURL: &ImageURL{URL: url}}
}

// Content is either plain text or an ordered list of parts.
// A nil Parts slice means the content is plain text.
type Content struct {
	Text  string
	Parts []ContentPart
}

// TextContent builds plain text content
func TextContent(text string) Content {
	return Content{Text: text}
}

// PartsContent builds multi-part content
func PartsContent(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsParts reports whether the content is in multi-part form
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// PlainText returns the textual portion of the content. Text parts are joined with a newline.
func (c Content) PlainText() string {
	if !c.IsParts() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == ContentPartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MarshalJSON encodes plain text as a JSON string and parts as a JSON array
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of content parts
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("invalid content string: %w", err)
		}
		*c = Content{Text: text}
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return fmt.Errorf("invalid content parts: %w", err)
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return errors.New("content must be a string or an array of parts")
	}
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role     `json:"role"`
	Content Content  `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// NewTextMessage creates a plain text message
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: TextContent(text)}
}

// Expand converts attached images into the provider multi-part content form.
// Image parts come first in their original order and the text comes last; the
// upstream vision API depends on that ordering.
func (m ChatMessage) Expand() ChatMessage {
	if len(m.Images) == 0 {
		return m
	}

	parts := make([]ContentPart, 0, len(m.Images)+1)
	for _, url := range m.Images {
		parts = append(parts, ImagePart(url))
	}
	if m.Content.IsParts() {
		parts = append(parts, m.Content.Parts...)
	} else {
		parts = append(parts, TextPart(m.Content.Text))
	}

	return ChatMessage{
		Role:    m.Role,
		Content: PartsContent(parts...),
	}
}

// Collapse is the inverse of Expand: image parts are lifted back into Images and
// the text parts become plain text content.
func (m ChatMessage) Collapse() ChatMessage {
	if !m.Content.IsParts() {
		return m
	}

	out := ChatMessage{Role: m.Role, Images: append([]string(nil), m.Images...)}
	for _, p := range m.Content.Parts {
		if p.Type == ContentPartImageURL && p.ImageURL != nil {
			out.Images = append(out.Images, p.ImageURL.URL)
		}
	}
	out.Content = TextContent(m.Content.PlainText())
	if len(out.Images) == 0 {
		out.Images = nil
	}
	return out
}

// Validate checks a single message
func (m ChatMessage) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	for i, p := range m.Content.Parts {
		switch p.Type {
		case ContentPartText:
		case ContentPartImageURL:
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				return fmt.Errorf("content part %d: image_url is required", i)
			}
		default:
			return fmt.Errorf("content part %d: unsupported type %q", i, p.Type)
		}
	}
	return nil
}

// ExpandAll expands every message, preserving order
func ExpandAll(messages []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = m.Expand()
	}
	return out
}

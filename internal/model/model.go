// ABOUTME: Record types for chat threads, memory entries, the key vault, the HTML document and agents
// ABOUTME: Includes the shared chat exchange logic used offline by clients and online by the backend

package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultThreadTitle is the title of a thread with no messages yet.
const DefaultThreadTitle = "New Chat"

// titleLength is the number of characters of the first message used as a thread title.
const titleLength = 30

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// Thread is a chat conversation keyed by a UUID.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
}

// NewThread returns an empty thread titled DefaultThreadTitle.
func NewThread(id string, now time.Time) Thread {
	return Thread{
		ID:        id,
		Title:     DefaultThreadTitle,
		Messages:  []Message{},
		CreatedAt: Millis(now),
	}
}

// WithExchange returns a copy of t with a user message and the assistant's
// echo reply appended. An empty thread is titled after the message.
func (t Thread) WithExchange(content string, now time.Time) Thread {
	content = strings.TrimSpace(content)
	ts := Millis(now)

	next := t
	if len(t.Messages) == 0 {
		next.Title = Title(content)
	}
	next.Messages = make([]Message, 0, len(t.Messages)+2)
	next.Messages = append(next.Messages, t.Messages...)
	next.Messages = append(next.Messages,
		Message{Role: RoleUser, Content: content, TS: ts},
		Message{Role: RoleAssistant, Content: EchoReply(content), TS: ts},
	)
	return next
}

// EchoReply is the assistant response used until a real model is attached.
func EchoReply(content string) string {
	return "Echo: " + content
}

// Title truncates content to the first 30 characters.
func Title(content string) string {
	if utf8.RuneCountInString(content) <= titleLength {
		return content
	}
	return string([]rune(content)[:titleLength])
}

// MemoryItem is one key/value entry of persistent memory.
type MemoryItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	TS    int64  `json:"ts"`
}

// Document is the HTML page edited in the code studio.
type Document struct {
	HTML string `json:"html"`
}

// Agent is a locally stored agent profile.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Tone      string `json:"tone"`
	Purpose   string `json:"purpose"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// DefaultAgent is the draft offered when creating a new agent.
func DefaultAgent() Agent {
	return Agent{
		Name:    "Nova",
		Model:   "openai:gpt-4o-mini",
		Tone:    "pragmatic",
		Purpose: "Full-stack coding assistant focused on DX and reliability.",
	}
}

// Millis converts t to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

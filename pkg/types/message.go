// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

// MessageRole identifies the sender of a message in the LLM conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in the LLM conversation.
type Message struct {
	Role    MessageRole // Who sent the message
	Content string      // Message text
}

// Conversation is an ordered message history.
type Conversation []Message

// With returns a copy of the conversation with msgs appended. The receiver
// is never modified, so candidates generated from one base conversation do
// not share backing arrays.
func (c Conversation) With(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	return append(out, msgs...)
}

// TokenUsage tracks token consumption for a single LLM call.
type TokenUsage struct {
	InputTokens  int // Tokens in the prompt
	OutputTokens int // Tokens in the response
}

// Total returns the sum of input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// FileContent pairs a project-relative path with full file text.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StreamResponse holds the result of a streaming LLM call.
type StreamResponse struct {
	FullText string     // Accumulated response text
	Usage    TokenUsage // Token counts from API metadata
	Retries  int        // Number of retries performed (due to rate limits)
	Err      error      // Set when the call failed; FullText may hold a partial response
}

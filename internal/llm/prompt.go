// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package llm wraps the AWS Bedrock ConverseStream API and builds the
// conversations that ask a model for unified-diff edits.
package llm

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateData holds the values injected into the system prompt template.
type TemplateData struct {
	OS       string
	Shell    string
	Language string // Optional reply language
}

// RenderSystemPrompt renders the system prompt template with the given data.
func RenderSystemPrompt(data TemplateData) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/system.tmpl")
	if err != nil {
		return "", fmt.Errorf("parsing system template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing system template: %w", err)
	}

	return buf.String(), nil
}

// BuildConversation assembles the initial conversation: the system prompt,
// a user message with the file contents when there are any, and the task.
func BuildConversation(systemPrompt string, files []types.FileContent, task string) types.Conversation {
	conv := types.Conversation{{Role: types.RoleSystem, Content: systemPrompt}}

	if len(files) > 0 {
		var buf strings.Builder
		buf.WriteString("## File Contents\n\n")
		for _, f := range files {
			buf.WriteString(formatFileContent(f))
			buf.WriteString("\n")
		}
		conv = append(conv, types.Message{Role: types.RoleUser, Content: buf.String()})
	}

	return append(conv, types.Message{Role: types.RoleUser, Content: task})
}

// RetryConversation continues conv with the assistant's previous reply and a
// user message carrying the apply feedback. conv is not modified.
func RetryConversation(conv types.Conversation, assistant, feedback string) types.Conversation {
	return conv.With(
		types.Message{Role: types.RoleAssistant, Content: assistant},
		types.Message{Role: types.RoleUser, Content: feedback},
	)
}

// ConversationMessages converts a conversation to Bedrock's shape. System
// messages move to the system blocks. Consecutive messages with the same
// role are joined, since Bedrock requires roles to alternate.
func ConversationMessages(conv types.Conversation) ([]brtypes.SystemContentBlock, []brtypes.Message) {
	var system []brtypes.SystemContentBlock
	var messages []brtypes.Message

	for _, m := range conv {
		if m.Role == types.RoleSystem {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			continue
		}

		role := brtypes.ConversationRoleUser
		if m.Role == types.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}

		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, &brtypes.ContentBlockMemberText{Value: m.Content})
			continue
		}
		messages = append(messages, textMessage(role, m.Content))
	}

	return system, messages
}

// formatFileContent formats a file as a path header and a fenced block. Lines
// are not numbered: the model copies them verbatim into hunk context.
func formatFileContent(f types.FileContent) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\n```\n", f.Path)
	buf.WriteString(f.Content)
	if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("```\n")
	return buf.String()
}

func textMessage(role brtypes.ConversationRole, text string) brtypes.Message {
	return brtypes.Message{
		Role: role,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: text},
		},
	}
}

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package llm

import (
	"testing"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

func TestRenderSystemPrompt(t *testing.T) {
	tests := []struct {
		name     string
		data     TemplateData
		contains []string
		absent   []string
	}{
		{
			name:     "includes edit format markers",
			data:     TemplateData{},
			contains: []string{"```diff", "--- mathweb/flask/app.py", "+++ mathweb/flask/app.py", "@@ ... @@", "--- /dev/null"},
			absent:   []string{"The user's system", "Reply in"},
		},
		{
			name:     "includes platform info",
			data:     TemplateData{OS: "darwin", Shell: "/bin/zsh"},
			contains: []string{"darwin", "/bin/zsh"},
		},
		{
			name:     "includes reply language",
			data:     TemplateData{Language: "German"},
			contains: []string{"Reply in German."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := RenderSystemPrompt(tt.data)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, result, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, result, s)
			}
		})
	}
}

func TestBuildConversation(t *testing.T) {
	t.Run("with files", func(t *testing.T) {
		files := []types.FileContent{
			{Path: "main.go", Content: "package main\n\nfunc main() {}\n"},
			{Path: "lib.go", Content: "package main"},
		}
		conv := BuildConversation("You are a coding assistant.", files, "Add error handling")

		require.Len(t, conv, 3)
		assert.Equal(t, types.Message{Role: types.RoleSystem, Content: "You are a coding assistant."}, conv[0])
		assert.Equal(t, types.RoleUser, conv[1].Role)
		assert.Contains(t, conv[1].Content, "main.go\n```\npackage main\n\nfunc main() {}\n```\n")
		assert.Contains(t, conv[1].Content, "lib.go\n```\npackage main\n```\n")
		assert.Equal(t, types.Message{Role: types.RoleUser, Content: "Add error handling"}, conv[2])
	})

	t.Run("without files", func(t *testing.T) {
		conv := BuildConversation("system", nil, "do something")
		require.Len(t, conv, 2)
		assert.Equal(t, "do something", conv[1].Content)
	})
}

func TestRetryConversation(t *testing.T) {
	conv := BuildConversation("system", nil, "fix the bug")
	retry := RetryConversation(conv, "```diff\n...```", "hunk failed")

	require.Len(t, conv, 2)
	require.Len(t, retry, 4)
	assert.Equal(t, types.Message{Role: types.RoleAssistant, Content: "```diff\n...```"}, retry[2])
	assert.Equal(t, types.Message{Role: types.RoleUser, Content: "hunk failed"}, retry[3])
}

func TestConversationMessages(t *testing.T) {
	conv := types.Conversation{
		{Role: types.RoleSystem, Content: "system"},
		{Role: types.RoleUser, Content: "files"},
		{Role: types.RoleUser, Content: "task"},
		{Role: types.RoleAssistant, Content: "reply"},
		{Role: types.RoleUser, Content: "feedback"},
	}

	system, messages := ConversationMessages(conv)

	require.Len(t, system, 1)
	sysText, ok := system[0].(*brtypes.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "system", sysText.Value)

	require.Len(t, messages, 3)
	assert.Equal(t, brtypes.ConversationRoleUser, messages[0].Role)
	assert.Equal(t, []string{"files", "task"}, texts(t, messages[0]))
	assert.Equal(t, brtypes.ConversationRoleAssistant, messages[1].Role)
	assert.Equal(t, []string{"reply"}, texts(t, messages[1]))
	assert.Equal(t, []string{"feedback"}, texts(t, messages[2]))
}

func TestFormatFileContent(t *testing.T) {
	tests := []struct {
		name string
		file types.FileContent
		want string
	}{
		{name: "trailing newline", file: types.FileContent{Path: "a.py", Content: "x = 1\n"}, want: "a.py\n```\nx = 1\n```\n"},
		{name: "no trailing newline", file: types.FileContent{Path: "a.py", Content: "x = 1"}, want: "a.py\n```\nx = 1\n```\n"},
		{name: "empty", file: types.FileContent{Path: "new.py"}, want: "new.py\n```\n```\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFileContent(tt.file))
		})
	}
}

// texts returns the text of every content block in a message.
func texts(t *testing.T, m brtypes.Message) []string {
	t.Helper()
	var out []string
	for _, c := range m.Content {
		block, ok := c.(*brtypes.ContentBlockMemberText)
		require.True(t, ok)
		out = append(out, block.Value)
	}
	return out
}

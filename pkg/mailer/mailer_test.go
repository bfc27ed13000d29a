package mailer_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorboard/notifier/pkg/mailer"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := mailer.SendEmailParams{
		SendTo:   "tutor@example.com",
		Subject:  "New job posting",
		BodyHTML: "<p>hello</p>",
	}
	assert.NoError(t, valid.Validate())

	tests := map[string]mailer.SendEmailParams{
		"missing recipient": {Subject: "s", BodyHTML: "b"},
		"invalid address":   {SendTo: "not-an-email", Subject: "s", BodyHTML: "b"},
		"missing subject":   {SendTo: "a@b.co", BodyHTML: "b"},
		"missing body":      {SendTo: "a@b.co", Subject: "s"},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, params.Validate(), mailer.ErrInvalidParams)
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	t.Run("writes html and metadata files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := mailer.NewDevSender(dir)

		result, err := sender.SendEmail(context.Background(), mailer.SendEmailParams{
			SendTo:   "tutor@example.com",
			Subject:  "New job posting",
			BodyHTML: "<p>A new job is available</p>",
			Tag:      "broadcast",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.MessageID)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		var htmlFile, jsonFile string
		for _, e := range entries {
			switch filepath.Ext(e.Name()) {
			case ".html":
				htmlFile = filepath.Join(dir, e.Name())
			case ".json":
				jsonFile = filepath.Join(dir, e.Name())
			}
			assert.True(t, strings.Contains(e.Name(), "broadcast"))
		}
		require.NotEmpty(t, htmlFile)
		require.NotEmpty(t, jsonFile)

		html, err := os.ReadFile(htmlFile)
		require.NoError(t, err)
		assert.Equal(t, "<p>A new job is available</p>", string(html))

		raw, err := os.ReadFile(jsonFile)
		require.NoError(t, err)
		var meta struct {
			SendTo    string `json:"send_to"`
			Subject   string `json:"subject"`
			MessageID string `json:"message_id"`
		}
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, "tutor@example.com", meta.SendTo)
		assert.Equal(t, "New job posting", meta.Subject)
		assert.Equal(t, result.MessageID, meta.MessageID)
	})

	t.Run("rejects invalid params before writing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := mailer.NewDevSender(dir)

		_, err := sender.SendEmail(context.Background(), mailer.SendEmailParams{
			SendTo: "broken",
		})
		assert.ErrorIs(t, err, mailer.ErrInvalidParams)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/story"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "generate"}, names)

	migrate, _, err := root.Find([]string{"migrate", "force"})
	require.NoError(t, err)
	assert.Equal(t, "force", migrate.Name())
	assert.Error(t, migrate.Args(migrate, nil))
}

func TestPrintStory(t *testing.T) {
	var buf bytes.Buffer
	res := story.Result{
		Draft: models.StoryDraft{
			Title:     "The Brave Owl",
			Text:      "One night the owl flew.",
			Moral:     "Courage grows.",
			Questions: []string{"Who flew?", "When?", "Why?", "How?"},
		},
		Source: models.SourceFallback,
	}
	require.NoError(t, printStory(&buf, res))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "The Brave Owl\n\nOne night the owl flew.\n\nMoral: Courage grows.\n\nQuestions:\n1) Who flew?\n"))
	assert.Contains(t, out, "4) How?\n")
	assert.Contains(t, out, "[source=fallback words=5]")
}

func TestGenerateFlagsDefaults(t *testing.T) {
	cmd := newGenerateCmd()
	for flag, want := range map[string]string{
		"age":     "6",
		"hero":    models.DefaultHero,
		"length":  "medium",
		"style":   "classic",
		"seed":    "0",
		"offline": "false",
	} {
		f := cmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, want, f.DefValue, flag)
	}
}

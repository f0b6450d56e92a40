package story

import (
	"encoding/json"
	"testing"

	"storyteller-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompts_CarryRequestAndSchema(t *testing.T) {
	req := storyRequest()
	req.AvoidList = []string{"wolves", "dark"}

	system, user := OutlinePrompt(req)
	assert.Contains(t, system, "wolves, dark")
	assert.Contains(t, system, `"scenes"`)
	assert.Contains(t, user, "Plan a story")
	assert.Contains(t, user, "owl")

	system, user = DraftPrompt(req, Outline{Title: "T", Scenes: []Scene{{Name: "Meadow", Beats: []string{"finds a map"}}}})
	assert.Contains(t, system, `"questions"`)
	assert.Contains(t, user, "Write the full story")
	assert.Contains(t, user, "finds a map")

	_, user = RevisePrompt(req, models.StoryDraft{Text: "Old text."}, Critique{BandOK: true, HasGoal: true})
	assert.Contains(t, user, "Improve this story")
	assert.Contains(t, user, "Old text.")
	assert.Contains(t, user, "obstacle")
	assert.Contains(t, user, "resolution")
}

func TestPrompts_NoAvoidLineWhenListEmpty(t *testing.T) {
	system, _ := OutlinePrompt(storyRequest())
	assert.NotContains(t, system, "Never mention")
}

func TestDraftSchema_QuestionsFixedToFour(t *testing.T) {
	var schema struct {
		Properties map[string]struct {
			MinItems *int `json:"minItems"`
			MaxItems *int `json:"maxItems"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(draftSchema), &schema))
	q, ok := schema.Properties["questions"]
	require.True(t, ok)
	require.NotNil(t, q.MinItems)
	require.NotNil(t, q.MaxItems)
	assert.Equal(t, 4, *q.MinItems)
	assert.Equal(t, 4, *q.MaxItems)
}

func TestParseOutline(t *testing.T) {
	o, err := ParseOutline("Here you go:\n```json\n" + outlineJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "The Owl and the Lantern", o.Title)
	assert.Len(t, o.Scenes, 2)

	_, err = ParseOutline(`{"title": "broken", "scenes": [`)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestParseDraft(t *testing.T) {
	d, err := ParseDraft("{\"text\":\"  Line one.\\r\\n\\r\\nLine two. \",\"moral\":\" Be kind. \",\"questions\":[\"Why?\"]}")
	require.NoError(t, err)
	assert.Equal(t, "Line one.\n\nLine two.", d.Text)
	assert.Equal(t, "Be kind.", d.Moral)
	assert.Equal(t, []string{"Why?"}, d.Questions)
	assert.Empty(t, d.Title)

	for _, raw := range []string{"", "no json here", `{"text":"   "}`, `{"text": 5}`} {
		_, err := ParseDraft(raw)
		assert.ErrorIs(t, err, models.ErrMalformedResponse, raw)
	}
}

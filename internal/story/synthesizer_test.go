package story

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"storyteller-bot/internal/mocks"
	"storyteller-bot/internal/models"
	"storyteller-bot/internal/service"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUserID = "42"

const outlineJSON = `{"title":"The Owl and the Lantern","scenes":[{"name":"Home","beats":["owl finds a lantern"]},{"name":"Forest","beats":["wind blows"]}]}`

func draftJSON(t *testing.T, text string, questions ...string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"text": text, "moral": "Light is better shared.", "questions": questions})
	require.NoError(t, err)
	return "```json\n" + string(b) + "\n```"
}

// structured - текст в диапазоне medium, проходящий проверку сюжета.
func structured() string {
	return "The owl wanted to light the path. But the wind was strong. Finally the friends held the lantern together.\n\n" + words(480)
}

func phase(marker string) any {
	return mock.MatchedBy(func(user string) bool { return strings.Contains(user, marker) })
}

func newTestSynth(ai service.AIClient) *Synthesizer {
	return NewSynthesizer(ai, Options{Timeout: time.Second, Temperature: 0.7}, zap.NewNop())
}

func storyRequest() models.StoryRequest {
	return models.StoryRequest{Age: 6, Hero: "owl", Theme: "sharing", Length: models.LengthMedium, Style: models.StyleClassic}
}

func TestSynthesize_ModelPathWithoutRevision(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
		Return(outlineJSON, service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Write the full story"), mock.Anything).
		Return(draftJSON(t, structured(), "Q1?", "Q2?", "Q3?", "Q4?"), service.UsageInfo{}, nil).Once()

	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, storyRequest(), 1)

	assert.Equal(t, models.SourceModel, res.Source)
	require.NotNil(t, res.Critique)
	assert.False(t, res.Critique.NeedsRevision())
	assert.Equal(t, "The Owl and the Lantern", res.Draft.Title)
	assert.Equal(t, structured(), res.Draft.Text)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q3?", "Q4?"}, res.Draft.Questions)
	assert.Equal(t, "Light is better shared.", res.Draft.Moral)
	ai.AssertNumberOfCalls(t, "GenerateText", 2)
}

func TestSynthesize_SingleRevisionAcceptedUnconditionally(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
		Return(outlineJSON, service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Write the full story"), mock.Anything).
		Return(draftJSON(t, "A short flat text."), service.UsageInfo{}, nil).Once()
	// переработка снова без структуры и слишком короткая: второй попытки быть не должно
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Improve this story"), mock.Anything).
		Return(draftJSON(t, "Still a flat text about the owl."), service.UsageInfo{}, nil).Once()

	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, storyRequest(), 1)

	assert.Equal(t, models.SourceRevised, res.Source)
	assert.True(t, strings.HasPrefix(res.Draft.Text, "Still a flat text about the owl."))
	assert.True(t, WithinBand(res.Draft.Text, models.LengthMedium.Band()))
	assert.Len(t, res.Draft.Questions, 4)
	assert.Equal(t, "Light is better shared.", res.Draft.Moral)
	ai.AssertNumberOfCalls(t, "GenerateText", 3)
}

func TestSynthesize_RevisionFailureKeepsFirstDraft(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
		Return(outlineJSON, service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Write the full story"), mock.Anything).
		Return(draftJSON(t, "A short flat text."), service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Improve this story"), mock.Anything).
		Return("", service.UsageInfo{}, models.ErrAIGenerationFailed).Once()

	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, storyRequest(), 1)

	assert.Equal(t, models.SourceModel, res.Source)
	assert.True(t, strings.HasPrefix(res.Draft.Text, "A short flat text."))
	assert.True(t, WithinBand(res.Draft.Text, models.LengthMedium.Band()))
}

func TestSynthesize_FallbackOnOutlineFailure(t *testing.T) {
	for name, reply := range map[string]struct {
		raw string
		err error
	}{
		"service error":  {"", errors.New("connection refused")},
		"malformed JSON": {"Once upon a time...", nil},
		"no scenes":      {`{"title":"x","scenes":[]}`, nil},
	} {
		t.Run(name, func(t *testing.T) {
			ai := mocks.NewMockAIClient(t)
			ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
				Return(reply.raw, service.UsageInfo{}, reply.err).Once()

			req := storyRequest()
			res := newTestSynth(ai).Synthesize(context.Background(), testUserID, req, 77)

			assert.Equal(t, models.SourceFallback, res.Source)
			assert.Nil(t, res.Critique)
			assert.Equal(t, Finalize(Fallback(NormalizeRequest(req), 77), req), res.Draft)
		})
	}
}

func TestSynthesize_FallbackOnDraftFailure(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
		Return(outlineJSON, service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Write the full story"), mock.Anything).
		Return(`{"text":"","moral":"","questions":[]}`, service.UsageInfo{}, nil).Once()

	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, storyRequest(), 5)

	assert.Equal(t, models.SourceFallback, res.Source)
	ai.AssertNumberOfCalls(t, "GenerateText", 2)
}

func TestSynthesize_EachCallHasBoundedDeadline(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	bounded := mock.MatchedBy(func(ctx context.Context) bool {
		dl, ok := ctx.Deadline()
		return ok && time.Until(dl) <= time.Second
	})
	ai.On("GenerateText", bounded, testUserID, mock.Anything, mock.Anything, mock.MatchedBy(func(p service.GenerationParams) bool {
		return p.JSONMode && p.Temperature != nil && *p.Temperature == 0.7
	})).Return("", service.UsageInfo{}, context.DeadlineExceeded).Once()

	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, storyRequest(), 5)
	assert.Equal(t, models.SourceFallback, res.Source)
}

func TestSynthesize_WithoutTextServiceIsDeterministic(t *testing.T) {
	s := newTestSynth(nil)
	req := storyRequest()
	a := s.Synthesize(context.Background(), testUserID, req, 9)
	b := s.Synthesize(context.Background(), testUserID, req, 9)

	assert.Equal(t, models.SourceFallback, a.Source)
	assert.Equal(t, a.Draft, b.Draft)
}

func TestSynthesize_AvoidListAppliedToModelText(t *testing.T) {
	ai := mocks.NewMockAIClient(t)
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Plan a story"), mock.Anything).
		Return(outlineJSON, service.UsageInfo{}, nil).Once()
	ai.On("GenerateText", mock.Anything, testUserID, mock.Anything, phase("Write the full story"), mock.Anything).
		Return(draftJSON(t, structured()+" The Wind howled.", "Was the wind scary?"), service.UsageInfo{}, nil).Once()

	req := storyRequest()
	req.AvoidList = []string{"wind"}
	res := newTestSynth(ai).Synthesize(context.Background(), testUserID, req, 1)

	assert.False(t, containsAvoided(res.Draft.Text, req.AvoidList))
	assert.True(t, WithinBand(res.Draft.Text, req.Length.Band()))
	assert.Equal(t, "Was the *** scary?", res.Draft.Questions[0])
}

func TestSynthesize_PostconditionsForRandomRequests(t *testing.T) {
	f := gofakeit.New(2024)
	s := newTestSynth(nil)
	lengths := []models.Length{models.LengthShort, models.LengthMedium, models.LengthLong, "unknown"}
	avoidPool := []string{"wolf", "dark", "spider", "storm", "monster", "fire", "night", "bridge"}

	for i := 0; i < 150; i++ {
		var avoid []string
		for n := f.IntRange(0, 3); n > 0; n-- {
			avoid = append(avoid, avoidPool[f.IntRange(0, len(avoidPool)-1)])
		}
		req := models.StoryRequest{
			Age:       f.IntRange(-5, 30),
			Hero:      f.Animal(),
			Theme:     f.Noun(),
			Length:    lengths[i%len(lengths)],
			Style:     models.Styles[i%len(models.Styles)],
			AvoidList: avoid,
		}
		res := s.Synthesize(context.Background(), testUserID, req, f.Uint64())

		band := req.Length.Band()
		assert.True(t, WithinBand(res.Draft.Text, band), "req %+v: %d words", req, WordCount(res.Draft.Text))
		assert.False(t, containsAvoided(res.Draft.Text, avoid), "req %+v", req)
		assert.Len(t, res.Draft.Questions, 4)
		assert.NotEmpty(t, strings.TrimSpace(res.Draft.Title))
	}
}

func TestFinalize_QuestionsAndTitle(t *testing.T) {
	req := storyRequest()

	d := Finalize(models.StoryDraft{Text: words(500), Questions: []string{"a?", "b?", "c?", "d?", "e?", "f?"}}, req)
	assert.Equal(t, []string{"a?", "b?", "c?", "d?"}, d.Questions)
	assert.NotEmpty(t, d.Title)
	assert.NotEmpty(t, d.Moral)

	d = Finalize(models.StoryDraft{Title: "  ", Text: words(500), Questions: []string{" only one? ", ""}}, req)
	require.Len(t, d.Questions, 4)
	assert.Equal(t, "only one?", d.Questions[0])
	assert.Equal(t, "What did the owl understand about sharing?", d.Questions[1])
	assert.Equal(t, "The Owl and the Secret of Sharing", d.Title)
}

func TestNormalizeRequest(t *testing.T) {
	got := NormalizeRequest(models.StoryRequest{Age: 99, Hero: "  ", Theme: "", Length: "huge", Style: "grim", AvoidList: []string{"x", " X "}})
	assert.Equal(t, models.StoryRequest{
		Age:       14,
		Hero:      models.DefaultHero,
		Theme:     models.DefaultTheme,
		Length:    models.LengthMedium,
		Style:     models.StyleClassic,
		AvoidList: []string{"x"},
	}, got)
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyteller-bot/internal/mocks"
	"storyteller-bot/internal/models"
	"storyteller-bot/internal/quota"
	"storyteller-bot/internal/render"
	"storyteller-bot/internal/repository"
	"storyteller-bot/internal/service"
	"storyteller-bot/internal/story"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const userID int64 = 42

type sent struct {
	kind     string // text | menu | photo | document
	userID   int64
	text     string
	filename string
	size     int
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (s *recordingSender) add(m sent) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) SendText(_ context.Context, userID int64, text string) error {
	return s.add(sent{kind: "text", userID: userID, text: text})
}

func (s *recordingSender) SendMenu(_ context.Context, userID int64, text string) error {
	return s.add(sent{kind: "menu", userID: userID, text: text})
}

func (s *recordingSender) SendPhoto(_ context.Context, userID int64, filename string, data []byte) error {
	return s.add(sent{kind: "photo", userID: userID, filename: filename, size: len(data)})
}

func (s *recordingSender) SendDocument(_ context.Context, userID int64, filename string, data []byte) error {
	return s.add(sent{kind: "document", userID: userID, filename: filename, size: len(data)})
}

func (s *recordingSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.msgs...)
}

func (s *recordingSender) last() sent {
	all := s.all()
	if len(all) == 0 {
		return sent{}
	}
	return all[len(all)-1]
}

type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, userID string, req models.StoryRequest, seed uint64) story.Result {
	return m.Called(ctx, userID, req, seed).Get(0).(story.Result)
}

type stubCovers struct{ data []byte }

func (s stubCovers) Cover(context.Context, service.CoverParams) (service.Cover, error) {
	if s.data == nil {
		return service.Cover{}, errors.New("no cover")
	}
	return service.Cover{Data: s.data, Source: "local"}, nil
}

type fixture struct {
	ctrl     *Controller
	sender   *recordingSender
	profiles *repository.MemoryProfileRepository
	stats    *repository.MemoryStatsRepository
	archive  *repository.MemoryStoryArchive
	gate     *quota.Gate
}

func newFixture(t *testing.T, limit int, synth Synthesizer, notifier *mocks.MockNotifier) *fixture {
	t.Helper()
	f := &fixture{
		sender:   &recordingSender{},
		profiles: repository.NewMemoryProfileRepository(),
		stats:    repository.NewMemoryStatsRepository(),
		archive:  repository.NewMemoryStoryArchive(),
	}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.gate = quota.NewGate(f.stats, limit, time.UTC, zap.NewNop(), quota.WithClock(func() time.Time { return now }))

	deps := Deps{
		Profiles: f.profiles,
		Archive:  f.archive,
		Quota:    f.gate,
		Synth:    synth,
		Covers:   stubCovers{},
		PDF:      render.NewPDFRenderer("", true, time.UTC, zap.NewNop()),
		Sender:   f.sender,
		Seed:     func() uint64 { return 7 },
	}
	if notifier != nil {
		deps.Notifier = notifier
	}
	f.ctrl = NewController(deps, zap.NewNop())
	return f
}

func (f *fixture) say(t *testing.T, inputs ...string) {
	t.Helper()
	for _, in := range inputs {
		require.NoError(t, f.ctrl.HandleMessage(context.Background(), userID, in))
	}
}

func (f *fixture) todayStories(t *testing.T) int {
	t.Helper()
	st, err := f.gate.Stats(context.Background(), userID)
	require.NoError(t, err)
	return st.TodayStories
}

func TestController_SettingsFlowPersistsProfile(t *testing.T) {
	f := newFixture(t, 3, story.NewSynthesizer(nil, story.Options{}, zap.NewNop()), nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowSettings))
	f.say(t, "6", "owl", "short", "classic", "nothing")

	p, err := f.profiles.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Age)
	assert.Equal(t, "owl", p.Hero)
	assert.Equal(t, models.LengthShort, p.Length)
	assert.Equal(t, models.StyleClassic, p.Style)
	assert.Equal(t, []string{}, p.AvoidList)

	assert.False(t, f.ctrl.HasSession(userID))
	assert.True(t, strings.HasPrefix(f.sender.last().text, "Settings saved"))
}

func TestController_StoryFlowDeliversEverything(t *testing.T) {
	notifier := mocks.NewMockNotifier(t)
	notifier.On("StoryGenerated", mock.Anything, mock.MatchedBy(func(e models.StoryGeneratedEvent) bool {
		return e.UserID == userID && e.Source == models.SourceFallback && e.Length == models.LengthShort && e.WordCount >= 250
	})).Return(nil).Once()

	f := newFixture(t, 3, story.NewSynthesizer(nil, story.Options{}, zap.NewNop()), notifier)
	f.ctrl.deps.Covers = stubCovers{data: []byte("\x89PNG\r\n\x1a\nnot-really-a-png")}
	ctx := context.Background()

	profile := models.DefaultProfile()
	profile.AvoidList = []string{"forest"}
	require.NoError(t, f.profiles.Save(ctx, userID, profile))

	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "/story", ""))
	f.say(t, "5", "hedgehog", "friendship", "short")

	msgs := f.sender.all()
	var kinds []string
	for _, m := range msgs {
		kinds = append(kinds, m.kind)
		assert.Equal(t, userID, m.userID)
	}
	assert.Equal(t, []string{"text", "text", "text", "text", "text", "text", "photo", "document"}, kinds)
	assert.Equal(t, promptStoryAge, msgs[0].text)

	storyText := msgs[5].text
	assert.True(t, strings.HasPrefix(storyText, "📖 "))
	assert.Contains(t, storyText, "hedgehog")
	assert.Contains(t, storyText, "\nMoral: ")
	assert.Contains(t, storyText, "\n4) ")
	assert.NotContains(t, strings.ToLower(storyText), "forest")

	assert.Equal(t, "cover.png", msgs[6].filename)
	assert.Equal(t, "story_42.pdf", msgs[7].filename)
	assert.Positive(t, msgs[7].size)

	assert.Equal(t, 1, f.todayStories(t))
	records, err := f.archive.ListRecent(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.SourceFallback, records[0].Source)
	assert.Equal(t, "hedgehog", records[0].Request.Hero)
	assert.Equal(t, []string{"forest"}, records[0].Request.AvoidList)
	assert.Len(t, records[0].Questions, 4)
	assert.False(t, f.ctrl.HasSession(userID))
}

func TestController_CommitAtLimitIsBlocked(t *testing.T) {
	synth := &mockSynthesizer{}
	f := newFixture(t, 1, synth, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowStory))
	f.say(t, "6", "owl", "kindness")

	// пока шел диалог, лимит был исчерпан в другом месте
	_, err := f.gate.RecordStory(ctx, userID, "Earlier story")
	require.NoError(t, err)
	before, err := f.stats.Get(ctx, userID)
	require.NoError(t, err)

	f.say(t, "short")

	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	after, err := f.stats.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	last := f.sender.last()
	assert.Equal(t, "text", last.kind)
	assert.Contains(t, last.text, "Today's story limit is used up (1/day).")
	assert.False(t, f.ctrl.HasSession(userID))

	records, err := f.archive.ListRecent(ctx, userID, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestController_StartAtLimitIsBlocked(t *testing.T) {
	synth := &mockSynthesizer{}
	f := newFixture(t, 1, synth, nil)
	ctx := context.Background()

	_, err := f.gate.RecordStory(ctx, userID, "Earlier story")
	require.NoError(t, err)

	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "start", "story"))
	assert.False(t, f.ctrl.HasSession(userID))
	assert.Contains(t, f.sender.last().text, "A new day starts in 15 h 0 min.")
	assert.Equal(t, 1, f.todayStories(t))
}

func TestController_MessageWithoutSessionIsIgnored(t *testing.T) {
	synth := &mockSynthesizer{}
	f := newFixture(t, 3, synth, nil)

	require.NoError(t, f.ctrl.HandleMessage(context.Background(), userID, "hello"))
	assert.Empty(t, f.sender.all())
	_, err := f.stats.Get(context.Background(), userID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestController_NewFlowReplacesSession(t *testing.T) {
	f := newFixture(t, 3, &mockSynthesizer{}, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowStory))
	f.say(t, "8", "fox")
	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowSettings))
	f.say(t, "11", "cat", "long", "poetic", "rain")

	p, err := f.profiles.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 11, p.Age)
	assert.Equal(t, []string{"rain"}, p.AvoidList)
}

func TestController_StoryUsesMockedSynthesizer(t *testing.T) {
	synth := &mockSynthesizer{}
	draft := models.StoryDraft{Title: "T", Text: "Body.", Moral: "M", Questions: []string{"1?", "2?", "3?", "4?"}}
	synth.On("Synthesize", mock.Anything, "42", models.StoryRequest{
		Age: 14, Hero: "dragon", Theme: models.DefaultTheme, Length: models.LengthMedium, Style: models.StyleClassic,
	}, uint64(7)).Return(story.Result{Draft: draft, Source: models.SourceModel}).Once()

	f := newFixture(t, 3, synth, nil)
	f.ctrl.deps.PDF = nil
	require.NoError(t, f.ctrl.StartFlow(context.Background(), userID, FlowStory))
	f.say(t, "999", "dragon", "", "whatever")

	synth.AssertExpectations(t)
	assert.Equal(t, "📖 T\n\nBody.\n\nMoral: M\n\nQuestions:\n1) 1?\n2) 2?\n3) 3?\n4) 4?", f.sender.last().text)
}

func TestController_Commands(t *testing.T) {
	f := newFixture(t, 3, &mockSynthesizer{}, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "/help", ""))
	menu := f.sender.last()
	assert.Equal(t, "menu", menu.kind)
	assert.Contains(t, menu.text, "Daily limit: 3 stories")

	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "/start", "math"))
	msgs := f.sender.all()
	require.Len(t, msgs, 3)
	assert.True(t, strings.HasPrefix(msgs[1].text, "🧮 10 minutes of math:"))
	assert.True(t, strings.HasPrefix(msgs[2].text, "Answers:"))

	_, err := f.gate.RecordStory(ctx, userID, "The Brave Owl")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "parent", ""))
	report := f.sender.last().text
	assert.Contains(t, report, "• Stories: 1 / 3")
	assert.Contains(t, report, "• Math sheets: 1")
	assert.Contains(t, report, "• The Brave Owl")
	assert.Contains(t, report, "• 01.05.2024 09:00")
	assert.NotContains(t, report, "Recent stories")

	created := time.Date(2024, 4, 27, 18, 0, 0, 0, time.UTC)
	for i, title := range []string{"Old Fox", "Kind Bear", "Lost Star", "The Brave Owl"} {
		require.NoError(t, f.archive.Append(ctx, models.StoryRecord{
			ID: fmt.Sprintf("rec-%d", i), UserID: userID, Title: title, CreatedAt: created.AddDate(0, 0, i),
		}))
	}
	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "parent", ""))
	report = f.sender.last().text
	assert.True(t, strings.HasSuffix(report,
		"Recent stories:\n• The Brave Owl (30.04.2024)\n• Lost Star (29.04.2024)\n• Kind Bear (28.04.2024)"), report)
	assert.NotContains(t, report, "Old Fox")

	require.NoError(t, f.profiles.Save(ctx, userID, models.DefaultProfile()))
	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowSettings))
	require.NoError(t, f.ctrl.HandleCommand(ctx, userID, "/delete", ""))
	assert.False(t, f.ctrl.HasSession(userID))
	_, err = f.profiles.Get(ctx, userID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.stats.Get(ctx, userID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, f.sender.last().text, "Your data has been deleted")
}

// slowSynthesizer проверяет, что генерации одного пользователя не пересекаются.
type slowSynthesizer struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
	calls    atomic.Int32
}

func (s *slowSynthesizer) Synthesize(context.Context, string, models.StoryRequest, uint64) story.Result {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond)
	s.inFlight.Add(-1)
	s.calls.Add(1)
	return story.Result{Draft: models.StoryDraft{Title: "T", Text: "x", Questions: []string{"a", "b", "c", "d"}}, Source: models.SourceFallback}
}

func TestController_SerializesMessagesPerUser(t *testing.T) {
	synth := &slowSynthesizer{}
	f := newFixture(t, 100, synth, nil)
	f.ctrl.deps.PDF = nil
	ctx := context.Background()

	require.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowStory))
	f.say(t, "6", "owl", "kindness")

	// параллельно: завершение диалога и новые сообщения того же пользователя
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.ctrl.HandleMessage(ctx, userID, "short"))
			assert.NoError(t, f.ctrl.StartFlow(ctx, userID, FlowStory))
			for _, in := range []string{"6", "owl", "kindness", "short"} {
				assert.NoError(t, f.ctrl.HandleMessage(ctx, userID, in))
			}
		}()
	}
	wg.Wait()

	assert.False(t, synth.overlap.Load())
	assert.Positive(t, synth.calls.Load())
	assert.Equal(t, 0, f.ctrl.locks.size())
}

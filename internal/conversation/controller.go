package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"storyteller-bot/internal/mathsheet"
	"storyteller-bot/internal/messaging"
	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/models"
	"storyteller-bot/internal/quota"
	"storyteller-bot/internal/render"
	"storyteller-bot/internal/repository"
	"storyteller-bot/internal/service"
	"storyteller-bot/internal/story"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// parentReportStories - сколько последних историй показывает /parent.
const parentReportStories = 3

// Sender - исходящая сторона чата. userID совпадает с id личного чата.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
	SendMenu(ctx context.Context, userID int64, text string) error
	SendPhoto(ctx context.Context, userID int64, filename string, data []byte) error
	SendDocument(ctx context.Context, userID int64, filename string, data []byte) error
}

// Synthesizer - конвейер генерации истории.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID string, req models.StoryRequest, seed uint64) story.Result
}

// CoverMaker возвращает обложку истории.
type CoverMaker interface {
	Cover(ctx context.Context, p service.CoverParams) (service.Cover, error)
}

// DocumentRenderer собирает PDF.
type DocumentRenderer interface {
	Render(doc render.Document) ([]byte, error)
}

var (
	_ Synthesizer      = (*story.Synthesizer)(nil)
	_ CoverMaker       = (*service.CoverService)(nil)
	_ DocumentRenderer = (*render.PDFRenderer)(nil)
)

// Deps - зависимости контроллера. Covers, PDF и Notifier могут быть nil.
type Deps struct {
	Profiles repository.ProfileRepository
	Archive  repository.StoryArchive
	Quota    *quota.Gate
	Synth    Synthesizer
	Covers   CoverMaker
	PDF      DocumentRenderer
	Notifier messaging.Notifier
	Sender   Sender
	// Seed - источник seed для локального генератора и листов с примерами.
	Seed            func() uint64
	AskIllustration bool
}

type session struct {
	step Step
}

// Controller ведет диалоги. Сообщения одного пользователя обрабатываются строго по очереди,
// включая генерацию истории; разные пользователи не блокируют друг друга.
type Controller struct {
	deps   Deps
	locks  *userLocks
	mu     sync.Mutex
	active map[int64]*session
	logger *zap.Logger
}

func NewController(deps Deps, logger *zap.Logger) *Controller {
	if deps.Seed == nil {
		deps.Seed = rand.Uint64
	}
	if deps.Notifier == nil {
		deps.Notifier = messaging.NoopNotifier{}
	}
	return &Controller{
		deps:   deps,
		locks:  newUserLocks(),
		active: make(map[int64]*session),
		logger: logger.Named("Conversation"),
	}
}

// StartFlow создает (или заменяет) сессию и задает первый вопрос.
// Для истории сначала проверяется дневной лимит.
func (c *Controller) StartFlow(ctx context.Context, userID int64, flow Flow) error {
	unlock := c.locks.lock(userID)
	defer unlock()
	return c.startFlow(ctx, userID, flow)
}

func (c *Controller) startFlow(ctx context.Context, userID int64, flow Flow) error {
	if flow == FlowStory {
		blocked, err := c.quotaBlocked(ctx, userID, "start")
		if err != nil || blocked {
			c.clearSession(userID)
			return err
		}
	}

	profile, err := c.profile(ctx, userID)
	if err != nil {
		return err
	}

	var step Step
	switch flow {
	case FlowStory:
		step = StartStory(profile)
	case FlowSettings:
		step = StartSettings(profile, c.deps.AskIllustration)
	default:
		return fmt.Errorf("%w: unknown flow %q", models.ErrInvalidInput, flow)
	}
	c.setSession(userID, step)
	c.logger.Debug("Flow started", zap.Int64("userID", userID), zap.String("flow", string(flow)))
	return c.deps.Sender.SendText(ctx, userID, step.Prompt())
}

// HandleMessage обрабатывает обычный текст. Без активной сессии сообщение игнорируется.
func (c *Controller) HandleMessage(ctx context.Context, userID int64, text string) error {
	unlock := c.locks.lock(userID)
	defer unlock()

	s := c.session(userID)
	if s == nil {
		return nil
	}

	next, effect := Transition(s.step, text)
	if next != nil {
		c.setSession(userID, next)
	} else {
		c.clearSession(userID)
	}

	switch e := effect.(type) {
	case Ask:
		return c.deps.Sender.SendText(ctx, userID, e.Prompt)
	case CommitStory:
		return c.commitStory(ctx, userID, e.Request)
	case CommitSettings:
		return c.commitSettings(ctx, userID, e.Profile)
	default:
		return fmt.Errorf("unexpected effect %T", effect)
	}
}

// HandleCommand обрабатывает /команды. args - текст после команды (payload deep link для /start).
func (c *Controller) HandleCommand(ctx context.Context, userID int64, command, args string) error {
	unlock := c.locks.lock(userID)
	defer unlock()

	command = strings.ToLower(strings.TrimPrefix(command, "/"))
	if command == "start" {
		if payload := strings.ToLower(strings.TrimSpace(args)); payload != "" {
			command = payload
		}
	}

	switch command {
	case "story":
		return c.startFlow(ctx, userID, FlowStory)
	case "settings":
		return c.startFlow(ctx, userID, FlowSettings)
	case "math":
		return c.sendMath(ctx, userID)
	case "parent":
		return c.sendParentReport(ctx, userID)
	case "delete":
		return c.deleteData(ctx, userID)
	default: // start, menu, help и неизвестные команды
		return c.deps.Sender.SendMenu(ctx, userID, c.menuText())
	}
}

// HasSession сообщает, идет ли у пользователя диалог.
func (c *Controller) HasSession(userID int64) bool {
	return c.session(userID) != nil
}

func (c *Controller) session(userID int64) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[userID]
}

func (c *Controller) setSession(userID int64, step Step) {
	c.mu.Lock()
	c.active[userID] = &session{step: step}
	metrics.ActiveSessions.Set(float64(len(c.active)))
	c.mu.Unlock()
}

func (c *Controller) clearSession(userID int64) {
	c.mu.Lock()
	delete(c.active, userID)
	metrics.ActiveSessions.Set(float64(len(c.active)))
	c.mu.Unlock()
}

// profile возвращает сохраненный профиль или профиль по умолчанию.
func (c *Controller) profile(ctx context.Context, userID int64) (models.UserProfile, error) {
	p, err := c.deps.Profiles.Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.DefaultProfile(), nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// quotaBlocked проверяет лимит и сам отправляет сообщение пользователю, если он исчерпан.
func (c *Controller) quotaBlocked(ctx context.Context, userID int64, stage string) (bool, error) {
	err := c.deps.Quota.Check(ctx, userID)
	var qe *models.QuotaExceededError
	if errors.As(err, &qe) {
		metrics.QuotaBlocked.WithLabelValues(stage).Inc()
		c.logger.Info("Daily limit reached", zap.Int64("userID", userID), zap.String("stage", stage), zap.Int("used", qe.Used))
		return true, c.deps.Sender.SendText(ctx, userID, quota.Message(qe))
	}
	return false, err
}

func (c *Controller) commitSettings(ctx context.Context, userID int64, p models.UserProfile) error {
	if err := c.deps.Profiles.Save(ctx, userID, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	c.logger.Info("Profile saved", zap.Int64("userID", userID))
	return c.deps.Sender.SendText(ctx, userID, describeProfile(p, c.deps.AskIllustration))
}

// commitStory: повторная проверка лимита, генерация, учет, доставка (текст, обложка, PDF),
// архив и событие. Ошибки обложки, PDF, архива и события не прерывают доставку.
func (c *Controller) commitStory(ctx context.Context, userID int64, req models.StoryRequest) error {
	blocked, err := c.quotaBlocked(ctx, userID, "commit")
	if err != nil || blocked {
		return err
	}
	log := c.logger.With(zap.Int64("userID", userID))

	if err := c.deps.Sender.SendText(ctx, userID, "Writing your story, this may take a minute ✍️"); err != nil {
		log.Warn("Failed to send progress message", zap.Error(err))
	}

	res := c.deps.Synth.Synthesize(ctx, strconv.FormatInt(userID, 10), req, c.deps.Seed())
	draft := res.Draft

	if _, err := c.deps.Quota.RecordStory(ctx, userID, draft.Title); err != nil {
		log.Error("Failed to record story in stats", zap.Error(err))
	}

	if err := c.deps.Sender.SendText(ctx, userID, storyMessage(draft)); err != nil {
		return fmt.Errorf("failed to deliver story: %w", err)
	}
	metrics.StoriesDelivered.WithLabelValues(string(res.Source)).Inc()

	profile, err := c.profile(ctx, userID)
	if err != nil {
		log.Warn("Profile unavailable for cover, using defaults", zap.Error(err))
		profile = models.DefaultProfile()
	}
	cover := c.cover(ctx, userID, req, draft, profile)
	if len(cover) > 0 {
		if err := c.deps.Sender.SendPhoto(ctx, userID, "cover.png", cover); err != nil {
			log.Warn("Failed to send cover", zap.Error(err))
		}
	}

	now := c.deps.Quota.Now()
	if c.deps.PDF != nil {
		pdf, err := c.deps.PDF.Render(render.Document{
			Title:     draft.Title,
			Text:      draft.Text,
			Moral:     draft.Moral,
			Questions: draft.Questions,
			Cover:     cover,
			CreatedAt: now,
		})
		if err != nil {
			log.Error("Failed to render PDF", zap.Error(err))
		} else if err := c.deps.Sender.SendDocument(ctx, userID, fmt.Sprintf("story_%d.pdf", userID), pdf); err != nil {
			log.Warn("Failed to send PDF", zap.Error(err))
		}
	}

	record := models.StoryRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     draft.Title,
		Text:      draft.Text,
		Moral:     draft.Moral,
		Questions: draft.Questions,
		Request:   req,
		Source:    res.Source,
		CreatedAt: now,
	}
	if c.deps.Archive != nil {
		if err := c.deps.Archive.Append(ctx, record); err != nil {
			log.Error("Failed to archive story", zap.Error(err))
		}
	}

	event := models.StoryGeneratedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		StoryID:    record.ID,
		Title:      draft.Title,
		Length:     req.Length,
		Style:      req.Style,
		WordCount:  story.WordCount(draft.Text),
		Source:     res.Source,
		OccurredAt: now,
	}
	if err := c.deps.Notifier.StoryGenerated(ctx, event); err != nil {
		log.Warn("Failed to publish story event", zap.Error(err))
	}

	log.Info("Story delivered",
		zap.String("storyID", record.ID),
		zap.String("source", string(res.Source)),
		zap.Int("words", event.WordCount),
		zap.Duration("synthesis", res.Duration),
	)
	return nil
}

func (c *Controller) cover(ctx context.Context, userID int64, req models.StoryRequest, d models.StoryDraft, p models.UserProfile) []byte {
	if c.deps.Covers == nil {
		return nil
	}
	cv, err := c.deps.Covers.Cover(ctx, service.CoverParams{
		UserID:   strconv.FormatInt(userID, 10),
		Title:    d.Title,
		Hero:     req.Hero,
		Theme:    req.Theme,
		ArtStyle: p.ArtStyle,
		Palette:  p.Palette,
	})
	if err != nil {
		c.logger.Warn("Cover unavailable", zap.Int64("userID", userID), zap.Error(err))
		return nil
	}
	return cv.Data
}

// storyMessage - текст истории для чата.
func storyMessage(d models.StoryDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📖 %s\n\n%s\n\nMoral: %s\n\nQuestions:", d.Title, d.Text, d.Moral)
	for i, q := range d.Questions {
		fmt.Fprintf(&b, "\n%d) %s", i+1, q)
	}
	return b.String()
}

func (c *Controller) sendMath(ctx context.Context, userID int64) error {
	seed := c.deps.Seed()
	sheet := mathsheet.Generate(rand.New(rand.NewPCG(seed, seed>>1|1)))
	if err := c.deps.Sender.SendText(ctx, userID, sheet.ProblemsText()); err != nil {
		return err
	}
	if err := c.deps.Sender.SendText(ctx, userID, sheet.AnswersText()); err != nil {
		return err
	}
	metrics.MathSheetsTotal.Inc()
	if err := c.deps.Quota.RecordMath(ctx, userID); err != nil {
		c.logger.Error("Failed to record math sheet", zap.Int64("userID", userID), zap.Error(err))
	}
	return nil
}

func (c *Controller) sendParentReport(ctx context.Context, userID int64) error {
	st, err := c.deps.Quota.Stats(ctx, userID)
	if err != nil {
		return err
	}
	title, when := "-", "-"
	if st.LastStoryTitle != "" {
		title = st.LastStoryTitle
	}
	if !st.LastStoryAt.IsZero() {
		when = st.LastStoryAt.In(c.deps.Quota.Location()).Format("02.01.2006 15:04")
	}
	text := fmt.Sprintf("👪 Parent report\n\nToday:\n• Stories: %d / %d\n\nAll time:\n• Stories: %d\n• Math sheets: %d\n\nLast story:\n• %s\n• %s",
		st.TodayStories, c.deps.Quota.Limit(), st.StoriesTotal, st.MathTotal, title, when)
	text += c.recentStories(ctx, userID)
	return c.deps.Sender.SendText(ctx, userID, text)
}

// recentStories - блок отчета с последними историями из архива. Ошибка архива не мешает отчету.
func (c *Controller) recentStories(ctx context.Context, userID int64) string {
	if c.deps.Archive == nil {
		return ""
	}
	records, err := c.deps.Archive.ListRecent(ctx, userID, parentReportStories)
	if err != nil {
		c.logger.Warn("Failed to list recent stories", zap.Int64("userID", userID), zap.Error(err))
		return ""
	}
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRecent stories:")
	for _, rec := range records {
		fmt.Fprintf(&b, "\n• %s (%s)", rec.Title, rec.CreatedAt.In(c.deps.Quota.Location()).Format("02.01.2006"))
	}
	return b.String()
}

func (c *Controller) deleteData(ctx context.Context, userID int64) error {
	c.clearSession(userID)
	var errs []error
	if err := c.deps.Quota.Forget(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	if err := c.deps.Profiles.Delete(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	if c.deps.Archive != nil {
		if err := c.deps.Archive.DeleteByUser(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Failed to delete user data", zap.Int64("userID", userID), zap.Error(err))
		return err
	}
	c.logger.Info("User data deleted", zap.Int64("userID", userID))
	return c.deps.Sender.SendText(ctx, userID, "Your data has been deleted. You can start over 🙂")
}

func (c *Controller) menuText() string {
	return fmt.Sprintf("Hi! I'm the Storyteller 🦉\n\n"+
		"• /story: a story picked for age and theme\n"+
		"• /settings: age, hero, length, style and words to avoid\n"+
		"• /math: 10 minutes of math\n"+
		"• /parent: progress report\n"+
		"• /delete: erase my data\n\n"+
		"Daily limit: %d stories. A new day starts at 00:00 (%s).",
		c.deps.Quota.Limit(), c.deps.Quota.Location())
}

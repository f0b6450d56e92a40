package story

import (
	"context"
	"errors"
	"strings"
	"time"

	"storyteller-bot/internal/metrics"
	"storyteller-bot/internal/models"
	"storyteller-bot/internal/service"

	"go.uber.org/zap"
)

// ErrNoTextService - модель не настроена, сразу используется локальный генератор.
var ErrNoTextService = errors.New("text generation service is not configured")

// maxFinalizeRounds ограничивает чередование Enforce и ApplyFilter.
const maxFinalizeRounds = 8

// Options - параметры обращений к модели.
type Options struct {
	Timeout     time.Duration // на каждый вызов отдельно
	Temperature float64
	MaxTokens   int
}

// Result - итог генерации.
type Result struct {
	Draft    models.StoryDraft
	Source   models.StorySource
	Critique *Critique // nil для локального генератора
	Duration time.Duration
}

// Synthesizer - конвейер план -> черновик -> проверка/переработка -> локальный генератор -> финализация.
// Synthesize никогда не возвращает ошибку: любой сбой модели ведет к локальному генератору.
type Synthesizer struct {
	ai     service.AIClient
	opts   Options
	logger *zap.Logger
}

// NewSynthesizer создает конвейер. ai может быть nil.
func NewSynthesizer(ai service.AIClient, opts Options, logger *zap.Logger) *Synthesizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Synthesizer{ai: ai, opts: opts, logger: logger.Named("Synthesizer")}
}

type modelDraft struct {
	draft    models.StoryDraft
	source   models.StorySource
	critique *Critique
}

// Synthesize генерирует историю. seed используется только локальным генератором.
func (s *Synthesizer) Synthesize(ctx context.Context, userID string, req models.StoryRequest, seed uint64) Result {
	start := time.Now()
	req = NormalizeRequest(req)
	log := s.logger.With(
		zap.String("userID", userID),
		zap.Int("age", req.Age),
		zap.String("length", string(req.Length)),
		zap.String("style", string(req.Style)),
	)

	md := andThen(
		andThen(
			try(s.outline(ctx, userID, req)),
			func(o Outline) (modelDraft, error) { return s.draft(ctx, userID, req, o) },
		),
		func(d modelDraft) (modelDraft, error) { return s.critiqueAndRevise(ctx, userID, req, d), nil },
	).orElse(func(err error) modelDraft {
		if errors.Is(err, ErrNoTextService) {
			log.Debug("No text service, using local fallback")
		} else {
			log.Warn("Model path failed, using local fallback", zap.Error(err))
		}
		metrics.SynthesisPhaseTotal.WithLabelValues("fallback", "used").Inc()
		return modelDraft{draft: Fallback(req, seed), source: models.SourceFallback}
	})

	final := Finalize(md.draft, req)
	duration := time.Since(start)
	metrics.SynthesisDuration.WithLabelValues(string(md.source)).Observe(duration.Seconds())
	log.Info("Story synthesized",
		zap.String("source", string(md.source)),
		zap.Int("words", WordCount(final.Text)),
		zap.Duration("duration", duration),
	)
	return Result{Draft: final, Source: md.source, Critique: md.critique, Duration: duration}
}

func (s *Synthesizer) call(ctx context.Context, phase, userID, system, user string) (string, error) {
	if s.ai == nil {
		return "", ErrNoTextService
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	temp := s.opts.Temperature
	params := service.GenerationParams{Temperature: &temp, JSONMode: true}
	if s.opts.MaxTokens > 0 {
		maxTokens := s.opts.MaxTokens
		params.MaxTokens = &maxTokens
	}
	raw, _, err := s.ai.GenerateText(callCtx, userID, system, user, params)
	if err != nil {
		metrics.SynthesisPhaseTotal.WithLabelValues(phase, "error").Inc()
		return "", err
	}
	return raw, nil
}

func (s *Synthesizer) outline(ctx context.Context, userID string, req models.StoryRequest) (Outline, error) {
	system, user := OutlinePrompt(req)
	raw, err := s.call(ctx, "outline", userID, system, user)
	if err != nil {
		return Outline{}, err
	}
	o, err := ParseOutline(raw)
	if err != nil {
		metrics.SynthesisPhaseTotal.WithLabelValues("outline", "malformed").Inc()
		return Outline{}, err
	}
	metrics.SynthesisPhaseTotal.WithLabelValues("outline", "success").Inc()
	return o, nil
}

func (s *Synthesizer) draft(ctx context.Context, userID string, req models.StoryRequest, o Outline) (modelDraft, error) {
	system, user := DraftPrompt(req, o)
	raw, err := s.call(ctx, "draft", userID, system, user)
	if err != nil {
		return modelDraft{}, err
	}
	d, err := ParseDraft(raw)
	if err != nil {
		metrics.SynthesisPhaseTotal.WithLabelValues("draft", "malformed").Inc()
		return modelDraft{}, err
	}
	metrics.SynthesisPhaseTotal.WithLabelValues("draft", "success").Inc()
	d.Title = o.Title
	return modelDraft{draft: d, source: models.SourceModel}, nil
}

// critiqueAndRevise делает не больше одной переработки. Ответ переработки принимается
// без повторной проверки; если сам вызов не удался, остается исходный черновик.
func (s *Synthesizer) critiqueAndRevise(ctx context.Context, userID string, req models.StoryRequest, d modelDraft) modelDraft {
	c := Evaluate(d.draft.Text, req.Length.Band())
	d.critique = &c
	if !c.NeedsRevision() {
		return d
	}

	system, user := RevisePrompt(req, d.draft, c)
	raw, err := s.call(ctx, "revise", userID, system, user)
	if err == nil {
		var revised models.StoryDraft
		if revised, err = ParseDraft(raw); err == nil {
			metrics.SynthesisPhaseTotal.WithLabelValues("revise", "success").Inc()
			revised.Title = d.draft.Title
			if revised.Moral == "" {
				revised.Moral = d.draft.Moral
			}
			if len(revised.Questions) == 0 {
				revised.Questions = d.draft.Questions
			}
			d.draft = revised
			d.source = models.SourceRevised
			return d
		}
		metrics.SynthesisPhaseTotal.WithLabelValues("revise", "malformed").Inc()
	}
	s.logger.Warn("Revision failed, keeping first draft", zap.String("userID", userID), zap.Error(err))
	return d
}

// NormalizeRequest приводит запрос к допустимым значениям: возраст в [3,14],
// пустые герой и тема заменяются значениями по умолчанию, неизвестные категории - на умолчания.
func NormalizeRequest(req models.StoryRequest) models.StoryRequest {
	req.Age = models.ClampAge(req.Age)
	req.Hero = strings.TrimSpace(req.Hero)
	if req.Hero == "" {
		req.Hero = models.DefaultHero
	}
	req.Theme = strings.TrimSpace(req.Theme)
	if req.Theme == "" {
		req.Theme = models.DefaultTheme
	}
	req.Length = models.ParseLength(string(req.Length))
	req.Style = models.ParseStyle(string(req.Style))
	req.AvoidList = NormalizeAvoidList(req.AvoidList)
	return req
}

// Finalize выполняется всегда: диапазон слов, фильтр запрещенных слов,
// непустой заголовок и ровно 4 вопроса.
func Finalize(d models.StoryDraft, req models.StoryRequest) models.StoryDraft {
	req = NormalizeRequest(req)
	band := req.Length.Band()
	r := replacerFor(req)

	text := d.Text
	for i := 0; i < maxFinalizeRounds; i++ {
		text = ApplyFilter(Enforce(text, band), req.AvoidList)
		if WithinBand(text, band) {
			break
		}
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = r.Replace(titles[0])
	}
	moral := strings.TrimSpace(d.Moral)
	if moral == "" {
		moral = r.Replace(DefaultMoral)
	}

	questions := normalizeQuestions(d.Questions, renderAll(r, DefaultQuestions))
	for i, q := range questions {
		questions[i] = ApplyFilter(q, req.AvoidList)
	}

	return models.StoryDraft{
		Title:     ApplyFilter(title, req.AvoidList),
		Text:      text,
		Moral:     ApplyFilter(moral, req.AvoidList),
		Questions: questions,
	}
}

// normalizeQuestions оставляет первые 4 непустых вопроса и добивает недостающие из defaults.
func normalizeQuestions(in, defaults []string) []string {
	const want = 4
	out := make([]string, 0, want)
	seen := make(map[string]struct{}, want)
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || len(out) == want {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	for _, q := range in {
		add(q)
	}
	for _, q := range defaults {
		add(q)
	}
	// на случай, если defaults совпали с вопросами модели
	for i := 0; len(out) < want; i++ {
		out = append(out, defaults[i%len(defaults)])
	}
	return out
}

package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"storyteller-bot/internal/config"
	"storyteller-bot/internal/models"
	"storyteller-bot/internal/render"
	"storyteller-bot/internal/story"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type generateOptions struct {
	age     int
	hero    string
	theme   string
	length  string
	style   string
	avoid   []string
	seed    uint64
	offline bool
	pdfPath string
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one story and print it (optionally as PDF)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.offline {
				// локальный генератор не требует ключа AI
				_ = os.Setenv("AI_CLIENT_TYPE", "none")
			}
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			synth, err := buildSynthesizer(cfg, log)
			if err != nil {
				return err
			}
			if opts.seed == 0 {
				opts.seed = rand.Uint64()
			}

			req := models.StoryRequest{
				Age:       opts.age,
				Hero:      opts.hero,
				Theme:     opts.theme,
				Length:    models.ParseLength(opts.length),
				Style:     models.ParseStyle(opts.style),
				AvoidList: opts.avoid,
			}
			res := synth.Synthesize(cmd.Context(), "cli", req, opts.seed)
			log.Debug("Story generated", zap.String("source", string(res.Source)), zap.Uint64("seed", opts.seed))

			if err := printStory(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if opts.pdfPath == "" {
				return nil
			}
			return writePDF(cfg, log, res.Draft, story.NormalizeRequest(req), opts.pdfPath)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.age, "age", models.DefaultAge, "child's age (3-14)")
	f.StringVar(&opts.hero, "hero", models.DefaultHero, "main character")
	f.StringVar(&opts.theme, "theme", models.DefaultTheme, "moral theme")
	f.StringVar(&opts.length, "length", string(models.LengthMedium), "short | medium | long")
	f.StringVar(&opts.style, "style", string(models.StyleClassic), "classic | funny | adventure | bedtime | poetic")
	f.StringSliceVar(&opts.avoid, "avoid", nil, "words to avoid (comma separated)")
	f.Uint64Var(&opts.seed, "seed", 0, "seed of the local generator (0 = random)")
	f.BoolVar(&opts.offline, "offline", false, "skip the AI service and use the local generator")
	f.StringVar(&opts.pdfPath, "pdf", "", "also write the story as PDF to this path")
	return cmd
}

func printStory(w io.Writer, res story.Result) error {
	d := res.Draft
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\nMoral: %s\n\nQuestions:\n", d.Title, d.Text, d.Moral)
	for i, q := range d.Questions {
		fmt.Fprintf(&b, "%d) %s\n", i+1, q)
	}
	fmt.Fprintf(&b, "\n[source=%s words=%d]\n", res.Source, story.WordCount(d.Text))
	_, err := io.WriteString(w, b.String())
	return err
}

func writePDF(cfg *config.Config, log *zap.Logger, d models.StoryDraft, req models.StoryRequest, path string) error {
	loc, err := time.LoadLocation(cfg.QuotaTimezone)
	if err != nil {
		return err
	}
	var cover []byte
	if covers, err := render.NewCoverRenderer(); err == nil {
		if cover, err = covers.RenderCover(d.Title, req.Hero, models.PalettePastel); err != nil {
			log.Warn("Cover render failed, PDF without cover", zap.Error(err))
		}
	}
	data, err := render.NewPDFRenderer(cfg.FontDir, cfg.RenderQuestions, loc, log).Render(render.Document{
		Title:     d.Title,
		Text:      d.Text,
		Moral:     d.Moral,
		Questions: d.Questions,
		Cover:     cover,
		CreatedAt: time.Now().In(loc),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("PDF written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

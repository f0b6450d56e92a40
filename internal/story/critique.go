package story

import (
	"regexp"
	"strings"

	"storyteller-bot/internal/models"
)

// Маркеры структуры сюжета. Проверяется только наличие хотя бы одного маркера в категории.
var (
	goalMarkers = []string{
		"wanted", "wants to", "wished", "dreamed", "hoped", "decided to", "set out",
		"goal", "needed to", "had to", "tried to", "was looking for", "promised",
	}
	obstacleMarkers = []string{
		"but", "however", "problem", "suddenly", "afraid", "could not", "couldn't",
		"difficult", "obstacle", "storm", "lost", "stuck", "blocked", "too heavy", "too far",
	}
	resolutionMarkers = []string{
		"finally", "at last", "in the end", "solved", "together", "learned", "realized",
		"happily", "succeeded", "managed to", "was safe", "home again", "smiled",
	}

	goalRe       = markerRegexp(goalMarkers)
	obstacleRe   = markerRegexp(obstacleMarkers)
	resolutionRe = markerRegexp(resolutionMarkers)
)

func markerRegexp(markers []string) *regexp.Regexp {
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Critique - результат проверки черновика.
type Critique struct {
	BandOK        bool
	HasGoal       bool
	HasObstacle   bool
	HasResolution bool
}

// NeedsRevision - нужен ли запрос на переработку.
func (c Critique) NeedsRevision() bool {
	return !c.BandOK || !c.HasGoal || !c.HasObstacle || !c.HasResolution
}

// Missing перечисляет проваленные проверки для промта переработки.
func (c Critique) Missing() []string {
	var out []string
	if !c.HasGoal {
		out = append(out, "goal")
	}
	if !c.HasObstacle {
		out = append(out, "obstacle")
	}
	if !c.HasResolution {
		out = append(out, "resolution")
	}
	if !c.BandOK {
		out = append(out, "length")
	}
	return out
}

// Evaluate проверяет диапазон слов и наличие цели, препятствия и развязки.
func Evaluate(text string, band models.LengthBand) Critique {
	return Critique{
		BandOK:        WithinBand(text, band),
		HasGoal:       goalRe.MatchString(text),
		HasObstacle:   obstacleRe.MatchString(text),
		HasResolution: resolutionRe.MatchString(text),
	}
}

package conversation

import (
	"regexp"
	"strconv"
	"strings"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/story"
)

// parseAge: число приводится к [3,14], нечисловой ввод оставляет prev.
func parseAge(text string, prev int) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return models.ClampAge(prev)
	}
	return models.ClampAge(n)
}

// freeText обрезает пробелы; пустой ввод заменяется fallback.
func freeText(text, fallback string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return fallback
}

var (
	noneAnswers = map[string]struct{}{
		"": {}, "-": {}, "no": {}, "none": {}, "nothing": {}, "нет": {}, "ничего": {},
	}
	avoidSepRe = regexp.MustCompile(`[,;\n]+`)
)

// parseAvoidList разбирает список через запятую; "nothing", "none", "-" и т.п. дают пустой список.
func parseAvoidList(text string) []string {
	t := strings.TrimSpace(text)
	if _, ok := noneAnswers[strings.ToLower(t)]; ok {
		return []string{}
	}
	return story.NormalizeAvoidList(avoidSepRe.Split(t, -1))
}

package story

import (
	"encoding/json"
	"fmt"
	"strings"

	"storyteller-bot/internal/models"
)

// extractJSON вырезает JSON-объект из ответа модели: снимает ```json-ограждения
// и берет текст от первой '{' до последней '}'.
func extractJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", models.ErrMalformedResponse)
	}
	return []byte(s[start : end+1]), nil
}

// ParseOutline разбирает ответ шага плана.
func ParseOutline(raw string) (Outline, error) {
	var o Outline
	data, err := extractJSON(raw)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("%w: failed to parse outline: %v", models.ErrMalformedResponse, err)
	}
	o.Title = strings.TrimSpace(o.Title)
	if len(o.Scenes) == 0 {
		return o, fmt.Errorf("%w: outline has no scenes", models.ErrMalformedResponse)
	}
	return o, nil
}

// ParseDraft разбирает ответ шагов черновика и переработки. Title берется из плана.
func ParseDraft(raw string) (models.StoryDraft, error) {
	var resp draftResponse
	data, err := extractJSON(raw)
	if err != nil {
		return models.StoryDraft{}, err
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.StoryDraft{}, fmt.Errorf("%w: failed to parse draft: %v", models.ErrMalformedResponse, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return models.StoryDraft{}, fmt.Errorf("%w: draft text is empty", models.ErrMalformedResponse)
	}
	return models.StoryDraft{
		Text:      normalizeNewlines(text),
		Moral:     strings.TrimSpace(resp.Moral),
		Questions: []string(resp.Questions),
	}, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

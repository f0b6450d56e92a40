package models

import "time"

// StoryGeneratedEvent публикуется после доставки истории пользователю.
type StoryGeneratedEvent struct {
	EventID    string      `json:"event_id"`
	UserID     int64       `json:"user_id"`
	StoryID    string      `json:"story_id"`
	Title      string      `json:"title"`
	Length     Length      `json:"length"`
	Style      Style       `json:"style"`
	WordCount  int         `json:"word_count"`
	Source     StorySource `json:"source"`
	OccurredAt time.Time   `json:"occurred_at"`
}

package models

import "time"

// UserStats - дневные и общие счетчики пользователя.
// TodayDate хранится в формате 2006-01-02 по опорной таймзоне.
type UserStats struct {
	TodayDate      string    `json:"today_date"`
	TodayStories   int       `json:"today_stories"`
	StoriesTotal   int       `json:"stories_total"`
	MathTotal      int       `json:"math_total"`
	LastStoryAt    time.Time `json:"last_story_at,omitempty"`
	LastStoryTitle string    `json:"last_story_title,omitempty"`
}

// StoryRecord - запись архива выданных историй.
type StoryRecord struct {
	ID        string       `json:"id" db:"id"`
	UserID    int64        `json:"user_id" db:"user_id"`
	Title     string       `json:"title" db:"title"`
	Text      string       `json:"text" db:"text"`
	Moral     string       `json:"moral" db:"moral"`
	Questions []string     `json:"questions" db:"questions"`
	Request   StoryRequest `json:"request" db:"request"`
	Source    StorySource  `json:"source" db:"source"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// StoryHistoryLimit - сколько последних историй хранится на пользователя.
const StoryHistoryLimit = 20

package models

import "strings"

// Length - категория длины истории.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// LengthBand - допустимый диапазон слов (включительно).
type LengthBand struct {
	MinWords int `json:"min_words"`
	MaxWords int `json:"max_words"`
}

var lengthBands = map[Length]LengthBand{
	LengthShort:  {MinWords: 250, MaxWords: 400},
	LengthMedium: {MinWords: 450, MaxWords: 700},
	LengthLong:   {MinWords: 800, MaxWords: 1100},
}

// Band возвращает диапазон слов для категории. Неизвестная категория трактуется как medium.
func (l Length) Band() LengthBand {
	if b, ok := lengthBands[l]; ok {
		return b
	}
	return lengthBands[LengthMedium]
}

// Valid сообщает, входит ли значение в словарь категорий.
func (l Length) Valid() bool {
	_, ok := lengthBands[l]
	return ok
}

// Paragraphs - число абзацев локального генератора для категории.
func (l Length) Paragraphs() int {
	switch l {
	case LengthShort:
		return 3
	case LengthLong:
		return 5
	default:
		return 4
	}
}

// ParseLength нормализует ввод пользователя; неизвестное значение дает medium.
func ParseLength(s string) Length {
	l := Length(strings.ToLower(strings.TrimSpace(s)))
	if l.Valid() {
		return l
	}
	return LengthMedium
}

// Style - тон повествования.
type Style string

const (
	StyleClassic   Style = "classic"
	StyleFunny     Style = "funny"
	StyleAdventure Style = "adventure"
	StyleBedtime   Style = "bedtime"
	StylePoetic    Style = "poetic"
)

// Styles - словарь допустимых стилей в порядке показа пользователю.
var Styles = []Style{StyleClassic, StyleFunny, StyleAdventure, StyleBedtime, StylePoetic}

// ParseStyle нормализует стиль; неизвестное значение дает classic.
func ParseStyle(s string) Style {
	v := Style(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Styles {
		if st == v {
			return v
		}
	}
	return StyleClassic
}

// StoryRequest - неизменяемые параметры генерации после сбора диалогом.
type StoryRequest struct {
	Age       int      `json:"age"`
	Hero      string   `json:"hero"`
	Theme     string   `json:"theme"`
	Length    Length   `json:"length"`
	Style     Style    `json:"style"`
	AvoidList []string `json:"avoid_list,omitempty"`
}

// StoryDraft - результат конвейера генерации.
type StoryDraft struct {
	Title     string   `json:"title"`
	Text      string   `json:"text"`
	Moral     string   `json:"moral"`
	Questions []string `json:"questions"`
}

// StorySource - откуда взят текст истории.
type StorySource string

const (
	SourceModel    StorySource = "model"
	SourceRevised  StorySource = "revised"
	SourceFallback StorySource = "fallback"
)

package conversation

import (
	"fmt"
	"strings"

	"storyteller-bot/internal/models"
)

// Flow - вид диалога.
type Flow string

const (
	FlowStory    Flow = "story"
	FlowSettings Flow = "settings"
)

// Step - текущий шаг диалога. Каждый шаг хранит только то, что уже собрано.
type Step interface {
	Flow() Flow
	Prompt() string
}

// Effect - результат перехода.
type Effect interface{ isEffect() }

// Ask - задать следующий вопрос.
type Ask struct{ Prompt string }

// CommitStory - все параметры собраны, можно генерировать.
type CommitStory struct{ Request models.StoryRequest }

// CommitSettings - сохранить профиль.
type CommitSettings struct{ Profile models.UserProfile }

func (Ask) isEffect()            {}
func (CommitStory) isEffect()    {}
func (CommitSettings) isEffect() {}

const (
	promptStoryAge    = "Let's pick a story. How old is the child? (enter a number)"
	promptSettingsAge = "Let's set up the profile. How old is the child? (enter a number, now %d)"
	promptHero        = "Who will be the hero? (for example: hedgehog, Masha, kitten)"
	promptTheme       = "What idea or moral should the story highlight? (friendship, generosity, courage...)"
	promptLength      = "How long should it be? (short / medium / long)"
	promptStyle       = "Which style? (classic / funny / adventure / bedtime / poetic)"
	promptArtStyle    = "Which illustration style? (watercolor / cartoon / pencil / flat)"
	promptPalette     = "Which colors? (pastel / bright / warm / cool)"
	promptAvoid       = "Any words or topics to avoid? List them separated by commas, or send \"nothing\"."
)

// --- story: age -> hero -> theme -> length -> commit

type storyAge struct{ base models.UserProfile }

type storyHero struct {
	base models.UserProfile
	age  int
}

type storyTheme struct {
	base models.UserProfile
	age  int
	hero string
}

type storyLength struct {
	base  models.UserProfile
	age   int
	hero  string
	theme string
}

func (storyAge) Flow() Flow    { return FlowStory }
func (storyHero) Flow() Flow   { return FlowStory }
func (storyTheme) Flow() Flow  { return FlowStory }
func (storyLength) Flow() Flow { return FlowStory }

func (storyAge) Prompt() string    { return promptStoryAge }
func (storyHero) Prompt() string   { return promptHero }
func (storyTheme) Prompt() string  { return promptTheme }
func (storyLength) Prompt() string { return promptLength }

// --- settings: age -> hero -> length -> style -> [art style -> palette] -> avoid -> commit

type settingsAge struct {
	base            models.UserProfile
	askIllustration bool
}

type settingsHero struct {
	draft           models.UserProfile
	askIllustration bool
}

type settingsLength settingsHero
type settingsStyle settingsHero
type settingsArtStyle settingsHero
type settingsPalette settingsHero
type settingsAvoid settingsHero

func (settingsAge) Flow() Flow      { return FlowSettings }
func (settingsHero) Flow() Flow     { return FlowSettings }
func (settingsLength) Flow() Flow   { return FlowSettings }
func (settingsStyle) Flow() Flow    { return FlowSettings }
func (settingsArtStyle) Flow() Flow { return FlowSettings }
func (settingsPalette) Flow() Flow  { return FlowSettings }
func (settingsAvoid) Flow() Flow    { return FlowSettings }

func (s settingsAge) Prompt() string    { return fmt.Sprintf(promptSettingsAge, models.ClampAge(s.base.Age)) }
func (settingsHero) Prompt() string     { return promptHero }
func (settingsLength) Prompt() string   { return promptLength }
func (settingsStyle) Prompt() string    { return promptStyle }
func (settingsArtStyle) Prompt() string { return promptArtStyle }
func (settingsPalette) Prompt() string  { return promptPalette }
func (settingsAvoid) Prompt() string    { return promptAvoid }

// StartStory - первый шаг диалога истории. Значения по умолчанию берутся из профиля.
func StartStory(profile models.UserProfile) Step {
	return storyAge{base: profile}
}

// StartSettings - первый шаг настройки профиля.
func StartSettings(profile models.UserProfile, askIllustration bool) Step {
	return settingsAge{base: profile, askIllustration: askIllustration}
}

// Transition - чистая функция перехода. Возвращает следующий шаг (nil, если диалог завершен)
// и действие для контроллера.
func Transition(step Step, input string) (Step, Effect) {
	var next Step
	switch s := step.(type) {
	case storyAge:
		next = storyHero{base: s.base, age: parseAge(input, s.base.Age)}
	case storyHero:
		next = storyTheme{base: s.base, age: s.age, hero: freeText(input, models.DefaultHero)}
	case storyTheme:
		next = storyLength{base: s.base, age: s.age, hero: s.hero, theme: freeText(input, models.DefaultTheme)}
	case storyLength:
		return nil, CommitStory{Request: models.StoryRequest{
			Age:       s.age,
			Hero:      s.hero,
			Theme:     s.theme,
			Length:    models.ParseLength(input),
			Style:     models.ParseStyle(string(s.base.Style)),
			AvoidList: append([]string(nil), s.base.AvoidList...),
		}}

	case settingsAge:
		draft := s.base
		draft.Age = parseAge(input, s.base.Age)
		next = settingsHero{draft: draft, askIllustration: s.askIllustration}
	case settingsHero:
		s.draft.Hero = freeText(input, models.DefaultHero)
		next = settingsLength(s)
	case settingsLength:
		s.draft.Length = models.ParseLength(input)
		next = settingsStyle(s)
	case settingsStyle:
		s.draft.Style = models.ParseStyle(input)
		if s.askIllustration {
			next = settingsArtStyle(s)
		} else {
			next = settingsAvoid(s)
		}
	case settingsArtStyle:
		s.draft.ArtStyle = models.ParseArtStyle(input)
		next = settingsPalette(s)
	case settingsPalette:
		s.draft.Palette = models.ParsePalette(input)
		next = settingsAvoid(s)
	case settingsAvoid:
		s.draft.AvoidList = parseAvoidList(input)
		return nil, CommitSettings{Profile: s.draft}

	default:
		panic(fmt.Sprintf("conversation: unknown step %T", step))
	}
	return next, Ask{Prompt: next.Prompt()}
}

// describeProfile - подтверждение после сохранения настроек.
func describeProfile(p models.UserProfile, withIllustration bool) string {
	avoid := "nothing"
	if len(p.AvoidList) > 0 {
		avoid = strings.Join(p.AvoidList, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Settings saved ✅\nAge: %d\nHero: %s\nLength: %s\nStyle: %s", p.Age, p.Hero, p.Length, p.Style)
	if withIllustration {
		fmt.Fprintf(&b, "\nIllustrations: %s, %s", p.ArtStyle, p.Palette)
	}
	fmt.Fprintf(&b, "\nAvoid: %s", avoid)
	return b.String()
}

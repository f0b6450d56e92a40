package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"storyteller-bot/internal/models"

	"github.com/invopop/jsonschema"
	"github.com/lithammer/dedent"
)

// Outline - план истории, который возвращает модель на первом шаге.
type Outline struct {
	Title  string  `json:"title" jsonschema:"description=Short catchy title of the story"`
	Scenes []Scene `json:"scenes" jsonschema:"minItems=1,description=Ordered scenes of the story"`
}

type Scene struct {
	Name  string   `json:"name" jsonschema:"description=Scene name"`
	Beats []string `json:"beats" jsonschema:"minItems=1,description=What happens in the scene"`
}

// draftResponse - ответ модели на шагах черновика и переработки.
type draftResponse struct {
	Text      string    `json:"text" jsonschema:"description=Full story text. Paragraphs are separated by a blank line"`
	Moral     string    `json:"moral" jsonschema:"description=One or two sentences with the moral of the story"`
	Questions Questions `json:"questions"`
}

// Questions - вопросы для обсуждения с ребенком.
type Questions []string

func (Questions) JSONSchema() *jsonschema.Schema {
	four := uint64(4)
	return &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "string"},
		MinItems:    &four,
		MaxItems:    &four,
		Description: "Exactly four short questions a parent can ask the child after reading",
	}
}

var (
	outlineSchema = schemaJSON(&Outline{})
	draftSchema   = schemaJSON(&draftResponse{})
)

func schemaJSON(v any) string {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	b, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("story: cannot build schema for %T: %v", v, err))
	}
	return string(b)
}

// registers - языковые рекомендации по возрастным ступеням (до 6, 8, 10, 14 лет).
var registers = [4]string{
	"Use very simple words and short sentences of five to eight words. Repeat key phrases. Nothing scary.",
	"Use simple everyday words and sentences of up to twelve words. Gentle humor, only light tension.",
	"Use a richer vocabulary where new words are clear from context. Vary sentence length. Give the hero a real small challenge.",
	"Use expressive literary language with dialogue and inner thoughts. The dilemma may be meaningful but stays kind and safe.",
}

var styleHints = map[models.Style]string{
	models.StyleClassic:   "a classic fairy tale with a warm narrator",
	models.StyleFunny:     "a funny story with playful situations and light jokes",
	models.StyleAdventure: "an adventure with a journey and discoveries",
	models.StyleBedtime:   "a calm bedtime story with a slow soothing rhythm",
	models.StylePoetic:    "a lyrical story with vivid imagery and gentle rhythm",
}

type promptData struct {
	Age       int
	Hero      string
	Theme     string
	Style     models.Style
	StyleHint string
	Register  string
	MinWords  int
	MaxWords  int
	Avoid     string
	Schema    string
	Outline   string
	Draft     string
	Missing   string
	Words     int
}

func newPromptData(req models.StoryRequest) promptData {
	band := req.Length.Band()
	style := models.ParseStyle(string(req.Style))
	return promptData{
		Age:       req.Age,
		Hero:      req.Hero,
		Theme:     req.Theme,
		Style:     style,
		StyleHint: styleHints[style],
		Register:  registers[ageTier(req.Age)],
		MinWords:  band.MinWords,
		MaxWords:  band.MaxWords,
		Avoid:     strings.Join(NormalizeAvoidList(req.AvoidList), ", "),
	}
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(strings.TrimSpace(dedent.Dedent(text))))
}

var systemTmpl = mustTemplate("system", `
	You are an experienced children's author writing in English for a child aged {{.Age}}.
	Style: {{.StyleHint}}.
	Language: {{.Register}}
	{{- if .Avoid}}
	Never mention these words or topics: {{.Avoid}}.
	{{- end}}
	Answer with a single JSON object that matches this JSON Schema, without markdown and without any text around it:
	{{.Schema}}
`)

var outlineTmpl = mustTemplate("outline", `
	Plan a story about {{.Hero}}. Theme: {{.Theme}}.
	Make 3 to 5 scenes with 2 to 4 beats each.
	The plan must contain a clear goal for the hero, an obstacle on the way and a resolution.
`)

var draftTmpl = mustTemplate("draft", `
	Write the full story about {{.Hero}} on the theme "{{.Theme}}" following this plan:
	{{.Outline}}
	The text must contain between {{.MinWords}} and {{.MaxWords}} words.
	Separate paragraphs with a blank line. Add a short moral and exactly 4 questions for the child.
`)

var reviseTmpl = mustTemplate("revise", `
	Improve this story about {{.Hero}} on the theme "{{.Theme}}".
	Problems found: {{.Missing}}.
	The story must clearly show the hero's goal, an obstacle and a resolution.
	The text must contain between {{.MinWords}} and {{.MaxWords}} words (now {{.Words}}).
	Keep the moral and questions if they still fit.

	Story:
	{{.Draft}}
`)

func render(t *template.Template, data promptData) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// шаблоны статические, ошибка означает баг в коде
		panic(fmt.Sprintf("story: template %s: %v", t.Name(), err))
	}
	return buf.String()
}

// OutlinePrompt возвращает системный промт и ввод пользователя для шага плана.
func OutlinePrompt(req models.StoryRequest) (system, user string) {
	data := newPromptData(req)
	data.Schema = outlineSchema
	return render(systemTmpl, data), render(outlineTmpl, data)
}

// DraftPrompt - промт для черновика по готовому плану.
func DraftPrompt(req models.StoryRequest, outline Outline) (system, user string) {
	data := newPromptData(req)
	data.Schema = draftSchema
	plan, _ := json.MarshalIndent(outline, "", "  ")
	data.Outline = string(plan)
	return render(systemTmpl, data), render(draftTmpl, data)
}

// RevisePrompt - промт единственной переработки.
func RevisePrompt(req models.StoryRequest, draft models.StoryDraft, c Critique) (system, user string) {
	data := newPromptData(req)
	data.Schema = draftSchema
	data.Draft = draft.Text
	data.Words = WordCount(draft.Text)
	data.Missing = strings.Join(c.Missing(), ", ")
	return render(systemTmpl, data), render(reviseTmpl, data)
}

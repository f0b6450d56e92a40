package story

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"storyteller-bot/internal/models"
)

// Пулы предложений локального генератора. {{hero}} и {{theme}} подставляются при сборке.

// ageTier: 0 - до 6 лет, 1 - до 8, 2 - до 10, 3 - до 14.
func ageTier(age int) int {
	switch {
	case age <= 6:
		return 0
	case age <= 8:
		return 1
	case age <= 10:
		return 2
	default:
		return 3
	}
}

var openings = [4][]string{
	{
		"Once upon a time there was a little {{hero}} who loved to play in the sun.",
		"In a sunny meadow lived a small {{hero}} with a big warm heart.",
		"Every morning the little {{hero}} woke up and smiled at the sky.",
	},
	{
		"Once upon a time, in a town full of gardens, there lived a curious {{hero}}.",
		"Not far from the river lived a {{hero}} who noticed things others missed.",
		"The {{hero}} had always wondered what {{theme}} really meant.",
	},
	{
		"Nobody in the valley knew the {{hero}} very well, but everyone had heard the stories.",
		"The day began like any other, until the {{hero}} found a strange map under the old bridge.",
		"For a long time the {{hero}} believed that {{theme}} was something only grown-ups understood.",
	},
	{
		"Some journeys begin with a single question, and for the {{hero}} that question was about {{theme}}.",
		"The {{hero}} was used to handling things alone, which is exactly why this day would be different.",
		"It started with a rumor and a missing key, and the {{hero}} could never leave a mystery unsolved.",
	},
}

var transitions = []string{
	"The next morning, the {{hero}} set off again.",
	"Later that day, the {{hero}} met an old friend by the road.",
	"After a while, the path led the {{hero}} to a quiet clearing.",
	"When the sun was high, the {{hero}} stopped to think.",
}

var middles = map[models.Style][]string{
	models.StyleClassic: {
		"The birds sang in the trees and the grass shimmered with dew.",
		"Along the way the {{hero}} greeted everyone kindly.",
		"A gentle breeze carried the smell of fresh bread from the village.",
		"The {{hero}} listened carefully to every sound around.",
	},
	models.StyleFunny: {
		"A grumpy hedgehog sneezed so loudly that all the leaves jumped.",
		"The {{hero}} tried to whistle, but only a silly squeak came out.",
		"Two squirrels argued about who had the fluffiest tail.",
		"Even the clouds seemed to giggle as they floated past.",
	},
	models.StyleAdventure: {
		"The trail twisted between tall rocks and whispering pines.",
		"Far ahead, something glittered at the edge of the cliff.",
		"The {{hero}} tightened the straps of a tiny backpack and kept going.",
		"A distant drum of thunder rolled over the hills.",
	},
	models.StyleBedtime: {
		"The moon rose slowly and painted the roofs silver.",
		"Soft lanterns glowed in the windows one by one.",
		"The {{hero}} yawned and looked at the sleepy stars.",
		"Everything around grew calm and quiet.",
	},
	models.StylePoetic: {
		"The river hummed a song only the patient could hear.",
		"Leaves drifted down like small golden letters.",
		"The light of the evening was warm as a kind word.",
		"Each step sounded like a soft note in a long melody.",
	},
}

var goalBeats = []string{
	"The {{hero}} wanted to show everyone what {{theme}} looks like in real life.",
	"The {{hero}} decided to help a friend and learn about {{theme}} along the way.",
	"More than anything, the {{hero}} wished to do one small good deed.",
}

var obstacleBeats = []string{
	"But suddenly a strong wind blew and the path was blocked by fallen branches.",
	"However, the bridge over the stream was broken and the {{hero}} felt a little afraid.",
	"But the task was difficult, and at first nothing seemed to work.",
}

var resolutionBeats = []string{
	"Finally, with a little patience and help from friends, the {{hero}} solved the problem.",
	"In the end, they worked together and everything turned out well.",
	"At last the {{hero}} realized that {{theme}} grows from small, brave steps.",
}

var closings = [4][]string{
	{
		"And the little {{hero}} fell asleep happy, knowing that {{theme}} makes the world warmer.",
		"From that day on, the {{hero}} always remembered the lesson about {{theme}}.",
	},
	{
		"That evening the {{hero}} told everyone about the day, and the whole house felt brighter.",
		"Since then, whenever someone needed help, the {{hero}} remembered this day.",
	},
	{
		"The adventure was over, but the {{hero}} knew that the most important part had only begun.",
		"Looking back, the {{hero}} understood that {{theme}} is a choice we make again and again.",
	},
	{
		"Years later, the {{hero}} would still remember how a single decision changed everything.",
		"The {{hero}} walked home slowly, carrying a new understanding of {{theme}}.",
	},
}

var titles = []string{
	"The {{Hero}} and the Secret of {{Theme}}",
	"How the {{Hero}} Learned About {{Theme}}",
	"A Tale of {{Theme}}",
	"The {{Hero}}'s Small Great Deed",
}

// DefaultQuestions - вопросы после сказки, если модель не дала своих.
var DefaultQuestions = []string{
	"What did the {{hero}} understand about {{theme}}?",
	"What difficulties did the {{hero}} meet on the way?",
	"How can small steps change the whole day?",
	"What would you do in the {{hero}}'s place?",
}

// DefaultMoral - мораль по умолчанию.
const DefaultMoral = "Remember: {{theme}}. Even a small deed makes the world warmer."

// fallbackSeedSalt - второе слово состояния PCG.
const fallbackSeedSalt = 0x5354_4f52_5954_454c

// Fallback детерминированно собирает историю без внешних вызовов.
// Одинаковые запрос и seed дают побайтно одинаковый результат.
func Fallback(req models.StoryRequest, seed uint64) models.StoryDraft {
	rng := rand.New(rand.NewPCG(seed, fallbackSeedSalt))
	r := replacerFor(req)
	tier := ageTier(req.Age)
	style := models.ParseStyle(string(req.Style))
	pool := middles[style]
	n := models.ParseLength(string(req.Length)).Paragraphs()

	paragraphs := make([]string, 0, n)
	for k := 0; k < n; k++ {
		var sentences []string
		if k == 0 {
			sentences = append(sentences, pick(rng, openings[tier]))
		} else {
			sentences = append(sentences, pick(rng, transitions))
		}

		count := 1 + rng.IntN(3)
		for _, idx := range rng.Perm(len(pool))[:count] {
			sentences = append(sentences, pool[idx])
		}

		switch k {
		case 0:
			sentences = append(sentences, pick(rng, goalBeats))
		case n - 1:
			sentences = append(sentences, pick(rng, resolutionBeats), pick(rng, closings[tier]))
		default:
			sentences = append(sentences, pick(rng, obstacleBeats))
		}
		paragraphs = append(paragraphs, r.Replace(strings.Join(sentences, " ")))
	}

	return models.StoryDraft{
		Title:     r.Replace(pick(rng, titles)),
		Text:      strings.Join(paragraphs, "\n\n"),
		Moral:     r.Replace(DefaultMoral),
		Questions: renderAll(r, DefaultQuestions),
	}
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}

func renderAll(r *strings.Replacer, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.Replace(s)
	}
	return out
}

func replacerFor(req models.StoryRequest) *strings.Replacer {
	hero := strings.TrimSpace(req.Hero)
	if hero == "" {
		hero = models.DefaultHero
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		theme = models.DefaultTheme
	}
	return strings.NewReplacer(
		"{{hero}}", hero,
		"{{Hero}}", titleCase(hero),
		"{{theme}}", theme,
		"{{Theme}}", titleCase(theme),
	)
}

// titleCase поднимает первую букву каждого слова, остальное не трогает.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

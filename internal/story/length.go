package story

import (
	"regexp"
	"strings"

	"storyteller-bot/internal/models"
)

// FillerPassage - нейтральный абзац для добивки коротких текстов. Ровно 60 слов:
// любое число повторов после недобора не выводит текст за верхнюю границу диапазона.
const FillerPassage = "The evening grew quiet and soft around the little house. " +
	"Somewhere far away a bird sang its last song of the day, and the wind moved gently through the tall grass. " +
	"Everyone felt calm and safe, because the day had been full of good moments. " +
	"Tomorrow would bring new friends, new questions and new small adventures to share with everyone."

// minSentences - сколько предложений остается при обрезке по предложениям.
const minSentences = 3

var (
	wordRe          = regexp.MustCompile(`[\p{L}\p{N}-]+`)
	paragraphSepRe  = regexp.MustCompile(`\n[ \t]*\n\s*`)
	sentenceBoundRe = regexp.MustCompile(`[.!?]\s+`)
)

// WordCount - число максимальных последовательностей букв, цифр и дефисов.
func WordCount(text string) int {
	return len(wordRe.FindAllStringIndex(text, -1))
}

// WithinBand проверяет попадание в диапазон включительно.
func WithinBand(text string, band models.LengthBand) bool {
	n := WordCount(text)
	return n >= band.MinWords && n <= band.MaxWords
}

// fillerRepetitions - сколько раз добавить FillerPassage при недоборе gap слов.
func fillerRepetitions(gap int) int {
	switch {
	case gap < 40:
		return 1
	case gap < 120:
		return 2
	default:
		return 3
	}
}

// Enforce приводит текст к диапазону слов.
// Перебор: отбрасываются последние абзацы (пока их больше одного), затем последние
// предложения (пока их больше трех). Недобор: добавляется FillerPassage 1-3 раза по величине недобора.
func Enforce(text string, band models.LengthBand) string {
	text = strings.TrimSpace(text)

	if WordCount(text) > band.MaxWords {
		text = trimParagraphs(text, band.MaxWords)
	}
	if WordCount(text) > band.MaxWords {
		text = trimSentences(text, band.MaxWords)
	}
	if WordCount(text) > band.MaxWords {
		// три длинных предложения все еще не влезают
		text = truncateWords(text, band.MaxWords)
	}

	if n := WordCount(text); n < band.MinWords {
		reps := fillerRepetitions(band.MinWords - n)
		for i := 0; i < reps; i++ {
			text = appendParagraph(text, FillerPassage)
		}
		// очень короткий исходник: докладываем, пока не наберем минимум
		for WordCount(text) < band.MinWords {
			text = appendParagraph(text, FillerPassage)
		}
	}
	return text
}

func splitParagraphs(text string) []string {
	raw := paragraphSepRe.Split(strings.TrimSpace(text), -1)
	out := raw[:0]
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func trimParagraphs(text string, maxWords int) string {
	paras := splitParagraphs(text)
	for len(paras) > 1 && WordCount(strings.Join(paras, "\n\n")) > maxWords {
		paras = paras[:len(paras)-1]
	}
	return strings.Join(paras, "\n\n")
}

// sentenceEnds возвращает индексы концов предложений (после знака препинания).
// Хвост без завершающего знака считается отдельным предложением.
func sentenceEnds(text string) []int {
	var ends []int
	for _, m := range sentenceBoundRe.FindAllStringIndex(text, -1) {
		ends = append(ends, m[0]+1)
	}
	if last := len(ends); last == 0 || strings.TrimSpace(text[ends[last-1]:]) != "" {
		ends = append(ends, len(text))
	}
	return ends
}

func trimSentences(text string, maxWords int) string {
	ends := sentenceEnds(text)
	for len(ends) > minSentences && WordCount(text[:ends[len(ends)-1]]) > maxWords {
		ends = ends[:len(ends)-1]
	}
	return strings.TrimSpace(text[:ends[len(ends)-1]])
}

func truncateWords(text string, maxWords int) string {
	words := wordRe.FindAllStringIndex(text, maxWords+1)
	if len(words) <= maxWords {
		return text
	}
	out := strings.TrimRight(text[:words[maxWords-1][1]], " ,;:-")
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "!") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out
}

func appendParagraph(text, para string) string {
	if strings.TrimSpace(text) == "" {
		return para
	}
	return text + "\n\n" + para
}

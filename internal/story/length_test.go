package story

import (
	"strings"
	"testing"

	"storyteller-bot/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shortBand = models.LengthShort.Band()

// words строит один абзац из n слов, по 10 слов в предложении.
func words(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("word")
		switch {
		case i == n:
			b.WriteString(".")
		case i%10 == 0:
			b.WriteString(". ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Hello, world!", 2},
		{"a well-known fact", 3},
		{Placeholder, 0},
		{"The *** ran away.", 3},
		{"Привет, мир 42", 3},
		{"  spaced\n\n\tout  ", 2},
		{"ten-year-old hero's", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WordCount(tc.in), "input %q", tc.in)
	}
}

func TestFillerPassageIsSixtyWords(t *testing.T) {
	assert.Equal(t, 60, WordCount(FillerPassage))
}

func TestLengthBands(t *testing.T) {
	assert.Equal(t, models.LengthBand{MinWords: 250, MaxWords: 400}, models.LengthShort.Band())
	assert.Equal(t, models.LengthBand{MinWords: 450, MaxWords: 700}, models.LengthMedium.Band())
	assert.Equal(t, models.LengthBand{MinWords: 800, MaxWords: 1100}, models.LengthLong.Band())
	assert.Equal(t, models.LengthMedium.Band(), models.Length("epic").Band())
}

func TestEnforce_FillerThresholds(t *testing.T) {
	tests := []struct {
		name string
		gap  int
		reps int
	}{
		{"gap 39 gives one repetition", 39, 1},
		{"gap 40 gives two repetitions", 40, 2},
		{"gap 119 gives two repetitions", 119, 2},
		{"gap 120 gives three repetitions", 120, 3},
		{"gap 121 gives three repetitions", 121, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := words(shortBand.MinWords - tt.gap)
			out := Enforce(in, shortBand)

			assert.Equal(t, tt.reps, strings.Count(out, FillerPassage))
			assert.Equal(t, WordCount(in)+tt.reps*60, WordCount(out))
			assert.True(t, WithinBand(out, shortBand))
			assert.True(t, strings.HasPrefix(out, in))
		})
	}
}

func TestEnforce_TrimsLongSingleParagraphBySentences(t *testing.T) {
	in := words(600)
	require.Equal(t, 600, WordCount(in))

	out := Enforce(in, shortBand)

	assert.LessOrEqual(t, WordCount(out), 400)
	assert.GreaterOrEqual(t, WordCount(out), 250)
	assert.GreaterOrEqual(t, sentenceCount(out), 3)
	assert.True(t, strings.HasPrefix(in, out), "trimming keeps the beginning of the story")
}

func TestEnforce_DropsTrailingParagraphsFirst(t *testing.T) {
	paras := []string{words(150), words(150), words(150), words(150)}
	out := Enforce(strings.Join(paras, "\n\n"), shortBand)

	assert.Equal(t, strings.Join(paras[:2], "\n\n"), out)
	assert.Equal(t, 300, WordCount(out))
}

func TestEnforce_TruncatesWhenThreeSentencesAreTooLong(t *testing.T) {
	long := strings.TrimSuffix(words(200), ".")
	long = strings.ReplaceAll(long, ".", ",")
	in := long + ". " + long + ". " + long + "."
	require.Equal(t, 3, sentenceCount(in))

	out := Enforce(in, shortBand)

	assert.Equal(t, 400, WordCount(out))
	assert.True(t, strings.HasSuffix(out, "."))
}

func TestEnforce_WithinBandUnchanged(t *testing.T) {
	in := words(300)
	assert.Equal(t, in, Enforce(in, shortBand))
}

func TestEnforce_EmptyTextIsPadded(t *testing.T) {
	for _, l := range []models.Length{models.LengthShort, models.LengthMedium, models.LengthLong} {
		out := Enforce("", l.Band())
		assert.True(t, WithinBand(out, l.Band()), "length %s got %d words", l, WordCount(out))
	}
}

func TestEnforce_RandomTextsLandInBand(t *testing.T) {
	f := gofakeit.New(42)
	lengths := []models.Length{models.LengthShort, models.LengthMedium, models.LengthLong}

	for i := 0; i < 200; i++ {
		var paras []string
		for p := f.IntRange(1, 8); p > 0; p-- {
			var sentences []string
			for s := f.IntRange(1, 12); s > 0; s-- {
				var ws []string
				for w := f.IntRange(1, 40); w > 0; w-- {
					ws = append(ws, f.Word())
				}
				sentences = append(sentences, strings.Join(ws, " ")+".")
			}
			paras = append(paras, strings.Join(sentences, " "))
		}
		text := strings.Join(paras, "\n\n")
		band := lengths[i%len(lengths)].Band()

		out := Enforce(text, band)
		assert.True(t, WithinBand(out, band), "iteration %d: %d words, band %+v", i, WordCount(out), band)
	}
}

// sentenceCount - число предложений по тем же правилам, что и при обрезке.
func sentenceCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return len(sentenceEnds(text))
}

func TestSentenceCount(t *testing.T) {
	assert.Equal(t, 0, sentenceCount("  "))
	assert.Equal(t, 1, sentenceCount("No ending punctuation"))
	assert.Equal(t, 3, sentenceCount("One. Two! Three?"))
	assert.Equal(t, 2, sentenceCount("Version 1.5 is out. Yes"))
}

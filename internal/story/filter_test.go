package story

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
)

// containsAvoided сообщает, остался ли в тексте хоть один термин.
func containsAvoided(text string, avoid []string) bool {
	re := compileAvoid(avoid)
	return re != nil && re.MatchString(text)
}

func TestApplyFilter_EmptyListIsIdentity(t *testing.T) {
	text := "The Wolf ran into the dark forest."
	assert.Equal(t, text, ApplyFilter(text, nil))
	assert.Equal(t, text, ApplyFilter(text, []string{"", "   "}))
}

func TestApplyFilter_CaseInsensitiveLiteral(t *testing.T) {
	out := ApplyFilter("The Wolf met a WOLF and a wolfhound. (a+b)", []string{" wolf ", "a+b"})
	assert.Equal(t, "The *** met a *** and a ***hound. (***)", out)
}

func TestApplyFilter_LongerTermsWin(t *testing.T) {
	out := ApplyFilter("A big wolf and a wolf.", []string{"wolf", "big wolf"})
	assert.Equal(t, "A *** and a ***.", out)
}

func TestApplyFilter_TermsInsidePlaceholderAreRemoved(t *testing.T) {
	out := ApplyFilter("star * and wolf", []string{"*", "wolf"})
	assert.False(t, containsAvoided(out, []string{"*", "wolf"}))
	assert.Equal(t, "star  and ", out)
}

func TestApplyFilter_NoTermSurvives(t *testing.T) {
	f := gofakeit.New(7)
	for i := 0; i < 300; i++ {
		var avoid []string
		for n := f.IntRange(0, 4); n > 0; n-- {
			w := f.Word()
			if f.Bool() {
				w = strings.ToUpper(w[:1]) + w[1:]
			}
			avoid = append(avoid, w)
		}
		var ws []string
		for n := f.IntRange(5, 80); n > 0; n-- {
			ws = append(ws, f.Word())
		}
		if len(avoid) > 0 {
			ws = append(ws, strings.ToUpper(avoid[0]))
		}
		out := ApplyFilter(strings.Join(ws, " "), avoid)
		assert.False(t, containsAvoided(out, avoid), "avoid %v left in %q", avoid, out)
	}
}

func TestNormalizeAvoidList(t *testing.T) {
	got := NormalizeAvoidList([]string{" spiders", "Dark", "", "spiders", "DARK ", "wolves"})
	assert.Equal(t, []string{"spiders", "Dark", "wolves"}, got)
}

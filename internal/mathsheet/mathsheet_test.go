package mathsheet

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Ranges(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		sheet := Generate(rand.New(rand.NewPCG(seed, 1)))
		require.Len(t, sheet, ProblemCount)
		for _, p := range sheet {
			assert.GreaterOrEqual(t, p.Answer(), 0, p.String())
			switch p.Op {
			case '+':
				assert.True(t, p.A >= 4 && p.A <= 15, p.String())
				assert.True(t, p.B >= 1 && p.B <= 9, p.String())
			case '−':
				assert.GreaterOrEqual(t, p.A, p.B)
				assert.True(t, p.A >= 1 && p.A <= 15, p.String())
			default:
				t.Fatalf("unexpected operator %q", p.Op)
			}
		}
	}
}

func TestSheet_Texts(t *testing.T) {
	sheet := Sheet{{A: 7, B: 5, Op: '+'}, {A: 9, B: 4, Op: '−'}}
	assert.Equal(t, "🧮 10 minutes of math:\n1) 7 + 5 = \n2) 9 − 4 = ", sheet.ProblemsText())
	assert.Equal(t, "Answers:\n1) 12\n2) 5", sheet.AnswersText())
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(5, 5)))
	b := Generate(rand.New(rand.NewPCG(5, 5)))
	assert.Equal(t, a, b)
	assert.Equal(t, 2*(ProblemCount+1), len(strings.Split(a.ProblemsText()+"\n"+a.AnswersText(), "\n")))
}

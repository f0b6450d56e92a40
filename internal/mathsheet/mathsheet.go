package mathsheet

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ProblemCount - сколько примеров в одном листе.
const ProblemCount = 10

// Problem - пример на сложение или вычитание с неотрицательным ответом.
type Problem struct {
	A, B int
	Op   rune // '+' или '−'
}

func (p Problem) Answer() int {
	if p.Op == '+' {
		return p.A + p.B
	}
	return p.A - p.B
}

func (p Problem) String() string {
	return fmt.Sprintf("%d %c %d = ", p.A, p.Op, p.B)
}

// Sheet - лист примеров.
type Sheet []Problem

// Generate собирает лист: a из [4,15], b из [1,9]; при вычитании большее число идет первым.
func Generate(rng *rand.Rand) Sheet {
	sheet := make(Sheet, ProblemCount)
	for i := range sheet {
		a, b := 4+rng.IntN(12), 1+rng.IntN(9)
		if rng.IntN(2) == 0 {
			sheet[i] = Problem{A: a, B: b, Op: '+'}
			continue
		}
		if b > a {
			a, b = b, a
		}
		sheet[i] = Problem{A: a, B: b, Op: '−'}
	}
	return sheet
}

// ProblemsText - первое сообщение с примерами.
func (s Sheet) ProblemsText() string {
	var b strings.Builder
	b.WriteString("🧮 10 minutes of math:")
	for i, p := range s {
		b.WriteString("\n" + strconv.Itoa(i+1) + ") " + p.String())
	}
	return b.String()
}

// AnswersText - второе сообщение с ответами.
func (s Sheet) AnswersText() string {
	var b strings.Builder
	b.WriteString("Answers:")
	for i, p := range s {
		b.WriteString("\n" + strconv.Itoa(i+1) + ") " + strconv.Itoa(p.Answer()))
	}
	return b.String()
}

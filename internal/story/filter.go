package story

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder заменяет запрещенные слова. Не считается словом в WordCount.
const Placeholder = "***"

// NormalizeAvoidList - упорядоченное множество непустых терминов без учета регистра.
func NormalizeAvoidList(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// compileAvoid собирает одно регулярное выражение для всех терминов.
// Длинные термины идут первыми, чтобы "big wolf" заменялся целиком раньше "wolf".
func compileAvoid(avoid []string) *regexp.Regexp {
	terms := NormalizeAvoidList(avoid)
	if len(terms) == 0 {
		return nil
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// ApplyFilter заменяет каждое вхождение терминов (без учета регистра) на Placeholder.
// Термины, которые сами входят в Placeholder, удаляются. Замена повторяется, пока
// в тексте остаются вхождения: соседние символы могут сложиться в новый термин.
// Пустой список - тождественное преобразование.
func ApplyFilter(text string, avoid []string) string {
	replace, remove := splitAvoid(avoid)
	if replace == nil && remove == nil {
		return text
	}
	for {
		next := text
		if replace != nil {
			next = replace.ReplaceAllLiteralString(next, Placeholder)
		}
		if remove != nil {
			next = remove.ReplaceAllLiteralString(next, "")
		}
		if next == text || !matchesAny(next, replace, remove) {
			return next
		}
		text = next
	}
}

func splitAvoid(avoid []string) (replace, remove *regexp.Regexp) {
	var rep, rem []string
	for _, t := range NormalizeAvoidList(avoid) {
		if strings.Contains(Placeholder, t) {
			rem = append(rem, t)
		} else {
			rep = append(rep, t)
		}
	}
	return compileAvoid(rep), compileAvoid(rem)
}

func matchesAny(text string, res ...*regexp.Regexp) bool {
	for _, re := range res {
		if re != nil && re.MatchString(text) {
			return true
		}
	}
	return false
}

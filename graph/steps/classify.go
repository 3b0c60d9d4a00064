package steps

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/shopflow/graph"
)

// Classify maps free text to an intent with a keyword table. Rules are
// tried in order; the first match wins, otherwise the table's fallback.
//
//	intents := graph.DecisionTable[string]{
//	    Rules: []graph.Rule[string]{
//	        {When: steps.ContainsAny("cart", "购物车"), To: "view_cart"},
//	        {When: steps.IsNumber(), To: "select"},
//	    },
//	    Fallback: "chat",
//	}
//	intent := steps.Classify(input, intents)
func Classify(text string, table graph.DecisionTable[string]) string {
	return table.Route(graph.State[string]{Data: text})
}

// ContainsAny matches text containing any keyword, ignoring case. A
// keyword that starts with a Latin letter or digit must also start a word
// in text, so "ok" matches "ok" and "okay" but not "looks".
func ContainsAny(keywords ...string) graph.Predicate[string] {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return func(s graph.State[string]) bool {
		text := strings.ToLower(s.Data)
		for _, k := range lowered {
			if k != "" && containsKeyword(text, k) {
				return true
			}
		}
		return false
	}
}

func containsKeyword(text, keyword string) bool {
	if !isWordByte(keyword[0]) {
		return strings.Contains(text, keyword)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], keyword)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 || !isWordByte(text[at-1]) {
			return true
		}
		from = at + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// IsNumber matches input made only of decimal digits, ignoring
// surrounding space.
func IsNumber() graph.Predicate[string] {
	return func(s graph.State[string]) bool {
		return isDigits(strings.TrimSpace(s.Data))
	}
}

// Selection is the reading of a numeric choice from a list.
type Selection struct {
	// Numeric is set when the input is digits only.
	Numeric bool

	// Index is the 0-based position the user picked, or -1.
	Index int

	// InRange is set when Index points into the list.
	InRange bool
}

// Select reads a 1-based choice out of n items. "2" of 3 selects index 1;
// "4" of 3 is numeric but out of range.
func Select(text string, n int) Selection {
	text = strings.TrimSpace(text)
	if !isDigits(text) {
		return Selection{Index: -1}
	}

	v, err := strconv.Atoi(text)
	if err != nil || v < 1 || v > n {
		return Selection{Numeric: true, Index: -1}
	}
	return Selection{Numeric: true, Index: v - 1, InRange: true}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

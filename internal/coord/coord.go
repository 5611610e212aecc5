// Package coord finds the coordinated "A or B" structure of a comparison
// question, such as "Which group is larger: Irish or Danish?", and picks
// one side of it.
package coord

import (
	"slices"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// irregular comparatives and superlatives, plus adverbs that head a
// comparison.
var comparatives = []string{
	"more", "most", "less", "least", "fewer", "fewest", "better", "best",
	"worse", "worst", "further", "farther", "furthest", "farthest",
	"first", "last", "earlier", "later", "latter", "former", "sooner",
	"often", "longer", "older", "elder", "eldest",
}

// Words ending like a comparative that are not one.
var notComparatives = []string{
	"after", "other", "another", "either", "neither", "whether", "rather",
	"never", "ever", "however", "together", "under", "over", "number",
	"member", "members", "player", "players", "water", "winter", "summer",
	"center", "centre", "order", "border", "power", "paper", "letter",
	"matter", "manager", "leader", "writer", "singer", "soldier", "officer",
	"interest", "forest", "west", "test", "rest", "contest", "request",
	"guest", "honest", "modest", "protest", "suggest", "harvest",
	"september", "october", "november", "december", "quarter", "per",
	"her", "their", "there", "where", "were", "here", "answer", "computer",
	"chapter", "character", "daughter", "father", "mother", "brother",
	"sister", "river", "tower", "master", "minister", "register",
}

type token struct {
	text       string
	start, end int
}

func (t token) punct() bool {
	r := []rune(t.text)
	return len(r) == 1 && !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0])
}

func tokenize(q string) []token {
	var toks []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			toks = append(toks, token{text: q[start:end], start: start, end: end})
			start = -1
		}
	}
	for i, r := range q {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' || r == '.' && start >= 0:
			if start < 0 {
				start = i
			}
		default:
			flush(i)
			end := i + len(string(r))
			toks = append(toks, token{text: q[i:end], start: i, end: end})
		}
	}
	flush(len(q))
	// A trailing period sticks to the last word.
	for i, t := range toks {
		if strings.HasSuffix(t.text, ".") && len(t.text) > 1 {
			toks[i].text = strings.TrimSuffix(t.text, ".")
			toks[i].end--
		}
	}
	return toks
}

// IsComparative reports whether a word reads as a comparative or
// superlative.
func IsComparative(word string) bool {
	w := strings.ToLower(word)
	if slices.Contains(comparatives, w) {
		return true
	}
	if len(w) < 5 || slices.Contains(notComparatives, w) {
		return false
	}
	return strings.HasSuffix(w, "er") || strings.HasSuffix(w, "est")
}

// Structure is a located "A or B" coordination.
type Structure struct {
	// First and Second are the two candidate answer spans, as written.
	First, Second string
	// Token indexes of the comparative word, the separator (-1 when
	// absent) and "or".
	Comp, Sep, Or int
}

// Parse locates the structure. It first looks for a comparative word
// followed by a separator (",", ":" or ";") and then "or", taking the
// spans between separator and "or" and between "or" and the final
// punctuation. Failing that, it looks for "or" between two content words
// after a comparative and takes those two words. Adjacent spans are single
// tokens: when the word after "or" starts a longer run of content words
// ("Tom Brady or Peyton Manning") the question is declined.
func Parse(q string) (Structure, bool) {
	toks := tokenize(q)
	if s, ok := parseSeparated(q, toks); ok {
		return s, true
	}
	return parseAdjacent(toks)
}

func parseSeparated(q string, toks []token) (Structure, bool) {
	comp, sep := -1, -1
	for i, t := range toks {
		switch {
		case comp < 0:
			if IsComparative(t.text) {
				comp = i
			}
		case sep < 0:
			if t.text == "," || t.text == ":" || t.text == ";" {
				sep = i
			}
		case strings.EqualFold(t.text, "or"):
			end := len(toks)
			if toks[end-1].punct() {
				end--
			}
			if sep+1 >= i || i+1 >= end {
				return Structure{}, false
			}
			return Structure{
				First:  q[toks[sep+1].start:toks[i-1].end],
				Second: q[toks[i+1].start:toks[end-1].end],
				Comp:   comp,
				Sep:    sep,
				Or:     i,
			}, true
		}
	}
	return Structure{}, false
}

var functionWords = []string{
	"the", "a", "an", "of", "in", "on", "at", "to", "by", "for", "with",
	"is", "are", "was", "were", "did", "do", "does", "than", "that", "which",
	"who", "what", "and", "or", "not",
}

func content(t token) bool {
	return !t.punct() && !slices.Contains(functionWords, strings.ToLower(t.text))
}

func parseAdjacent(toks []token) (Structure, bool) {
	comp := -1
	for i, t := range toks {
		if comp < 0 {
			if IsComparative(t.text) {
				comp = i
			}
			continue
		}
		if !strings.EqualFold(t.text, "or") || i+1 >= len(toks) || i-1 <= comp {
			continue
		}
		if i+2 < len(toks) && content(toks[i+2]) {
			continue
		}
		if content(toks[i-1]) && content(toks[i+1]) {
			return Structure{
				First:  toks[i-1].text,
				Second: toks[i+1].text,
				Comp:   comp,
				Sep:    -1,
				Or:     i,
			}, true
		}
	}
	return Structure{}, false
}

// Candidate returns the span for a 0-based side.
func (s Structure) Candidate(side int) (string, bool) {
	switch side {
	case 0:
		return s.First, true
	case 1:
		return s.Second, true
	}
	return "", false
}

// Opposite returns the side less similar to gold. Ties favour Second.
func (s Structure) Opposite(gold string) string {
	first := levenshtein.Similarity(strings.ToLower(s.First), strings.ToLower(gold), nil)
	second := levenshtein.Similarity(strings.ToLower(s.Second), strings.ToLower(gold), nil)
	if first >= second {
		return s.Second
	}
	return s.First
}

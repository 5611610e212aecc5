// Package question rewrites natural-language questions to match a
// transformed program. The rewrites are shallow and rule based; they seed
// a paraphrase and return ok=false when no rule applies.
package question

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type flip struct{ from, to string }

// comparisonFlips is tried in order against each word's prefix.
var comparisonFlips = []flip{
	{"young", "old"}, {"first", "second"}, {"short", "long"}, {"lower", "bigger"},
	{"smaller", "larger"}, {"small", "big"}, {"low", "high"}, {"less", "more"},
	{"old", "young"}, {"second", "first"}, {"long", "short"}, {"bigger", "lower"},
	{"larger", "smaller"}, {"big", "small"}, {"high", "low"}, {"more", "less"},
	{"fewer", "more"}, {"large", "small"},
}

var titleCase = cases.Title(language.English)

// FlipComparison swaps the first comparison word in q with its opposite,
// e.g. "Which is older" becomes "Which is younger".
func FlipComparison(q string) (string, bool) {
	words := strings.Fields(q)
	for i, w := range words {
		lw := strings.ToLower(w)
		for _, f := range comparisonFlips {
			if !strings.HasPrefix(lw, f.from) {
				continue
			}
			to := f.to
			if r, _ := utf8.DecodeRuneInString(w); unicode.IsUpper(r) {
				to = titleCase.String(to)
			}
			words[i] = to + w[len(f.from):]
			return strings.Join(words, " "), true
		}
	}
	return "", false
}

// DoubleNegation turns a conjunctive yes/no question into a "neither ...
// nor" question.
func DoubleNegation(q string) (string, bool) {
	if !strings.Contains(q, " and ") && !strings.Contains(q, "And ") {
		return "", false
	}
	q = strings.NewReplacer(" and ", " nor ", "And ", "Nor ", " both ", " ").Replace(q)
	words := strings.Fields(q)
	if strings.EqualFold(words[0], "can") {
		words[0] = "Do"
	}
	words[0] += " neither"
	return strings.Join(words, " "), true
}

var (
	tokenRe   = regexp.MustCompile(`[\w'-]+|[^\w\s]`)
	doForms   = []string{"do", "does", "did", "done", "doing"}
	howManyRe = regexp.MustCompile(`(?i)how many`)
)

type token struct {
	text       string
	start, end int
}

func tokenize(q string) []token {
	var toks []token
	for _, loc := range tokenRe.FindAllStringIndex(q, -1) {
		toks = append(toks, token{text: q[loc[0]:loc[1]], start: loc[0], end: loc[1]})
	}
	return toks
}

func span(q string, toks []token, from, to int) string {
	if from >= to || from >= len(toks) {
		return ""
	}
	return q[toks[from].start:toks[to-1].end]
}

// AppendCondition turns a "how many" question into a yes/no question about
// cond, e.g. "How many touchdowns did Brady throw?" with "more than 2"
// becomes "If Brady throw more than 2 touchdowns?".
func AppendCondition(q, cond string) (string, bool) {
	toks := tokenize(q)
	var at []int
	for i := 0; i+1 < len(toks); i++ {
		if strings.EqualFold(toks[i].text, "how") && strings.EqualFold(toks[i+1].text, "many") {
			at = append(at, i)
		}
	}
	if len(at) != 1 {
		return "", false
	}
	hm := at[0]

	var do []int
	for i := hm + 2; i < len(toks); i++ {
		if slices.Contains(doForms, strings.ToLower(toks[i].text)) {
			do = append(do, i)
		}
	}

	if len(do) == 1 {
		d := do[0]
		before := span(q, toks, 0, hm)
		subject := span(q, toks, hm+2, d)
		end := len(toks)
		if strings.HasSuffix(q, "?") {
			end--
		}
		after := span(q, toks, d+1, end)

		var parts []string
		if before == "" {
			parts = []string{"If", after, cond, subject + "?"}
		} else {
			parts = []string{"If", before, subject, after, cond + "?"}
		}
		return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), " "), true
	}

	out := howManyRe.ReplaceAllLiteralString(q, cond)
	if strings.Contains(out, "were there") {
		out = "there were " + strings.Replace(out, " were there", "", 1)
	}
	return "If " + out, true
}

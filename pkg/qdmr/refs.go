package qdmr

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Ref renders a 1-based step reference.
func Ref(k int) string {
	return "#" + strconv.Itoa(k)
}

// splitRef splits a token into the step index it references and any
// trailing punctuation. ok is false when the token is not a reference.
func splitRef(tok string) (k int, suffix string, ok bool) {
	if len(tok) < 2 || tok[0] != '#' {
		return 0, "", false
	}
	end := 1
	for end < len(tok) && tok[end] >= '0' && tok[end] <= '9' {
		end++
	}
	if end == 1 {
		return 0, "", false
	}
	// "#3's" and "#3," are references, "#3rd" is not.
	for _, r := range tok[end:] {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return 0, "", false
		}
		break
	}
	k, err := strconv.Atoi(tok[1:end])
	if err != nil {
		return 0, "", false
	}
	return k, tok[end:], true
}

// RefIndex returns k when s is exactly the reference "#k".
func RefIndex(s string) (int, bool) {
	k, suffix, ok := splitRef(strings.TrimSpace(s))
	if !ok || suffix != "" {
		return 0, false
	}
	return k, true
}

// IsRef reports whether s is exactly one step reference.
func IsRef(s string) bool {
	_, ok := RefIndex(s)
	return ok
}

// References returns the sorted, de-duplicated step indices referenced by
// text. Only whole tokens count, so "# 3" and "a#3" are not references.
func References(text string) []int {
	var refs []int
	for _, tok := range strings.Fields(text) {
		if k, _, ok := splitRef(tok); ok && !slices.Contains(refs, k) {
			refs = append(refs, k)
		}
	}
	slices.Sort(refs)
	return refs
}

// OrderedReferences returns references in order of first appearance.
func OrderedReferences(text string) []int {
	var refs []int
	for _, tok := range strings.Fields(text) {
		if k, _, ok := splitRef(tok); ok && !slices.Contains(refs, k) {
			refs = append(refs, k)
		}
	}
	return refs
}

// RewriteRefs rewrites every reference token through fn. Tokens are
// re-joined with single spaces.
func RewriteRefs(text string, fn func(k int) int) string {
	toks := strings.Fields(text)
	for i, tok := range toks {
		if k, suffix, ok := splitRef(tok); ok {
			toks[i] = Ref(fn(k)) + suffix
		}
	}
	return strings.Join(toks, " ")
}

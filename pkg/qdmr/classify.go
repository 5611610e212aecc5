package qdmr

import (
	"regexp"
	"slices"
	"strings"
)

var (
	aggregateWords = map[string]string{
		"number": AggCount, "count": AggCount,
		"lowest": AggMin, "smallest": AggMin, "minimum": AggMin, "min": AggMin, "fewest": AggMin, "least": AggMin,
		"highest": AggMax, "largest": AggMax, "biggest": AggMax, "maximum": AggMax, "max": AggMax, "most": AggMax,
		"sum": AggSum, "total": AggSum,
		"average": AggAvg, "avg": AggAvg, "mean": AggAvg,
	}

	superlativeWords = map[string]string{
		"highest": AggMax, "largest": AggMax, "biggest": AggMax, "most": AggMax, "maximum": AggMax, "max": AggMax,
		"greatest": AggMax, "longest": AggMax, "latest": AggMax, "tallest": AggMax, "last": AggMax,
		"lowest": AggMin, "smallest": AggMin, "least": AggMin, "fewest": AggMin, "minimum": AggMin, "min": AggMin,
		"shortest": AggMin, "earliest": AggMin, "first": AggMin,
	}

	comparisonWords = map[string]string{
		"highest": AggMax, "higher": AggMax, "largest": AggMax, "larger": AggMax, "biggest": AggMax,
		"bigger": AggMax, "greatest": AggMax, "greater": AggMax, "more": AggMax, "most": AggMax,
		"max": AggMax, "maximum": AggMax, "longer": AggMax, "longest": AggMax, "later": AggMax,
		"latest": AggMax, "last": AggMax, "taller": AggMax, "tallest": AggMax,
		"lowest": AggMin, "lower": AggMin, "smallest": AggMin, "smaller": AggMin, "least": AggMin,
		"less": AggMin, "fewest": AggMin, "fewer": AggMin, "min": AggMin, "minimum": AggMin,
		"shorter": AggMin, "shortest": AggMin, "earlier": AggMin, "earliest": AggMin, "first": AggMin,
		"true": True, "false": False,
	}

	arithmeticWords = map[string]string{
		"difference": ArithDifference,
		"sum":        ArithSum, "total": ArithSum,
		"multiplication": ArithMultiplication, "product": ArithMultiplication,
		"division": ArithDivision, "ratio": ArithDivision,
	}
)

var (
	reRef         = `(#\d+)`
	reAggregate   = regexp.MustCompile(`^(?:the )?(\w+) of ` + reRef + `$`)
	reGroup       = regexp.MustCompile(`^(?:the )?(\w+) of ` + reRef + ` for each ` + reRef + `$`)
	reArithmetic  = regexp.MustCompile(`^(?:the )?(\w+) (?:of|between) (.+)$`)
	reComparison  = regexp.MustCompile(`^which (?:(?:is|was|are|were|has|had|did) )?(?:the )?(.+?) of (.+)$`)
	reSuperlative = regexp.MustCompile(`^` + reRef + ` (?:where|with|that|whose) ` + reRef + ` (?:(?:is|are|was|were|has|have) )?(?:the )?(\w+)$`)
	reComparative = regexp.MustCompile(`^` + reRef + ` (?:where|with|that|whose) ` + reRef + ` (.+)$`)
	reSort        = regexp.MustCompile(`^` + reRef + ` (?:sorted|ordered) by (.+)$`)
	reDiscard     = regexp.MustCompile(`^` + reRef + ` (?:besides|but not in|not in|except for|except|excluding) ` + reRef + `$`)
	reIntersect   = regexp.MustCompile(`^(.+) in both ` + reRef + ` and ` + reRef + `$`)
	reOperandSep  = regexp.MustCompile(` (?:and|or|,) `)
)

// Classify assigns an operator and arguments to one normalized clause.
// Rules are tried in a fixed order; the first that matches wins.
func Classify(clause string) (*Step, error) {
	text := strings.Join(strings.Fields(clause), " ")
	if text == "" {
		return nil, &ParseError{Clause: clause, Message: "empty step"}
	}
	for _, k := range References(text) {
		if k < 1 {
			return nil, &ParseError{Clause: text, Message: "reference to step 0"}
		}
	}

	op, args, err := classify(text)
	if err != nil {
		return nil, err
	}
	return &Step{Op: op, Args: args, Text: text}, nil
}

func classify(text string) (Operator, []string, error) {
	lower := asciiLower(text)
	refs := OrderedReferences(text)
	if len(refs) == 0 {
		return OpSelect, []string{text}, nil
	}

	if strings.HasPrefix(lower, "if ") {
		args, err := classifyBoolean(text)
		return OpBoolean, args, err
	}

	if len(refs) >= 2 {
		if m := reComparison.FindStringSubmatchIndex(lower); m != nil {
			phrase := lower[m[2]:m[3]]
			operands := reOperandSep.Split(text[m[4]:m[5]], -1)
			if allRefs(operands) {
				op := phrase
				if w, ok := comparisonWords[phrase]; ok {
					op = w
				}
				return OpComparison, append([]string{op}, operands...), nil
			}
		}
	}

	if m := reArithmetic.FindStringSubmatchIndex(lower); m != nil {
		if op, ok := arithmeticWords[lower[m[2]:m[3]]]; ok {
			operands := reOperandSep.Split(text[m[4]:m[5]], -1)
			if len(operands) >= 2 && arithmeticOperands(operands) {
				return OpArithmetic, append([]string{op}, operands...), nil
			}
		}
	}

	if m := reGroup.FindStringSubmatch(lower); m != nil {
		if agg, ok := aggregateWords[m[1]]; ok {
			return OpGroup, []string{agg, m[2], m[3]}, nil
		}
	}

	if m := reAggregate.FindStringSubmatch(lower); m != nil {
		if agg, ok := aggregateWords[m[1]]; ok {
			return OpAggregate, []string{agg, m[2]}, nil
		}
	}

	if m := reSuperlative.FindStringSubmatch(lower); m != nil {
		if agg, ok := superlativeWords[m[3]]; ok {
			return OpSuperlative, []string{agg, m[1], m[2]}, nil
		}
	}

	if m := reSort.FindStringSubmatchIndex(lower); m != nil {
		return OpSort, []string{text[m[2]:m[3]], text[m[4]:m[5]]}, nil
	}

	if m := reComparative.FindStringSubmatchIndex(lower); m != nil {
		return OpComparative, []string{text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]}, nil
	}

	if m := reDiscard.FindStringSubmatch(lower); m != nil {
		return OpDiscard, []string{m[1], m[2]}, nil
	}

	if m := reIntersect.FindStringSubmatchIndex(lower); m != nil {
		return OpIntersection, []string{text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]]}, nil
	}

	if operands := reOperandSep.Split(text, -1); len(operands) >= 2 && allRefs(operands) {
		return OpUnion, operands, nil
	}

	first, rest, _ := strings.Cut(text, " ")
	if IsRef(first) {
		if rest == "" {
			return 0, nil, &ParseError{Clause: text, Message: "bare reference"}
		}
		return OpFilter, []string{first, rest}, nil
	}

	ref := Ref(refs[0])
	return OpProject, []string{replaceRef(text, refs[0], RefPlaceholder), ref}, nil
}

func classifyBoolean(text string) ([]string, error) {
	body := text[len("if "):]
	lower := asciiLower(body)

	logical := func(prefix, sep, op string) ([]string, error) {
		inner := body[len(prefix):]
		i := strings.LastIndex(asciiLower(inner), " are ")
		if i < 0 {
			return nil, &ParseError{Clause: text, Message: "logical step without \"are\" clause"}
		}
		operands := strings.Split(inner[:i], " "+sep+" ")
		if len(operands) < 2 {
			return nil, &ParseError{Clause: text, Message: "logical step needs two operands"}
		}
		return append([]string{op, inner[i+len(" are "):]}, operands...), nil
	}

	switch {
	case strings.HasPrefix(lower, "both "):
		return logical("both ", "and", BoolAnd)
	case strings.HasPrefix(lower, "either "):
		return logical("either ", "or", BoolOr)
	case strings.HasPrefix(lower, "any "):
		ref, cond, _ := strings.Cut(body[len("any "):], " ")
		if IsRef(ref) {
			return []string{BoolExist, ref, cond}, nil
		}
	}

	first, cond, _ := strings.Cut(body, " ")
	if IsRef(first) {
		return []string{first, cond}, nil
	}
	k := OrderedReferences(text)[0]
	return []string{Ref(k), replaceRef(text, k, RefPlaceholder)}, nil
}

func allRefs(operands []string) bool {
	return !slices.ContainsFunc(operands, func(s string) bool { return !IsRef(s) })
}

func arithmeticOperands(operands []string) bool {
	hasRef := false
	for _, o := range operands {
		if IsRef(o) {
			hasRef = true
			continue
		}
		if !isNumberLiteral(o) {
			return false
		}
	}
	return hasRef
}

func isNumberLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, found := strings.Cut(s, ".")
	if found {
		return isDigits(whole) && isDigits(frac)
	}
	return isDigits(whole)
}

// replaceRef substitutes every whole-token reference to step k.
func replaceRef(text string, k int, with string) string {
	toks := strings.Fields(text)
	for i, tok := range toks {
		if n, suffix, ok := splitRef(tok); ok && n == k {
			toks[i] = with + suffix
		}
	}
	return strings.Join(toks, " ")
}

// asciiLower lowercases ASCII letters only, so byte offsets into the
// result are valid offsets into the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

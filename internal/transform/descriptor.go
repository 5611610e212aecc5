package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapqdmr/pkg/qdmr"
)

// Family names a transformation strategy as it appears in descriptors.
type Family string

// Descriptor families.
const (
	OpReplaceAggregate   Family = "op_replace_aggregate"
	OpReplaceArithmetic  Family = "op_replace_arithmetic"
	OpReplaceComparison  Family = "op_replace_comparison"
	OpReplaceComparative Family = "op_replace_comparative"
	OpReplaceSuperlative Family = "op_replace_superlative"
	OpReplaceBoolean     Family = "op_replace_boolean"
	PruneLastStep        Family = "prune_last_step"
	PruneLastStepUnused  Family = "prune_last_step_rm_unused"
	PruneStep            Family = "prune_step"
	ChangeLastStep       Family = "change_last_step"
	AppendBooleanStep    Family = "append_boolean_step"
)

// Families lists every family in generation order.
var Families = []Family{
	OpReplaceAggregate, OpReplaceArithmetic, OpReplaceComparison,
	OpReplaceComparative, OpReplaceSuperlative, OpReplaceBoolean,
	PruneLastStep, PruneLastStepUnused, PruneStep,
	ChangeLastStep, AppendBooleanStep,
}

const (
	familySep  = "+"
	infoSep    = "-"
	variantTag = "_VARIANT"
)

var opReplaceFamilies = map[qdmr.Operator]Family{
	qdmr.OpAggregate:   OpReplaceAggregate,
	qdmr.OpArithmetic:  OpReplaceArithmetic,
	qdmr.OpComparison:  OpReplaceComparison,
	qdmr.OpComparative: OpReplaceComparative,
	qdmr.OpSuperlative: OpReplaceSuperlative,
	qdmr.OpBoolean:     OpReplaceBoolean,
}

// IsOpReplace reports whether f is one of the operator-replacement families.
func (f Family) IsOpReplace() bool {
	return strings.HasPrefix(string(f), "op_replace_")
}

func (f Family) known() bool {
	for _, k := range Families {
		if k == f {
			return true
		}
	}
	return false
}

// Descriptor records what a transformation changed.
//
// Step is always 1-based; op-replace descriptors encode it 0-based on the
// wire. Prune-last descriptors carry no step. Orig and New hold the
// replaced and replacing operator, function or comparator. Literal holds
// the change-last-step subtype or the appended boolean threshold.
type Descriptor struct {
	Family  Family
	Step    int
	Orig    string
	New     string
	Literal string
	Variant bool
}

// DescriptorError reports a descriptor string that does not parse.
type DescriptorError struct {
	Input   string
	Message string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("invalid transform descriptor %q: %s", e.Input, e.Message)
}

// String encodes the descriptor, e.g. "op_replace_comparison+5-min-max".
func (d Descriptor) String() string {
	var info string
	switch {
	case d.Family.IsOpReplace():
		info = strings.Join([]string{strconv.Itoa(d.Step - 1), d.Orig, d.New}, infoSep)
		if d.Variant {
			info += variantTag
		}
	case d.Family == PruneLastStep || d.Family == PruneLastStepUnused:
		info = d.Orig
	case d.Family == PruneStep:
		info = strconv.Itoa(d.Step)
	default:
		info = strings.Join([]string{strconv.Itoa(d.Step), d.Orig, d.New, d.Literal}, infoSep)
	}
	return string(d.Family) + familySep + info
}

// ParseDescriptor decodes a descriptor string.
func ParseDescriptor(s string) (Descriptor, error) {
	fam, info, ok := strings.Cut(s, familySep)
	if !ok {
		return Descriptor{}, &DescriptorError{Input: s, Message: "missing " + familySep}
	}
	d := Descriptor{Family: Family(fam)}
	if !d.Family.known() {
		return Descriptor{}, &DescriptorError{Input: s, Message: "unknown family"}
	}

	step := func(field string, offset int) error {
		n, err := strconv.Atoi(field)
		if err != nil || n+offset < 1 {
			return &DescriptorError{Input: s, Message: fmt.Sprintf("bad step %q", field)}
		}
		d.Step = n + offset
		return nil
	}

	switch {
	case d.Family.IsOpReplace():
		parts := strings.SplitN(info, infoSep, 3)
		if len(parts) != 3 {
			return Descriptor{}, &DescriptorError{Input: s, Message: "want step-orig-new"}
		}
		if err := step(parts[0], 1); err != nil {
			return Descriptor{}, err
		}
		d.Orig = parts[1]
		d.New, d.Variant = strings.CutSuffix(parts[2], variantTag)
	case d.Family == PruneLastStep || d.Family == PruneLastStepUnused:
		if info == "" {
			return Descriptor{}, &DescriptorError{Input: s, Message: "missing operator"}
		}
		d.Orig = info
	case d.Family == PruneStep:
		if err := step(info, 0); err != nil {
			return Descriptor{}, err
		}
	default:
		parts := strings.SplitN(info, infoSep, 4)
		if len(parts) != 4 {
			return Descriptor{}, &DescriptorError{Input: s, Message: "want step-orig-new-literal"}
		}
		if err := step(parts[0], 0); err != nil {
			return Descriptor{}, err
		}
		d.Orig, d.New, d.Literal = parts[1], parts[2], parts[3]
	}
	return d, nil
}

// TargetsFinal reports whether the descriptor changed the final step of a
// program of length n.
func (d Descriptor) TargetsFinal(n int) bool {
	switch {
	case d.Family.IsOpReplace(), d.Family == ChangeLastStep, d.Family == AppendBooleanStep:
		return d.Step == n
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Descriptor) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Descriptor) UnmarshalText(text []byte) error {
	parsed, err := ParseDescriptor(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

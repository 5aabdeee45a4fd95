package anim

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// ValueKind tags the type held by a Value.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
)

// Value is a state machine parameter: a bool or an int.
type Value struct {
	Kind ValueKind
	Bool bool
	Int  int64
}

// Bool returns a bool parameter value
func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Int returns an int parameter value
func Int(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.FormatInt(v.Int, 10)
}

// MarshalJSON encodes the value as a JSON bool or number.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts a JSON bool or integer.
func (v *Value) UnmarshalJSON(data []byte) error {
	switch s := string(data); s {
	case "true", "false":
		*v = Bool(s == "true")
		return nil
	default:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return eris.Errorf("parameter value %s is neither a bool nor an integer", s)
		}
		*v = Int(i)
		return nil
	}
}

// Params is the parameter bag state machine triggers read.
type Params map[string]Value

// CompareOp is the comparison of a ParamCompare trigger.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compareOpNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (op CompareOp) String() string {
	if int(op) < len(compareOpNames) {
		return compareOpNames[op]
	}
	return fmt.Sprintf("CompareOp(%d)", uint8(op))
}

// MarshalText implements encoding.TextMarshaler
func (op CompareOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (op *CompareOp) UnmarshalText(data []byte) error {
	for i, name := range compareOpNames {
		if name == string(data) {
			*op = CompareOp(i)
			return nil
		}
	}
	return eris.Errorf("unknown comparison %q", data)
}

// compare applies op to a and b. Values of different kinds never compare true, and bools
// only support Eq and Ne.
func compare(a Value, op CompareOp, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindBool {
		switch op {
		case Eq:
			return a.Bool == b.Bool
		case Ne:
			return a.Bool != b.Bool
		}
		return false
	}
	switch op {
	case Eq:
		return a.Int == b.Int
	case Ne:
		return a.Int != b.Int
	case Lt:
		return a.Int < b.Int
	case Le:
		return a.Int <= b.Int
	case Gt:
		return a.Int > b.Int
	case Ge:
		return a.Int >= b.Int
	}
	return false
}

// Trigger decides whether a transition fires.
type Trigger interface {
	Fires(params Params) bool
}

// Instant fires on the first update spent in the source state.
type Instant struct{}

func (Instant) Fires(Params) bool { return true }

// ParamCompare fires when the named parameter compares true against Value. A missing
// parameter never fires.
type ParamCompare struct {
	Name  string
	Op    CompareOp
	Value Value
}

func (c ParamCompare) Fires(params Params) bool {
	v, ok := params[c.Name]
	return ok && compare(v, c.Op, c.Value)
}

// PredicateFunc fires when it returns true
type PredicateFunc func(params Params) bool

func (f PredicateFunc) Fires(params Params) bool { return f(params) }

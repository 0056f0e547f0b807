package symex

import (
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/syntax"
)

// ValidatedNotNullAttribute marks a parameter whose method throws when the
// argument is null.
const ValidatedNotNullAttribute = "ValidatedNotNull"

// invocation applies a call. The stack holds the target followed by the
// arguments in order. Calls whose result is known from their operands are
// modelled; any other call yields an unknown value.
func (e *explorer) invocation(n *syntax.Node, s *ProgramState) ([]*ProgramState, error) {
	if cfg.IsNameof(n) {
		return pushNotNull(s), nil
	}

	ops := cfg.Operands(n)
	argc := len(ops) - 1
	info := e.oracle.Method(n)
	if info == nil {
		info = &semantic.MethodInfo{}
	}
	args := argumentNodes(n)

	var out []*ProgramState
	switch {
	case info.Name == "Equals" && argc == 1 && !info.Static:
		st, arg, target, err := popCall1(s)
		if err != nil {
			return nil, err
		}
		receiver := ThisValue
		if target.Kind == ValueMemberAccess {
			receiver = target.Left
		}
		out = valueEquals(st, receiver, arg)

	case info.Name == "Equals" && argc == 2 && (info.Receiver == "" || info.ReceiverIsType("object", "Object", "System.Object")):
		st, left, right, err := popCall2(s)
		if err != nil {
			return nil, err
		}
		out = valueEquals(st, left, right)

	case info.Name == "ReferenceEquals" && argc == 2:
		st, left, right, err := popCall2(s)
		if err != nil {
			return nil, err
		}
		out = e.referenceEquals(st, left, right, args[0], args[1])

	case (info.Name == "IsNullOrEmpty" || info.Name == "IsNullOrWhiteSpace") && argc == 1 &&
		info.ReceiverIsType("string", "String", "System.String"):
		st, arg, _, err := popCall1(s)
		if err != nil {
			return nil, err
		}
		out = e.referenceEquals(st, arg, NullValue, args[0], nil)

	default:
		if idx := validatedParameter(info, argc); idx >= 0 {
			st, err := s.PopN(argc - idx - 1)
			if err != nil {
				return nil, err
			}
			st, guarded, err := st.Pop()
			if err != nil {
				return nil, err
			}
			if st, err = st.PopN(idx + 1); err != nil {
				return nil, err
			}
			for _, c := range st.SetConstraint(guarded, NotNull) {
				out = append(out, c.Push(NewUnknown()))
			}
			break
		}
		st, err := s.PopN(len(ops))
		if err != nil {
			return nil, err
		}
		out = one(st.Push(NewUnknown()))
	}

	for i, st := range out {
		out[i] = e.rebindByRefArguments(n.Slot(1), st)
	}
	return out, nil
}

// validatedParameter returns the index of the first parameter carrying
// the ValidatedNotNull attribute, or -1.
func validatedParameter(info *semantic.MethodInfo, argc int) int {
	for i, p := range info.Params {
		if i >= argc {
			break
		}
		if p != nil && p.HasAttribute(ValidatedNotNullAttribute) {
			return i
		}
	}
	return -1
}

func argumentNodes(n *syntax.Node) []*syntax.Node {
	ops := cfg.Operands(n)
	if len(ops) == 0 {
		return nil
	}
	return ops[1:]
}

// popCall1 pops a single argument and the call target.
func popCall1(s *ProgramState) (*ProgramState, *Value, *Value, error) {
	s, arg, err := s.Pop()
	if err != nil {
		return nil, nil, nil, err
	}
	s, target, err := s.Pop()
	if err != nil {
		return nil, nil, nil, err
	}
	return s, arg, target, nil
}

// popCall2 pops two arguments and the call target.
func popCall2(s *ProgramState) (*ProgramState, *Value, *Value, error) {
	s, right, err := s.Pop()
	if err != nil {
		return nil, nil, nil, err
	}
	s, left, err := s.Pop()
	if err != nil {
		return nil, nil, nil, err
	}
	if s, err = s.PopN(1); err != nil {
		return nil, nil, nil, err
	}
	return s, left, right, nil
}

package symex

// Constraint is a fact about a symbolic value in one domain.
type Constraint interface {
	String() string
	constraint()
}

// ObjectConstraint is the nullability domain.
type ObjectConstraint uint8

const (
	Null ObjectConstraint = iota + 1
	NotNull
)

func (ObjectConstraint) constraint() {}

func (c ObjectConstraint) String() string {
	switch c {
	case Null:
		return "Null"
	case NotNull:
		return "NotNull"
	}
	return "None"
}

// OppositeForLogicalNot is the constraint implied for the operand of a
// negation. Only Null has one.
func (c ObjectConstraint) OppositeForLogicalNot() Constraint {
	if c == Null {
		return NotNull
	}
	return nil
}

// BoolConstraint is the truth domain. A value with a BoolConstraint is
// never null.
type BoolConstraint uint8

const (
	True BoolConstraint = iota + 1
	False
)

func (BoolConstraint) constraint() {}

func (c BoolConstraint) String() string {
	switch c {
	case True:
		return "True"
	case False:
		return "False"
	}
	return "None"
}

// Opposite returns the other truth value.
func (c BoolConstraint) Opposite() BoolConstraint {
	if c == True {
		return False
	}
	return True
}

// OppositeForLogicalNot is the constraint implied for the operand of a
// negation.
func (c BoolConstraint) OppositeForLogicalNot() Constraint { return c.Opposite() }

// Constraints is the pair of facts held about one value.
type Constraints struct {
	Object ObjectConstraint
	Bool   BoolConstraint
}

// Has reports whether c is among the facts.
func (cs Constraints) Has(c Constraint) bool {
	switch c := c.(type) {
	case ObjectConstraint:
		return cs.Object == c
	case BoolConstraint:
		return cs.Bool == c
	}
	return false
}

// IsEmpty reports whether nothing is known.
func (cs Constraints) IsEmpty() bool { return cs.Object == 0 && cs.Bool == 0 }

// with returns the facts extended by c, or false if c contradicts them.
func (cs Constraints) with(c Constraint) (Constraints, bool) {
	switch c := c.(type) {
	case ObjectConstraint:
		switch {
		case cs.Object == c:
			return cs, true
		case cs.Object != 0:
			return cs, false
		case c == Null && cs.Bool != 0:
			return cs, false
		}
		cs.Object = c
		return cs, true
	case BoolConstraint:
		switch {
		case cs.Bool == c:
			return cs, true
		case cs.Bool != 0, cs.Object == Null:
			return cs, false
		}
		cs.Bool = c
		cs.Object = NotNull
		return cs, true
	}
	return cs, true
}

func (cs Constraints) String() string {
	switch {
	case cs.IsEmpty():
		return "{}"
	case cs.Bool != 0:
		return "{" + cs.Bool.String() + "}"
	}
	return "{" + cs.Object.String() + "}"
}

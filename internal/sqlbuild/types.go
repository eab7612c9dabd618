package sqlbuild

// ConflictPolicy selects the INSERT behavior on a uniqueness or foreign key
// conflict.
type ConflictPolicy string

const (
	// ConflictAbort fails the insert and surfaces a constraint error.
	// This is SQLite's default behavior.
	ConflictAbort ConflictPolicy = "abort"

	// ConflictReplace deletes the conflicting row and inserts the new one.
	ConflictReplace ConflictPolicy = "replace"

	// ConflictIgnore drops the new row and reports zero rows affected.
	ConflictIgnore ConflictPolicy = "ignore"
)

// Valid reports whether p is one of the three known policies.
func (p ConflictPolicy) Valid() bool {
	switch p {
	case ConflictAbort, ConflictReplace, ConflictIgnore:
		return true
	}
	return false
}

// QuerySpec describes a read against a single table.
//
// Zero values mean "clause absent": a nil Where omits WHERE, an empty
// OrderBy omits ORDER BY, Limit <= 0 omits LIMIT unless Offset > 0 (SQLite
// requires a LIMIT clause to carry an OFFSET, so the compiler emits
// LIMIT -1 in that case).
type QuerySpec struct {
	Columns []string // nil or empty selects *
	Where   Predicate
	GroupBy []string
	Having  Predicate
	OrderBy []string // raw order terms, e.g. "chapter ASC", "id DESC"
	Limit   int
	Offset  int
}

// Predicate is a filter condition over a single table.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and keeps the
// compiler's type switch exhaustive.
//
// Predicate types:
//   - Eq: column = value
//   - Cmp: column <op> value for a fixed operator set
//   - Like: column LIKE pattern
//   - In: column IN (values...)
//   - And, Or: boolean combinations
//   - Raw: caller-supplied SQL fragment with its own args
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Eq represents column = value.
type Eq struct {
	Column string
	Value  any
}

func (Eq) predicateNode() {}

// Cmp represents column <op> value, where Op is one of
// "=", "!=", "<", "<=", ">", ">=".
type Cmp struct {
	Column string
	Op     string
	Value  any
}

func (Cmp) predicateNode() {}

// Like represents column LIKE pattern. The pattern is a parameter, never
// interpolated, so caller-supplied text cannot change the statement shape.
type Like struct {
	Column  string
	Pattern string
}

func (Like) predicateNode() {}

// In represents column IN (v1, v2, ...). An empty value list compiles to a
// always-false predicate (1 = 0), matching SQL's empty-set semantics.
type In struct {
	Column string
	Values []any
}

func (In) predicateNode() {}

// And requires every sub-predicate to hold. An empty slice is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or requires at least one sub-predicate to hold. An empty slice is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Raw is the escape hatch for callers that already hold a WHERE fragment and
// its positional args, mirroring the {where, args} calling convention of the
// engine's update and delete operations. The fragment is trusted SQL; args
// are still parameterized.
type Raw struct {
	Expr string
	Args []any
}

func (Raw) predicateNode() {}

// Package sqlbuild compiles structured query and mutation specs to
// parameterized SQLite SQL.
//
// The package exists so that every statement the engine runs is built in one
// place, with two hard rules:
//
//  1. Values are NEVER interpolated into SQL text. Every value travels as a
//     ? placeholder parameter.
//  2. Clause order is fixed and caller-visible: WHERE, GROUP BY, HAVING,
//     ORDER BY, LIMIT, OFFSET. The compiler never reorders or rewrites what
//     the caller asked for.
//
// Predicate is a sealed interface: only types in this package implement it,
// which keeps the compiler's type switch exhaustive.
package sqlbuild

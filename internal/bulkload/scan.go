package bulkload

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// SplitStatements reads delimited SQL text and returns the individual
// statements in order, with line and block comments stripped. Statement
// boundaries are semicolons outside string and identifier quoting.
//
// The scanner is deliberately dumb: it understands just enough SQL lexing
// (single-quote strings with '' escapes, double-quote and backquote
// identifiers, -- and /* */ comments) to split a dump safely. It does not
// validate the statements; the engine does that at execution time.
func SplitStatements(r io.Reader) ([]string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	var out []string
	var cur strings.Builder
	text := string(src)

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '-':
			if i+1 < len(text) && text[i+1] == '-' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
				cur.WriteByte(' ')
				continue
			}
			cur.WriteByte(c)
		case '/':
			if i+1 < len(text) && text[i+1] == '*' {
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					return nil, fmt.Errorf("unterminated block comment at offset %d", i)
				}
				i += 2 + end + 1
				cur.WriteByte(' ')
				continue
			}
			cur.WriteByte(c)
		case '\'', '"', '`':
			end, err := scanQuoted(text, i, c)
			if err != nil {
				return nil, err
			}
			cur.WriteString(text[i : end+1])
			i = end
		case ';':
			if stmt := strings.TrimSpace(cur.String()); stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out, nil
}

// scanQuoted returns the index of the closing quote starting at the opening
// quote text[start]. Single quotes escape by doubling; the same rule holds
// for the identifier quotes SQLite accepts.
func scanQuoted(text string, start int, quote byte) (int, error) {
	for i := start + 1; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i++ // doubled quote, stay inside
			continue
		}
		return i, nil
	}
	return 0, fmt.Errorf("unterminated %q at offset %d", string(quote), start)
}

// vendorPrefixes are statement openers the engine cannot or must not
// execute; dumps from other engines carry them and they are stripped, not
// errors.
var vendorPrefixes = []string{
	"PRAGMA", "BEGIN", "COMMIT", "ROLLBACK", "SET ", "LOCK ", "UNLOCK ",
	"START TRANSACTION", "USE ", "DELIMITER",
}

// Skippable reports whether stmt is vendor noise to strip from an import.
func Skippable(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for _, p := range vendorPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// insertStmt is one parsed multi-row INSERT from a dump.
type insertStmt struct {
	table string
	cols  []string
	rows  [][]any
}

// parseInsert parses `INSERT INTO table (cols...) VALUES (...), (...)`.
// An explicit column list is required: dumps without one are ambiguous
// against a migrated schema that has grown columns.
func parseInsert(stmt string) (*insertStmt, error) {
	p := &parser{src: stmt}

	if !p.keyword("INSERT") {
		return nil, fmt.Errorf("not an insert statement")
	}
	p.keyword("OR")
	p.keyword("REPLACE")
	p.keyword("IGNORE")
	if !p.keyword("INTO") {
		return nil, fmt.Errorf("insert: expected INTO")
	}

	table, ok := p.identifier()
	if !ok {
		return nil, fmt.Errorf("insert: expected table name")
	}

	cols, err := p.columnList()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	if !p.keyword("VALUES") {
		return nil, fmt.Errorf("insert into %s: expected VALUES", table)
	}

	var rows [][]any
	for {
		row, err := p.valueTuple(len(cols))
		if err != nil {
			return nil, fmt.Errorf("insert into %s: row %d: %w", table, len(rows)+1, err)
		}
		rows = append(rows, row)
		if !p.symbol(',') {
			break
		}
	}
	p.space()
	if !p.done() {
		return nil, fmt.Errorf("insert into %s: trailing input %q", table, p.rest())
	}

	return &insertStmt{table: table, cols: cols, rows: rows}, nil
}

// parser is a minimal recursive-descent scanner over one statement.
type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) rest() string { return p.src[p.pos:] }

func (p *parser) space() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

// keyword consumes an exact case-insensitive word; returns false without
// consuming on mismatch.
func (p *parser) keyword(word string) bool {
	p.space()
	end := p.pos + len(word)
	if end > len(p.src) {
		return false
	}
	if !strings.EqualFold(p.src[p.pos:end], word) {
		return false
	}
	if end < len(p.src) {
		next := rune(p.src[end])
		if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_' {
			return false
		}
	}
	p.pos = end
	return true
}

func (p *parser) symbol(c byte) bool {
	p.space()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

// identifier consumes a plain, backquoted, double-quoted, or bracketed
// identifier.
func (p *parser) identifier() (string, bool) {
	p.space()
	if p.done() {
		return "", false
	}

	switch p.src[p.pos] {
	case '`', '"':
		quote := p.src[p.pos]
		end := strings.IndexByte(p.src[p.pos+1:], quote)
		if end < 0 {
			return "", false
		}
		id := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return id, true
	case '[':
		end := strings.IndexByte(p.src[p.pos+1:], ']')
		if end < 0 {
			return "", false
		}
		id := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return id, true
	}

	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", false
	}
	return p.src[start:p.pos], true
}

func (p *parser) columnList() ([]string, error) {
	if !p.symbol('(') {
		return nil, fmt.Errorf("explicit column list required")
	}
	var cols []string
	for {
		id, ok := p.identifier()
		if !ok {
			return nil, fmt.Errorf("expected column name")
		}
		cols = append(cols, id)
		if p.symbol(')') {
			return cols, nil
		}
		if !p.symbol(',') {
			return nil, fmt.Errorf("expected ',' or ')' in column list")
		}
	}
}

// valueTuple consumes one parenthesized value tuple of the expected width.
func (p *parser) valueTuple(width int) ([]any, error) {
	if !p.symbol('(') {
		return nil, fmt.Errorf("expected '('")
	}
	var vals []any
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.symbol(')') {
			break
		}
		if !p.symbol(',') {
			return nil, fmt.Errorf("expected ',' or ')' in value tuple")
		}
	}
	if len(vals) != width {
		return nil, fmt.Errorf("%d values for %d columns", len(vals), width)
	}
	return vals, nil
}

// value consumes one literal: NULL, a number, or a single-quoted string
// with '' escapes. Anything else (functions, expressions) is unsupported
// dump content and an error.
func (p *parser) value() (any, error) {
	p.space()
	if p.done() {
		return nil, fmt.Errorf("unexpected end of statement")
	}

	if p.keyword("NULL") {
		return nil, nil
	}

	if p.src[p.pos] == '\'' {
		end, err := scanQuoted(p.src, p.pos, '\'')
		if err != nil {
			return nil, err
		}
		s := p.src[p.pos+1 : end]
		p.pos = end + 1
		return strings.ReplaceAll(s, "''", "'"), nil
	}

	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' ||
			c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return nil, fmt.Errorf("unsupported value at %q", p.rest())
	}

	lit := p.src[start:p.pos]
	if !strings.ContainsAny(lit, ".eE") {
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q", lit)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("bad numeric literal %q", lit)
	}
	return f, nil
}

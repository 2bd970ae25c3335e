package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

// SidecarPath returns the schema sidecar path for a table's base data
// file path: the base name plus ".desc".
func SidecarPath(tableFile string) string {
	return tableFile + ".desc"
}

// Format renders m as SQL-like CREATE TABLE text.
func Format(name string, m Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TABLE %s (\n", name)

	for _, c := range m.Columns {
		b.WriteString("  ")
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(string(c.Type.String()))

		if c.Type == TypeDecimal {
			fmt.Fprintf(&b, "(%d,%d)", decimalDigits(c.MaxBytes), c.Precision)
		} else if c.Type.IsVariableWidth() {
			fmt.Fprintf(&b, "(%d)", c.MaxBytes)
		}

		if c.NotNull {
			b.WriteString(" NOT NULL")
		}

		if c.HasDefault {
			fmt.Fprintf(&b, " DEFAULT '%s'", castToString(c.Default))
		}

		if c.Comment != "" {
			fmt.Fprintf(&b, " COMMENT '%s'", c.Comment)
		}

		b.WriteString(",\n")
	}

	b.WriteString("  PRIMARY KEY (")
	b.WriteString(strings.Join(m.Primary().Columns, ", "))
	b.WriteString(")")

	for _, idx := range m.Indexes[1:] {
		fmt.Fprintf(&b, ",\n  KEY %s (%s)", idx.Name, strings.Join(idx.Columns, ", "))
	}

	b.WriteString("\n)")

	var opts []string

	opts = append(opts, fmt.Sprintf("STORAGE=%s", m.Storage))

	if m.CacheSize > 0 {
		opts = append(opts, fmt.Sprintf("CACHE=%d", m.CacheSize))
	}

	opts = append(opts, fmt.Sprintf("WAL=%s", m.WAL))

	if m.WALPageData {
		opts = append(opts, "WALPAGEDATA=1")
	}

	if m.Compressor != "" {
		opts = append(opts, fmt.Sprintf("COMPRESSOR=%s", m.Compressor))
	}

	if m.Dictionary != "" {
		opts = append(opts, fmt.Sprintf("DICTIONARY=%s", m.Dictionary))
	}

	if m.CompactSize > 0 {
		opts = append(opts, fmt.Sprintf("COMPACT=%d", m.CompactSize))
	}

	if len(opts) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(opts, ", "))
	}

	return b.String()
}

// WriteSidecar atomically replaces the sidecar at SidecarPath(tableFile)
// with name/m's serialized form. Callers should check Equal against the
// existing sidecar first and only rewrite when it differs.
func WriteSidecar(tableFile, name string, m Meta) error {
	return vfs.WriteFileAtomic(SidecarPath(tableFile), []byte(Format(name, m)))
}

// Parse reads a sidecar's CREATE TABLE text back into a table name and
// Meta. It is a small hand-rolled tokenizer over a narrow grammar, not a
// general SQL parser.
func Parse(text string) (string, Meta, error) {
	text = strings.TrimSpace(text)

	const prefix = "CREATE TABLE"
	if !strings.HasPrefix(strings.ToUpper(text), prefix) {
		return "", Meta{}, fmt.Errorf("sidecar missing CREATE TABLE prefix: %w", ferr.Format)
	}

	rest := strings.TrimSpace(text[len(prefix):])

	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return "", Meta{}, fmt.Errorf("sidecar missing column list: %w", ferr.Format)
	}

	name := strings.TrimSpace(rest[:open])

	closeIdx := strings.LastIndexByte(rest, ')')
	if closeIdx < open {
		return "", Meta{}, fmt.Errorf("sidecar missing closing paren: %w", ferr.Format)
	}

	body := rest[open+1 : closeIdx]
	tail := strings.TrimSpace(rest[closeIdx+1:])

	clauses := splitTopLevel(body, ',')

	var columns []Column

	var indexes []Index

	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		upper := strings.ToUpper(clause)

		switch {
		case strings.HasPrefix(upper, "PRIMARY KEY"):
			cols, err := parseColumnRefs(clause)
			if err != nil {
				return "", Meta{}, err
			}

			indexes = append([]Index{{Name: "PRIMARY", Columns: cols, Primary: true}}, indexes...)
		case strings.HasPrefix(upper, "KEY"):
			fields := strings.SplitN(strings.TrimSpace(clause[3:]), "(", 2)
			if len(fields) != 2 {
				return "", Meta{}, fmt.Errorf("malformed KEY clause %q: %w", clause, ferr.Format)
			}

			cols, err := parseColumnRefs("(" + fields[1])
			if err != nil {
				return "", Meta{}, err
			}

			indexes = append(indexes, Index{Name: strings.TrimSpace(fields[0]), Columns: cols})
		default:
			col, err := parseColumnDef(clause)
			if err != nil {
				return "", Meta{}, err
			}

			columns = append(columns, col)
		}
	}

	if len(indexes) == 0 {
		return "", Meta{}, fmt.Errorf("sidecar missing PRIMARY KEY: %w", ferr.Format)
	}

	m, err := NewMeta(columns, indexes)
	if err != nil {
		return "", Meta{}, err
	}

	parseTrailingOptions(tail, &m)

	if m.WAL == WALLog && !m.WALPageData {
		return "", Meta{}, fmt.Errorf("sidecar requests WAL=LOG without WALPAGEDATA=1: %w", ferr.Config)
	}

	return name, m, nil
}

func parseColumnRefs(clause string) ([]string, error) {
	open := strings.IndexByte(clause, '(')
	closeIdx := strings.LastIndexByte(clause, ')')

	if open < 0 || closeIdx < open {
		return nil, fmt.Errorf("malformed column reference list %q: %w", clause, ferr.Format)
	}

	parts := strings.Split(clause[open+1:closeIdx], ",")
	cols := make([]string, 0, len(parts))

	for _, p := range parts {
		cols = append(cols, strings.ToLower(strings.TrimSpace(p)))
	}

	return cols, nil
}

func parseColumnDef(clause string) (Column, error) {
	fields := strings.Fields(clause)
	if len(fields) < 2 {
		return Column{}, fmt.Errorf("malformed column definition %q: %w", clause, ferr.Format)
	}

	name := fields[0]
	typeTok := fields[1]

	typeName := typeTok
	maxBytes, precision := 0, 0

	if paren := strings.IndexByte(typeTok, '('); paren >= 0 {
		typeName = typeTok[:paren]

		nums := strings.TrimSuffix(typeTok[paren+1:], ")")
		parts := strings.Split(nums, ",")

		maxBytes, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
		if len(parts) > 1 {
			precision, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	}

	typ, err := ParseType(typeName)
	if err != nil {
		return Column{}, err
	}

	c, err := NewColumn(name, typ, maxBytes, precision)
	if err != nil {
		return Column{}, err
	}

	upper := strings.ToUpper(clause)
	c.NotNull = strings.Contains(upper, "NOT NULL")

	if i := strings.Index(upper, "COMMENT '"); i >= 0 {
		rest := clause[i+len("COMMENT '"):]
		if j := strings.IndexByte(rest, '\''); j >= 0 {
			c.Comment = rest[:j]
		}
	}

	return c, nil
}

func parseTrailingOptions(tail string, m *Meta) {
	for _, opt := range splitTopLevel(tail, ',') {
		opt = strings.TrimSpace(opt)

		k, v, ok := strings.Cut(opt, "=")
		if !ok {
			continue
		}

		k = strings.ToUpper(strings.TrimSpace(k))
		v = strings.TrimSpace(v)

		switch k {
		case "STORAGE":
			m.Storage = StorageKind(strings.ToLower(v))
		case "CACHE":
			m.CacheSize, _ = strconv.Atoi(v)
		case "WAL":
			m.WAL = WALMode(strings.ToUpper(v))
		case "WALPAGEDATA":
			m.WALPageData = v == "1"
		case "COMPRESSOR":
			m.Compressor = v
		case "DICTIONARY":
			m.Dictionary = v
		case "COMPACT":
			m.CompactSize, _ = strconv.Atoi(v)
		}
	}
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// parentheses.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	parts = append(parts, s[start:])

	return parts
}

// Package schema models FlintDB's typed columns, row values, and the
// schema (Meta) that binds them to a physical table layout.
package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/flintdb/flintdb/internal/ferr"
)

// Type is a column's type tag. Values match the on-wire tag table in
// internal/codec.
type Type uint16

const (
	TypeNull Type = iota
	TypeZero
	TypeInt
	TypeUint
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt64
	TypeDouble
	TypeFloat
	TypeString
	TypeDecimal
	TypeBytes
	TypeDate
	TypeTime
	TypeUUID
	TypeIPv6
)

var typeNames = map[Type]string{
	TypeNull:    "NULL",
	TypeZero:    "ZERO",
	TypeInt:     "INT",
	TypeUint:    "UINT",
	TypeInt8:    "INT8",
	TypeUint8:   "UINT8",
	TypeInt16:   "INT16",
	TypeUint16:  "UINT16",
	TypeInt64:   "INT64",
	TypeDouble:  "DOUBLE",
	TypeFloat:   "FLOAT",
	TypeString:  "STRING",
	TypeDecimal: "DECIMAL",
	TypeBytes:   "BYTES",
	TypeDate:    "DATE",
	TypeTime:    "TIME",
	TypeUUID:    "UUID",
	TypeIPv6:    "IPV6",
}

var namesToType = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}

	return m
}()

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}

	return fmt.Sprintf("Type(%d)", uint16(t))
}

// ParseType resolves a SQL-like type name (case-insensitive) to a Type.
func ParseType(name string) (Type, error) {
	t, ok := namesToType[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown column type %q: %w", name, ferr.Format)
	}

	return t, nil
}

// naturalWidth returns the fixed byte width for types whose size does not
// depend on declared max/precision, or 0 for variable-width types.
func (t Type) naturalWidth() int {
	switch t {
	case TypeNull, TypeZero:
		return 0
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt, TypeUint, TypeFloat:
		return 4
	case TypeInt64, TypeDouble, TypeTime:
		return 8
	case TypeUUID, TypeIPv6:
		return 16
	case TypeDate:
		return 3
	default:
		return 0
	}
}

// IsVariableWidth reports whether the type's on-disk width depends on a
// declared maximum (STRING, BYTES) or derived precision (DECIMAL).
func (t Type) IsVariableWidth() bool {
	return t == TypeString || t == TypeBytes || t == TypeDecimal
}

// decimalWidth derives the worst-case byte width of an unscaled DECIMAL
// value from its declared precision: ceil(precision * log2(10) / 8) bytes,
// plus one byte of headroom for the sign bit.
func decimalWidth(precision int) int {
	bits := float64(precision) * 3.32192809489 // log2(10)
	bytes := int(math.Ceil(bits/8)) + 1

	if bytes < 1 {
		bytes = 1
	}

	return bytes
}

// decimalDigits is the approximate inverse of decimalWidth, used only to
// round-trip a MaxBytes value back into a sidecar's "DECIMAL(p,s)" display
// precision; it is not exact for widths that weren't produced by
// decimalWidth.
func decimalDigits(width int) int {
	return int(float64(width-1) * 8 / 3.32192809489)
}

// Column describes one field of a table schema.
type Column struct {
	Name       string
	Type       Type
	MaxBytes   int
	Precision  int
	NotNull    bool
	Default    Value
	HasDefault bool
	Comment    string
}

// NewColumn validates and normalizes a column definition.
//
// For STRING and BYTES, firstArg is the caller-declared byte maximum and
// must be positive. For DECIMAL, the sidecar grammar's "DECIMAL(p,s)" maps
// firstArg to the total decimal digit precision p and secondArg to the
// scale s; MaxBytes is derived from p via decimalWidth. All other types
// ignore both arguments and take their natural fixed width.
func NewColumn(name string, typ Type, firstArg, secondArg int) (Column, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Column{}, fmt.Errorf("column name must not be empty: %w", ferr.Format)
	}

	c := Column{Name: name, Type: typ}

	switch {
	case typ.IsVariableWidth() && typ != TypeDecimal:
		if firstArg <= 0 {
			return Column{}, fmt.Errorf("column %q: %s requires a positive max width: %w", name, typ, ferr.Config)
		}

		c.MaxBytes = firstArg
	case typ == TypeDecimal:
		digits := firstArg
		if digits <= 0 {
			digits = 18
		}

		c.Precision = secondArg
		c.MaxBytes = decimalWidth(digits)
	default:
		c.MaxBytes = typ.naturalWidth()
	}

	return c, nil
}

// RowBytes returns this column's contribution to the per-row byte cost
// accounting: 2 bytes tag, plus a 2-byte length prefix for variable-width
// types, plus the declared/derived max.
func (c Column) RowBytes() int {
	n := 2 + c.MaxBytes
	if c.Type.IsVariableWidth() {
		n += 2
	}

	return n
}

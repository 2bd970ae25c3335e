package schema

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/flintdb/flintdb/internal/ferr"
)

// Value is a tagged union over FlintDB's 18 column types. Exactly one of
// the typed fields is meaningful, selected by Type; Null reports whether
// the value is SQL NULL regardless of Type.
//
// A sum type over a fixed field set (rather than interface{}) keeps casts
// allocation-free for the fixed-width types. The zero Value has Type
// TypeNull but Null false; NullValue builds a NULL.
type Value struct {
	Type  Type
	Null  bool
	I     int64   // INT, UINT, INT8, UINT8, INT16, UINT16, INT64, DATE, TIME
	F     float64 // FLOAT, DOUBLE
	S     string  // STRING
	B     []byte  // BYTES, UUID/IPV6 (16 bytes, hi||lo); DECIMAL uses Dec
	Dec   *big.Int
	Scale int
}

// NullValue returns the NULL value for typ.
func NullValue(typ Type) Value { return Value{Type: typ, Null: true} }

func IntValue(typ Type, v int64) Value   { return Value{Type: typ, I: v} }
func FloatValue(typ Type, v float64) Value { return Value{Type: typ, F: v} }
func StringValue(v string) Value          { return Value{Type: TypeString, S: v} }
func BytesValue(v []byte) Value           { return Value{Type: TypeBytes, B: v} }

func DecimalValue(unscaled *big.Int, scale int) Value {
	return Value{Type: TypeDecimal, Dec: unscaled, Scale: scale}
}

// Equal compares two values for the round-trip property: null tags
// preserve null, non-null values compare equal per-column.
func (v Value) Equal(o Value) bool {
	if v.Null != o.Null {
		return false
	}

	if v.Null {
		return true
	}

	switch v.Type {
	case TypeFloat, TypeDouble:
		return v.F == o.F
	case TypeString:
		return v.S == o.S
	case TypeBytes, TypeUUID, TypeIPv6:
		return string(v.B) == string(o.B)
	case TypeDecimal:
		if v.Scale != o.Scale {
			return false
		}

		if (v.Dec == nil) != (o.Dec == nil) {
			return false
		}

		if v.Dec == nil {
			return true
		}

		return v.Dec.Cmp(o.Dec) == 0
	default:
		return v.I == o.I
	}
}

// Cast converts v to typ with the given precision: an empty string casts
// to NULL for numeric types. Strings parse with strconv (an integer target
// accepts only a base-10 integer string), FLOAT/DOUBLE convert to integers
// by direct host truncation, and only DECIMAL sources and targets go
// through big.Int/big.Float arithmetic.
func Cast(v Value, typ Type, precision int) (Value, error) {
	if v.Null {
		return NullValue(typ), nil
	}

	if v.Type == TypeString && v.S == "" && typ != TypeString && typ != TypeBytes {
		return NullValue(typ), nil
	}

	switch typ {
	case TypeInt, TypeUint, TypeInt8, TypeUint8, TypeInt16, TypeUint16, TypeInt64, TypeDate, TypeTime:
		i, err := castToInt(v)
		if err != nil {
			return Value{}, err
		}

		return IntValue(typ, i), nil

	case TypeFloat, TypeDouble:
		f, err := castToFloat(v)
		if err != nil {
			return Value{}, err
		}

		return FloatValue(typ, f), nil

	case TypeString:
		return StringValue(castToString(v)), nil

	case TypeBytes, TypeUUID, TypeIPv6:
		if v.Type == TypeBytes || v.Type == TypeUUID || v.Type == TypeIPv6 {
			return Value{Type: typ, B: v.B}, nil
		}

		return Value{}, fmt.Errorf("cannot cast %s to %s: %w", v.Type, typ, ferr.Format)

	case TypeDecimal:
		dec, scale, err := castToDecimal(v, precision)
		if err != nil {
			return Value{}, err
		}

		return DecimalValue(dec, scale), nil

	case TypeZero, TypeNull:
		return NullValue(typ), nil

	default:
		return Value{}, fmt.Errorf("cast target %s unsupported: %w", typ, ferr.Unsupported)
	}
}

func castToInt(v Value) (int64, error) {
	switch v.Type {
	case TypeString:
		s := strings.TrimSpace(v.S)

		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cast %q to integer: %w", v.S, ferr.Format)
		}

		return n, nil
	case TypeFloat, TypeDouble:
		return int64(v.F), nil
	case TypeDecimal:
		if v.Dec == nil {
			return 0, nil
		}

		scaled := new(big.Int).Set(v.Dec)
		if v.Scale > 0 {
			scaled.Quo(scaled, pow10(v.Scale))
		}

		return scaled.Int64(), nil
	default:
		return v.I, nil
	}
}

func castToFloat(v Value) (float64, error) {
	switch v.Type {
	case TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err != nil {
			return 0, fmt.Errorf("cast %q to float: %w", v.S, ferr.Format)
		}

		return f, nil
	case TypeFloat, TypeDouble:
		return v.F, nil
	case TypeDecimal:
		if v.Dec == nil {
			return 0, nil
		}

		f := new(big.Float).SetInt(v.Dec)
		scaleDiv := new(big.Float).SetInt(pow10(v.Scale))

		out, _ := new(big.Float).Quo(f, scaleDiv).Float64()

		return out, nil
	default:
		return float64(v.I), nil
	}
}

func castToString(v Value) string {
	switch v.Type {
	case TypeString:
		return v.S
	case TypeFloat, TypeDouble:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case TypeDecimal:
		if v.Dec == nil {
			return "0"
		}

		return formatDecimal(v.Dec, v.Scale)
	default:
		return strconv.FormatInt(v.I, 10)
	}
}

func castToDecimal(v Value, precision int) (*big.Int, int, error) {
	switch v.Type {
	case TypeDecimal:
		return v.Dec, v.Scale, nil
	case TypeString:
		return parseDecimalString(v.S)
	case TypeFloat, TypeDouble:
		s := strconv.FormatFloat(v.F, 'f', -1, 64)

		return parseDecimalString(s)
	default:
		return big.NewInt(v.I), 0, nil
	}
}

func pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}

	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func formatDecimal(unscaled *big.Int, scale int) string {
	s := unscaled.String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	if scale <= 0 {
		if neg {
			s = "-" + s
		}

		return s
	}

	for len(s) <= scale {
		s = "0" + s
	}

	whole := s[:len(s)-scale]
	frac := s[len(s)-scale:]

	out := whole + "." + frac
	if neg {
		out = "-" + out
	}

	return out
}

func parseDecimalString(s string) (*big.Int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), 0, nil
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")

	digits := whole + frac
	if digits == "" {
		return nil, 0, fmt.Errorf("cast %q to decimal: %w", s, ferr.Format)
	}

	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, 0, fmt.Errorf("cast %q to decimal: %w", s, ferr.Format)
	}

	if neg {
		n.Neg(n)
	}

	scale := 0
	if hasFrac {
		scale = len(frac)
	}

	return n, scale, nil
}

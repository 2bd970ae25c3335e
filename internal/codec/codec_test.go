package codec_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/codec"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/schema"
)

func oneColumnMeta(t *testing.T, typ schema.Type, firstArg, secondArg int) schema.Meta {
	t.Helper()

	col, err := schema.NewColumn("v", typ, firstArg, secondArg)
	require.NoError(t, err)

	id, err := schema.NewColumn("id", schema.TypeInt64, 0, 0)
	require.NoError(t, err)

	meta, err := schema.NewMeta(
		[]schema.Column{id, col},
		[]schema.Index{{Name: "primary", Columns: []string{"id"}, Primary: true}},
	)
	require.NoError(t, err)

	return meta
}

func roundTrip(t *testing.T, meta schema.Meta, row schema.Row) schema.Row {
	t.Helper()

	c, err := codec.New(meta, codec.Exact)
	require.NoError(t, err)

	defer c.Close()

	buf, err := c.Format(row)
	require.NoError(t, err)

	defer c.Release(buf)

	got, err := c.Parse(buf)
	require.NoError(t, err)

	return got
}

// TestRoundTripEveryColumnType exercises Format/Parse for every
// data-bearing column type, one column at a time.
func TestRoundTripEveryColumnType(t *testing.T) {
	tests := []struct {
		name      string
		typ       schema.Type
		firstArg  int
		secondArg int
		value     schema.Value
	}{
		{"int", schema.TypeInt, 0, 0, schema.IntValue(schema.TypeInt, -12345)},
		{"uint", schema.TypeUint, 0, 0, schema.IntValue(schema.TypeUint, 123456)},
		{"int8", schema.TypeInt8, 0, 0, schema.IntValue(schema.TypeInt8, -7)},
		{"uint8", schema.TypeUint8, 0, 0, schema.IntValue(schema.TypeUint8, 250)},
		{"int16", schema.TypeInt16, 0, 0, schema.IntValue(schema.TypeInt16, -1000)},
		{"uint16", schema.TypeUint16, 0, 0, schema.IntValue(schema.TypeUint16, 60000)},
		{"int64", schema.TypeInt64, 0, 0, schema.IntValue(schema.TypeInt64, -9007199254740993)},
		{"double", schema.TypeDouble, 0, 0, schema.FloatValue(schema.TypeDouble, 3.14159265358979)},
		{"float", schema.TypeFloat, 0, 0, schema.FloatValue(schema.TypeFloat, -2.5)},
		{"date", schema.TypeDate, 0, 0, schema.IntValue(schema.TypeDate, 19784)}, // fits the 24-bit packed DATE width
		{"time", schema.TypeTime, 0, 0, schema.IntValue(schema.TypeTime, 1_700_000_000)},
		{"uuid", schema.TypeUUID, 0, 0, schema.Value{Type: schema.TypeUUID, B: make16(0xAB)}},
		{"ipv6", schema.TypeIPv6, 0, 0, schema.Value{Type: schema.TypeIPv6, B: make16(0x01)}},
		{"string", schema.TypeString, 32, 0, schema.StringValue("hello, flint")},
		{"bytes", schema.TypeBytes, 32, 0, schema.BytesValue([]byte{1, 2, 3, 4, 5})},
		{"decimal", schema.TypeDecimal, 18, 2, schema.DecimalValue(big.NewInt(12345), 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := oneColumnMeta(t, tt.typ, tt.firstArg, tt.secondArg)
			row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, 1), tt.value})

			got := roundTrip(t, meta, row)

			require.True(t, tt.value.Equal(got.Values[1]), "column %s: want %+v, got %+v", tt.name, tt.value, got.Values[1])
		})
	}
}

func make16(b byte) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = b
	}

	return out
}

// TestNullTagRoundTripsRegardlessOfDeclaredType checks that a NULL value
// decodes back to NULL no matter what type the column declares.
func TestNullTagRoundTripsRegardlessOfDeclaredType(t *testing.T) {
	types := []struct {
		typ       schema.Type
		firstArg  int
		secondArg int
	}{
		{schema.TypeInt64, 0, 0},
		{schema.TypeString, 16, 0},
		{schema.TypeDecimal, 18, 2},
		{schema.TypeBytes, 16, 0},
		{schema.TypeUUID, 0, 0},
	}

	for _, tt := range types {
		meta := oneColumnMeta(t, tt.typ, tt.firstArg, tt.secondArg)
		row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, 1), schema.NullValue(tt.typ)})

		got := roundTrip(t, meta, row)

		require.True(t, got.Values[1].Null, "type %s: expected null tag to survive round trip", tt.typ)
	}
}

// TestExactModeRejectsOversizedString confirms EXACT mode refuses to
// silently truncate a STRING value wider than the declared max.
func TestExactModeRejectsOversizedString(t *testing.T) {
	meta := oneColumnMeta(t, schema.TypeString, 4, 0)

	c, err := codec.New(meta, codec.Exact)
	require.NoError(t, err)

	defer c.Close()

	row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, 1), schema.StringValue("too long")})

	_, err = c.Format(row)
	require.ErrorIs(t, err, ferr.Overflow)
}

// TestExactModeRejectsOversizedDecimal confirms EXACT mode refuses a
// DECIMAL payload whose two's-complement encoding exceeds the declared
// column width.
func TestExactModeRejectsOversizedDecimal(t *testing.T) {
	meta := oneColumnMeta(t, schema.TypeDecimal, 3, 0) // narrow: 3 bytes max

	c, err := codec.New(meta, codec.Exact)
	require.NoError(t, err)

	defer c.Close()

	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, 1), schema.DecimalValue(huge, 0)})

	_, err = c.Format(row)
	require.ErrorIs(t, err, ferr.Overflow)
}

// TestLenientModeTruncatesOversizedPayloads confirms Lenient mode
// silently truncates rather than erroring, and that the truncated bytes
// round-trip (lossily, but without error).
func TestLenientModeTruncatesOversizedPayloads(t *testing.T) {
	meta := oneColumnMeta(t, schema.TypeBytes, 4, 0)

	c, err := codec.New(meta, codec.Lenient)
	require.NoError(t, err)

	defer c.Close()

	row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, 1), schema.BytesValue([]byte{1, 2, 3, 4, 5, 6})})

	buf, err := c.Format(row)
	require.NoError(t, err)

	defer c.Release(buf)

	got, err := c.Parse(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got.Values[1].B)
}

// TestDecimalFastPathTiers exercises the three magnitude ranges the
// DECIMAL payload can fall into: at most 8 bytes (direct int64
// sign-extension), 9..16 bytes, and beyond 16 bytes, each for both a
// positive and a negative unscaled value.
func TestDecimalFastPathTiers(t *testing.T) {
	tests := []struct {
		name     string
		unscaled *big.Int
	}{
		{"zero", big.NewInt(0)},
		{"small_positive", big.NewInt(12345)},
		{"small_negative", big.NewInt(-12345)},
		{"eight_byte_boundary_positive", new(big.Int).SetUint64(1<<55 - 1)},
		{"eight_byte_boundary_negative", new(big.Int).Neg(new(big.Int).SetUint64(1 << 55))},
		{"nine_to_sixteen_byte_positive", new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)},
		{"nine_to_sixteen_byte_negative", new(big.Int).Neg(new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil))},
		{"beyond_sixteen_byte_positive", new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil)},
		{"beyond_sixteen_byte_negative", new(big.Int).Neg(new(big.Int).Exp(big.NewInt(10), big.NewInt(40), nil))},
	}

	// Precision wide enough (45 digits) to hold every magnitude above
	// without EXACT-mode overflow, across all three tiers.
	meta := oneColumnMeta(t, schema.TypeDecimal, 45, 5)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := schema.NewRow([]schema.Value{
				schema.IntValue(schema.TypeInt64, 1),
				schema.DecimalValue(tt.unscaled, 5),
			})

			got := roundTrip(t, meta, row)

			require.Equal(t, 0, tt.unscaled.Cmp(got.Values[1].Dec), "want %s, got %s", tt.unscaled, got.Values[1].Dec)
			require.Equal(t, 5, got.Values[1].Scale)
		})
	}
}

// TestParseBatchDecodesConsecutiveRows confirms ParseBatch walks packed
// rows back out in order.
func TestParseBatchDecodesConsecutiveRows(t *testing.T) {
	meta := oneColumnMeta(t, schema.TypeInt64, 0, 0)

	c, err := codec.New(meta, codec.Exact)
	require.NoError(t, err)

	defer c.Close()

	var packed []byte

	for i := int64(0); i < 5; i++ {
		row := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, i), schema.IntValue(schema.TypeInt64, i * 10)})

		buf, err := c.Format(row)
		require.NoError(t, err)

		packed = append(packed, buf...)
		c.Release(buf)
	}

	var got []int64

	require.NoError(t, c.ParseBatch(packed, 0, func(row schema.Row) error {
		got = append(got, row.Values[1].I)

		return nil
	}))

	require.Equal(t, []int64{0, 10, 20, 30, 40}, got)
}

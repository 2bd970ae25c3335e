// Package codec implements RowCodec: the bidirectional encoder/decoder
// between a schema.Row and its packed little-endian byte form.
package codec

import "github.com/flintdb/flintdb/internal/schema"

// wireTag is the on-wire type tag preceding a column's payload. Tag 0 is
// reserved for NULL regardless of the column's declared type.
type wireTag = schema.Type

const nullTag wireTag = schema.TypeNull

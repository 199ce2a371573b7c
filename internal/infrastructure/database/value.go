package database

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant of Value is active.
type Kind uint8

// Value kinds, one per SQLite storage class.
const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the SQLite storage class name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a scalar exchanged between Go code and the store.
//
// The set of implementations is closed: Null, Integer, Float, Text and Blob.
// Consumers are expected to type-switch over all five:
//
//	switch v := row[0].(type) {
//	case database.Null:
//	case database.Integer:
//	case database.Float:
//	case database.Text:
//	case database.Blob:
//	}
//
// The gateway never converts between variants.
type Value interface {
	Kind() Kind
	String() string
	sealed()
}

// Null is the SQL NULL value.
type Null struct{}

// Integer is a 64-bit signed integer value.
type Integer int64

// Float is a double-precision floating point value.
type Float float64

// Text is a UTF-8 string value.
type Text string

// Blob is a binary value. A nil Blob binds as a zero-length blob, not NULL.
type Blob []byte

func (Null) Kind() Kind    { return KindNull }
func (Integer) Kind() Kind { return KindInteger }
func (Float) Kind() Kind   { return KindFloat }
func (Text) Kind() Kind    { return KindText }
func (Blob) Kind() Kind    { return KindBlob }

func (Null) String() string      { return "NULL" }
func (v Integer) String() string { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Text) String() string    { return string(v) }
func (v Blob) String() string    { return "x'" + hex.EncodeToString(v) + "'" }

func (Null) sealed()    {}
func (Integer) sealed() {}
func (Float) sealed()   {}
func (Text) sealed()    {}
func (Blob) sealed()    {}

// Row is one result row; values are in the query's column order.
type Row []Value

// Result is every row a statement produced, in the store's order.
type Result []Row

// Equal reports whether a and b hold the same variant and the same value.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Integer:
		return av == b.(Integer)
	case Float:
		return av == b.(Float)
	case Text:
		return av == b.(Text)
	case Blob:
		return bytes.Equal(av, b.(Blob))
	}
	return false
}

// ParseLiteral converts command-line text into a Value.
//
// Recognised forms:
//   - NULL (any case)           -> Null
//   - base-10 integer           -> Integer
//   - decimal or exponent float -> Float
//   - x'cafe' / X'CAFE'         -> Blob
//   - 'quoted text'             -> Text without the quotes
//
// Anything else is returned as Text unchanged.
func ParseLiteral(s string) Value {
	if strings.EqualFold(s, "null") {
		return Null{}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN") {
		return Float(f)
	}
	if len(s) >= 3 && (s[0] == 'x' || s[0] == 'X') && s[1] == '\'' && s[len(s)-1] == '\'' {
		if b, err := hex.DecodeString(s[2 : len(s)-1]); err == nil {
			return Blob(b)
		}
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return Text(strings.ReplaceAll(s[1:len(s)-1], "''", "'"))
	}
	return Text(s)
}

// toDriver converts a Value into the form the sqlite3 driver binds natively.
func toDriver(v Value) (driver.Value, error) {
	switch tv := v.(type) {
	case Null:
		return nil, nil
	case Integer:
		return int64(tv), nil
	case Float:
		return float64(tv), nil
	case Text:
		return string(tv), nil
	case Blob:
		b := make([]byte, len(tv))
		copy(b, tv)
		return b, nil
	case nil:
		return nil, fmt.Errorf("nil Value")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// fromDriver maps a column value produced by the sqlite3 driver onto Value.
// Statements are compiled so that the driver reports storage classes only;
// anything else is an error rather than a conversion.
func fromDriver(v driver.Value) (Value, error) {
	switch tv := v.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Integer(tv), nil
	case float64:
		return Float(tv), nil
	case string:
		return Text(tv), nil
	case []byte:
		b := make([]byte, len(tv))
		copy(b, tv)
		return Blob(b), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}

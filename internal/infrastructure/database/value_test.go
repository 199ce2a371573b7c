package database

import (
	"math"
	"testing"
	"time"
)

// TestKindString verifies storage class names.
func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNull, "NULL"},
		{KindInteger, "INTEGER"},
		{KindFloat, "REAL"},
		{KindText, "TEXT"},
		{KindBlob, "BLOB"},
		{Kind(9), "Kind(9)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// TestEqual verifies variant-aware comparison.
func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null", Null{}, Null{}, true},
		{"integer", Integer(7), Integer(7), true},
		{"integer differs", Integer(7), Integer(8), false},
		{"integer vs float", Integer(1), Float(1), false},
		{"text", Text("x"), Text("x"), true},
		{"empty text vs null", Text(""), Null{}, false},
		{"blob", Blob{1, 2}, Blob{1, 2}, true},
		{"empty blob vs nil blob", Blob{}, Blob(nil), true},
		{"blob vs text", Blob("ab"), Text("ab"), false},
		{"nil values", nil, nil, true},
		{"nil vs null", nil, Null{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestParseLiteral verifies command-line literal parsing.
func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"NULL", Null{}},
		{"null", Null{}},
		{"42", Integer(42)},
		{"-7", Integer(-7)},
		{"3.5", Float(3.5)},
		{"1e3", Float(1000)},
		{"x'cafe'", Blob{0xca, 0xfe}},
		{"X''", Blob{}},
		{"'it''s'", Text("it's")},
		{"''", Text("")},
		{"hello", Text("hello")},
		{"NaN", Text("NaN")},
		{"Inf", Text("Inf")},
		{"0x10", Text("0x10")},
		{"x'zz'", Text("x'zz'")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLiteral(tt.in)
			if !Equal(got, tt.want) {
				t.Errorf("ParseLiteral(%q) = %s(%v), want %s(%v)", tt.in, got.Kind(), got, tt.want.Kind(), tt.want)
			}
		})
	}
}

// TestValueString verifies display rendering.
func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null{}, "NULL"},
		{Integer(-3), "-3"},
		{Float(0.25), "0.25"},
		{Text("a b"), "a b"},
		{Blob{0x01, 0xff}, "x'01ff'"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%s.String() = %q, want %q", tt.v.Kind(), got, tt.want)
		}
	}
}

// TestToDriver verifies bind-side conversion.
func TestToDriver(t *testing.T) {
	t.Run("nil blob binds as empty blob", func(t *testing.T) {
		v, err := toDriver(Blob(nil))
		if err != nil {
			t.Fatalf("toDriver() error = %v", err)
		}
		b, ok := v.([]byte)
		if !ok || b == nil || len(b) != 0 {
			t.Errorf("toDriver(Blob(nil)) = %#v, want non-nil empty []byte", v)
		}
	})

	t.Run("blob is copied", func(t *testing.T) {
		src := Blob{1, 2, 3}
		v, err := toDriver(src)
		if err != nil {
			t.Fatalf("toDriver() error = %v", err)
		}
		src[0] = 9
		if got := v.([]byte)[0]; got != 1 {
			t.Errorf("bound blob changed with source: first byte = %d", got)
		}
	})

	t.Run("nil value", func(t *testing.T) {
		if _, err := toDriver(nil); err == nil {
			t.Error("toDriver(nil) error = nil, want error")
		}
	})
}

// TestFromDriver verifies column-side conversion of storage classes.
func TestFromDriver(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"int64", int64(math.MaxInt64), Integer(math.MaxInt64)},
		{"float64", 1.5, Float(1.5)},
		{"string", "s", Text("s")},
		{"bytes", []byte{7}, Blob{7}},
		{"empty bytes", []byte{}, Blob{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fromDriver(tt.in)
			if err != nil {
				t.Fatalf("fromDriver() error = %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("fromDriver(%v) = %s(%v), want %s(%v)", tt.in, got.Kind(), got, tt.want.Kind(), tt.want)
			}
		})
	}

	for _, in := range []any{struct{}{}, true, time.Date(2026, 1, 18, 12, 30, 0, 0, time.UTC)} {
		if _, err := fromDriver(in); err == nil {
			t.Errorf("fromDriver(%T) error = nil, want error", in)
		}
	}
}

// internal/models/types.go
package models

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strconv"
)

// BigInt stores an arbitrary-precision non-negative integer amount in the
// payment token's smallest unit. It maps to numeric(78,0) on PostgreSQL and
// serializes to JSON as a decimal string so precision survives the wire.
type BigInt struct {
	value big.Int
}

func NewBigInt(v int64) BigInt {
	var b BigInt
	b.value.SetInt64(v)
	return b
}

func NewBigIntFromString(s string) (BigInt, error) {
	var b BigInt
	if _, ok := b.value.SetString(s, 10); !ok {
		return BigInt{}, fmt.Errorf("invalid integer amount %q", s)
	}
	return b, nil
}

// Int returns a copy of the underlying big.Int for arithmetic.
func (b BigInt) Int() *big.Int {
	return new(big.Int).Set(&b.value)
}

func FromInt(v *big.Int) BigInt {
	var b BigInt
	b.value.Set(v)
	return b
}

func (b BigInt) Cmp(other BigInt) int {
	return b.value.Cmp(&other.value)
}

func (b BigInt) Sign() int {
	return b.value.Sign()
}

func (b BigInt) IsZero() bool {
	return b.value.Sign() == 0
}

func (b BigInt) Add(other BigInt) BigInt {
	var out BigInt
	out.value.Add(&b.value, &other.value)
	return out
}

func (b BigInt) Sub(other BigInt) BigInt {
	var out BigInt
	out.value.Sub(&b.value, &other.value)
	return out
}

func (b BigInt) String() string {
	return b.value.String()
}

func (b BigInt) Value() (driver.Value, error) {
	return b.value.String(), nil
}

func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		b.value.SetInt64(0)
		return nil
	}

	switch v := value.(type) {
	case int64:
		b.value.SetInt64(v)
		return nil
	case []byte:
		return b.setString(string(v))
	case string:
		return b.setString(v)
	case float64:
		// sqlite reports NUMERIC columns holding integral values as floats
		return b.setString(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("cannot scan %T into BigInt", value)
	}
}

func (b *BigInt) setString(s string) error {
	if s == "" {
		b.value.SetInt64(0)
		return nil
	}
	if _, ok := b.value.SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer amount %q", s)
	}
	return nil
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.value.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		b.value.SetInt64(0)
		return nil
	}
	return b.setString(s)
}

func (BigInt) GormDataType() string {
	return "numeric(78,0)"
}

package money

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Cents is an amount in the smallest currency unit. All marketplace arithmetic
// is done on Cents; decimals only exist at the JSON boundary.
type Cents int64

// FromFloat converts a decimal amount to Cents, rounding half away from zero.
func FromFloat(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float returns the amount in currency units.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	return strconv.FormatFloat(c.Float(), 'f', 2, 64)
}

// MarshalJSON renders the amount as a decimal number with two places (9.99).
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in currency units.
func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", string(data))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid amount %q", string(data))
	}
	*c = FromFloat(f)
	return nil
}

// MulRate returns round(c × rate) in cents.
func (c Cents) MulRate(rate float64) Cents {
	return Cents(math.Round(float64(c) * rate))
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Ptr returns a pointer to a copy of c.
func Ptr(c Cents) *Cents {
	return &c
}

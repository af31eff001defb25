package aggregate

import (
	"encoding/json"
	"math"
	"strconv"
)

// Float is an optional number. The zero value is undefined, which is
// distinct from a defined 0.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a defined Float.
func Some(v float64) Float {
	return Float{Value: v, Valid: true}
}

// Get returns the value and whether it is defined.
func (f Float) Get() (float64, bool) {
	return f.Value, f.Valid
}

// String renders the value, or "null" when undefined.
func (f Float) String() string {
	if !f.Valid {
		return "null"
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// MarshalJSON encodes an undefined Float as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid || math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as undefined.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// percent is part/total as a one-decimal percentage, undefined when total is 0.
func percent(part, total int) Float {
	if total == 0 {
		return Float{}
	}
	return Some(round1(float64(part) / float64(total) * 100))
}

// mean is the average of sum over n values, undefined when n is 0.
func mean(sum float64, n int) Float {
	if n == 0 {
		return Float{}
	}
	return Some(sum / float64(n))
}

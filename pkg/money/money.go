package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a non-negative monetary amount in fixed-point minor units.
// One whole unit equals 10^Scale minor units. Arithmetic is exact; the
// ledger never touches floating point.
type Amount int64

// Scale is the number of decimal places carried by Amount.
const Scale = 6

const unit = int64(1_000_000)

var (
	ErrUnderflow = errors.New("amount_underflow")
	ErrOverflow  = errors.New("amount_overflow")
	ErrInvalid   = errors.New("invalid_amount")
)

// Zero is the additive identity.
const Zero Amount = 0

// Parse converts a decimal string such as "10", "10.5" or "0.000001"
// into an Amount. Negative values and more than Scale fractional digits
// are rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalid
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrInvalid
	}
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrInvalid
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Scale {
		return 0, ErrInvalid
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	if w > math.MaxInt64/unit {
		return 0, ErrOverflow
	}
	value := w * unit

	if frac != "" {
		if frac[0] == '+' || frac[0] == '-' {
			return 0, ErrInvalid
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalid
		}
		for i := len(frac); i < Scale; i++ {
			f *= 10
		}
		if value > math.MaxInt64-f {
			return 0, ErrOverflow
		}
		value += f
	}

	return Amount(value), nil
}

// MustParse is a test and fixture helper; it panics on invalid input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money: parse %q: %v", s, err))
	}
	return a
}

// Add returns a+b or ErrOverflow when the sum exceeds the representable range.
func (a Amount) Add(b Amount) (Amount, error) {
	if int64(b) > math.MaxInt64-int64(a) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ErrUnderflow when the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) IsPositive() bool { return a > 0 }

// Cmp returns -1, 0 or 1 comparing a against b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the canonical decimal form with trailing fractional
// zeros trimmed, e.g. "10", "10.5", "0.000001".
func (a Amount) String() string {
	whole := int64(a) / unit
	frac := int64(a) % unit
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%d.%06d", whole, frac)
	return strings.TrimRight(s, "0")
}

// MarshalJSON encodes the amount as a decimal string so precision
// survives JSON clients that parse numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		// Accept unquoted decimal literals as well.
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

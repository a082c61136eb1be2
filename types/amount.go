package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// ErrOverflow is returned by checked arithmetic on amounts and timestamps.
var ErrOverflow = errors.New("cadence: arithmetic overflow")

// Amount is a quantity of a fungible asset in its smallest unit.
// All arithmetic is integer-only and checked; nothing wraps or saturates.
//
// Examples (6 decimals):
//   - Amount(10_000_000) = 10.000000
//   - Amount(1) = 0.000001
type Amount uint64

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return Amount(sum), nil
}

// Sub returns a-b or ErrOverflow when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return Amount(diff), nil
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Uint64 returns the raw base-unit value.
func (a Amount) Uint64() uint64 { return uint64(a) }

// Format renders the amount in major units for an asset with the given
// decimal scale. Format(6) of 10_500_000 is "10.500000".
func (a Amount) Format(decimals uint8) string {
	raw := strconv.FormatUint(uint64(a), 10)
	if decimals == 0 {
		return raw
	}

	d := int(decimals)
	if len(raw) <= d {
		raw = strings.Repeat("0", d-len(raw)+1) + raw
	}
	return raw[:len(raw)-d] + "." + raw[len(raw)-d:]
}

// String returns the base-unit value.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// Value implements driver.Valuer. Amounts are stored as exact decimal text so
// the full uint64 range survives NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("types: negative amount %d", v)
		}
		*a = Amount(v)
		return nil
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	default:
		return fmt.Errorf("types: cannot scan %T into Amount", src)
	}
}

func (a *Amount) parse(s string) error {
	// NUMERIC scale zero may still render as "100.0" on some drivers.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return fmt.Errorf("types: fractional amount %q", s)
		}
		s = s[:i]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	*a = Amount(n)
	return nil
}

// AddSeconds returns ts+secs or ErrOverflow. Both operands are signed; the
// check covers wraparound in either direction.
func AddSeconds(ts, secs int64) (int64, error) {
	if (secs > 0 && ts > math.MaxInt64-secs) || (secs < 0 && ts < math.MinInt64-secs) {
		return 0, ErrOverflow
	}
	return ts + secs, nil
}

// Sum adds all values with overflow checking.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

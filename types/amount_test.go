package types

import (
	"errors"
	"math"
	"testing"
)

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      func() (Amount, error)
		want    Amount
		wantErr bool
	}{
		{"Add", func() (Amount, error) { return Amount(100).Add(200) }, 300, false},
		{"Add max", func() (Amount, error) { return Amount(math.MaxUint64 - 1).Add(1) }, math.MaxUint64, false},
		{"Add overflow", func() (Amount, error) { return Amount(math.MaxUint64).Add(1) }, 0, true},
		{"Sub", func() (Amount, error) { return Amount(500).Sub(200) }, 300, false},
		{"Sub to zero", func() (Amount, error) { return Amount(7).Sub(7) }, 0, false},
		{"Sub underflow", func() (Amount, error) { return Amount(1).Sub(2) }, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			if tt.wantErr {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("expected ErrOverflow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAmountFormat(t *testing.T) {
	tests := []struct {
		amount   Amount
		decimals uint8
		expected string
	}{
		{10_000_000, 6, "10.000000"},
		{10_500_000, 6, "10.500000"},
		{1, 6, "0.000001"},
		{0, 6, "0.000000"},
		{4900, 2, "49.00"},
		{5, 2, "0.05"},
		{100, 0, "100"},
		{math.MaxUint64, 9, "18446744073.709551615"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.amount.Format(tt.decimals); got != tt.expected {
				t.Errorf("Format: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountValueScan(t *testing.T) {
	original := Amount(math.MaxUint64)
	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var restored Amount
	if err := restored.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if restored != original {
		t.Errorf("got %d, want %d", restored, original)
	}

	sources := []struct {
		name string
		src  any
		want Amount
		fail bool
	}{
		{"int64", int64(42), 42, false},
		{"bytes", []byte("77"), 77, false},
		{"numeric scale", "100.000", 100, false},
		{"nil", nil, 0, false},
		{"negative", int64(-1), 0, true},
		{"fraction", "1.5", 0, true},
		{"float", 1.5, 0, true},
	}
	for _, tt := range sources {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			err := a.Scan(tt.src)
			if tt.fail {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if a != tt.want {
				t.Errorf("got %d, want %d", a, tt.want)
			}
		})
	}
}

func TestAddSeconds(t *testing.T) {
	tests := []struct {
		name    string
		ts      int64
		secs    int64
		want    int64
		wantErr bool
	}{
		{"forward", 0, 3600, 3600, false},
		{"zero", 7201, 0, 7201, false},
		{"backward", 100, -40, 60, false},
		{"overflow", math.MaxInt64 - 10, 11, 0, true},
		{"exact max", math.MaxInt64 - 10, 10, math.MaxInt64, false},
		{"underflow", math.MinInt64 + 5, -6, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddSeconds(tt.ts, tt.secs)
			if tt.wantErr {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("expected ErrOverflow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got, err := Sum(100, 200, 300)
	if err != nil || got != 600 {
		t.Errorf("Sum: got %d, %v", got, err)
	}
	if _, err := Sum(math.MaxUint64, 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	if got, _ := Sum(); got != 0 {
		t.Errorf("empty Sum: got %d", got)
	}
}

func TestEntity(t *testing.T) {
	e := NewEntity(1000)
	if e.CreatedAt != 1000 || e.UpdatedAt != 1000 {
		t.Fatalf("unexpected entity %+v", e)
	}
	e.Touch(1500)
	if e.UpdatedAt != 1500 || e.CreatedAt != 1000 {
		t.Errorf("Touch: got %+v", e)
	}
	if e.Age(1600) != 600 {
		t.Errorf("Age: got %d", e.Age(1600))
	}
}

func BenchmarkAmountAdd(b *testing.B) {
	a1 := Amount(100)
	a2 := Amount(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = a1.Add(a2)
	}
}

func BenchmarkAmountFormat(b *testing.B) {
	a := Amount(10_500_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Format(6)
	}
}

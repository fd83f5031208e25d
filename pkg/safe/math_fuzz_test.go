package safe

import (
	"math"
	"testing"
)

// FuzzAddSub verifies Add/Sub are inverses whenever neither panics.
func FuzzAddSub(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(1), int64(-1))
	f.Add(int64(math.MaxInt64), int64(1))
	f.Add(int64(math.MinInt64), int64(-1))

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() {
			// Overflow panics are the documented contract.
			_ = recover()
		}()
		sum := Add(a, b)
		if got := Sub(sum, b); got != a {
			t.Errorf("Sub(Add(%d, %d), %d) = %d, want %d", a, b, b, got, a)
		}
	})
}

// FuzzCeilDiv verifies ceiling division stays within one of truncating division.
func FuzzCeilDiv(f *testing.F) {
	f.Add(int64(0), int64(1))
	f.Add(int64(99), int64(10))
	f.Add(int64(100), int64(10))

	f.Fuzz(func(t *testing.T, a, b int64) {
		if a < 0 || b <= 0 {
			return
		}
		got := CeilDiv(a, b)
		floor := a / b
		if got != floor && got != floor+1 {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d or %d", a, b, got, floor, floor+1)
		}
		if a%b == 0 && got != floor {
			t.Errorf("CeilDiv(%d, %d) = %d, want exact %d", a, b, got, floor)
		}
	})
}

package domain

import "testing"

func TestConvexFee(t *testing.T) {
	tests := []struct {
		name  string
		price Cents
		qty   int64
		want  Cents
	}{
		// 0.07 * 10 * 0.50 * 0.50 = $0.175 -> 18c
		{"mid price", 50, 10, 18},
		// 0.07 * 10 * 0.40 * 0.60 = $0.168 -> 17c
		{"forty cents", 40, 10, 17},
		// 0.07 * 1 * 0.01 * 0.99 = $0.000693 -> 1c
		{"extreme rounds up to a cent", 1, 1, 1},
		// 0.07 * 100 * 0.45 * 0.55 = $1.73249 -> 174c
		{"hundred lots", 45, 100, 174},
		{"zero qty", 50, 0, 0},
		{"out of range price", 100, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvexFee(tt.price, tt.qty); got != tt.want {
				t.Errorf("ConvexFee(%d, %d) = %d, want %d", tt.price, tt.qty, got, tt.want)
			}
		})
	}
}

package inventory

import "testing"

func TestMedication_NeedsRestock(t *testing.T) {
	cases := []struct {
		name      string
		stock     int
		threshold int
		want      bool
	}{
		{"above threshold", 20, 5, false},
		{"at threshold", 5, 5, true},
		{"below threshold", 2, 5, true},
		{"empty stock", 0, 5, true},
		{"zero threshold with stock", 3, 0, false},
		{"zero threshold empty", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Medication{StockQuantity: tc.stock, MinStockLevel: tc.threshold}
			if got := m.NeedsRestock(); got != tc.want {
				t.Errorf("NeedsRestock() = %v, want %v", got, tc.want)
			}
		})
	}
}

package sender

import "testing"

func TestPacerInterval(t *testing.T) {
	tests := []struct {
		name        string
		bwlimitKiBs int
		wantZero    bool
	}{
		{name: "disabled when unset", bwlimitKiBs: 0, wantZero: true},
		{name: "disabled when negative", bwlimitKiBs: -1, wantZero: true},
		{name: "modest limit yields a positive interval", bwlimitKiBs: 100, wantZero: false},
		{name: "extreme limit rounds down to zero", bwlimitKiBs: 1 << 30, wantZero: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PacerInterval(tt.bwlimitKiBs)
			if (got == 0) != tt.wantZero {
				t.Errorf("PacerInterval(%d) = %s, wantZero = %v", tt.bwlimitKiBs, got, tt.wantZero)
			}
		})
	}
}

func TestPacerIntervalScalesInversely(t *testing.T) {
	slow := PacerInterval(10)
	fast := PacerInterval(100)
	if slow <= fast {
		t.Errorf("PacerInterval(10) = %s, should be greater than PacerInterval(100) = %s", slow, fast)
	}
	if slow <= 0 || fast <= 0 {
		t.Fatalf("expected positive intervals, got slow=%s fast=%s", slow, fast)
	}
}

package usecase

import "testing"

func TestParseDecision(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		output string
		want   bool
	}{
		{"approve upper", "DECISION: APPROVE", true},
		{"approve lower no space", "decision:approve", true},
		{"approve embedded", "Review notes...\nDECISION: APPROVE\nStrong pitch.", true},
		{"reject", "DECISION: REJECT", false},
		{"reject with fixes", "DECISION: REJECT\nFixes: tighten the lede.", false},
		{"empty", "", false},
		{"garbage", "garbage", false},
		{"no marker", "This pitch looks fine to me.", false},
	}

	for _, tc := range cases {
		if got := ParseDecision(tc.output); got != tc.want {
			t.Fatalf("%s: ParseDecision(%q) = %v, want %v", tc.name, tc.output, got, tc.want)
		}
	}
}

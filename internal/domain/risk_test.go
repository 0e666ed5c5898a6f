package domain

import "testing"

func TestCalculateRiskLevel_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLevelLow},
		{24.999, RiskLevelLow},
		{25, RiskLevelMedium},
		{49.999, RiskLevelMedium},
		{50, RiskLevelHigh},
		{74.999, RiskLevelHigh},
		{75, RiskLevelCritical},
		{100, RiskLevelCritical},
	}

	for _, tc := range cases {
		if got := CalculateRiskLevel(tc.score); got != tc.want {
			t.Errorf("CalculateRiskLevel(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

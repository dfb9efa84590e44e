package dispatch

import (
	"testing"

	"github.com/emsgrid/dispatchd/core/model"
)

func TestDistanceConfidenceBands(t *testing.T) {
	cases := []struct {
		km   float64
		want float64
	}{
		{0, 0.95},
		{2.0, 0.95},
		{2.01, 0.85},
		{5.0, 0.85},
		{5.01, 0.70},
		{10.0, 0.70},
		{10.01, 0.50},
		{100, 0.50},
	}
	for _, c := range cases {
		if got := DistanceConfidence(c.km); got != c.want {
			t.Errorf("DistanceConfidence(%v) = %v, want %v", c.km, got, c.want)
		}
	}
}

func TestRuleForSeverityTable(t *testing.T) {
	r := ruleForSeverity(5)
	if r.MinCrew != 3 || !r.Nurse || !r.Specialist {
		t.Fatalf("severity 5 rule wrong: %+v", r)
	}
	if len(r.Tiers) != 3 || r.Tiers[0] != model.TierSenior || r.Tiers[2] != model.TierJunior {
		t.Fatalf("severity 5 tiers wrong: %v", r.Tiers)
	}

	r = ruleForSeverity(4)
	if r.MinCrew != 2 || !r.Nurse || r.Specialist {
		t.Fatalf("severity 4 rule wrong: %+v", r)
	}

	r = ruleForSeverity(2)
	if r.MinCrew != 1 || r.Nurse || r.Specialist {
		t.Fatalf("severity 2 rule wrong: %+v", r)
	}
}

func TestRuleForSeverityOutOfRangeDefaultsToMedium(t *testing.T) {
	for _, sev := range []int{0, -1, 6, 42} {
		r := ruleForSeverity(sev)
		if r.MinCrew != 2 || r.Nurse || r.Specialist {
			t.Errorf("severity %d should use the medium rule, got %+v", sev, r)
		}
	}
}

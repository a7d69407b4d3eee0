package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestL0Dropped_Increments(t *testing.T) {
	before := testutil.ToFloat64(L0Dropped)
	L0Dropped.Inc()
	after := testutil.ToFloat64(L0Dropped)

	if after != before+1 {
		t.Fatalf("L0Dropped = %v, want %v", after, before+1)
	}
}

func TestConsolidationPromoted_LabeledByTier(t *testing.T) {
	ConsolidationPromoted.WithLabelValues("l1").Inc()
	ConsolidationPromoted.WithLabelValues("l2").Inc()
	ConsolidationPromoted.WithLabelValues("l2").Inc()

	if got := testutil.ToFloat64(ConsolidationPromoted.WithLabelValues("l2")); got != 2 {
		t.Fatalf("l2 promotions = %v, want 2", got)
	}
}

func TestRetrieverArmFailures_PerArm(t *testing.T) {
	RetrieverArmFailures.WithLabelValues("graph").Inc()

	if got := testutil.ToFloat64(RetrieverArmFailures.WithLabelValues("graph")); got < 1 {
		t.Fatalf("graph arm failures = %v, want >= 1", got)
	}
}

package execution

import "testing"

func TestMetrics_Registration(t *testing.T) {
	if OpportunitiesReceived == nil {
		t.Error("OpportunitiesReceived not registered")
	}
	if OpportunitiesExecuted == nil {
		t.Error("OpportunitiesExecuted not registered")
	}
	if OpportunitiesSkippedTotal == nil {
		t.Error("OpportunitiesSkippedTotal not registered")
	}
	if ExecutionDurationSeconds == nil {
		t.Error("ExecutionDurationSeconds not registered")
	}
	if ExecutionErrorsTotal == nil {
		t.Error("ExecutionErrorsTotal not registered")
	}
	if ExecutionErrorsByType == nil {
		t.Error("ExecutionErrorsByType not registered")
	}
	if LegFillResultTotal == nil {
		t.Error("LegFillResultTotal not registered")
	}
	if FillWaitDurationSeconds == nil {
		t.Error("FillWaitDurationSeconds not registered")
	}
	if ResidualsAcceptedTotal == nil {
		t.Error("ResidualsAcceptedTotal not registered")
	}
}

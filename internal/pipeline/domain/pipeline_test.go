package domain

import (
	"testing"
)

func TestStatusesAreValidForTheirPipeline(t *testing.T) {
	for _, pt := range PipelineTypes() {
		for _, s := range StatusesForPipeline(pt) {
			if !IsStatusValidForPipeline(s, pt) {
				t.Errorf("status %q returned for %q but reported invalid", s, pt)
			}
		}
	}
}

func TestRecommendedStatusKeepsValidStatus(t *testing.T) {
	all := append(append(StatusesForPipeline(PipelinePurchase), StatusesForPipeline(PipelineOwner)...), Status("Bogus"))
	for _, pt := range PipelineTypes() {
		for _, s := range all {
			got := RecommendedStatusForTransition(s, pt)
			if IsStatusValidForPipeline(s, pt) && got != s {
				t.Errorf("RecommendedStatusForTransition(%q, %q) = %q, want unchanged", s, pt, got)
			}
			if !IsStatusValidForPipeline(got, pt) {
				t.Errorf("RecommendedStatusForTransition(%q, %q) = %q, which is invalid for the target", s, pt, got)
			}
		}
	}
}

func TestPipelineMembership(t *testing.T) {
	tests := []struct {
		status Status
		pt     PipelineType
		want   bool
	}{
		{StatusProposal, PipelinePurchase, true},
		{StatusProposal, PipelineRental, false},
		{StatusVisit, PipelineRental, true},
		{StatusNew, PipelineOwner, false},
		{StatusMandateSigned, PipelineOwner, true},
		{StatusMandateSigned, PipelinePurchase, false},
	}
	for _, tc := range tests {
		if got := IsStatusValidForPipeline(tc.status, tc.pt); got != tc.want {
			t.Errorf("IsStatusValidForPipeline(%q, %q) = %v, want %v", tc.status, tc.pt, got, tc.want)
		}
	}
}

func TestUnknownPipelineFallsBackToPurchase(t *testing.T) {
	got := StatusesForPipeline(PipelineType("commercial"))
	want := StatusesForPipeline(PipelinePurchase)
	if len(got) != len(want) {
		t.Fatalf("expected purchase list, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected purchase list, got %v", got)
		}
	}
	if _, ok := ParsePipelineType("commercial"); ok {
		t.Fatalf("ParsePipelineType must reject unknown types")
	}
}

func TestStatusesForPipelineReturnsCopy(t *testing.T) {
	list := StatusesForPipeline(PipelineRental)
	list[0] = "Mutated"
	if StatusesForPipeline(PipelineRental)[0] != StatusNew {
		t.Fatalf("caller mutation leaked into the status catalogue")
	}
}

func TestDefaultStatus(t *testing.T) {
	if DefaultStatus(PipelineOwner) != StatusNewContact {
		t.Fatalf("owner default must be NewContact")
	}
	if DefaultStatus(PipelineRental) != StatusNew || DefaultStatus(PipelinePurchase) != StatusNew {
		t.Fatalf("buyer and renter default must be New")
	}
	if RecommendedStatusForTransition(StatusProposal, PipelineRental) != StatusNew {
		t.Fatalf("Proposal must reset to New when entering rental")
	}
}

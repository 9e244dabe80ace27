// Package domain holds the pipeline status model: which statuses each
// pipeline type accepts and how a status is reconciled when a lead moves
// between pipelines.
package domain

import "slices"

// PipelineType selects one of the parallel funnels a lead can be in.
type PipelineType string

const (
	PipelinePurchase PipelineType = "purchase"
	PipelineRental   PipelineType = "rental"
	PipelineOwner    PipelineType = "owner"
)

// Status is a stage within a pipeline.
type Status string

// Buyer and renter statuses.
const (
	StatusNew         Status = "New"
	StatusContacted   Status = "Contacted"
	StatusQualified   Status = "Qualified"
	StatusVisit       Status = "Visit"
	StatusProposal    Status = "Proposal"
	StatusNegotiation Status = "Negotiation"
	StatusSigned      Status = "Signed"
	StatusLost        Status = "Lost"
)

// Owner (mandate) statuses.
const (
	StatusNewContact      Status = "NewContact"
	StatusQualification   Status = "Qualification"
	StatusMandateProposed Status = "MandateProposed"
	StatusMandateSigned   Status = "MandateSigned"
	StatusMandateExpired  Status = "MandateExpired"
	StatusInactive        Status = "Inactive"
)

// Board column order per pipeline.
var (
	purchaseStatuses = []Status{
		StatusNew, StatusContacted, StatusQualified, StatusVisit,
		StatusProposal, StatusNegotiation, StatusSigned, StatusLost,
	}
	rentalStatuses = []Status{
		StatusNew, StatusContacted, StatusQualified, StatusVisit,
		StatusNegotiation, StatusSigned, StatusLost,
	}
	ownerStatuses = []Status{
		StatusNewContact, StatusQualification, StatusMandateProposed,
		StatusMandateSigned, StatusMandateExpired, StatusInactive,
	}
)

// PipelineTypes lists the known pipelines.
func PipelineTypes() []PipelineType {
	return []PipelineType{PipelinePurchase, PipelineRental, PipelineOwner}
}

// ParsePipelineType accepts only the known pipeline types.
func ParsePipelineType(value string) (PipelineType, bool) {
	t := PipelineType(value)
	switch t {
	case PipelinePurchase, PipelineRental, PipelineOwner:
		return t, true
	}
	return "", false
}

func statusList(pipelineType PipelineType) []Status {
	switch pipelineType {
	case PipelineRental:
		return rentalStatuses
	case PipelineOwner:
		return ownerStatuses
	default:
		// Unknown types share the purchase list.
		return purchaseStatuses
	}
}

// StatusesForPipeline returns the statuses valid for pipelineType in board
// order. An unknown pipeline type yields the purchase list.
func StatusesForPipeline(pipelineType PipelineType) []Status {
	return slices.Clone(statusList(pipelineType))
}

// IsStatusValidForPipeline reports whether status belongs to pipelineType.
func IsStatusValidForPipeline(status Status, pipelineType PipelineType) bool {
	return slices.Contains(statusList(pipelineType), status)
}

// IsKnownStatus reports whether status belongs to any pipeline.
func IsKnownStatus(status Status) bool {
	for _, t := range PipelineTypes() {
		if IsStatusValidForPipeline(status, t) {
			return true
		}
	}
	return false
}

// DefaultStatus is the entry status of a pipeline.
func DefaultStatus(pipelineType PipelineType) Status {
	if pipelineType == PipelineOwner {
		return StatusNewContact
	}
	return StatusNew
}

// RecommendedStatusForTransition keeps current when it is already valid for
// target and otherwise falls back to the target's default status.
func RecommendedStatusForTransition(current Status, target PipelineType) Status {
	if IsStatusValidForPipeline(current, target) {
		return current
	}
	return DefaultStatus(target)
}

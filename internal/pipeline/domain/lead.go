package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Lead is a prospective buyer, renter or owner tracked through a pipeline.
// AssignedTo holds the agent id and AssignedToName the agent display name;
// filters accept either form.
type Lead struct {
	ID                uuid.UUID    `json:"id"`
	Name              string       `json:"name"`
	Status            Status       `json:"status"`
	PipelineType      PipelineType `json:"pipelineType"`
	Tags              []string     `json:"tags"`
	AssignedTo        string       `json:"assignedTo,omitempty"`
	AssignedToName    string       `json:"assignedToName,omitempty"`
	Budget            string       `json:"budget,omitempty"`
	DesiredLocation   string       `json:"desiredLocation,omitempty"`
	PurchaseTimeframe string       `json:"purchaseTimeframe,omitempty"`
	PropertyType      string       `json:"propertyType,omitempty"`
	LastContactedAt   *time.Time   `json:"lastContactedAt,omitempty"`
}

// Clone returns a deep copy of the lead.
func (l Lead) Clone() Lead {
	l.Tags = slices.Clone(l.Tags)
	if l.LastContactedAt != nil {
		ts := *l.LastContactedAt
		l.LastContactedAt = &ts
	}
	return l
}

// Column groups the leads sitting in one status of a board.
type Column struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Items  []Lead `json:"items"`
}

// CloneColumns deep-copies a board layout.
func CloneColumns(columns []Column) []Column {
	if columns == nil {
		return nil
	}
	out := make([]Column, len(columns))
	for i, col := range columns {
		out[i] = Column{Status: col.Status, Label: col.Label}
		if col.Items != nil {
			out[i].Items = make([]Lead, len(col.Items))
			for j, item := range col.Items {
				out[i].Items[j] = item.Clone()
			}
		}
	}
	return out
}

// GroupByStatus lays leads out in the pipeline's column order. Leads whose
// status is not valid for the pipeline are returned separately so callers
// can report or reconcile them.
func GroupByStatus(pipelineType PipelineType, leads []Lead) (columns []Column, stray []Lead) {
	statuses := StatusesForPipeline(pipelineType)
	index := make(map[Status]int, len(statuses))
	columns = make([]Column, len(statuses))
	for i, s := range statuses {
		index[s] = i
		columns[i] = Column{Status: s, Label: Label(pipelineType, s), Items: []Lead{}}
	}
	for _, lead := range leads {
		i, ok := index[lead.Status]
		if !ok {
			stray = append(stray, lead)
			continue
		}
		columns[i].Items = append(columns[i].Items, lead)
	}
	return columns, stray
}

// ActionType classifies an entry in a lead's action history.
type ActionType string

const (
	ActionCall    ActionType = "call"
	ActionEmail   ActionType = "email"
	ActionMeeting ActionType = "meeting"
)

// ActionStatus is the lifecycle state of an action.
type ActionStatus string

const (
	ActionScheduled ActionStatus = "scheduled"
	ActionDone      ActionStatus = "done"
)

// Action is one entry of a lead's action history.
type Action struct {
	ID          uuid.UUID    `json:"id"`
	Type        ActionType   `json:"type"`
	Status      ActionStatus `json:"status"`
	ScheduledAt time.Time    `json:"scheduledAt"`
	Note        string       `json:"note"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Package filter narrows a pipeline board against a multi-criteria filter
// specification and decodes persisted specifications field by field.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"estate_crm_backend/internal/pipeline/domain"
)

// Spec is the set of narrowing criteria applied to a board. Empty strings,
// nil pointers and an empty tag list mean "no constraint".
type Spec struct {
	Status            *domain.Status `json:"status"`
	Tags              []string       `json:"tags"`
	AssignedTo        *string        `json:"assignedTo"`
	MinBudget         string         `json:"minBudget"`
	MaxBudget         string         `json:"maxBudget"`
	Location          string         `json:"location"`
	PurchaseTimeframe string         `json:"purchaseTimeframe"`
	PropertyType      string         `json:"propertyType"`
}

// Default returns the empty specification.
func Default() Spec {
	return Spec{Tags: []string{}}
}

// Clone returns a copy that shares no memory with s.
func (s Spec) Clone() Spec {
	out := s
	out.Tags = slices.Clone(s.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if s.Status != nil {
		st := *s.Status
		out.Status = &st
	}
	if s.AssignedTo != nil {
		a := *s.AssignedTo
		out.AssignedTo = &a
	}
	return out
}

// ActiveCount returns how many criteria currently constrain the board.
// The budget range counts once.
func (s Spec) ActiveCount() int {
	n := 0
	if s.Status != nil {
		n++
	}
	if len(s.Tags) > 0 {
		n++
	}
	if s.AssignedTo != nil {
		n++
	}
	if s.MinBudget != "" || s.MaxBudget != "" {
		n++
	}
	if s.Location != "" {
		n++
	}
	if s.PurchaseTimeframe != "" {
		n++
	}
	if s.PropertyType != "" {
		n++
	}
	return n
}

// IsActive reports whether any criterion is set.
func (s Spec) IsActive() bool {
	return s.ActiveCount() > 0
}

// Issue describes a field that was dropped or defaulted while decoding.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Reason
}

// Decode builds a Spec from an untyped JSON object, starting from Default.
// See DecodeInto.
func Decode(data []byte) (Spec, []Issue, error) {
	return DecodeInto(Default(), data)
}

// DecodeInto overlays the fields present in data onto base. Each known field
// is type-checked on its own: a malformed value keeps base's value and is
// reported as an Issue, as is any unknown field. An error is returned only
// when data is not a JSON object at all.
func DecodeInto(base Spec, data []byte) (Spec, []Issue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return base.Clone(), nil, fmt.Errorf("decode filter spec: %w", err)
	}
	if raw == nil {
		return base.Clone(), nil, fmt.Errorf("decode filter spec: expected a JSON object")
	}

	spec := base.Clone()
	var issues []Issue

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		var reason string
		switch key {
		case "status":
			reason = decodeStatus(value, &spec.Status)
		case "tags":
			reason = decodeTags(value, &spec.Tags)
		case "assignedTo":
			reason = decodeOptionalString(value, &spec.AssignedTo)
		case "minBudget":
			reason = decodeBudget(value, &spec.MinBudget)
		case "maxBudget":
			reason = decodeBudget(value, &spec.MaxBudget)
		case "location":
			reason = decodeString(value, &spec.Location)
		case "purchaseTimeframe":
			reason = decodeString(value, &spec.PurchaseTimeframe)
		case "propertyType":
			reason = decodeString(value, &spec.PropertyType)
		default:
			reason = "unknown field"
		}
		if reason != "" {
			issues = append(issues, Issue{Field: key, Reason: reason})
		}
	}

	return spec, issues, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func decodeStatus(value json.RawMessage, dst **domain.Status) string {
	if isNull(value) {
		*dst = nil
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "expected a string or null"
	}
	if s == "" {
		*dst = nil
		return ""
	}
	status := domain.Status(s)
	if !domain.IsKnownStatus(status) {
		return fmt.Sprintf("unknown status %q", s)
	}
	*dst = &status
	return ""
}

func decodeTags(value json.RawMessage, dst *[]string) string {
	if isNull(value) {
		*dst = []string{}
		return ""
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return "expected an array of strings"
	}
	tags := make([]string, 0, len(items))
	dropped := 0
	for _, item := range items {
		var tag string
		if err := json.Unmarshal(item, &tag); err != nil || tag == "" {
			dropped++
			continue
		}
		tags = append(tags, tag)
	}
	*dst = tags
	if dropped > 0 {
		return fmt.Sprintf("dropped %d non-string entries", dropped)
	}
	return ""
}

func decodeOptionalString(value json.RawMessage, dst **string) string {
	if isNull(value) {
		*dst = nil
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "expected a string or null"
	}
	if s == "" {
		*dst = nil
		return ""
	}
	*dst = &s
	return ""
}

func decodeString(value json.RawMessage, dst *string) string {
	if isNull(value) {
		*dst = ""
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "expected a string"
	}
	*dst = s
	return ""
}

// decodeBudget also accepts a bare JSON number.
func decodeBudget(value json.RawMessage, dst *string) string {
	if reason := decodeString(value, dst); reason == "" {
		return ""
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "expected a string or number"
	}
	*dst = n.String()
	return ""
}

package domain

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var labelsYAML []byte

type labelCatalogue struct {
	Purchase  map[Status]string       `yaml:"purchase"`
	Rental    map[Status]string       `yaml:"rental"`
	Owner     map[Status]string       `yaml:"owner"`
	Pipelines map[PipelineType]string `yaml:"pipelines"`
}

var labels = mustLoadLabels(labelsYAML)

func mustLoadLabels(data []byte) labelCatalogue {
	cat, err := parseLabels(data)
	if err != nil {
		panic(err)
	}
	return cat
}

func parseLabels(data []byte) (labelCatalogue, error) {
	var cat labelCatalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return labelCatalogue{}, fmt.Errorf("parse status labels: %w", err)
	}
	return cat, nil
}

func (c labelCatalogue) forPipeline(t PipelineType) map[Status]string {
	switch t {
	case PipelineRental:
		return c.Rental
	case PipelineOwner:
		return c.Owner
	default:
		return c.Purchase
	}
}

// Label returns the display label of status within pipelineType, or the raw
// status when none is configured.
func Label(pipelineType PipelineType, status Status) string {
	if l, ok := labels.forPipeline(pipelineType)[status]; ok && l != "" {
		return l
	}
	return string(status)
}

// PipelineLabel returns the display name of a pipeline type.
func PipelineLabel(pipelineType PipelineType) string {
	if l, ok := labels.Pipelines[pipelineType]; ok && l != "" {
		return l
	}
	return string(pipelineType)
}

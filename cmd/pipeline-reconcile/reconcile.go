package main

import (
	"context"
	"fmt"

	leadrepo "estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type summary struct {
	Scanned   int
	Corrected int
	Failed    int
}

// reconcile moves every lead whose status is not part of its pipeline to
// the recommended status, walking the table in id order.
func reconcile(ctx context.Context, store leadrepo.Reconciler, batchSize int, dryRun bool, log *logger.Logger) (summary, error) {
	if batchSize < 1 {
		return summary{}, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var (
		sum     summary
		afterID uuid.UUID
	)
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		leads, err := store.ListInvalidStatus(ctx, afterID, batchSize)
		if err != nil {
			return sum, fmt.Errorf("list leads after %s: %w", afterID, err)
		}
		if len(leads) == 0 {
			return sum, nil
		}

		for _, lead := range leads {
			sum.Scanned++
			afterID = lead.ID
			next := domain.RecommendedStatusForTransition(lead.Status, lead.PipelineType)

			if dryRun {
				log.Info("would correct lead status", "leadId", lead.ID, "pipelineType", lead.PipelineType, "from", lead.Status, "to", next)
				sum.Corrected++
				continue
			}
			if err := store.SetStatus(ctx, lead.ID, lead.OrganizationID, next); err != nil {
				log.Error("lead status correction failed", "error", err, "leadId", lead.ID)
				sum.Failed++
				continue
			}
			log.Info("lead status corrected", "leadId", lead.ID, "pipelineType", lead.PipelineType, "from", lead.Status, "to", next)
			sum.Corrected++
		}

		if len(leads) < batchSize {
			return sum, nil
		}
	}
}

package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskFollowUpDue fires when a scheduled lead action reaches its due time.
const TaskFollowUpDue = "leads.followup.due"

type FollowUpDuePayload struct {
	LeadID         string `json:"leadId"`
	ActionID       string `json:"actionId"`
	OrganizationID string `json:"organizationId"`
	AgentID        string `json:"agentId,omitempty"`
}

func NewFollowUpDueTask(payload FollowUpDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpDue, data), nil
}

func ParseFollowUpDuePayload(task *asynq.Task) (FollowUpDuePayload, error) {
	var payload FollowUpDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpDuePayload{}, fmt.Errorf("decode %s payload: %w", TaskFollowUpDue, err)
	}
	return payload, nil
}

// followUpTaskID makes enqueueing idempotent per action.
func followUpTaskID(actionID string) string {
	return "followup:" + actionID
}

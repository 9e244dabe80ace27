// Package notification delivers pipeline notices and live updates to
// connected users. It subscribes to domain events and pushes them over
// Server-Sent Events, so domain modules never talk to the stream directly.
package notification

import (
	"context"

	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/notification/sse"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AgentResolver maps a team member to the user account it signs in with.
type AgentResolver interface {
	UserIDForAgent(ctx context.Context, organizationID, agentID uuid.UUID) (uuid.UUID, bool, error)
}

// Stream is the live channel to connected users.
type Stream interface {
	Publish(userID uuid.UUID, event sse.Event)
	PublishToOrganization(orgID uuid.UUID, event sse.Event)
	Notify(ctx context.Context, userID uuid.UUID, n notice.Notice)
	Handler(getUserID func(*gin.Context) (uuid.UUID, bool), getOrgID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc
}

// Module wires the SSE stream and the event handlers.
type Module struct {
	sse    Stream
	agents AgentResolver
	log    *logger.Logger
}

// New creates the notification module. stream may be nil, in which case
// notices are only logged.
func New(stream Stream, log *logger.Logger) *Module {
	return &Module{sse: stream, log: log}
}

// SetAgentResolver lets follow-up reminders reach the assigned agent only.
func (m *Module) SetAgentResolver(r AgentResolver) { m.agents = r }

// Notifier returns the notifier used by pipeline operations.
func (m *Module) Notifier() notice.Notifier {
	if m.sse == nil {
		return notice.NewLogNotifier(m.log)
	}
	return notice.Multi{m.sse, notice.NewLogNotifier(m.log)}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the notification stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.sse == nil {
		return
	}
	ctx.Protected.GET("/notifications/stream", m.sse.Handler(httpkit.UserIDFromContext, httpkit.TenantIDFromContext))
}

// RegisterHandlers subscribes to the events forwarded to connected users.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AgentSelectionChanged{}.EventName(), m)
	bus.Subscribe(events.FollowUpDue{}.EventName(), m)
	for _, name := range events.BoardChangeEvents() {
		bus.Subscribe(name, m)
	}

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AgentSelectionChanged:
		m.handleAgentSelectionChanged(e)
	case events.FollowUpDue:
		m.handleFollowUpDue(ctx, e)
	case events.BoardChange:
		m.boardChanged(e.BoardScope())
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
	}
	return nil
}

// handleAgentSelectionChanged echoes a selection change to the user's other
// sessions. The source lets the originating session ignore it.
func (m *Module) handleAgentSelectionChanged(e events.AgentSelectionChanged) {
	if m.sse == nil {
		return
	}
	m.sse.Publish(e.UserID, sse.Event{
		Type: sse.EventAgentSelectionChanged,
		Data: map[string]any{
			"selectedAgent": e.SelectedAgent,
			"source":        e.Source,
		},
	})
}

func (m *Module) handleFollowUpDue(ctx context.Context, e events.FollowUpDue) {
	n := notice.Success("Relance à effectuer", e.Note)
	evt := sse.Event{Type: sse.EventFollowUpDue, LeadID: e.LeadID, Message: n.Title, Data: n}

	if m.sse == nil {
		m.log.Info("follow-up due", "leadId", e.LeadID, "actionId", e.ActionID, "note", e.Note)
		return
	}

	if e.AssignedAgentID != nil && m.agents != nil {
		userID, ok, err := m.agents.UserIDForAgent(ctx, e.OrganizationID, *e.AssignedAgentID)
		if err != nil {
			m.log.Warn("follow-up agent lookup failed", "error", err, "agentId", *e.AssignedAgentID)
		}
		if ok {
			m.sse.Publish(userID, evt)
			return
		}
	}
	m.sse.PublishToOrganization(e.OrganizationID, evt)
}

func (m *Module) boardChanged(orgID, leadID uuid.UUID) {
	if m.sse == nil {
		return
	}
	m.sse.PublishToOrganization(orgID, sse.Event{Type: sse.EventBoardInvalidated, LeadID: leadID})
}

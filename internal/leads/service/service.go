package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estate_crm_backend/internal/events"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/board"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/internal/pipeline/filter"
	"estate_crm_backend/internal/pipeline/transition"
	"estate_crm_backend/internal/pipeline/workspace"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/phone"
	"estate_crm_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const msgLeadNotFound = "lead not found"

type Service struct {
	repo       repository.LeadsRepository
	cache      *board.Cache
	workspaces *workspace.Registry
	bus        events.Bus
	notifier   notice.Notifier
	followUps  transition.FollowUpScheduler
	log        *logger.Logger
}

func New(repo repository.LeadsRepository, cache *board.Cache, workspaces *workspace.Registry, bus events.Bus, notifier notice.Notifier, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		workspaces: workspaces,
		bus:        bus,
		notifier:   notifier,
		log:        log,
	}
}

// SetFollowUpScheduler enables reminders for requalification calls.
func (s *Service) SetFollowUpScheduler(followUps transition.FollowUpScheduler) {
	s.followUps = followUps
}

// Statuses lists the statuses of pipelineType with their labels.
func (s *Service) Statuses(pipelineType domain.PipelineType) transport.StatusesResponse {
	statuses := domain.StatusesForPipeline(pipelineType)
	options := make([]transport.StatusOption, len(statuses))
	for i, st := range statuses {
		options[i] = transport.StatusOption{Value: st, Label: domain.Label(pipelineType, st)}
	}
	return transport.StatusesResponse{
		PipelineType:  pipelineType,
		PipelineLabel: domain.PipelineLabel(pipelineType),
		Default:       domain.DefaultStatus(pipelineType),
		Statuses:      options,
	}
}

// Board returns the pipeline board of an organization narrowed by the
// user's persisted filters.
func (s *Service) Board(ctx context.Context, organizationID, userID uuid.UUID, pipelineType domain.PipelineType) (transport.BoardResponse, error) {
	key := board.Key(organizationID, pipelineType)
	columns, ok := s.cache.Get(key)
	if !ok {
		loaded, err := s.loadBoard(ctx, organizationID, pipelineType)
		if err != nil {
			return transport.BoardResponse{}, err
		}
		s.cache.Put(key, loaded)
		columns = loaded
	}

	ws := s.workspaces.Get(ctx, userID)
	spec := ws.Filters.Filters()
	visible := filter.Apply(columns, spec)

	return transport.BoardResponse{
		PipelineType:      pipelineType,
		PipelineLabel:     domain.PipelineLabel(pipelineType),
		Columns:           visible,
		Filters:           spec,
		ActiveFilterCount: spec.ActiveCount(),
		SelectedAgent:     ws.Selection.Selected(),
		TotalCount:        countItems(columns),
		VisibleCount:      countItems(visible),
	}, nil
}

func (s *Service) loadBoard(ctx context.Context, organizationID uuid.UUID, pipelineType domain.PipelineType) ([]domain.Column, error) {
	var (
		leads   []repository.Lead
		members []repository.TeamMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leads, err = s.repo.ListByPipeline(gctx, organizationID, pipelineType)
		if err != nil {
			return fmt.Errorf("list leads: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		members, err = s.repo.ListTeamMembers(gctx, organizationID)
		if err != nil {
			return fmt.Errorf("list team members: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.WithContext(ctx).DatabaseError("load_board", err)
		return nil, err
	}

	names := agentNames(members)
	items := make([]domain.Lead, len(leads))
	for i, lead := range leads {
		items[i] = toBoardLead(lead, names)
	}

	columns, stray := domain.GroupByStatus(pipelineType, items)
	if len(stray) > 0 {
		s.log.Warn("leads with a status outside their pipeline left off the board",
			"organizationId", organizationID,
			"pipelineType", pipelineType,
			"count", len(stray),
		)
	}
	return columns, nil
}

// MoveLead changes a lead's status from a board drop.
func (s *Service) MoveLead(ctx context.Context, organizationID, userID uuid.UUID, req transport.MoveLeadRequest) (transport.MoveLeadResponse, error) {
	lead, err := s.getLead(ctx, req.LeadID, organizationID)
	if err != nil {
		return transport.MoveLeadResponse{}, err
	}

	updater := transition.StatusUpdaterFunc(func(ctx context.Context, leadID uuid.UUID, status domain.Status, at time.Time) error {
		return s.repo.UpdateStatus(ctx, leadID, organizationID, status, at)
	})
	orchestrator := transition.NewOrchestrator(s.cache, updater, s.notifier, s.log)

	to := domain.Status(req.ToStatus)
	result, err := orchestrator.Move(ctx, transition.MoveRequest{
		Key:          board.Key(organizationID, lead.PipelineType),
		UserID:       userID,
		LeadID:       lead.ID,
		LeadName:     lead.Name,
		PipelineType: lead.PipelineType,
		From:         lead.Status,
		To:           to,
	})
	resp := transport.MoveLeadResponse{Outcome: string(result.Outcome), Notice: result.Notice}
	if err != nil {
		if appErr, ok := apperr.As(err); ok && result.Notice != nil {
			appErr.WithDetails(resp)
		}
		return resp, err
	}

	if result.Outcome == transition.OutcomeCommitted {
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			OrganizationID: organizationID,
			ActorID:        userID,
			PipelineType:   string(lead.PipelineType),
			OldStatus:      string(lead.Status),
			NewStatus:      string(to),
		})
	}
	return resp, nil
}

// ChangePipelineType moves a lead to another pipeline, correcting its status
// when needed and scheduling a requalification call.
func (s *Service) ChangePipelineType(ctx context.Context, organizationID, userID, leadID uuid.UUID, target domain.PipelineType) (transport.ChangePipelineTypeResponse, error) {
	lead, err := s.getLead(ctx, leadID, organizationID)
	if err != nil {
		return transport.ChangePipelineTypeResponse{}, err
	}
	names, err := s.agentNames(ctx, organizationID)
	if err != nil {
		return transport.ChangePipelineTypeResponse{}, err
	}

	if lead.PipelineType == target {
		return transport.ChangePipelineTypeResponse{
			Lead:    toLeadResponse(lead, names),
			Notices: []notice.Notice{},
		}, nil
	}

	if err := s.repo.UpdatePipelineType(ctx, lead.ID, organizationID, target); err != nil {
		return transport.ChangePipelineTypeResponse{}, mapNotFound(err)
	}
	from, oldStatus := lead.PipelineType, lead.Status

	actions := transition.ActionWriterFunc(func(ctx context.Context, leadID uuid.UUID, action domain.Action) error {
		return s.repo.AppendAction(ctx, leadID, organizationID, action)
	})
	transitioner := transition.NewPipelineTransitioner(actions, s.followUps, s.notifier, s.log)

	result := transitioner.HandlePipelineTypeTransition(ctx, transition.PipelineTypeChange{
		UserID:         userID,
		OrganizationID: organizationID,
		LeadID:         lead.ID,
		LeadName:       lead.Name,
		AssignedTo:     agentID(lead.AssignedAgentID),
		Status:         lead.Status,
		From:           from,
		To:             target,
	}, func(ctx context.Context, status domain.Status) error {
		return s.repo.SetStatus(ctx, lead.ID, organizationID, status)
	})

	s.cache.Invalidate(board.Key(organizationID, from))
	s.cache.Invalidate(board.Key(organizationID, target))

	lead.PipelineType = target
	lead.Status = result.Status
	if result.Action != nil {
		lead.Actions = append(lead.Actions, *result.Action)
	}

	s.bus.Publish(ctx, events.LeadPipelineTypeChanged{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		OrganizationID:  organizationID,
		ActorID:         userID,
		OldPipelineType: string(from),
		NewPipelineType: string(target),
		OldStatus:       string(oldStatus),
		NewStatus:       string(result.Status),
	})

	notices := result.Notices
	if notices == nil {
		notices = []notice.Notice{}
	}
	return transport.ChangePipelineTypeResponse{
		Lead:          toLeadResponse(lead, names),
		Changed:       result.Changed,
		StatusChanged: result.StatusChanged,
		Action:        result.Action,
		Notices:       notices,
	}, nil
}

// Create registers a lead entered by hand.
func (s *Service) Create(ctx context.Context, organizationID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	pipelineType := domain.PipelinePurchase
	if req.PipelineType != "" {
		pipelineType = domain.PipelineType(req.PipelineType)
	}
	status := domain.DefaultStatus(pipelineType)
	if req.Status != "" {
		status = domain.Status(req.Status)
		if !domain.IsStatusValidForPipeline(status, pipelineType) {
			return transport.LeadResponse{}, apperr.Validation(
				fmt.Sprintf("status %q is not valid for pipeline %q", status, pipelineType))
		}
	}

	names, err := s.agentNames(ctx, organizationID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	params := repository.CreateLeadParams{
		OrganizationID:    organizationID,
		Name:              sanitize.Text(req.Name),
		Phone:             phone.NormalizeE164(req.Phone),
		Status:            status,
		PipelineType:      pipelineType,
		Tags:              sanitize.Tags(req.Tags),
		Budget:            strings.TrimSpace(req.Budget),
		DesiredLocation:   sanitize.Text(req.DesiredLocation),
		PurchaseTimeframe: sanitize.Text(req.PurchaseTimeframe),
		PropertyType:      sanitize.Text(req.PropertyType),
	}
	if params.Name == "" {
		return transport.LeadResponse{}, apperr.Validation("name is required")
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		params.Email = &email
	}
	if req.AssignedTo != "" {
		id, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("assignedTo must be a team member id")
		}
		if _, ok := names[id.String()]; !ok {
			return transport.LeadResponse{}, apperr.Validation("assignedTo is not an active team member")
		}
		params.AssignedAgentID = &id
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("create_lead", err)
		return transport.LeadResponse{}, err
	}
	s.cache.Invalidate(board.Key(organizationID, pipelineType))

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		OrganizationID:  organizationID,
		AssignedAgentID: lead.AssignedAgentID,
		PipelineType:    string(lead.PipelineType),
		Status:          string(lead.Status),
	})
	return toLeadResponse(lead, names), nil
}

func (s *Service) GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.getLead(ctx, leadID, organizationID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	names, err := s.agentNames(ctx, organizationID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead, names), nil
}

// Delete soft-deletes a lead and drops the organization's cached boards.
func (s *Service) Delete(ctx context.Context, organizationID, leadID uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, leadID, organizationID); err != nil {
		return mapNotFound(err)
	}
	s.cache.InvalidatePrefix(board.Key(organizationID, ""))
	return nil
}

// TeamMembers lists the agents a board can be filtered on.
func (s *Service) TeamMembers(ctx context.Context, organizationID uuid.UUID) ([]transport.TeamMemberResponse, error) {
	members, err := s.repo.ListTeamMembers(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.TeamMemberResponse, len(members))
	for i, m := range members {
		out[i] = transport.TeamMemberResponse{ID: m.ID, DisplayName: m.DisplayName}
	}
	return out, nil
}

func (s *Service) getLead(ctx context.Context, leadID, organizationID uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID, organizationID)
	if err != nil {
		return repository.Lead{}, mapNotFound(err)
	}
	return lead, nil
}

func (s *Service) agentNames(ctx context.Context, organizationID uuid.UUID) (map[string]string, error) {
	members, err := s.repo.ListTeamMembers(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return agentNames(members), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgLeadNotFound)
	}
	return err
}

func countItems(columns []domain.Column) int {
	n := 0
	for _, col := range columns {
		n += len(col.Items)
	}
	return n
}

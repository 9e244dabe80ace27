// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventNotice                EventType = "notice"
	EventAgentSelectionChanged EventType = "agent-selection-changed"
	EventFollowUpDue           EventType = "followup_due"
	EventBoardInvalidated      EventType = "board_invalidated"
)

// Event represents an SSE event payload
type Event struct {
	Type    EventType `json:"type"`
	LeadID  uuid.UUID `json:"leadId,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	orgID  uuid.UUID
	events chan Event
}

// Service manages SSE connections and event broadcasting
type Service struct {
	log     *logger.Logger
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client   // userID -> clients
	orgMap  map[uuid.UUID][]uuid.UUID // orgID -> userIDs

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		log:     log,
		clients: make(map[uuid.UUID][]*client),
		orgMap:  make(map[uuid.UUID][]uuid.UUID),
		done:    make(chan struct{}),
	}
}

// addClient registers a new client connection
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.userID] = append(s.clients[c.userID], c)

	if c.orgID != uuid.Nil && !containsUser(s.orgMap[c.orgID], c.userID) {
		s.orgMap[c.orgID] = append(s.orgMap[c.orgID], c.userID)
	}
}

// removeClient unregisters a client connection
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
		s.dropFromOrg(c.orgID, c.userID)
	}
}

func (s *Service) dropFromOrg(orgID, userID uuid.UUID) {
	users := s.orgMap[orgID]
	for i, id := range users {
		if id == userID {
			s.orgMap[orgID] = append(users[:i:i], users[i+1:]...)
			break
		}
	}
	if len(s.orgMap[orgID]) == 0 {
		delete(s.orgMap, orgID)
	}
}

// Publish sends an event to a specific user
func (s *Service) Publish(userID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[userID]
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse: event buffer full", "userId", userID, "event", event.Type)
		}
	}

	s.log.Debug("sse: published event", "event", event.Type, "userId", userID, "clients", len(clients))
}

// PublishToOrganization broadcasts an event to all org members
func (s *Service) PublishToOrganization(orgID uuid.UUID, event Event) {
	s.mu.RLock()
	userIDs := make([]uuid.UUID, len(s.orgMap[orgID]))
	copy(userIDs, s.orgMap[orgID])
	s.mu.RUnlock()

	for _, userID := range userIDs {
		s.Publish(userID, event)
	}
}

// Notify pushes a notice to every open stream of userID.
func (s *Service) Notify(_ context.Context, userID uuid.UUID, n notice.Notice) {
	s.Publish(userID, Event{Type: EventNotice, Message: n.Title, Data: n})
}

// ClientCount returns the number of open streams of userID.
func (s *Service) ClientCount(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool), getOrgID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orgID, _ := getOrgID(c)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: userID,
			orgID:  orgID,
			events: make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID, "orgId": orgID})
		c.Writer.Flush()

		s.log.Info("sse: client connected", "userId", userID, "orgId", orgID)

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Info("sse: client disconnected", "userId", userID)
				return
			case <-s.done:
				return
			case event := <-cl.events:
				data, err := json.Marshal(event)
				if err != nil {
					s.log.Error("sse: failed to encode event", "error", err, "event", event.Type)
					continue
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and drops the registered clients. It is
// safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = make(map[uuid.UUID][]*client)
	s.orgMap = make(map[uuid.UUID][]uuid.UUID)
}

func containsUser(users []uuid.UUID, userID uuid.UUID) bool {
	for _, id := range users {
		if id == userID {
			return true
		}
	}
	return false
}

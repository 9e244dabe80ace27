// Package notice defines the user-facing messages emitted by pipeline
// operations and the Notifier that delivers them.
package notice

import (
	"context"

	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Variant selects how a notice is rendered.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a titled message for one user.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Success builds a default notice.
func Success(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive notice.
func Failure(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// Notifier delivers notices to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, n Notice)
}

// LogNotifier writes notices to the log. It is used when no live channel
// is wired.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier backed by log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notice.
func (l *LogNotifier) Notify(_ context.Context, userID uuid.UUID, n Notice) {
	l.log.Info("notice", "userId", userID, "title", n.Title, "description", n.Description, "variant", n.Variant)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify forwards n to every notifier.
func (m Multi) Notify(ctx context.Context, userID uuid.UUID, n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, userID, n)
		}
	}
}

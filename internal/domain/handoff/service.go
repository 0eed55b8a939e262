package handoff

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acilhq/acil/internal/platform/notification"
)

var (
	// ErrAlreadyAcknowledged is returned when a second clinician tries to
	// acknowledge a handoff that has already been signed off.
	ErrAlreadyAcknowledged = errors.New("handoff already acknowledged")

	// ErrOwnHandoff is returned when the author tries to acknowledge their
	// own handoff.
	ErrOwnHandoff = errors.New("a handoff cannot be acknowledged by its author")
)

const maxSectionLength = 4000

type Service struct {
	handoffs Repository
	notifier *notification.Manager
}

func NewService(handoffs Repository, notifier *notification.Manager) *Service {
	return &Service{handoffs: handoffs, notifier: notifier}
}

// Create validates and stores an SBAR record, then emails the workspace
// distribution list that the handoff is ready. Notification delivery is
// best effort.
func (s *Service) Create(ctx context.Context, h *Handoff, workspaceName, authorName, notifyEmail string) error {
	if h.WorkspaceID == uuid.Nil {
		return fmt.Errorf("workspace_id is required")
	}
	if h.AuthorID == uuid.Nil {
		return fmt.Errorf("author_id is required")
	}
	if !h.Shift.Valid() {
		return fmt.Errorf("invalid shift: %s", h.Shift)
	}
	for name, section := range map[string]string{
		"situation":      h.Situation,
		"background":     h.Background,
		"assessment":     h.Assessment,
		"recommendation": h.Recommendation,
	} {
		if strings.TrimSpace(section) == "" {
			return fmt.Errorf("%s is required", name)
		}
		if len(section) > maxSectionLength {
			return fmt.Errorf("%s exceeds %d characters", name, maxSectionLength)
		}
	}
	if h.PatientCount < 0 {
		return fmt.Errorf("patient_count must not be negative")
	}

	if err := s.handoffs.Create(ctx, h); err != nil {
		return err
	}

	if s.notifier != nil && notifyEmail != "" {
		s.notifier.SendFromTemplate(ctx, "handoff-ready", map[string]string{
			"author_name":    authorName,
			"shift":          string(h.Shift),
			"workspace_name": workspaceName,
			"patient_count":  strconv.Itoa(h.PatientCount),
		}, notifyEmail)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	return s.handoffs.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, workspaceID uuid.UUID, shift Shift, limit, offset int) ([]*Handoff, int, error) {
	if shift != "" && !shift.Valid() {
		return nil, 0, fmt.Errorf("invalid shift: %s", shift)
	}
	return s.handoffs.ListByWorkspace(ctx, workspaceID, shift, limit, offset)
}

// Acknowledge records that a receiving clinician has taken over. A handoff
// is acknowledged at most once, and never by its author.
func (s *Service) Acknowledge(ctx context.Context, id, userID uuid.UUID) (*Handoff, error) {
	h, err := s.handoffs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.AcknowledgedBy != nil {
		return nil, ErrAlreadyAcknowledged
	}
	if h.AuthorID == userID {
		return nil, ErrOwnHandoff
	}

	now := time.Now().UTC()
	h.AcknowledgedBy = &userID
	h.AcknowledgedAt = &now
	if err := s.handoffs.SetAcknowledged(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

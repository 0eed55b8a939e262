package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/acilhq/acil/internal/platform/access"
)

// ErrNotAuthor is returned when a non-author without admin rights tries to
// modify someone else's note.
var ErrNotAuthor = errors.New("only the author or a workspace admin may modify this note")

const maxBodyLength = 2000

type Service struct {
	notes Repository
}

func NewService(notes Repository) *Service {
	return &Service{notes: notes}
}

func (s *Service) Create(ctx context.Context, n *Note) error {
	if n.WorkspaceID == uuid.Nil {
		return fmt.Errorf("workspace_id is required")
	}
	if n.AuthorID == uuid.Nil {
		return fmt.Errorf("author_id is required")
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if len(n.Body) > maxBodyLength {
		return fmt.Errorf("body exceeds %d characters", maxBodyLength)
	}
	return s.notes.Create(ctx, n)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	return s.notes.GetByID(ctx, id)
}

func (s *Service) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	return s.notes.ListByWorkspace(ctx, workspaceID, limit, offset)
}

// Update edits a note's content. Only the author or an admin+ member may
// edit; canModify centralizes that rule.
func (s *Service) Update(ctx context.Context, id uuid.UUID, caller *access.Membership, body string, color *string, pinned bool) (*Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(n, caller) {
		return nil, ErrNotAuthor
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required")
	}
	if len(body) > maxBodyLength {
		return nil, fmt.Errorf("body exceeds %d characters", maxBodyLength)
	}

	n.Body = body
	n.Color = color
	n.Pinned = pinned
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, caller *access.Membership) error {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(n, caller) {
		return ErrNotAuthor
	}
	return s.notes.Delete(ctx, id)
}

func canModify(n *Note, caller *access.Membership) bool {
	if caller == nil {
		return false
	}
	if n.AuthorID == caller.UserID {
		return true
	}
	return caller.Role.AtLeast(access.RoleAdmin)
}

package notes

import (
	"time"

	"github.com/google/uuid"
)

// Note maps to the sticky_notes table. Notes belong to a workspace board;
// an optional patient reference pins a note to a chart.
type Note struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	AuthorID    uuid.UUID  `db:"author_id" json:"author_id"`
	Body        string     `db:"body" json:"body"`
	Color       *string    `db:"color" json:"color,omitempty"`
	Pinned      bool       `db:"pinned" json:"pinned"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

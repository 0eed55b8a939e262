package handoff

import (
	"time"

	"github.com/google/uuid"
)

// Shift identifies which rotation a handoff covers.
type Shift string

const (
	ShiftDay   Shift = "day"
	ShiftNight Shift = "night"
)

func (s Shift) Valid() bool {
	return s == ShiftDay || s == ShiftNight
}

// Handoff is an SBAR-structured shift-change record. Once acknowledged by
// the receiving clinician it becomes immutable.
type Handoff struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	WorkspaceID    uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	AuthorID       uuid.UUID  `db:"author_id" json:"author_id"`
	Shift          Shift      `db:"shift" json:"shift"`
	Situation      string     `db:"situation" json:"situation"`
	Background     string     `db:"background" json:"background"`
	Assessment     string     `db:"assessment" json:"assessment"`
	Recommendation string     `db:"recommendation" json:"recommendation"`
	PatientCount   int        `db:"patient_count" json:"patient_count"`
	AcknowledgedBy *uuid.UUID `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

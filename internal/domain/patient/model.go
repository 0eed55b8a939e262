package patient

import (
	"time"

	"github.com/google/uuid"
)

// Status is a patient's position in the ED workflow.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusInTreatment Status = "in_treatment"
	StatusObservation Status = "observation"
	StatusDischarged  Status = "discharged"
)

// Valid reports whether s is a known workflow status.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInTreatment, StatusObservation, StatusDischarged:
		return true
	}
	return false
}

// Patient maps to the patients table. Patients belong to exactly one
// workspace and carry no ACL of their own.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	FullName    string     `db:"full_name" json:"full_name"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	Complaint   string     `db:"complaint" json:"complaint"`
	Bed         *string    `db:"bed" json:"bed,omitempty"`
	Status      Status     `db:"status" json:"status"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// VitalsEntry maps to the vitals_entries table.
type VitalsEntry struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	HeartRate        *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSys *int      `db:"blood_pressure_sys" json:"blood_pressure_sys,omitempty"`
	BloodPressureDia *int      `db:"blood_pressure_dia" json:"blood_pressure_dia,omitempty"`
	Temperature      *float64  `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate  *int      `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	PainScale        *int      `db:"pain_scale" json:"pain_scale,omitempty"`
	Note             *string   `db:"note" json:"note,omitempty"`
	RecordedBy       uuid.UUID `db:"recorded_by" json:"recorded_by"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}

// StatusChange maps to the patient_status_history table. Every transition
// is recorded, whoever made it.
type StatusChange struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	FromStatus Status    `db:"from_status" json:"from_status"`
	ToStatus   Status    `db:"to_status" json:"to_status"`
	ChangedBy  uuid.UUID `db:"changed_by" json:"changed_by"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
	Note       *string   `db:"note" json:"note,omitempty"`
}

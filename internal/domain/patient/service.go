package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acilhq/acil/internal/platform/notification"
)

// Critical thresholds that trigger an alert when a vitals entry crosses
// them. Matched against adult ED escalation criteria.
const (
	criticalSpO2Below      = 90
	criticalHeartRateAbove = 140
	criticalHeartRateBelow = 40
	criticalSysBPBelow     = 80
)

type Service struct {
	patients Repository
	vitals   VitalsRepository
	notifier *notification.Manager
	alertSMS string
}

func NewService(patients Repository, vitals VitalsRepository, notifier *notification.Manager, alertSMS string) *Service {
	return &Service{patients: patients, vitals: vitals, notifier: notifier, alertSMS: alertSMS}
}

// Create registers a patient in the workspace. New patients start waiting
// unless a status is given.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.WorkspaceID == uuid.Nil {
		return fmt.Errorf("workspace_id is required")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.Status == "" {
		p.Status = StatusWaiting
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, status Status, limit, offset int) ([]*Patient, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	return s.patients.ListByWorkspace(ctx, workspaceID, status, limit, offset)
}

// LookupWorkspace backs the access resolver's patient→workspace hop.
func (s *Service) LookupWorkspace(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return s.patients.LookupWorkspace(ctx, patientID)
}

// ChangeStatus moves the patient through the workflow and records the
// transition in the status history.
func (s *Service) ChangeStatus(ctx context.Context, patientID uuid.UUID, to Status, changedBy uuid.UUID, note *string) (*Patient, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q", to)
	}

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.Status == to {
		return p, nil
	}

	from := p.Status
	p.Status = to
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}

	ch := &StatusChange{
		PatientID:  patientID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		ChangedAt:  time.Now().UTC(),
		Note:       note,
	}
	if err := s.patients.AddStatusChange(ctx, ch); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) StatusHistory(ctx context.Context, patientID uuid.UUID) ([]*StatusChange, error) {
	return s.patients.StatusHistory(ctx, patientID)
}

// -- Vitals --

// RecordVitals stores a vitals entry and fires a critical alert when any
// reading crosses the escalation thresholds.
func (s *Service) RecordVitals(ctx context.Context, v *VitalsEntry) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if v.RecordedBy == uuid.Nil {
		return fmt.Errorf("recorded_by is required")
	}
	if v.PainScale != nil && (*v.PainScale < 0 || *v.PainScale > 10) {
		return fmt.Errorf("pain_scale must be between 0 and 10")
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now().UTC()
	}

	if err := s.vitals.Create(ctx, v); err != nil {
		return err
	}

	if vital, value, critical := criticalReading(v); critical && s.notifier != nil && s.alertSMS != "" {
		p, err := s.patients.GetByID(ctx, v.PatientID)
		name, bed := v.PatientID.String(), ""
		if err == nil {
			name = p.FullName
			if p.Bed != nil {
				bed = *p.Bed
			}
		}
		// Alert delivery is best effort; the vitals entry is already saved.
		s.notifier.SendFromTemplate(ctx, "critical-vitals-alert", map[string]string{
			"patient_name": name,
			"bed":          bed,
			"vital":        vital,
			"value":        value,
			"time":         v.RecordedAt.Format("15:04"),
		}, s.alertSMS)
	}

	return nil
}

func criticalReading(v *VitalsEntry) (vital, value string, critical bool) {
	if v.OxygenSaturation != nil && *v.OxygenSaturation < criticalSpO2Below {
		return "SpO2", fmt.Sprintf("%d%%", *v.OxygenSaturation), true
	}
	if v.HeartRate != nil && (*v.HeartRate > criticalHeartRateAbove || *v.HeartRate < criticalHeartRateBelow) {
		return "heart rate", fmt.Sprintf("%d bpm", *v.HeartRate), true
	}
	if v.BloodPressureSys != nil && *v.BloodPressureSys < criticalSysBPBelow {
		return "systolic BP", fmt.Sprintf("%d mmHg", *v.BloodPressureSys), true
	}
	return "", "", false
}

func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VitalsEntry, int, error) {
	return s.vitals.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) RecentVitals(ctx context.Context, patientID uuid.UUID, n int) ([]*VitalsEntry, error) {
	return s.vitals.Recent(ctx, patientID, n)
}

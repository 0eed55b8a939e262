package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/acilhq/acil/internal/platform/access"
	"github.com/acilhq/acil/internal/platform/notification"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	history  []*StatusChange
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) ListByWorkspace(_ context.Context, wsID uuid.UUID, status Status, _, _ int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.WorkspaceID == wsID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) LookupWorkspace(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, ok := m.patients[id]
	if !ok {
		return uuid.Nil, access.ErrNotFound
	}
	return p.WorkspaceID, nil
}

func (m *mockRepo) AddStatusChange(_ context.Context, ch *StatusChange) error {
	ch.ID = uuid.New()
	m.history = append(m.history, ch)
	return nil
}

func (m *mockRepo) StatusHistory(_ context.Context, patientID uuid.UUID) ([]*StatusChange, error) {
	var out []*StatusChange
	for _, ch := range m.history {
		if ch.PatientID == patientID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type mockVitalsRepo struct {
	entries []*VitalsEntry
}

func (m *mockVitalsRepo) Create(_ context.Context, v *VitalsEntry) error {
	v.ID = uuid.New()
	m.entries = append(m.entries, v)
	return nil
}

func (m *mockVitalsRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*VitalsEntry, int, error) {
	var out []*VitalsEntry
	for _, v := range m.entries {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (m *mockVitalsRepo) Recent(_ context.Context, patientID uuid.UUID, n int) ([]*VitalsEntry, error) {
	out, _, _ := m.ListByPatient(context.Background(), patientID, n, 0)
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func newTestService() (*Service, *mockRepo, *mockVitalsRepo, *notification.MockSMSSender) {
	repo := &mockRepo{patients: make(map[uuid.UUID]*Patient)}
	vitals := &mockVitalsRepo{}
	sms := &notification.MockSMSSender{}
	notifier := notification.NewManager(&notification.MockEmailSender{}, sms, notification.NewTemplateEngine())
	return NewService(repo, vitals, notifier, "+15555550100"), repo, vitals, sms
}

func intPtr(v int) *int { return &v }

func TestCreateDefaultsToWaiting(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{WorkspaceID: uuid.New(), FullName: "Jane Roe", Complaint: "chest pain"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusWaiting {
		t.Errorf("status = %q, want waiting", p.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	if err := svc.Create(context.Background(), &Patient{FullName: "Jane"}); err == nil {
		t.Error("missing workspace_id should be rejected")
	}
	if err := svc.Create(context.Background(), &Patient{WorkspaceID: uuid.New(), FullName: " "}); err == nil {
		t.Error("blank full_name should be rejected")
	}
	if err := svc.Create(context.Background(), &Patient{WorkspaceID: uuid.New(), FullName: "Jane", Status: "vanished"}); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestChangeStatusRecordsHistory(t *testing.T) {
	svc, repo, _, _ := newTestService()
	actor := uuid.New()

	p := &Patient{WorkspaceID: uuid.New(), FullName: "Jane Roe"}
	svc.Create(context.Background(), p)

	if _, err := svc.ChangeStatus(context.Background(), p.ID, StatusInTreatment, actor, nil); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), p.ID, StatusDischarged, actor, nil); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}

	history, err := svc.StatusHistory(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].FromStatus != StatusWaiting || history[0].ToStatus != StatusInTreatment {
		t.Errorf("first transition = %s -> %s", history[0].FromStatus, history[0].ToStatus)
	}
	if history[1].FromStatus != StatusInTreatment || history[1].ToStatus != StatusDischarged {
		t.Errorf("second transition = %s -> %s", history[1].FromStatus, history[1].ToStatus)
	}
	if repo.patients[p.ID].Status != StatusDischarged {
		t.Errorf("final status = %q", repo.patients[p.ID].Status)
	}
}

func TestChangeStatusNoopWhenUnchanged(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := &Patient{WorkspaceID: uuid.New(), FullName: "Jane Roe"}
	svc.Create(context.Background(), p)

	if _, err := svc.ChangeStatus(context.Background(), p.ID, StatusWaiting, uuid.New(), nil); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	history, _ := svc.StatusHistory(context.Background(), p.ID)
	if len(history) != 0 {
		t.Errorf("no-op transition should not be recorded, got %d entries", len(history))
	}
}

func TestChangeStatusRejectsUnknown(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.ChangeStatus(context.Background(), uuid.New(), Status("teleported"), uuid.New(), nil); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestRecordVitalsValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	actor := uuid.New()

	if err := svc.RecordVitals(context.Background(), &VitalsEntry{RecordedBy: actor}); err == nil {
		t.Error("missing patient_id should be rejected")
	}
	if err := svc.RecordVitals(context.Background(), &VitalsEntry{PatientID: uuid.New()}); err == nil {
		t.Error("missing recorded_by should be rejected")
	}
	if err := svc.RecordVitals(context.Background(), &VitalsEntry{
		PatientID: uuid.New(), RecordedBy: actor, PainScale: intPtr(14),
	}); err == nil {
		t.Error("pain_scale 14 should be rejected")
	}
}

func TestRecordVitalsSetsTimestamp(t *testing.T) {
	svc, _, vitals, _ := newTestService()

	v := &VitalsEntry{PatientID: uuid.New(), RecordedBy: uuid.New(), HeartRate: intPtr(80)}
	if err := svc.RecordVitals(context.Background(), v); err != nil {
		t.Fatalf("RecordVitals: %v", err)
	}
	if v.RecordedAt.IsZero() {
		t.Error("recorded_at should be defaulted")
	}
	if len(vitals.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(vitals.entries))
	}
}

func TestRecordVitalsCriticalAlert(t *testing.T) {
	svc, _, _, sms := newTestService()

	bed := "ED-4"
	p := &Patient{WorkspaceID: uuid.New(), FullName: "Jane Roe", Bed: &bed}
	svc.Create(context.Background(), p)

	v := &VitalsEntry{PatientID: p.ID, RecordedBy: uuid.New(), OxygenSaturation: intPtr(84)}
	if err := svc.RecordVitals(context.Background(), v); err != nil {
		t.Fatalf("RecordVitals: %v", err)
	}

	calls := sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("sms alerts = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Body, "Jane Roe") || !strings.Contains(calls[0].Body, "SpO2") {
		t.Errorf("alert body = %q", calls[0].Body)
	}
}

func TestRecordVitalsNormalNoAlert(t *testing.T) {
	svc, _, _, sms := newTestService()

	v := &VitalsEntry{
		PatientID:        uuid.New(),
		RecordedBy:       uuid.New(),
		HeartRate:        intPtr(78),
		OxygenSaturation: intPtr(98),
		BloodPressureSys: intPtr(120),
	}
	if err := svc.RecordVitals(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	if len(sms.Calls()) != 0 {
		t.Error("normal vitals should not trigger an alert")
	}
}

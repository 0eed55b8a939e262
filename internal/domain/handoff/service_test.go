package handoff

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/acilhq/acil/internal/platform/notification"
)

type mockRepo struct {
	handoffs map[uuid.UUID]*Handoff
}

func newMockRepo() *mockRepo {
	return &mockRepo{handoffs: make(map[uuid.UUID]*Handoff)}
}

func (m *mockRepo) Create(ctx context.Context, h *Handoff) error {
	h.ID = uuid.New()
	m.handoffs[h.ID] = h
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	h, ok := m.handoffs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *h
	return &cp, nil
}

// SetAcknowledged mirrors the SQL guard: only an unacknowledged row is
// updated, and a no-op update reports ErrAlreadyAcknowledged.
func (m *mockRepo) SetAcknowledged(ctx context.Context, h *Handoff) error {
	stored, ok := m.handoffs[h.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.AcknowledgedBy != nil {
		return ErrAlreadyAcknowledged
	}
	m.handoffs[h.ID] = h
	return nil
}

func (m *mockRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, shift Shift, limit, offset int) ([]*Handoff, int, error) {
	var items []*Handoff
	for _, h := range m.handoffs {
		if h.WorkspaceID != workspaceID {
			continue
		}
		if shift != "" && h.Shift != shift {
			continue
		}
		items = append(items, h)
	}
	return items, len(items), nil
}

func newTestService() (*Service, *notification.MockEmailSender) {
	email := &notification.MockEmailSender{}
	sms := &notification.MockSMSSender{}
	mgr := notification.NewManager(email, sms, notification.NewTemplateEngine())
	return NewService(newMockRepo(), mgr), email
}

func validHandoff(workspaceID, authorID uuid.UUID) *Handoff {
	return &Handoff{
		WorkspaceID:    workspaceID,
		AuthorID:       authorID,
		Shift:          ShiftNight,
		Situation:      "12 patients on the board, two criticals in resus",
		Background:     "bed 3 admitted 19:40 with chest pain, troponin pending",
		Assessment:     "bed 3 likely NSTEMI, bed 7 stable post-reduction",
		Recommendation: "chase troponin for bed 3, re-check vitals bed 7 at 02:00",
		PatientCount:   12,
	}
}

func TestCreateSendsHandoffReadyEmail(t *testing.T) {
	svc, email := newTestService()
	h := validHandoff(uuid.New(), uuid.New())

	if err := svc.Create(context.Background(), h, "Night ED", "Dr. Kaya", "oncall@example.org"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}

	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "oncall@example.org" {
		t.Errorf("recipient = %q", calls[0].To)
	}
	for _, want := range []string{"Dr. Kaya", "night", "Night ED", "12"} {
		if !strings.Contains(calls[0].Body, want) {
			t.Errorf("email body missing %q: %s", want, calls[0].Body)
		}
	}
}

func TestCreateWithoutRecipientSkipsEmail(t *testing.T) {
	svc, email := newTestService()
	h := validHandoff(uuid.New(), uuid.New())

	if err := svc.Create(context.Background(), h, "Night ED", "Dr. Kaya", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := len(email.Calls()); got != 0 {
		t.Errorf("expected no email, got %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*Handoff)
	}{
		{"missing workspace", func(h *Handoff) { h.WorkspaceID = uuid.Nil }},
		{"missing author", func(h *Handoff) { h.AuthorID = uuid.Nil }},
		{"invalid shift", func(h *Handoff) { h.Shift = "swing" }},
		{"blank situation", func(h *Handoff) { h.Situation = "  " }},
		{"blank background", func(h *Handoff) { h.Background = "" }},
		{"blank assessment", func(h *Handoff) { h.Assessment = "" }},
		{"blank recommendation", func(h *Handoff) { h.Recommendation = "" }},
		{"oversized section", func(h *Handoff) { h.Situation = strings.Repeat("x", maxSectionLength+1) }},
		{"negative patient count", func(h *Handoff) { h.PatientCount = -1 }},
	}
	for _, tc := range cases {
		h := validHandoff(uuid.New(), uuid.New())
		tc.mutate(h)
		if err := svc.Create(ctx, h, "ws", "author", ""); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestAcknowledge(t *testing.T) {
	svc, _ := newTestService()
	author := uuid.New()
	h := validHandoff(uuid.New(), author)
	if err := svc.Create(context.Background(), h, "ws", "author", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	receiver := uuid.New()
	got, err := svc.Acknowledge(context.Background(), h.ID, receiver)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if got.AcknowledgedBy == nil || *got.AcknowledgedBy != receiver {
		t.Errorf("AcknowledgedBy = %v, want %v", got.AcknowledgedBy, receiver)
	}
	if got.AcknowledgedAt == nil {
		t.Error("AcknowledgedAt not set")
	}
}

func TestAcknowledgeOnlyOnce(t *testing.T) {
	svc, _ := newTestService()
	h := validHandoff(uuid.New(), uuid.New())
	if err := svc.Create(context.Background(), h, "ws", "author", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Acknowledge(context.Background(), h.ID, uuid.New()); err != nil {
		t.Fatalf("first Acknowledge: %v", err)
	}
	if _, err := svc.Acknowledge(context.Background(), h.ID, uuid.New()); !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Fatalf("expected ErrAlreadyAcknowledged, got %v", err)
	}
}

func TestAcknowledgeRaceLoserGetsConflict(t *testing.T) {
	repo := newMockRepo()
	h := validHandoff(uuid.New(), uuid.New())
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two clinicians read the handoff before either writes; both see it
	// unacknowledged. Only the first write may land.
	first, _ := repo.GetByID(context.Background(), h.ID)
	second, _ := repo.GetByID(context.Background(), h.ID)

	now := time.Now().UTC()
	firstUser, secondUser := uuid.New(), uuid.New()
	first.AcknowledgedBy, first.AcknowledgedAt = &firstUser, &now
	second.AcknowledgedBy, second.AcknowledgedAt = &secondUser, &now

	if err := repo.SetAcknowledged(context.Background(), first); err != nil {
		t.Fatalf("first SetAcknowledged: %v", err)
	}
	if err := repo.SetAcknowledged(context.Background(), second); !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Fatalf("expected ErrAlreadyAcknowledged for the losing write, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), h.ID)
	if stored.AcknowledgedBy == nil || *stored.AcknowledgedBy != firstUser {
		t.Errorf("AcknowledgedBy = %v, want the first acknowledger %v", stored.AcknowledgedBy, firstUser)
	}
}

func TestAuthorCannotAcknowledgeOwn(t *testing.T) {
	svc, _ := newTestService()
	author := uuid.New()
	h := validHandoff(uuid.New(), author)
	if err := svc.Create(context.Background(), h, "ws", "author", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Acknowledge(context.Background(), h.ID, author); !errors.Is(err, ErrOwnHandoff) {
		t.Fatalf("expected ErrOwnHandoff, got %v", err)
	}
}

func TestListRejectsUnknownShift(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.List(context.Background(), uuid.New(), "graveyard", 20, 0); err == nil {
		t.Error("expected error for unknown shift")
	}
}

func TestListFiltersByShift(t *testing.T) {
	svc, _ := newTestService()
	wsID := uuid.New()

	day := validHandoff(wsID, uuid.New())
	day.Shift = ShiftDay
	night := validHandoff(wsID, uuid.New())

	for _, h := range []*Handoff{day, night} {
		if err := svc.Create(context.Background(), h, "ws", "author", ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, total, err := svc.List(context.Background(), wsID, ShiftDay, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Shift != ShiftDay {
		t.Errorf("expected only the day handoff, got %d items", len(items))
	}
}

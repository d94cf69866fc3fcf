package safety

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clavis/clavis/internal/workflow"
)

type mockRepo struct {
	events []*SafetyEvent
	fail   bool
}

func (m *mockRepo) Create(_ context.Context, e *SafetyEvent) error {
	if m.fail {
		return context.DeadlineExceeded
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, e)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, pid uuid.UUID, limit, offset int) ([]*SafetyEvent, int, error) {
	var r []*SafetyEvent
	for _, e := range m.events {
		if e.PatientID != nil && *e.PatientID == pid {
			r = append(r, e)
		}
	}
	return r, len(r), nil
}

func (m *mockRepo) CountBlockedSince(_ context.Context, pid uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, e := range m.events {
		if e.PatientID != nil && *e.PatientID == pid && e.Blocked && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type mockActions struct{ views map[uuid.UUID][]ActionView }

func (m *mockActions) PatientActionViews(_ context.Context, pid uuid.UUID) ([]ActionView, error) {
	return m.views[pid], nil
}

type mockHub struct {
	patient []interface{}
	status  []interface{}
}

func (m *mockHub) BroadcastPatient(_ uuid.UUID, payload interface{}) {
	m.patient = append(m.patient, payload)
}
func (m *mockHub) BroadcastStatus(payload interface{}) { m.status = append(m.status, payload) }

func newTestService(views map[uuid.UUID][]ActionView) (*Service, *mockRepo, *mockHub) {
	repo := &mockRepo{}
	hub := &mockHub{}
	svc := NewService(repo, &mockActions{views: views}, hub, zerolog.Nop())
	return svc, repo, hub
}

func TestRecord_AppendsAndBroadcasts(t *testing.T) {
	svc, repo, hub := newTestService(nil)
	pid := uuid.New()

	event := svc.Record(context.Background(), RecordInput{
		PatientID:   &pid,
		EventType:   " role_violation ",
		Severity:    SeverityWarning,
		Description: " nurse may not dispense ",
		Blocked:     true,
	})
	if event == nil {
		t.Fatal("record returned nil")
	}
	if event.EventType != "ROLE_VIOLATION" || event.Description != "nurse may not dispense" {
		t.Errorf("normalization failed: %+v", event)
	}
	if len(repo.events) != 1 {
		t.Fatalf("events stored = %d", len(repo.events))
	}
	if len(hub.patient) != 1 || len(hub.status) != 1 {
		t.Errorf("broadcasts = %d patient, %d status", len(hub.patient), len(hub.status))
	}
}

func TestRecord_StorageFailureSwallowed(t *testing.T) {
	svc, repo, hub := newTestService(nil)
	repo.fail = true
	pid := uuid.New()

	if event := svc.Record(context.Background(), RecordInput{PatientID: &pid, EventType: "X", Severity: SeverityInfo}); event != nil {
		t.Error("expected nil event on storage failure")
	}
	if len(hub.patient) != 0 {
		t.Error("broadcast despite storage failure")
	}
}

func TestRecord_NoPatientNoBroadcast(t *testing.T) {
	svc, _, hub := newTestService(nil)
	svc.Record(context.Background(), RecordInput{EventType: "X", Severity: SeverityInfo})
	if len(hub.patient) != 0 || len(hub.status) != 0 {
		t.Error("broadcast without a patient reference")
	}
}

func TestMedicationDependencyRule(t *testing.T) {
	med := ActionView{Kind: workflow.KindMedication, State: "DISPENSED"}
	openDiag := ActionView{Kind: workflow.KindDiagnostic, State: "PROCESSING"}
	doneDiag := ActionView{Kind: workflow.KindDiagnostic, State: "COMPLETED"}

	if v := MedicationDependencyRule(med, "ADMINISTERED", []ActionView{openDiag, doneDiag}); v == nil {
		t.Fatal("open diagnostic not flagged")
	} else {
		if v.EventType != EventMedicationDependency || v.Severity != SeverityCritical {
			t.Errorf("violation shape: %+v", v)
		}
		if want := "(1 pending)"; !strings.Contains(v.Message, want) {
			t.Errorf("message %q missing %q", v.Message, want)
		}
	}

	if v := MedicationDependencyRule(med, "ADMINISTERED", []ActionView{doneDiag}); v != nil {
		t.Errorf("completed diagnostics flagged: %+v", v)
	}
	if v := MedicationDependencyRule(med, "DISPENSED", []ActionView{openDiag}); v != nil {
		t.Error("rule fired for non-ADMINISTERED target")
	}

	referral := ActionView{Kind: workflow.KindReferral, State: "INITIATED"}
	if v := MedicationDependencyRule(referral, "ADMINISTERED", []ActionView{openDiag}); v != nil {
		t.Error("rule fired for non-medication action")
	}
}

func TestCheckDependencies_UsesPatientActions(t *testing.T) {
	pid := uuid.New()
	med := ActionView{ID: uuid.New(), Kind: workflow.KindMedication, State: "DISPENSED"}
	views := map[uuid.UUID][]ActionView{
		pid: {med, {Kind: workflow.KindDiagnostic, State: "REQUESTED"}},
	}
	svc, _, _ := newTestService(views)

	v, err := svc.CheckDependencies(context.Background(), med, "ADMINISTERED", pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil {
		t.Fatal("violation not detected")
	}
}

func TestPatientRisk_Weights(t *testing.T) {
	pid := uuid.New()
	past := time.Now().UTC().Add(-time.Hour)
	views := map[uuid.UUID][]ActionView{
		pid: {
			// Overdue (2) + critical unresolved (3), active in Laboratory.
			{Kind: workflow.KindDiagnostic, State: "REQUESTED", Priority: workflow.PriorityCritical, Department: workflow.DeptLaboratory, Deadline: &past},
			// Active in Pharmacy: second distinct department (+1).
			{Kind: workflow.KindMedication, State: "PRESCRIBED", Priority: workflow.PriorityRoutine, Department: workflow.DeptPharmacy},
		},
	}
	svc, repo, _ := newTestService(views)

	// One blocked event inside the trailing 24h window (+5).
	repo.events = append(repo.events, &SafetyEvent{
		PatientID: &pid, Blocked: true, CreatedAt: time.Now().UTC().Add(-time.Hour),
	})

	risk, err := svc.PatientRisk(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := 2 + 3 + 1 + 5; risk.Score != want {
		t.Errorf("score = %d, want %d", risk.Score, want)
	}
	if risk.Level != RiskHigh {
		t.Errorf("level = %s, want HIGH", risk.Level)
	}
}

func TestPatientRisk_Thresholds(t *testing.T) {
	pid := uuid.New()
	svc, _, _ := newTestService(map[uuid.UUID][]ActionView{pid: {}})

	risk, err := svc.PatientRisk(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if risk.Score != 0 || risk.Level != RiskLow {
		t.Errorf("empty patient risk = %+v", risk)
	}
}

func TestDischargeViolations(t *testing.T) {
	pid := uuid.New()
	past := time.Now().UTC().Add(-time.Minute)
	views := map[uuid.UUID][]ActionView{
		pid: {
			{Kind: workflow.KindDiagnostic, State: "REQUESTED", Priority: workflow.PriorityCritical, Department: workflow.DeptLaboratory, Deadline: &past},
			{Kind: workflow.KindReferral, State: "CLOSED", Priority: workflow.PriorityRoutine, Department: workflow.DeptReferral},
		},
	}
	svc, _, _ := newTestService(views)

	violations, err := svc.DischargeViolations(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 3 {
		t.Errorf("violations = %v, want active/critical/overdue", violations)
	}
}

func TestCheckInteractions(t *testing.T) {
	warnings := CheckInteractions("Warfarin 5mg daily", []string{"Aspirin 81mg", "Metformin 500mg"})
	if len(warnings) != 1 {
		t.Fatalf("warnings = %+v", warnings)
	}
	if warnings[0].NewDrug != "warfarin" || warnings[0].ExistingDrug != "aspirin" {
		t.Errorf("unexpected pair: %+v", warnings[0])
	}

	if warnings := CheckInteractions("Amoxicillin course", []string{"Vitamin D"}); len(warnings) != 0 {
		t.Errorf("false positive: %+v", warnings)
	}
}

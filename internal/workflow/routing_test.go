package workflow

import (
	"reflect"
	"testing"
)

func TestDefaultDepartment_Override(t *testing.T) {
	if got := DefaultDepartment(KindMedication, "", "  ICU Pharmacy "); got != "ICU Pharmacy" {
		t.Errorf("override not honored: %q", got)
	}
}

func TestDefaultDepartment_RadiologyKeywords(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Chest X-Ray", DeptRadiology},
		{"CT abdomen", DeptRadiology},
		{"Brain MRI follow-up", DeptRadiology},
		{"Bedside ultrasound", DeptRadiology},
		{"Bone scan", DeptRadiology},
		{"CBC panel", DeptLaboratory},
		{"Blood culture", DeptLaboratory},
	}
	for _, tc := range cases {
		if got := DefaultDepartment(KindDiagnostic, tc.title, ""); got != tc.want {
			t.Errorf("DefaultDepartment(diagnostic, %q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestDefaultDepartment_ByKind(t *testing.T) {
	cases := map[ActionKind]string{
		KindMedication:      DeptPharmacy,
		KindReferral:        DeptReferral,
		KindCareInstruction: DeptNursing,
		KindVitalsRequest:   DeptNursing,
	}
	for kind, want := range cases {
		if got := DefaultDepartment(kind, "", ""); got != want {
			t.Errorf("DefaultDepartment(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestQueueDepartments_TerminalRoutesNowhere(t *testing.T) {
	a := RoutedAction{Kind: KindDiagnostic, State: "COMPLETED", Department: DeptLaboratory}
	if got := QueueDepartments(a, ""); len(got) != 0 {
		t.Errorf("terminal action routed to %v", got)
	}

	custom := RoutedAction{IsCustom: true, State: "DONE", Department: "Bloodbank"}
	if got := QueueDepartments(custom, "DONE"); len(got) != 0 {
		t.Errorf("terminal custom action routed to %v", got)
	}
}

func TestQueueDepartments_MedicationStates(t *testing.T) {
	a := RoutedAction{Kind: KindMedication, State: "PRESCRIBED", Department: DeptPharmacy}
	if got := QueueDepartments(a, ""); !reflect.DeepEqual(got, []string{DeptPharmacy}) {
		t.Errorf("PRESCRIBED routed to %v", got)
	}
	a.State = "DISPENSED"
	if got := QueueDepartments(a, ""); !reflect.DeepEqual(got, []string{DeptNursing}) {
		t.Errorf("DISPENSED routed to %v", got)
	}
}

func TestQueueDepartments_CustomSingleton(t *testing.T) {
	a := RoutedAction{IsCustom: true, State: "MATCHED", Department: "Bloodbank"}
	if got := QueueDepartments(a, "COMPLETED"); !reflect.DeepEqual(got, []string{"Bloodbank"}) {
		t.Errorf("custom action routed to %v", got)
	}
}

func TestQueueDepartments_NursingKinds(t *testing.T) {
	for _, kind := range []ActionKind{KindCareInstruction, KindVitalsRequest} {
		a := RoutedAction{Kind: kind, State: "ISSUED", Department: DeptNursing}
		if got := QueueDepartments(a, ""); !reflect.DeepEqual(got, []string{DeptNursing}) {
			t.Errorf("%s routed to %v", kind, got)
		}
	}
}

func TestQueueDepartments_DiagnosticDefaults(t *testing.T) {
	a := RoutedAction{Kind: KindDiagnostic, State: "REQUESTED", Department: DeptRadiology}
	if got := QueueDepartments(a, ""); !reflect.DeepEqual(got, []string{DeptRadiology}) {
		t.Errorf("configured department ignored: %v", got)
	}
	a.Department = ""
	if got := QueueDepartments(a, ""); !reflect.DeepEqual(got, []string{DeptLaboratory}) {
		t.Errorf("empty department fallback: %v", got)
	}
}

func TestPrimaryQueueDepartment_FallsBackToStatic(t *testing.T) {
	a := RoutedAction{Kind: KindReferral, State: "CLOSED", Department: DeptReferral}
	if got := PrimaryQueueDepartment(a, ""); got != DeptReferral {
		t.Errorf("PrimaryQueueDepartment = %q", got)
	}
}

func TestDepartmentMatches_CaseInsensitive(t *testing.T) {
	if !DepartmentMatches("pharmacy", []string{"Pharmacy", "Nursing"}) {
		t.Error("case-insensitive match failed")
	}
	if DepartmentMatches("ICU", []string{"Pharmacy"}) {
		t.Error("unexpected match")
	}
}

package workflow

import "testing"

func TestRoleSet_AdminImplicit(t *testing.T) {
	set := NewRoleSet(RoleNurse)
	if !set.Contains(RoleAdmin) {
		t.Error("ADMIN not implicitly allowed")
	}
	if set.Contains(RoleDoctor) {
		t.Error("DOCTOR unexpectedly allowed")
	}
}

func TestRolesAllowedFor_Diagnostic(t *testing.T) {
	lab := AuthScope{Kind: KindDiagnostic, Department: DeptLaboratory}
	set := RolesAllowedFor(lab, "SAMPLE_COLLECTED")
	if !set.Contains(RoleLabTech) {
		t.Error("lab tech denied on laboratory diagnostic")
	}
	if set.Contains(RoleNurse) {
		t.Error("nurse allowed on laboratory diagnostic")
	}

	rad := AuthScope{Kind: KindDiagnostic, Department: DeptRadiology}
	set = RolesAllowedFor(rad, "SAMPLE_COLLECTED")
	if !set.Contains(RoleRadiologist) {
		t.Error("radiologist denied on radiology diagnostic")
	}
	if set.Contains(RoleLabTech) {
		t.Error("lab tech allowed on radiology diagnostic")
	}

	// CANCELLED is doctor/admin regardless of department.
	set = RolesAllowedFor(rad, "CANCELLED")
	if !set.Contains(RoleDoctor) || set.Contains(RoleRadiologist) {
		t.Errorf("cancel roles wrong: %v", set.Roles())
	}
}

func TestRolesAllowedFor_Medication(t *testing.T) {
	a := AuthScope{Kind: KindMedication, Department: DeptPharmacy}

	if set := RolesAllowedFor(a, "DISPENSED"); !set.Contains(RolePharmacist) || set.Contains(RoleNurse) {
		t.Errorf("DISPENSED roles: %v", set.Roles())
	}
	if set := RolesAllowedFor(a, "ADMINISTERED"); !set.Contains(RoleNurse) || set.Contains(RolePharmacist) {
		t.Errorf("ADMINISTERED roles: %v", set.Roles())
	}
	if set := RolesAllowedFor(a, "CANCELLED"); !set.Contains(RoleDoctor) {
		t.Errorf("CANCELLED roles: %v", set.Roles())
	}
}

func TestRolesAllowedFor_Referral(t *testing.T) {
	a := AuthScope{Kind: KindReferral, Department: DeptReferral}
	for _, state := range []string{"ACKNOWLEDGED", "REVIEWED", "CLOSED"} {
		set := RolesAllowedFor(a, state)
		if !set.Contains(RoleDoctor) || set.Contains(RoleNurse) {
			t.Errorf("%s roles: %v", state, set.Roles())
		}
	}
}

func TestRolesAllowedFor_NursingKinds(t *testing.T) {
	for _, kind := range []ActionKind{KindCareInstruction, KindVitalsRequest} {
		a := AuthScope{Kind: kind, Department: DeptNursing}
		if set := RolesAllowedFor(a, "ACKNOWLEDGED"); !set.Contains(RoleNurse) {
			t.Errorf("%s: nurse denied", kind)
		}
		// Cancellation additionally allows the nurse.
		if set := RolesAllowedFor(a, "CANCELLED"); !set.Contains(RoleNurse) || !set.Contains(RoleDoctor) {
			t.Errorf("%s cancel roles: %v", kind, set.Roles())
		}
	}
}

func TestRolesAllowedFor_CustomUsesDepartmentRole(t *testing.T) {
	a := AuthScope{IsCustom: true, Department: "Pharmacy"}
	for _, state := range []string{"ORDERED", "MATCHED", "COMPLETED"} {
		set := RolesAllowedFor(a, state)
		if !set.Contains(RolePharmacist) {
			t.Errorf("pharmacist denied on custom pharmacy workflow at %s", state)
		}
		if set.Contains(RoleNurse) {
			t.Errorf("nurse allowed on custom pharmacy workflow at %s", state)
		}
	}

	// Unknown department falls back to the doctor role.
	unknown := AuthScope{IsCustom: true, Department: "Bloodbank"}
	if set := RolesAllowedFor(unknown, "ORDERED"); !set.Contains(RoleDoctor) {
		t.Error("doctor denied on unmapped custom department")
	}
}

func TestCanAccessDepartmentQueue(t *testing.T) {
	if !CanAccessDepartmentQueue(RoleAdmin, "anything") {
		t.Error("admin denied queue access")
	}
	if !CanAccessDepartmentQueue(RolePharmacist, "Pharmacy") {
		t.Error("pharmacist denied pharmacy queue")
	}
	if CanAccessDepartmentQueue(RolePharmacist, "Nursing") {
		t.Error("pharmacist allowed nursing queue")
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole(" nurse ") != RoleNurse {
		t.Error("ParseRole failed to normalize")
	}
}

package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/penang-gov/surveillance/internal/shared/types"
)

func testPatient() Patient {
	dob := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)
	return Patient{
		Name:        "Ahmad bin Abdullah",
		MyKad:       types.MyKad("850615071234"),
		DateOfBirth: &dob,
		Age:         types.Age{Years: 38, Months: 11},
		Sex:         SexMale,
		District:    DistrictTimurLaut,
	}
}

// TestNewCase tests case registration
func TestNewCase(t *testing.T) {
	c, err := NewCase(testPatient(), Clinical{Fever: true, Rash: true}, "Dr Lim")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if c.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}

	if !strings.HasPrefix(c.CaseNumber, "MSL-") {
		t.Errorf("Unexpected case number %q", c.CaseNumber)
	}

	if c.Status != CaseStatusPendingEpi {
		t.Errorf("Expected status %s, got %s", CaseStatusPendingEpi, c.Status)
	}

	if c.Classification != ClassificationPending {
		t.Errorf("Expected classification %s, got %s", ClassificationPending, c.Classification)
	}

	if c.Findings.IgM != IgMPending || c.Findings.PCR != PCRNotDone {
		t.Errorf("Expected untouched findings, got %+v", c.Findings)
	}

	// Should have registration event
	if len(c.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(c.Events))
	}
	if c.Events[0].Type != CaseEventTypeRegistered {
		t.Errorf("Expected event type %s, got %s", CaseEventTypeRegistered, c.Events[0].Type)
	}
}

// TestNewCaseValidation tests required fields on registration
func TestNewCaseValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Patient)
		expectError bool
	}{
		{"Valid", func(p *Patient) {}, false},
		{"Empty name", func(p *Patient) { p.Name = "" }, true},
		{"Unknown district", func(p *Patient) { p.District = "Kuala Lumpur" }, true},
		{"Empty district", func(p *Patient) { p.District = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPatient()
			tt.mutate(&p)

			_, err := NewCase(p, Clinical{}, "Dr Lim")
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// TestFinalize tests the single status transition
func TestFinalize(t *testing.T) {
	c, _ := NewCase(testPatient(), Clinical{Fever: true, Rash: true}, "Dr Lim")

	findings := Findings{IgM: IgMPositive, PCR: PCRNotDone, EpiLink: EpiLinkNo}
	if err := c.Finalize(findings, "Dr Tan"); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}

	if c.Status != CaseStatusFinalized {
		t.Errorf("Expected status %s, got %s", CaseStatusFinalized, c.Status)
	}
	if c.Classification != ClassificationLabConfirmed {
		t.Errorf("Expected classification %s, got %s", ClassificationLabConfirmed, c.Classification)
	}
	if c.Investigator != "Dr Tan" {
		t.Errorf("Expected investigator to be recorded, got %q", c.Investigator)
	}
	if c.FinalizedAt == nil {
		t.Error("Expected finalized timestamp")
	}

	// Finalized is terminal
	if err := c.Finalize(findings, "Dr Tan"); err == nil {
		t.Error("Expected error finalizing twice")
	}
}

// TestFinalizeRejectsInvalidFindings tests enum enforcement on finalize
func TestFinalizeRejectsInvalidFindings(t *testing.T) {
	c, _ := NewCase(testPatient(), Clinical{}, "Dr Lim")

	err := c.Finalize(Findings{IgM: "unsure", PCR: PCRNotDone, EpiLink: EpiLinkNo}, "Dr Tan")
	if err == nil {
		t.Fatal("Expected error for invalid findings")
	}
	if c.Status != CaseStatusPendingEpi {
		t.Errorf("Case should remain pending, got %s", c.Status)
	}
}

// TestAttachLabResult tests LIMS result import on a pending case
func TestAttachLabResult(t *testing.T) {
	c, _ := NewCase(testPatient(), Clinical{Fever: true, Rash: true}, "Dr Lim")

	if err := c.AttachLabResult("igm", true, "state-lab"); err != nil {
		t.Fatalf("Failed to attach result: %v", err)
	}
	if c.Findings.IgM != IgMPositive {
		t.Errorf("Expected IgM positive, got %s", c.Findings.IgM)
	}

	if err := c.AttachLabResult("pcr", false, "state-lab"); err != nil {
		t.Fatalf("Failed to attach result: %v", err)
	}
	if c.Findings.PCR != PCRNegative {
		t.Errorf("Expected PCR negative, got %s", c.Findings.PCR)
	}

	if err := c.AttachLabResult("culture", true, "state-lab"); err == nil {
		t.Error("Expected error for unknown test")
	}

	// Attaching a result must not classify the case
	if c.Classification != ClassificationPending {
		t.Errorf("Expected classification to stay pending, got %s", c.Classification)
	}

	// Finalized cases reject new results
	c.Finalize(Findings{IgM: IgMPositive, PCR: PCRNegative, EpiLink: EpiLinkNo}, "Dr Tan")
	if err := c.AttachLabResult("pcr", true, "state-lab"); err == nil {
		t.Error("Expected error attaching result to finalized case")
	}
}

// TestIsMinor tests the structured minor check on the aggregate
func TestIsMinor(t *testing.T) {
	p := testPatient()
	p.Age = types.Age{Years: 12, Months: 4}
	c, _ := NewCase(p, Clinical{}, "Dr Lim")
	if !c.IsMinor() {
		t.Error("Expected 12-year-old to be a minor")
	}

	p.Age = types.Age{Years: 18, Months: 0}
	c, _ = NewCase(p, Clinical{}, "Dr Lim")
	if c.IsMinor() {
		t.Error("Expected 18-year-old not to be a minor")
	}
}

// TestDistrictValid tests the district whitelist
func TestDistrictValid(t *testing.T) {
	for _, d := range Districts {
		if !d.Valid() {
			t.Errorf("Expected %q to be valid", d)
		}
	}
	if District("Georgetown").Valid() {
		t.Error("Expected unknown district to be invalid")
	}
}

package domain

import "testing"

// TestClassify tests the classification precedence
func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		findings Findings
		want     Classification
	}{
		{
			"PCR positive alone confirms",
			Findings{IgM: IgMNegative, PCR: PCRPositive, EpiLink: EpiLinkNo},
			ClassificationLabConfirmed,
		},
		{
			"IgM positive alone confirms",
			Findings{IgM: IgMPositive, PCR: PCRNotDone, EpiLink: EpiLinkNo},
			ClassificationLabConfirmed,
		},
		{
			"Both positive confirms",
			Findings{IgM: IgMPositive, PCR: PCRPositive, EpiLink: EpiLinkYes},
			ClassificationLabConfirmed,
		},
		{
			"Positive lab wins over epi link",
			Findings{IgM: IgMNegative, PCR: PCRPositive, EpiLink: EpiLinkYes},
			ClassificationLabConfirmed,
		},
		{
			"Epi link with results pending",
			Findings{IgM: IgMPending, PCR: PCRNotDone, EpiLink: EpiLinkYes},
			ClassificationEpiLinked,
		},
		{
			"Epi link with negative results",
			Findings{IgM: IgMNegative, PCR: PCRNegative, EpiLink: EpiLinkYes},
			ClassificationEpiLinked,
		},
		{
			"All negative discards",
			Findings{IgM: IgMNegative, PCR: PCRNegative, EpiLink: EpiLinkNo},
			ClassificationDiscarded,
		},
		{
			"Pending results and no link discards",
			Findings{IgM: IgMPending, PCR: PCRNotDone, EpiLink: EpiLinkNo},
			ClassificationDiscarded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.findings.Classify()
			if got != tt.want {
				t.Errorf("Classify(%+v) = %s, want %s", tt.findings, got, tt.want)
			}
		})
	}
}

// TestFindingsValidate tests enum enforcement at the boundary
func TestFindingsValidate(t *testing.T) {
	tests := []struct {
		name        string
		findings    Findings
		expectError bool
	}{
		{"Valid", Findings{IgM: IgMPending, PCR: PCRNotDone, EpiLink: EpiLinkNo}, false},
		{"Bad IgM", Findings{IgM: "maybe", PCR: PCRNotDone, EpiLink: EpiLinkNo}, true},
		{"Bad PCR", Findings{IgM: IgMPending, PCR: "inconclusive", EpiLink: EpiLinkNo}, true},
		{"Bad epi link", Findings{IgM: IgMPending, PCR: PCRNotDone, EpiLink: "unsure"}, true},
		{"Empty", Findings{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.findings.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// TestClassificationDisplay tests the linelist labels
func TestClassificationDisplay(t *testing.T) {
	tests := []struct {
		c    Classification
		want string
	}{
		{ClassificationLabConfirmed, "Lab Confirmed Measles"},
		{ClassificationEpiLinked, "Epi Linked Measles"},
		{ClassificationDiscarded, "Discarded"},
		{ClassificationPending, "Pending"},
	}

	for _, tt := range tests {
		if got := tt.c.Display(); got != tt.want {
			t.Errorf("Display(%s) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

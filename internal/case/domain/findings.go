package domain

import "fmt"

// LabIgM is the serology result state
type LabIgM string

const (
	IgMPending  LabIgM = "pending"
	IgMPositive LabIgM = "positive"
	IgMNegative LabIgM = "negative"
)

// Valid reports whether the value is one of the known IgM states
func (v LabIgM) Valid() bool {
	switch v {
	case IgMPending, IgMPositive, IgMNegative:
		return true
	}
	return false
}

// LabPCR is the PCR result state
type LabPCR string

const (
	PCRNotDone  LabPCR = "not_done"
	PCRPositive LabPCR = "positive"
	PCRNegative LabPCR = "negative"
)

// Valid reports whether the value is one of the known PCR states
func (v LabPCR) Valid() bool {
	switch v {
	case PCRNotDone, PCRPositive, PCRNegative:
		return true
	}
	return false
}

// EpiLink records whether the patient had contact with a confirmed case
type EpiLink string

const (
	EpiLinkYes EpiLink = "yes"
	EpiLinkNo  EpiLink = "no"
)

// Valid reports whether the value is a known epi-link state
func (v EpiLink) Valid() bool {
	return v == EpiLinkYes || v == EpiLinkNo
}

// Findings holds the investigation inputs recorded by the epidemiologist
type Findings struct {
	IgM     LabIgM  `json:"lab_igm"`
	PCR     LabPCR  `json:"lab_pcr"`
	EpiLink EpiLink `json:"epi_link"`
}

// Validate rejects out-of-enum values before they reach classification
func (f Findings) Validate() error {
	if !f.IgM.Valid() {
		return fmt.Errorf("invalid IgM result %q", f.IgM)
	}
	if !f.PCR.Valid() {
		return fmt.Errorf("invalid PCR result %q", f.PCR)
	}
	if !f.EpiLink.Valid() {
		return fmt.Errorf("invalid epi link %q", f.EpiLink)
	}
	return nil
}

// Classification is the final case label
type Classification string

const (
	ClassificationPending      Classification = "pending"
	ClassificationLabConfirmed Classification = "lab_confirmed_measles"
	ClassificationEpiLinked    Classification = "epi_linked_measles"
	ClassificationDiscarded    Classification = "discarded"
)

// Display returns the label used on the printed linelist
func (c Classification) Display() string {
	switch c {
	case ClassificationLabConfirmed:
		return "Lab Confirmed Measles"
	case ClassificationEpiLinked:
		return "Epi Linked Measles"
	case ClassificationDiscarded:
		return "Discarded"
	default:
		return "Pending"
	}
}

// Classify derives the final classification. The rules are ordered and the
// order is load-bearing: any positive lab result confirms the case no matter
// what the epi link says; an epi link only carries the case when no lab
// result is positive, including when results are still pending or not done.
func (f Findings) Classify() Classification {
	if f.PCR == PCRPositive || f.IgM == IgMPositive {
		return ClassificationLabConfirmed
	}
	if f.EpiLink == EpiLinkYes {
		return ClassificationEpiLinked
	}
	return ClassificationDiscarded
}

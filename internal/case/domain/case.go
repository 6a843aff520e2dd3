package domain

import (
	"fmt"
	"time"

	"github.com/penang-gov/surveillance/internal/shared/types"
)

// CaseStatus defines the workflow phase of a case
type CaseStatus string

const (
	// CaseStatusPendingEpi means the case awaits epidemiologist investigation
	CaseStatusPendingEpi CaseStatus = "pending_epi"
	// CaseStatusFinalized is terminal; findings and classification are locked
	CaseStatusFinalized CaseStatus = "finalized"
)

// District is a Penang health district
type District string

const (
	DistrictTimurLaut District = "Timur Laut"
	DistrictBaratDaya District = "Barat Daya"
	DistrictSPU       District = "Seberang Perai Utara"
	DistrictSPT       District = "Seberang Perai Tengah"
	DistrictSPS       District = "Seberang Perai Selatan"
)

// Districts lists all health districts in reporting order
var Districts = []District{
	DistrictTimurLaut,
	DistrictBaratDaya,
	DistrictSPU,
	DistrictSPT,
	DistrictSPS,
}

// Valid reports whether the district is one of the five health districts
func (d District) Valid() bool {
	for _, known := range Districts {
		if d == known {
			return true
		}
	}
	return false
}

// Sex is the patient's recorded sex
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Patient holds the demographic fields from the registration form
type Patient struct {
	Name        string        `json:"name"`
	MyKad       types.MyKad   `json:"mykad,omitempty"`
	DateOfBirth *time.Time    `json:"date_of_birth,omitempty"`
	Age         types.Age     `json:"age"`
	Sex         Sex           `json:"sex,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	District    District      `json:"district"`
	Address     types.Address `json:"address"`
}

// Clinical holds the presenting-illness fields from the registration form
type Clinical struct {
	Fever      bool       `json:"fever"`
	FeverOnset *time.Time `json:"fever_onset,omitempty"`
	Rash       bool       `json:"rash"`
	RashOnset  *time.Time `json:"rash_onset,omitempty"`
	Complaint  string     `json:"complaint,omitempty"`
}

// Case is the aggregate root for a suspected measles case
type Case struct {
	ID         types.ID   `json:"id"`
	CaseNumber string     `json:"case_number"`
	Status     CaseStatus `json:"status"`

	Patient  Patient  `json:"patient"`
	Clinical Clinical `json:"clinical"`

	// Investigation outcome
	Findings       Findings       `json:"findings"`
	Classification Classification `json:"classification"`
	Investigator   string         `json:"investigator,omitempty"`
	FinalizedAt    *time.Time     `json:"finalized_at,omitempty"`

	Events []CaseEvent `json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCase registers a suspected case from the clinical entry form.
// The case enters the workflow awaiting investigation, with lab results
// pending and classification undecided.
func NewCase(patient Patient, clinical Clinical, reportedBy string) (*Case, error) {
	if patient.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if !patient.District.Valid() {
		return nil, fmt.Errorf("unknown district %q", patient.District)
	}

	now := time.Now()
	c := &Case{
		ID:         types.NewID(),
		CaseNumber: generateCaseNumber(now),
		Status:     CaseStatusPendingEpi,
		Patient:    patient,
		Clinical:   clinical,
		Findings: Findings{
			IgM:     IgMPending,
			PCR:     PCRNotDone,
			EpiLink: EpiLinkNo,
		},
		Classification: ClassificationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	c.addEvent(CaseEventTypeRegistered, reportedBy, "clinician",
		fmt.Sprintf("Case registered in %s", patient.District), nil)

	return c, nil
}

// Finalize records the epidemiologist's findings and locks the case.
// The classification is derived from the findings; it is never supplied
// by the caller.
func (c *Case) Finalize(findings Findings, investigator string) error {
	if c.Status != CaseStatusPendingEpi {
		return fmt.Errorf("case %s is already finalized", c.CaseNumber)
	}
	if err := findings.Validate(); err != nil {
		return err
	}

	now := time.Now()
	c.Findings = findings
	c.Classification = findings.Classify()
	c.Investigator = investigator
	c.Status = CaseStatusFinalized
	c.FinalizedAt = &now
	c.UpdatedAt = now

	c.addEvent(CaseEventTypeFinalized, investigator, "epidemiologist",
		fmt.Sprintf("Case finalized as %s", c.Classification.Display()), map[string]any{
			"lab_igm":        findings.IgM,
			"lab_pcr":        findings.PCR,
			"epi_link":       findings.EpiLink,
			"classification": c.Classification,
		})

	return nil
}

// AttachLabResult records a result imported from the LIMS on a pending case.
// Results arriving after finalization are rejected; the epidemiologist has
// already ruled and a correction needs a manual process.
func (c *Case) AttachLabResult(test string, positive bool, source string) error {
	if c.Status != CaseStatusPendingEpi {
		return fmt.Errorf("case %s is finalized; lab result not attached", c.CaseNumber)
	}

	switch test {
	case "igm":
		if positive {
			c.Findings.IgM = IgMPositive
		} else {
			c.Findings.IgM = IgMNegative
		}
	case "pcr":
		if positive {
			c.Findings.PCR = PCRPositive
		} else {
			c.Findings.PCR = PCRNegative
		}
	default:
		return fmt.Errorf("unknown test %q", test)
	}

	c.UpdatedAt = time.Now()
	c.addEvent(CaseEventTypeLabResult, source, "system",
		fmt.Sprintf("Lab result attached: %s", test), map[string]any{
			"test":     test,
			"positive": positive,
		})

	return nil
}

// IsMinor reports whether the patient was a minor at registration
func (c *Case) IsMinor() bool {
	return c.Patient.Age.IsMinor()
}

// addEvent appends a timeline event
func (c *Case) addEvent(eventType CaseEventType, actor, actorRole, description string, data map[string]any) {
	c.Events = append(c.Events, CaseEvent{
		ID:          types.NewID(),
		CaseID:      c.ID,
		Type:        eventType,
		Actor:       actor,
		ActorRole:   actorRole,
		Description: description,
		Data:        data,
		Timestamp:   time.Now(),
	})
}

// generateCaseNumber generates a case number in the MSL-YEAR-SEQ form
func generateCaseNumber(now time.Time) string {
	// In production this would use a database sequence
	seq := now.UnixNano() % 1000000
	return fmt.Sprintf("MSL-%d-%06d", now.Year(), seq)
}

// CaseEventType defines types of case timeline events
type CaseEventType string

const (
	CaseEventTypeRegistered CaseEventType = "registered"
	CaseEventTypeLabResult  CaseEventType = "lab_result_attached"
	CaseEventTypeFinalized  CaseEventType = "finalized"
)

// CaseEvent represents an event in the case timeline
type CaseEvent struct {
	ID          types.ID       `json:"id"`
	CaseID      types.ID       `json:"case_id"`
	Type        CaseEventType  `json:"type"`
	Actor       string         `json:"actor"`
	ActorRole   string         `json:"actor_role"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

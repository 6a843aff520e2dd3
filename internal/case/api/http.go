package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/penang-gov/surveillance/internal/auth"
	"github.com/penang-gov/surveillance/internal/case/domain"
	"github.com/penang-gov/surveillance/internal/shared/errors"
	"github.com/penang-gov/surveillance/internal/shared/events"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
	"github.com/penang-gov/surveillance/internal/shared/types"
)

// Handler provides HTTP handlers for the case module
type Handler struct {
	repo domain.Repository
	bus  events.EventBus

	// now supplies the reference date for identity derivation; injectable
	// so derivation is deterministic in tests
	now func() time.Time
}

// NewHandler creates a new case handler
func NewHandler(repo domain.Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus, now: time.Now}
}

// Routes registers the case routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequirePermission(auth.PermCaseRead)).Get("/", h.ListCases)
	r.With(auth.RequirePermission(auth.PermCaseRegister)).Post("/", h.RegisterCase)
	r.With(auth.RequirePermission(auth.PermCaseRegister)).Post("/derive", h.DeriveIdentity)

	r.Route("/{caseID}", func(r chi.Router) {
		r.With(auth.RequirePermission(auth.PermCaseRead)).Get("/", h.GetCase)
		r.With(auth.RequirePermission(auth.PermCaseRead)).Get("/events", h.GetEvents)
		r.With(auth.RequirePermission(auth.PermCaseFinalize)).Post("/finalize", h.FinalizeCase)
	})

	return r
}

// --- Request/Response types ---

type AddressPayload struct {
	Line       string  `json:"line,omitempty"`
	City       string  `json:"city,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

type RegisterCaseRequest struct {
	Name        string          `json:"name"`
	MyKad       string          `json:"mykad,omitempty"`
	DateOfBirth string          `json:"date_of_birth,omitempty"` // YYYY-MM-DD, manual fallback
	Sex         string          `json:"sex,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	District    domain.District `json:"district"`
	Address     AddressPayload  `json:"address"`
	Fever       bool            `json:"fever"`
	FeverOnset  string          `json:"fever_onset,omitempty"`
	Rash        bool            `json:"rash"`
	RashOnset   string          `json:"rash_onset,omitempty"`
	Complaint   string          `json:"complaint,omitempty"`
	ReportedBy  string          `json:"reported_by"`
}

type DeriveIdentityRequest struct {
	MyKad string `json:"mykad"`
}

type DeriveIdentityResponse struct {
	MyKad       string     `json:"mykad"`
	Valid       bool       `json:"valid"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Age         *types.Age `json:"age,omitempty"`
	AgeDisplay  string     `json:"age_display,omitempty"`
	IsMinor     bool       `json:"is_minor"`
}

type FinalizeCaseRequest struct {
	LabIgM       domain.LabIgM  `json:"lab_igm"`
	LabPCR       domain.LabPCR  `json:"lab_pcr"`
	EpiLink      domain.EpiLink `json:"epi_link"`
	Investigator string         `json:"investigator"`
}

// --- Handlers ---

// DeriveIdentity previews the DOB and age encoded in a MyKad number so the
// entry form can pre-populate. A malformed identifier is a valid response
// with Valid=false, not an error; the form falls back to manual date entry.
func (h *Handler) DeriveIdentity(w http.ResponseWriter, r *http.Request) {
	var req DeriveIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	normalized := types.NormalizeIdentifier(req.MyKad)
	resp := DeriveIdentityResponse{MyKad: normalized}

	if id, err := types.ParseMyKad(normalized); err == nil {
		if dob, ok := id.DateOfBirth(h.now()); ok {
			age := types.AgeAt(dob, h.now())
			resp.Valid = true
			resp.DateOfBirth = &dob
			resp.Age = &age
			resp.AgeDisplay = age.String()
			resp.IsMinor = age.IsMinor()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterCase creates a case from the clinical entry form
func (h *Handler) RegisterCase(w http.ResponseWriter, r *http.Request) {
	var req RegisterCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	patient, details := h.buildPatient(req)
	if len(details) > 0 {
		writeError(w, errors.Validation("invalid patient details", details))
		return
	}

	clinical, err := buildClinical(req)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	reportedBy := req.ReportedBy
	if reportedBy == "" {
		reportedBy = "clinician"
	}

	c, err := domain.NewCase(patient, clinical, reportedBy)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCaseRegistered(string(c.Patient.District))
	h.publish(r, events.TypeCaseRegistered, map[string]any{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"district":    c.Patient.District,
	}, reportedBy, "clinician")

	writeJSON(w, http.StatusCreated, c)
}

// GetCase returns a single case with its timeline
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// GetEvents returns the case timeline
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": c.Events})
}

// ListCases lists cases with optional filters
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.CaseStatus(s)
		filter.Status = &status
	}
	if d := r.URL.Query().Get("district"); d != "" {
		district := domain.District(d)
		filter.District = &district
	}
	if c := r.URL.Query().Get("classification"); c != "" {
		classification := domain.Classification(c)
		filter.Classification = &classification
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}

	cases, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  cases,
		"total": total,
	})
}

// FinalizeCase records the epidemiologist's findings; the classification is
// derived, never accepted from the request
func (h *Handler) FinalizeCase(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	var req FinalizeCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	findings := domain.Findings{IgM: req.LabIgM, PCR: req.LabPCR, EpiLink: req.EpiLink}
	if c.Status == domain.CaseStatusFinalized {
		writeError(w, errors.CaseFinalized(c.CaseNumber))
		return
	}
	if err := c.Finalize(findings, req.Investigator); err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordCaseFinalized(string(c.Classification))
	h.publish(r, events.TypeCaseFinalized, map[string]any{
		"case_id":        c.ID,
		"case_number":    c.CaseNumber,
		"district":       c.Patient.District,
		"classification": c.Classification,
	}, req.Investigator, "epidemiologist")

	writeJSON(w, http.StatusOK, c)
}

// --- Builders ---

// buildPatient assembles the patient value, deriving DOB and age from the
// MyKad when possible and falling back to the manually entered date
func (h *Handler) buildPatient(req RegisterCaseRequest) (domain.Patient, map[string]string) {
	details := make(map[string]string)

	patient := domain.Patient{
		Name:     req.Name,
		Sex:      domain.Sex(req.Sex),
		Phone:    types.NormalizeIdentifier(req.Phone),
		District: req.District,
	}

	if !req.District.Valid() {
		details["district"] = "unknown district"
	}

	if req.MyKad != "" {
		id, err := types.ParseMyKad(req.MyKad)
		if err != nil {
			details["mykad"] = err.Error()
		} else {
			patient.MyKad = id
		}
	}

	now := h.now()

	// MyKad-derived DOB wins; manual entry is the fallback
	if !patient.MyKad.IsZero() {
		if dob, ok := patient.MyKad.DateOfBirth(now); ok {
			patient.DateOfBirth = &dob
		}
	}
	if patient.DateOfBirth == nil && req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			details["date_of_birth"] = "expected YYYY-MM-DD"
		} else {
			patient.DateOfBirth = &dob
		}
	}
	if patient.DateOfBirth != nil {
		patient.Age = types.AgeAt(*patient.DateOfBirth, now)
	}

	addr := types.NewAddress(req.Address.Line, req.Address.City, req.Address.PostalCode)
	if req.Address.Lat != 0 || req.Address.Lng != 0 {
		addr = addr.WithCoordinates(req.Address.Lat, req.Address.Lng)
	}
	patient.Address = addr

	if len(details) > 0 {
		return domain.Patient{}, details
	}
	return patient, nil
}

func buildClinical(req RegisterCaseRequest) (domain.Clinical, error) {
	clinical := domain.Clinical{
		Fever:     req.Fever,
		Rash:      req.Rash,
		Complaint: req.Complaint,
	}

	var err error
	if clinical.FeverOnset, err = parseOnset(req.FeverOnset); err != nil {
		return domain.Clinical{}, err
	}
	if clinical.RashOnset, err = parseOnset(req.RashOnset); err != nil {
		return domain.Clinical{}, err
	}
	return clinical, nil
}

func parseOnset(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errors.BadRequest("onset dates must be YYYY-MM-DD")
	}
	return &t, nil
}

// publish sends a bus event when the bus is configured
func (h *Handler) publish(r *http.Request, eventType string, data map[string]any, actor, role string) {
	if h.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "case-api", data).WithActor(actor, role)
	// Best effort; registration must not fail because the bus is down
	_ = h.bus.Publish(r.Context(), event)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"error": "internal server error",
		"code":  "INTERNAL_ERROR",
	})
}

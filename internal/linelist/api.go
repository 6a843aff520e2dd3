package linelist

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/penang-gov/surveillance/internal/auth"
	"github.com/penang-gov/surveillance/internal/case/domain"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
)

// exportColumns is the linelist header in reporting order
var exportColumns = []string{
	"ID", "Case_Number", "Status", "Name", "MyKad", "Age", "District",
	"Fever", "Rash", "Complaint", "Lab_IgM", "Lab_PCR", "Epi_Link",
	"Final_Classification", "Investigator", "Created_At", "Finalized_At",
}

// Handler serves the epidemiologist/admin linelist views
type Handler struct {
	repo domain.Repository
}

// NewHandler creates a new linelist handler
func NewHandler(repo domain.Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the linelist routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequirePermission(auth.PermLinelistRead)).Get("/summary", h.Summary)
	r.With(auth.RequirePermission(auth.PermLinelistExport)).Get("/export", h.Export)

	return r
}

// SummaryResponse aggregates the caseload for the dashboard
type SummaryResponse struct {
	Total            int                           `json:"total"`
	ByStatus         map[domain.CaseStatus]int     `json:"by_status"`
	ByClassification map[domain.Classification]int `json:"by_classification"`
	ByDistrict       map[domain.District]int       `json:"by_district"`
	GeneratedAt      time.Time                     `json:"generated_at"`
}

// Summary returns caseload counts by status, classification and district
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byStatus, err := h.repo.CountByStatus(ctx)
	if err != nil {
		http.Error(w, "failed to aggregate caseload", http.StatusInternalServerError)
		return
	}
	byClassification, err := h.repo.CountByClassification(ctx)
	if err != nil {
		http.Error(w, "failed to aggregate caseload", http.StatusInternalServerError)
		return
	}
	byDistrict, err := h.repo.CountByDistrict(ctx)
	if err != nil {
		http.Error(w, "failed to aggregate caseload", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SummaryResponse{
		Total:            total,
		ByStatus:         byStatus,
		ByClassification: byClassification,
		ByDistrict:       byDistrict,
		GeneratedAt:      time.Now(),
	})
}

// Export streams the filtered linelist as CSV
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{Search: r.URL.Query().Get("search")}

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
	// No pagination on export; the linelist is the whole caseload
	filter.Limit = 0

	cases, _, err := h.repo.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to load linelist", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("measles_linelist_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := WriteCSV(w, cases); err != nil {
		// Headers are already out; nothing to do but log at the caller
		return
	}

	metrics.RecordLinelistExport()
}

// WriteCSV writes cases as a linelist in the standard column order
func WriteCSV(w io.Writer, cases []domain.Case) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportColumns); err != nil {
		return err
	}

	for i := range cases {
		if err := cw.Write(exportRow(&cases[i])); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func exportRow(c *domain.Case) []string {
	finalizedAt := ""
	if c.FinalizedAt != nil {
		finalizedAt = c.FinalizedAt.Format(time.RFC3339)
	}

	mykad := ""
	if !c.Patient.MyKad.IsZero() {
		mykad = c.Patient.MyKad.Masked()
	}

	return []string{
		c.ID.String(),
		c.CaseNumber,
		string(c.Status),
		c.Patient.Name,
		mykad,
		c.Patient.Age.String(),
		string(c.Patient.District),
		strconv.FormatBool(c.Clinical.Fever),
		strconv.FormatBool(c.Clinical.Rash),
		c.Clinical.Complaint,
		string(c.Findings.IgM),
		string(c.Findings.PCR),
		string(c.Findings.EpiLink),
		c.Classification.Display(),
		c.Investigator,
		c.CreatedAt.Format(time.RFC3339),
		finalizedAt,
	}
}

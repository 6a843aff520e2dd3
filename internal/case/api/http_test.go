package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/penang-gov/surveillance/internal/case/domain"
	"github.com/penang-gov/surveillance/internal/shared/errors"
	"github.com/penang-gov/surveillance/internal/shared/types"
)

type stubRepo struct {
	cases map[types.ID]*domain.Case
}

func newStubRepo() *stubRepo {
	return &stubRepo{cases: make(map[types.ID]*domain.Case)}
}

func (s *stubRepo) Save(_ context.Context, c *domain.Case) error {
	s.cases[c.ID] = c
	return nil
}

func (s *stubRepo) FindByID(_ context.Context, id types.ID) (*domain.Case, error) {
	c, ok := s.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return c, nil
}

func (s *stubRepo) FindByCaseNumber(_ context.Context, number string) (*domain.Case, error) {
	for _, c := range s.cases {
		if c.CaseNumber == number {
			return c, nil
		}
	}
	return nil, errors.NotFound("case", number)
}

func (s *stubRepo) Update(_ context.Context, c *domain.Case) error {
	s.cases[c.ID] = c
	return nil
}

func (s *stubRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Case, int, error) {
	out := make([]domain.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (s *stubRepo) CountByStatus(_ context.Context) (map[domain.CaseStatus]int, error) {
	return nil, nil
}

func (s *stubRepo) CountByClassification(_ context.Context) (map[domain.Classification]int, error) {
	return nil, nil
}

func (s *stubRepo) CountByDistrict(_ context.Context) (map[domain.District]int, error) {
	return nil, nil
}

// withCaseID binds the caseID URL param the way the router would
func withCaseID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("caseID", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testHandler(t *testing.T) (*Handler, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	h := NewHandler(repo, nil)
	h.now = func() time.Time {
		return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	}
	return h, repo
}

func TestDeriveIdentity(t *testing.T) {
	h, _ := testHandler(t)

	body, _ := json.Marshal(DeriveIdentityRequest{MyKad: "850615-07-1234"})
	req := httptest.NewRequest(http.MethodPost, "/derive", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.DeriveIdentity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp DeriveIdentityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.MyKad != "850615071234" {
		t.Errorf("MyKad = %q, want normalized digits", resp.MyKad)
	}
	if !resp.Valid {
		t.Fatal("expected a valid derivation")
	}
	want := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)
	if !resp.DateOfBirth.Equal(want) {
		t.Errorf("DateOfBirth = %v, want %v", resp.DateOfBirth, want)
	}
	if resp.Age.Years != 38 || resp.Age.Months != 11 {
		t.Errorf("Age = %+v, want 38y 11m", resp.Age)
	}
	if resp.AgeDisplay != "38 years, 11 months" {
		t.Errorf("AgeDisplay = %q", resp.AgeDisplay)
	}
	if resp.IsMinor {
		t.Error("38-year-old flagged as minor")
	}
}

func TestDeriveIdentityMalformed(t *testing.T) {
	h, _ := testHandler(t)

	body, _ := json.Marshal(DeriveIdentityRequest{MyKad: "not-a-mykad"})
	req := httptest.NewRequest(http.MethodPost, "/derive", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.DeriveIdentity(rec, req)

	// Malformed input is a valid=false response, not an HTTP error
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp DeriveIdentityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid {
		t.Error("expected valid=false for malformed identifier")
	}
	if resp.DateOfBirth != nil {
		t.Error("expected no derived date of birth")
	}
}

func registerRequest() RegisterCaseRequest {
	return RegisterCaseRequest{
		Name:       "Ahmad bin Abdullah",
		MyKad:      "850615-07-1234",
		Sex:        "male",
		Phone:      "012-345 6789",
		District:   domain.DistrictTimurLaut,
		Fever:      true,
		FeverOnset: "2024-05-28",
		Rash:       true,
		RashOnset:  "2024-05-30",
		Complaint:  "fever and maculopapular rash",
		ReportedBy: "Dr. Tan",
	}
}

func TestRegisterCase(t *testing.T) {
	h, repo := testHandler(t)

	body, _ := json.Marshal(registerRequest())
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterCase(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var c domain.Case
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if c.Status != domain.CaseStatusPendingEpi {
		t.Errorf("Status = %q, want %q", c.Status, domain.CaseStatusPendingEpi)
	}
	if c.Patient.DateOfBirth == nil {
		t.Fatal("expected DOB derived from MyKad")
	}
	if got := *c.Patient.DateOfBirth; got.Year() != 1985 || got.Month() != time.June || got.Day() != 15 {
		t.Errorf("DateOfBirth = %v, want 1985-06-15", got)
	}
	if c.Patient.Age.Years != 38 || c.Patient.Age.Months != 11 {
		t.Errorf("Age = %+v, want 38y 11m", c.Patient.Age)
	}
	if c.Patient.Phone != "0123456789" {
		t.Errorf("Phone = %q, want normalized digits", c.Patient.Phone)
	}
	if len(repo.cases) != 1 {
		t.Errorf("repo holds %d cases, want 1", len(repo.cases))
	}
}

func TestRegisterCaseValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterCaseRequest)
	}{
		{"bad mykad digits", func(r *RegisterCaseRequest) { r.MyKad = "85061507123" }},
		{"unknown district", func(r *RegisterCaseRequest) { r.District = "Kuala Lumpur" }},
		{"bad manual dob", func(r *RegisterCaseRequest) { r.MyKad = ""; r.DateOfBirth = "15/06/1985" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := testHandler(t)
			reqBody := registerRequest()
			tt.mutate(&reqBody)

			body, _ := json.Marshal(reqBody)
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.RegisterCase(rec, req)

			if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want a 4xx validation failure", rec.Code)
			}
		})
	}
}

func TestRegisterCaseManualDOBFallback(t *testing.T) {
	h, _ := testHandler(t)

	reqBody := registerRequest()
	reqBody.MyKad = ""
	reqBody.DateOfBirth = "2020-01-10"

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterCase(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var c domain.Case
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if c.Patient.Age.Years != 4 || c.Patient.Age.Months != 4 {
		t.Errorf("Age = %+v, want 4y 4m", c.Patient.Age)
	}
	if !c.Patient.Age.IsMinor() {
		t.Error("expected minor")
	}
}

func TestFinalizeCaseDerivesClassification(t *testing.T) {
	h, repo := testHandler(t)

	c, err := domain.NewCase(domain.Patient{
		Name:     "Siti binti Rahman",
		District: domain.DistrictBaratDaya,
	}, domain.Clinical{Fever: true, Rash: true}, "Dr. Tan")
	if err != nil {
		t.Fatalf("NewCase: %v", err)
	}
	repo.cases[c.ID] = c

	body, _ := json.Marshal(FinalizeCaseRequest{
		LabIgM:       domain.IgMNegative,
		LabPCR:       domain.PCRNotDone,
		EpiLink:      domain.EpiLinkYes,
		Investigator: "Dr. Lim",
	})
	req := httptest.NewRequest(http.MethodPost, "/"+c.ID.String()+"/finalize", bytes.NewReader(body))
	req = withCaseID(req, c.ID.String())
	rec := httptest.NewRecorder()

	h.FinalizeCase(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var updated domain.Case
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Status != domain.CaseStatusFinalized {
		t.Errorf("Status = %q, want finalized", updated.Status)
	}
	if updated.Classification != domain.ClassificationEpiLinked {
		t.Errorf("Classification = %q, want %q", updated.Classification, domain.ClassificationEpiLinked)
	}
}

func TestFinalizeCaseTwiceConflicts(t *testing.T) {
	h, repo := testHandler(t)

	c, err := domain.NewCase(domain.Patient{
		Name:     "Siti binti Rahman",
		District: domain.DistrictBaratDaya,
	}, domain.Clinical{}, "Dr. Tan")
	if err != nil {
		t.Fatalf("NewCase: %v", err)
	}
	repo.cases[c.ID] = c

	finalize := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(FinalizeCaseRequest{
			LabIgM:       domain.IgMPositive,
			LabPCR:       domain.PCRNotDone,
			EpiLink:      domain.EpiLinkNo,
			Investigator: "Dr. Lim",
		})
		req := httptest.NewRequest(http.MethodPost, "/"+c.ID.String()+"/finalize", bytes.NewReader(body))
		req = withCaseID(req, c.ID.String())
		rec := httptest.NewRecorder()
		h.FinalizeCase(rec, req)
		return rec
	}

	if rec := finalize(); rec.Code != http.StatusOK {
		t.Fatalf("first finalize: status = %d", rec.Code)
	}
	if rec := finalize(); rec.Code != http.StatusConflict {
		t.Errorf("second finalize: status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

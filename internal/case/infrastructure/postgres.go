package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penang-gov/surveillance/internal/case/domain"
	"github.com/penang-gov/surveillance/internal/shared/errors"
	"github.com/penang-gov/surveillance/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const caseColumns = `
	id, case_number, status,
	patient_name, mykad, date_of_birth, age_years, age_months, sex, phone, district,
	address_line, address_city, address_postcode, address_lat, address_lng,
	fever, fever_onset, rash, rash_onset, complaint,
	lab_igm, lab_pcr, epi_link, classification, investigator, finalized_at,
	created_at, updated_at`

// Save saves a newly registered case
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Case) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO surveillance.cases (` + caseColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)`

	_, err = tx.Exec(ctx, query,
		c.ID, c.CaseNumber, c.Status,
		c.Patient.Name, nullString(string(c.Patient.MyKad)), c.Patient.DateOfBirth,
		c.Patient.Age.Years, c.Patient.Age.Months,
		nullString(string(c.Patient.Sex)), nullString(c.Patient.Phone), c.Patient.District,
		nullString(c.Patient.Address.Line), nullString(c.Patient.Address.City),
		nullString(c.Patient.Address.PostalCode), c.Patient.Address.Lat, c.Patient.Address.Lng,
		c.Clinical.Fever, c.Clinical.FeverOnset, c.Clinical.Rash, c.Clinical.RashOnset,
		nullString(c.Clinical.Complaint),
		c.Findings.IgM, c.Findings.PCR, c.Findings.EpiLink,
		c.Classification, nullString(c.Investigator), c.FinalizedAt,
		c.CreatedAt, c.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("case with this number already exists")
		}
		return errors.Wrap(err, "failed to save case")
	}

	for _, e := range c.Events {
		if err := saveEvent(ctx, tx, &e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Update persists investigation changes and any new timeline events
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Case) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE surveillance.cases SET
			status = $2,
			lab_igm = $3, lab_pcr = $4, epi_link = $5,
			classification = $6, investigator = $7, finalized_at = $8,
			updated_at = $9
		WHERE id = $1`

	result, err := tx.Exec(ctx, query,
		c.ID, c.Status,
		c.Findings.IgM, c.Findings.PCR, c.Findings.EpiLink,
		c.Classification, nullString(c.Investigator), c.FinalizedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update case")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("case", c.ID.String())
	}

	// Events carry fresh UUIDs, so the conflict clause makes re-saving the
	// whole timeline idempotent
	for _, e := range c.Events {
		if err := saveEvent(ctx, tx, &e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds a case by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM surveillance.cases WHERE id = $1`, id)

	c, err := scanCase(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("case", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find case")
	}

	events, err := r.getEvents(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Events = events

	return c, nil
}

// FindByCaseNumber finds a case by its case number
func (r *PostgresRepository) FindByCaseNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	var id types.ID
	err := r.pool.QueryRow(ctx, `SELECT id FROM surveillance.cases WHERE case_number = $1`, caseNumber).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("case", caseNumber)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find case by number")
	}

	return r.FindByID(ctx, id)
}

// List lists cases with filters
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Case, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.District != nil {
		conditions = append(conditions, fmt.Sprintf("district = $%d", argNum))
		args = append(args, *filter.District)
		argNum++
	}
	if filter.Classification != nil {
		conditions = append(conditions, fmt.Sprintf("classification = $%d", argNum))
		args = append(args, *filter.Classification)
		argNum++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(patient_name ILIKE $%d OR case_number ILIKE $%d OR mykad ILIKE $%d)",
			argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM surveillance.cases` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count cases")
	}

	query := `SELECT ` + caseColumns + ` FROM surveillance.cases` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list cases")
	}
	defer rows.Close()

	var cases []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan case")
		}
		cases = append(cases, *c)
	}

	return cases, total, nil
}

// CountByStatus returns case counts grouped by workflow status
func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[domain.CaseStatus]int, error) {
	counts := make(map[domain.CaseStatus]int)
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM surveillance.cases GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count by status")
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.CaseStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		counts[status] = n
	}
	return counts, nil
}

// CountByClassification returns case counts grouped by classification
func (r *PostgresRepository) CountByClassification(ctx context.Context) (map[domain.Classification]int, error) {
	counts := make(map[domain.Classification]int)
	rows, err := r.pool.Query(ctx, `SELECT classification, COUNT(*) FROM surveillance.cases GROUP BY classification`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count by classification")
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Classification
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan classification count")
		}
		counts[c] = n
	}
	return counts, nil
}

// CountByDistrict returns case counts grouped by health district
func (r *PostgresRepository) CountByDistrict(ctx context.Context) (map[domain.District]int, error) {
	counts := make(map[domain.District]int)
	rows, err := r.pool.Query(ctx, `SELECT district, COUNT(*) FROM surveillance.cases GROUP BY district`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count by district")
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.District
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan district count")
		}
		counts[d] = n
	}
	return counts, nil
}

// getEvents loads the timeline for a case
func (r *PostgresRepository) getEvents(ctx context.Context, caseID types.ID) ([]domain.CaseEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, case_id, type, actor, actor_role, description, data, occurred_at
		FROM surveillance.case_events
		WHERE case_id = $1
		ORDER BY occurred_at`, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load case events")
	}
	defer rows.Close()

	var events []domain.CaseEvent
	for rows.Next() {
		var e domain.CaseEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Type, &e.Actor, &e.ActorRole,
			&e.Description, &data, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan case event")
		}
		if len(data) > 0 {
			json.Unmarshal(data, &e.Data)
		}
		events = append(events, e)
	}
	return events, nil
}

func saveEvent(ctx context.Context, tx pgx.Tx, e *domain.CaseEvent) error {
	var data []byte
	if e.Data != nil {
		var err error
		data, err = json.Marshal(e.Data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event data")
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO surveillance.case_events (id, case_id, type, actor, actor_role, description, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.CaseID, e.Type, e.Actor, e.ActorRole, e.Description, data, e.Timestamp)
	if err != nil {
		return errors.Wrap(err, "failed to save case event")
	}
	return nil
}

// scanCase scans a case row from either QueryRow or Query
func scanCase(row pgx.Row) (*domain.Case, error) {
	c := &domain.Case{}
	var mykad, sex, phone, addrLine, addrCity, addrPostcode, complaint, investigator *string
	var lat, lng *float64

	err := row.Scan(
		&c.ID, &c.CaseNumber, &c.Status,
		&c.Patient.Name, &mykad, &c.Patient.DateOfBirth,
		&c.Patient.Age.Years, &c.Patient.Age.Months,
		&sex, &phone, &c.Patient.District,
		&addrLine, &addrCity, &addrPostcode, &lat, &lng,
		&c.Clinical.Fever, &c.Clinical.FeverOnset, &c.Clinical.Rash, &c.Clinical.RashOnset,
		&complaint,
		&c.Findings.IgM, &c.Findings.PCR, &c.Findings.EpiLink,
		&c.Classification, &investigator, &c.FinalizedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mykad != nil {
		c.Patient.MyKad = types.MyKad(*mykad)
	}
	if sex != nil {
		c.Patient.Sex = domain.Sex(*sex)
	}
	if phone != nil {
		c.Patient.Phone = *phone
	}
	if addrLine != nil {
		c.Patient.Address.Line = *addrLine
	}
	if addrCity != nil {
		c.Patient.Address.City = *addrCity
	}
	if addrPostcode != nil {
		c.Patient.Address.PostalCode = *addrPostcode
	}
	if lat != nil {
		c.Patient.Address.Lat = *lat
	}
	if lng != nil {
		c.Patient.Address.Lng = *lng
	}
	if complaint != nil {
		c.Clinical.Complaint = *complaint
	}
	if investigator != nil {
		c.Investigator = *investigator
	}

	return c, nil
}

// nullString maps empty strings to NULL
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

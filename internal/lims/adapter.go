package lims

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/penang-gov/surveillance/internal/shared/config"
)

// Result is a lab result row read from the state laboratory system
type Result struct {
	CaseNumber string
	Test       string // igm or pcr
	Positive   bool
	ReportedAt time.Time
}

// Importer applies imported results to pending cases
type Importer interface {
	Import(ctx context.Context, result Result) error
}

// Adapter polls the state laboratory SQL Server for measles results and
// hands each new row to the importer
type Adapter struct {
	db       *sql.DB
	config   config.LIMSConfig
	importer Importer
	log      zerolog.Logger

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new LIMS adapter
func New(cfg config.LIMSConfig, importer Importer, log zerolog.Logger) *Adapter {
	return &Adapter{
		config:   cfg,
		importer: importer,
		log:      log.With().Str("component", "lims").Logger(),
	}
}

// Start opens the database connection and starts the poll loop
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)
	if a.config.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-a.config.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	a.log.Info().
		Str("host", a.config.Host).
		Str("table", a.config.ResultTable).
		Dur("interval", a.config.PollInterval).
		Msg("LIMS adapter started")

	return nil
}

// Stop stops the poll loop and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}
	return a.db.PingContext(ctx)
}

// pollLoop fetches new result rows on each tick
func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			lastPoll := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.pollResults(ctx, lastPoll); err != nil {
				a.log.Error().Err(err).Msg("polling lab results failed")
			}
		}
	}
}

// pollResults imports rows reported since the last poll
func (a *Adapter) pollResults(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			CaseNumber,
			TestType,
			Interpretation,
			ReportedAt
		FROM %s
		WHERE ReportedAt > @since
		ORDER BY ReportedAt ASC
	`, a.config.ResultTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query lab results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var caseNumber, testType, interpretation string
		var reportedAt time.Time

		if err := rows.Scan(&caseNumber, &testType, &interpretation, &reportedAt); err != nil {
			a.log.Error().Err(err).Msg("scanning lab result row failed")
			continue
		}

		result, ok := mapResult(caseNumber, testType, interpretation, reportedAt)
		if !ok {
			a.log.Warn().
				Str("case_number", caseNumber).
				Str("test_type", testType).
				Str("interpretation", interpretation).
				Msg("skipping unrecognized lab result row")
			continue
		}

		if err := a.importer.Import(ctx, result); err != nil {
			a.log.Error().Err(err).
				Str("case_number", result.CaseNumber).
				Str("test", result.Test).
				Msg("importing lab result failed")
		}
	}

	return rows.Err()
}

// mapResult normalizes a raw LIMS row. Test types and interpretations vary
// by laboratory, so matching is case-insensitive and tolerant of synonyms.
func mapResult(caseNumber, testType, interpretation string, reportedAt time.Time) (Result, bool) {
	if caseNumber == "" {
		return Result{}, false
	}

	var test string
	switch strings.ToLower(strings.TrimSpace(testType)) {
	case "igm", "measles igm", "serology igm":
		test = "igm"
	case "pcr", "measles pcr", "rt-pcr":
		test = "pcr"
	default:
		return Result{}, false
	}

	var positive bool
	switch strings.ToLower(strings.TrimSpace(interpretation)) {
	case "positive", "detected", "reactive":
		positive = true
	case "negative", "not detected", "non-reactive":
		positive = false
	default:
		return Result{}, false
	}

	return Result{
		CaseNumber: caseNumber,
		Test:       test,
		Positive:   positive,
		ReportedAt: reportedAt,
	}, true
}

package domain

import (
	"context"

	"github.com/penang-gov/surveillance/internal/shared/types"
)

// ListFilter holds the optional filters for case listing
type ListFilter struct {
	Status         *CaseStatus
	District       *District
	Classification *Classification
	Search         string
	Limit          int
	Offset         int
}

// Repository defines persistence operations for cases
type Repository interface {
	Save(ctx context.Context, c *Case) error
	FindByID(ctx context.Context, id types.ID) (*Case, error)
	FindByCaseNumber(ctx context.Context, caseNumber string) (*Case, error)
	Update(ctx context.Context, c *Case) error
	List(ctx context.Context, filter ListFilter) ([]Case, int, error)

	// Linelist aggregates
	CountByStatus(ctx context.Context) (map[CaseStatus]int, error)
	CountByClassification(ctx context.Context) (map[Classification]int, error)
	CountByDistrict(ctx context.Context) (map[District]int, error)
}

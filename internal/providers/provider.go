package providers

import (
	"context"
	"errors"

	"tradelens/internal/model"
)

var ErrNotFound = errors.New("providers: table not found")

// Provider returns the raw CSV bytes of one table of a case study. A table
// that does not exist is reported as ErrNotFound.
type Provider interface {
	Name() string
	FetchTable(ctx context.Context, study model.CaseStudy, table model.Table) ([]byte, error)
}

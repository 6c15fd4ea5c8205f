package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

// SeasonRepository reads season reference data. Seasons are maintained by
// an external system; this service only needs their date bounds.
type SeasonRepository struct {
	db *sqlx.DB
}

// NewSeasonRepository constructs the repository.
func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

// GetByID fetches a season by identifier.
func (r *SeasonRepository) GetByID(ctx context.Context, id string) (*models.Season, error) {
	const query = `SELECT id, start_date, end_date FROM seasons WHERE id = $1`
	var season models.Season
	if err := r.db.GetContext(ctx, &season, query, id); err != nil {
		return nil, err
	}
	return &season, nil
}

// Exists reports whether both references resolve; creation rejects unknown
// operator/season pairs early.
func (r *SeasonRepository) Exists(ctx context.Context, seasonID string, operatorID int64) (bool, error) {
	var count int
	const query = `SELECT COUNT(*) FROM seasons s, operators o WHERE s.id = $1 AND o.id = $2`
	if err := r.db.GetContext(ctx, &count, query, seasonID, operatorID); err != nil {
		return false, fmt.Errorf("check references: %w", err)
	}
	return count > 0, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

const inspectionColumns = `id, document_type, status, version, operator_id, season_id, name,
       min_start_date, start_date, end_date, inspection_start_date, inspection_end_date,
       hsl_accepted, operator_accepted, linked_inspection_update_available, created_at, updated_at`

// ErrVersionConflict signals a lost race on version assignment; callers
// retry so the per-key sequence stays gapless.
var ErrVersionConflict = errors.New("inspection version already assigned")

const versionRetries = 3

// InspectionRepository persists inspection lifecycle data.
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository constructs the repository.
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create inserts a new draft inspection together with its CREATED_BY
// relation. The version is assigned inside the INSERT as max+1 for the
// (operator, season, type) key; a unique index on that key plus version
// turns concurrent assignments into retries, so the sequence never skips
// or reuses a value.
func (r *InspectionRepository) Create(ctx context.Context, insp *models.Inspection, rel models.UserRelation) error {
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	if insp.Status == "" {
		insp.Status = models.StatusDraft
	}
	now := time.Now().UTC()
	insp.CreatedAt = now
	insp.UpdatedAt = now

	const query = `INSERT INTO inspections
	(id, document_type, status, version, operator_id, season_id, name,
	 min_start_date, start_date, end_date, inspection_start_date, inspection_end_date,
	 hsl_accepted, operator_accepted, linked_inspection_update_available, created_at, updated_at)
	SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, $5, $6, $7, $8, $9, $10, $11, false, false, false, $12, $12
	FROM inspections
	WHERE operator_id = $4 AND season_id = $5 AND document_type = $2
	RETURNING version`

	var lastErr error
	for attempt := 0; attempt < versionRetries; attempt++ {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create inspection: %w", err)
		}
		err = tx.QueryRowxContext(ctx, query,
			insp.ID, insp.DocumentType, insp.Status,
			insp.OperatorID, insp.SeasonID, insp.Name,
			insp.MinStartDate, insp.StartDate, insp.EndDate,
			insp.InspectionStartDate, insp.InspectionEndDate,
			now,
		).Scan(&insp.Version)
		if err == nil {
			err = appendRelationTx(ctx, tx, insp.ID, rel)
		}
		if err == nil {
			if err = tx.Commit(); err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback()
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("create inspection: %w", err)
		}
		lastErr = ErrVersionConflict
	}
	return lastErr
}

// GetByID fetches an inspection by identifier.
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections WHERE id = $1`, inspectionColumns)
	var insp models.Inspection
	if err := r.db.GetContext(ctx, &insp, query, id); err != nil {
		return nil, err
	}
	return &insp, nil
}

// List returns inspections matching the filter, newest version first,
// together with the total count for pagination.
func (r *InspectionRepository) List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.OperatorID != nil {
		args = append(args, *filter.OperatorID)
		conditions = append(conditions, fmt.Sprintf("operator_id = $%d", len(args)))
	}
	if filter.SeasonID != "" {
		args = append(args, filter.SeasonID)
		conditions = append(conditions, fmt.Sprintf("season_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		conditions = append(conditions, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM inspections"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count inspections: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM inspections%s ORDER BY operator_id, season_id, document_type, version DESC LIMIT %d OFFSET %d`,
		inspectionColumns, where, pageSize, (page-1)*pageSize)

	var inspections []models.Inspection
	if err := r.db.SelectContext(ctx, &inspections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list inspections: %w", err)
	}
	return inspections, total, nil
}

// UpdateFieldsParams groups the free-form draft edits. These are
// last-write-wins at the field level on purpose; only lifecycle
// transitions get the compare-and-commit guarantee.
type UpdateFieldsParams struct {
	ID                  string
	Name                *string
	MinStartDate        *time.Time
	StartDate           *time.Time
	EndDate             *time.Time
	InspectionStartDate *time.Time
	InspectionEndDate   *time.Time
}

// UpdateFields applies a partial field edit and appends the UPDATED_BY
// relation.
func (r *InspectionRepository) UpdateFields(ctx context.Context, params UpdateFieldsParams, rel models.UserRelation) (*models.Inspection, error) {
	setParts := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)
	assign := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Name != nil {
		assign("name", *params.Name)
	}
	if params.MinStartDate != nil {
		assign("min_start_date", *params.MinStartDate)
	}
	if params.StartDate != nil {
		assign("start_date", *params.StartDate)
	}
	if params.EndDate != nil {
		assign("end_date", *params.EndDate)
	}
	if params.InspectionStartDate != nil {
		assign("inspection_start_date", *params.InspectionStartDate)
	}
	if params.InspectionEndDate != nil {
		assign("inspection_end_date", *params.InspectionEndDate)
	}
	if len(setParts) == 0 {
		return r.GetByID(ctx, params.ID)
	}
	args = append(args, time.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, params.ID)

	query := fmt.Sprintf(`UPDATE inspections SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setParts, ", "), len(args), inspectionColumns)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update inspection: %w", err)
	}
	var insp models.Inspection
	if err := tx.GetContext(ctx, &insp, query, args...); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := appendRelationTx(ctx, tx, params.ID, rel); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("append relation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update inspection: %w", err)
	}
	return &insp, nil
}

// TransitionParams carries one lifecycle transition's writes. ExpectedAt
// is the updated_at value read during guard evaluation; the UPDATE only
// matches while the row still carries it.
type TransitionParams struct {
	ID             string
	ExpectedStatus models.InspectionStatus
	ExpectedAt     time.Time
	NewStatus      models.InspectionStatus

	StartDate        *time.Time
	EndDate          *time.Time
	HslAccepted      *bool
	OperatorAccepted *bool

	Relation *models.UserRelation
}

// CommitTransition performs the atomic compare-and-commit for a lifecycle
// transition: status write plus audit-trail append in one transaction,
// guarded by the expected status and updated_at. Zero matched rows is
// reported as sql.ErrNoRows; the service distinguishes a vanished record
// from a concurrent modification by re-fetching.
func (r *InspectionRepository) CommitTransition(ctx context.Context, params TransitionParams) (*models.Inspection, error) {
	setParts := []string{"status = $1"}
	args := []interface{}{params.NewStatus}
	assign := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.StartDate != nil {
		assign("start_date", *params.StartDate)
	}
	if params.EndDate != nil {
		assign("end_date", *params.EndDate)
	}
	if params.HslAccepted != nil {
		assign("hsl_accepted", *params.HslAccepted)
	}
	if params.OperatorAccepted != nil {
		assign("operator_accepted", *params.OperatorAccepted)
	}
	args = append(args, time.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, params.ID)
	idPos := len(args)
	args = append(args, params.ExpectedStatus)
	statusPos := len(args)
	args = append(args, params.ExpectedAt)
	atPos := len(args)

	query := fmt.Sprintf(`UPDATE inspections SET %s WHERE id = $%d AND status = $%d AND updated_at = $%d RETURNING %s`,
		strings.Join(setParts, ", "), idPos, statusPos, atPos, inspectionColumns)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	var insp models.Inspection
	if err := tx.GetContext(ctx, &insp, query, args...); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if params.Relation != nil {
		if err := appendRelationTx(ctx, tx, params.ID, *params.Relation); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("append relation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return &insp, nil
}

// Delete removes an inspection and its dependent rows (validation errors,
// its own linkage snapshot, relations). The caller checks for inbound
// references first.
func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete inspection: %w", err)
	}
	for _, query := range []string{
		`DELETE FROM inspection_validation_errors WHERE inspection_id = $1`,
		`DELETE FROM inspection_links WHERE inspection_id = $1`,
		`DELETE FROM inspection_relations WHERE inspection_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete inspection dependents: %w", err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete inspection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check delete rows: %w", err)
	}
	if rows == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// CountReferences returns how many other inspections hold this one in
// their linkage snapshot.
func (r *InspectionRepository) CountReferences(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM inspection_links WHERE linked_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count references: %w", err)
	}
	return count, nil
}

// InEffect resolves the in-effect inspection for a key space: the highest
// version currently in production, or nil when none exists.
func (r *InspectionRepository) InEffect(ctx context.Context, key models.VersionKey) (*models.Inspection, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections
	WHERE operator_id = $1 AND season_id = $2 AND document_type = $3 AND status = $4
	ORDER BY version DESC LIMIT 1`, inspectionColumns)
	var insp models.Inspection
	err := r.db.GetContext(ctx, &insp, query, key.OperatorID, key.SeasonID, key.DocumentType, models.StatusInProduction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve in-effect inspection: %w", err)
	}
	return &insp, nil
}

// ValidationErrors loads the error set attached by the upstream
// computation service.
func (r *InspectionRepository) ValidationErrors(ctx context.Context, inspectionID string) ([]models.ValidationError, error) {
	const query = `SELECT id, inspection_id, type, object_id, keys, reference_keys
	FROM inspection_validation_errors WHERE inspection_id = $1 ORDER BY type, object_id`
	var errs []models.ValidationError
	if err := r.db.SelectContext(ctx, &errs, query, inspectionID); err != nil {
		return nil, fmt.Errorf("load validation errors: %w", err)
	}
	return errs, nil
}

// Links loads the linkage snapshot of a post inspection.
func (r *InspectionRepository) Links(ctx context.Context, inspectionID string) ([]models.LinkedInspection, error) {
	const query = `SELECT inspection_id, linked_id, linked_version, snapshot_at
	FROM inspection_links WHERE inspection_id = $1 ORDER BY linked_id`
	var links []models.LinkedInspection
	if err := r.db.SelectContext(ctx, &links, query, inspectionID); err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	return links, nil
}

// Relations loads the append-only audit trail.
func (r *InspectionRepository) Relations(ctx context.Context, inspectionID string) ([]models.UserRelation, error) {
	const query = `SELECT id, inspection_id, related_by, user_id, created_at
	FROM inspection_relations WHERE inspection_id = $1 ORDER BY created_at`
	var rels []models.UserRelation
	if err := r.db.SelectContext(ctx, &rels, query, inspectionID); err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}
	return rels, nil
}

// ReplaceLinks swaps the linkage snapshot for the supplied set and clears
// the update-available flag.
func (r *InspectionRepository) ReplaceLinks(ctx context.Context, inspectionID string, links []models.LinkedInspection) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM inspection_links WHERE inspection_id = $1`, inspectionID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear links: %w", err)
	}
	now := time.Now().UTC()
	for _, link := range links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO inspection_links (inspection_id, linked_id, linked_version, snapshot_at) VALUES ($1, $2, $3, $4)`,
			inspectionID, link.LinkedID, link.LinkedVersion, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert link: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE inspections SET linked_inspection_update_available = false, updated_at = $2 WHERE id = $1`,
		inspectionID, now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear update-available flag: %w", err)
	}
	return tx.Commit()
}

// SetLinkUpdateAvailable persists the derived staleness flag.
func (r *InspectionRepository) SetLinkUpdateAvailable(ctx context.Context, inspectionID string, available bool) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE inspections SET linked_inspection_update_available = $2 WHERE id = $1`,
		inspectionID, available,
	); err != nil {
		return fmt.Errorf("set update-available flag: %w", err)
	}
	return nil
}

// PostInspectionsForOperator lists post inspections of an operator that
// are not yet in production; their staleness flags need recomputation when
// contributing pre inspections publish.
func (r *InspectionRepository) PostInspectionsForOperator(ctx context.Context, operatorID int64) ([]models.Inspection, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections
	WHERE operator_id = $1 AND document_type = $2 AND status <> $3`, inspectionColumns)
	var inspections []models.Inspection
	if err := r.db.SelectContext(ctx, &inspections, query, operatorID, models.DocumentTypePost, models.StatusInProduction); err != nil {
		return nil, fmt.Errorf("list post inspections: %w", err)
	}
	return inspections, nil
}

// QualifyingPreInspections returns the in-effect pre inspections of an
// operator whose production window overlaps the given audit window. Only
// the highest in-production version per season counts; older published
// versions are superseded. This is the default qualifying-set computation;
// deployments with richer overlap rules supply their own provider.
func (r *InspectionRepository) QualifyingPreInspections(ctx context.Context, operatorID int64, auditStart, auditEnd time.Time) ([]models.Inspection, error) {
	query := fmt.Sprintf(`SELECT DISTINCT ON (season_id) %s FROM inspections
	WHERE operator_id = $1 AND document_type = $2 AND status = $3
	  AND start_date <= $4 AND end_date >= $5
	ORDER BY season_id, version DESC`, inspectionColumns)
	var inspections []models.Inspection
	if err := r.db.SelectContext(ctx, &inspections, query, operatorID, models.DocumentTypePre, models.StatusInProduction, auditEnd, auditStart); err != nil {
		return nil, fmt.Errorf("list qualifying pre inspections: %w", err)
	}
	return inspections, nil
}

func appendRelationTx(ctx context.Context, tx *sqlx.Tx, inspectionID string, rel models.UserRelation) error {
	id := rel.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := rel.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO inspection_relations (id, inspection_id, related_by, user_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, inspectionID, rel.RelatedBy, rel.UserID, created,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

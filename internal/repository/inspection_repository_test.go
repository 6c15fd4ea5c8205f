package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

func newInspectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func inspectionRows(id string, version int, status models.InspectionStatus, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "document_type", "status", "version", "operator_id", "season_id", "name",
		"min_start_date", "start_date", "end_date", "inspection_start_date", "inspection_end_date",
		"hsl_accepted", "operator_accepted", "linked_inspection_update_available", "created_at", "updated_at",
	}).AddRow(
		id, "PRE", status, version, int64(7), "season-1", "test",
		at, at, at.AddDate(0, 3, 0), at, at.AddDate(0, 3, 0),
		false, false, false, at, at,
	)
}

func TestInspectionRepositoryCreateAssignsVersion(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO inspections")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inspection_relations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	insp := &models.Inspection{
		DocumentType: models.DocumentTypePre,
		OperatorID:   7,
		SeasonID:     "season-1",
		Name:         "test",
	}
	rel := models.UserRelation{RelatedBy: models.RelationCreatedBy, UserID: "admin-1"}
	require.NoError(t, repo.Create(context.Background(), insp, rel))
	require.Equal(t, 3, insp.Version)
	require.NotEmpty(t, insp.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCreateRetriesOnVersionRace(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	// First attempt loses the unique-index race, second succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO inspections")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO inspections")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inspection_relations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	insp := &models.Inspection{DocumentType: models.DocumentTypePre, OperatorID: 7, SeasonID: "season-1"}
	require.NoError(t, repo.Create(context.Background(), insp, models.UserRelation{RelatedBy: models.RelationCreatedBy, UserID: "u"}))
	require.Equal(t, 2, insp.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCreateExhaustsRetries(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	for i := 0; i < versionRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO inspections")).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()
	}

	insp := &models.Inspection{DocumentType: models.DocumentTypePre, OperatorID: 7, SeasonID: "season-1"}
	err := repo.Create(context.Background(), insp, models.UserRelation{RelatedBy: models.RelationCreatedBy, UserID: "u"})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCommitTransition(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE inspections SET")).
		WillReturnRows(inspectionRows("insp-1", 1, models.StatusInReview, at))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inspection_relations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	start := at
	end := at.AddDate(0, 3, 0)
	insp, err := repo.CommitTransition(context.Background(), TransitionParams{
		ID:             "insp-1",
		ExpectedStatus: models.StatusDraft,
		ExpectedAt:     at,
		NewStatus:      models.StatusInReview,
		StartDate:      &start,
		EndDate:        &end,
		Relation:       &models.UserRelation{RelatedBy: models.RelationSubmittedBy, UserID: "admin-1"},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusInReview, insp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCommitTransitionZeroRows(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE inspections SET")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CommitTransition(context.Background(), TransitionParams{
		ID:             "insp-1",
		ExpectedStatus: models.StatusInReview,
		ExpectedAt:     time.Now(),
		NewStatus:      models.StatusInProduction,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryInEffect(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(int64(7), "season-1", "PRE", "IN_PRODUCTION").
		WillReturnRows(inspectionRows("insp-2", 2, models.StatusInProduction, at))

	insp, err := repo.InEffect(context.Background(), models.VersionKey{
		OperatorID: 7, SeasonID: "season-1", DocumentType: models.DocumentTypePre,
	})
	require.NoError(t, err)
	require.Equal(t, "insp-2", insp.ID)
	require.Equal(t, 2, insp.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryInEffectEmpty(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WillReturnError(sql.ErrNoRows)

	insp, err := repo.InEffect(context.Background(), models.VersionKey{
		OperatorID: 7, SeasonID: "season-1", DocumentType: models.DocumentTypePost,
	})
	require.NoError(t, err)
	require.Nil(t, insp)
}

func TestInspectionRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inspection_validation_errors")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inspection_links")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inspection_relations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inspections")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryListBuildsFilter(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	operatorID := int64(7)
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inspections")).
		WithArgs(operatorID, "DRAFT", "IN_REVIEW").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM inspections")).
		WithArgs(operatorID, "DRAFT", "IN_REVIEW").
		WillReturnRows(inspectionRows("insp-1", 1, models.StatusDraft, at))

	list, total, err := repo.List(context.Background(), models.InspectionFilter{
		OperatorID: &operatorID,
		Status:     []models.InspectionStatus{models.StatusDraft, models.StatusInReview},
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryReplaceLinks(t *testing.T) {
	db, mock, cleanup := newInspectionRepoMock(t)
	defer cleanup()
	repo := NewInspectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inspection_links")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inspection_links")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inspections SET linked_inspection_update_available")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceLinks(context.Background(), "post-1", []models.LinkedInspection{
		{InspectionID: "post-1", LinkedID: "pre-1", LinkedVersion: 2},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/javandres/bultti-inspections-api/internal/dto"
	"github.com/javandres/bultti-inspections-api/internal/models"
	"github.com/javandres/bultti-inspections-api/internal/repository"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
)

type inspectionStore interface {
	Create(ctx context.Context, insp *models.Inspection, rel models.UserRelation) error
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error)
	UpdateFields(ctx context.Context, params repository.UpdateFieldsParams, rel models.UserRelation) (*models.Inspection, error)
	CommitTransition(ctx context.Context, params repository.TransitionParams) (*models.Inspection, error)
	Delete(ctx context.Context, id string) error
	CountReferences(ctx context.Context, id string) (int, error)
	ValidationErrors(ctx context.Context, inspectionID string) ([]models.ValidationError, error)
	Links(ctx context.Context, inspectionID string) ([]models.LinkedInspection, error)
	Relations(ctx context.Context, inspectionID string) ([]models.UserRelation, error)
	ReplaceLinks(ctx context.Context, inspectionID string, links []models.LinkedInspection) error
	SetLinkUpdateAvailable(ctx context.Context, inspectionID string, available bool) error
	PostInspectionsForOperator(ctx context.Context, operatorID int64) ([]models.Inspection, error)
}

type seasonStore interface {
	GetByID(ctx context.Context, id string) (*models.Season, error)
	Exists(ctx context.Context, seasonID string, operatorID int64) (bool, error)
}

// QualifyingSetProvider supplies the pre inspections currently qualifying
// as evidence for a post inspection's audit window. The overlap rule lives
// outside the lifecycle core.
type QualifyingSetProvider interface {
	QualifyingPreInspections(ctx context.Context, operatorID int64, auditStart, auditEnd time.Time) ([]models.Inspection, error)
}

// EventPublisher delivers inspection events to subscribers. Delivery
// failures are the hub's concern; publishing never affects commit results.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.InspectionEvent)
}

// LinkageRefreshEnqueuer schedules background staleness recomputation for
// an operator's post inspections.
type LinkageRefreshEnqueuer interface {
	EnqueueOperator(operatorID int64) error
}

// lifecycleTransition is one allowed edge in the state machine. An empty
// docType matches both document types.
type lifecycleTransition struct {
	action  Action
	from    models.InspectionStatus
	to      models.InspectionStatus
	docType models.DocumentType
}

var lifecycleTransitions = []lifecycleTransition{
	{ActionSubmit, models.StatusDraft, models.StatusInReview, models.DocumentTypePre},
	{ActionSubmit, models.StatusSanctionable, models.StatusInReview, models.DocumentTypePost},
	{ActionMakeSanctionable, models.StatusDraft, models.StatusSanctionable, models.DocumentTypePost},
	{ActionAbandonSanctions, models.StatusSanctionable, models.StatusDraft, models.DocumentTypePost},
	{ActionAcceptHSL, models.StatusInReview, models.StatusInReview, models.DocumentTypePost},
	{ActionAcceptOperator, models.StatusInReview, models.StatusInReview, models.DocumentTypePost},
	{ActionPublish, models.StatusInReview, models.StatusInProduction, ""},
	{ActionReject, models.StatusInReview, models.StatusDraft, ""},
}

func transitionFor(action Action, insp *models.Inspection) (lifecycleTransition, bool) {
	for _, tr := range lifecycleTransitions {
		if tr.action != action || tr.from != insp.Status {
			continue
		}
		if tr.docType != "" && tr.docType != insp.DocumentType {
			continue
		}
		return tr, true
	}
	return lifecycleTransition{}, false
}

// InspectionService orchestrates the inspection lifecycle: it validates
// and executes state transitions, keeps versions and linkage consistent,
// and emits status and error events.
type InspectionService struct {
	store      inspectionStore
	seasons    seasonStore
	gate       ValidationGate
	policy     RolePolicy
	linkage    LinkageResolver
	versions   *VersionResolver
	qualifying QualifyingSetProvider
	publisher  EventPublisher
	refresher  LinkageRefreshEnqueuer
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// InspectionServiceOption configures the service.
type InspectionServiceOption func(*InspectionService)

// WithEventPublisher wires the notification hub.
func WithEventPublisher(publisher EventPublisher) InspectionServiceOption {
	return func(s *InspectionService) { s.publisher = publisher }
}

// WithQualifyingSetProvider overrides the default qualifying-set source.
func WithQualifyingSetProvider(provider QualifyingSetProvider) InspectionServiceOption {
	return func(s *InspectionService) {
		if provider != nil {
			s.qualifying = provider
		}
	}
}

// WithLinkageRefresher wires the background staleness refresher.
func WithLinkageRefresher(refresher LinkageRefreshEnqueuer) InspectionServiceOption {
	return func(s *InspectionService) { s.refresher = refresher }
}

// AttachLinkageRefresher wires the background staleness refresher after
// construction. The refresher drives this service as its work target, so
// the two cannot be built in one step.
func (s *InspectionService) AttachLinkageRefresher(refresher LinkageRefreshEnqueuer) {
	s.refresher = refresher
}

// WithMetrics wires transition and event instrumentation.
func WithMetrics(metrics *MetricsService) InspectionServiceOption {
	return func(s *InspectionService) { s.metrics = metrics }
}

// NewInspectionService constructs the lifecycle orchestrator.
func NewInspectionService(
	store inspectionStore,
	seasons seasonStore,
	gate ValidationGate,
	policy RolePolicy,
	versions *VersionResolver,
	logger *zap.Logger,
	opts ...InspectionServiceOption,
) *InspectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &InspectionService{
		store:     store,
		seasons:   seasons,
		gate:      gate,
		policy:    policy,
		versions:  versions,
		validator: validator.New(),
		logger:    logger,
	}
	if provider, ok := store.(QualifyingSetProvider); ok {
		svc.qualifying = provider
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new draft inspection. The version is assigned by the
// store within the (operator, season, type) key space.
func (s *InspectionService) Create(ctx context.Context, req dto.CreateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inspection payload")
	}
	if !s.policy.CanCreate(claims, req.OperatorID) {
		return nil, appErrors.ErrForbidden
	}
	season, err := s.seasons.GetByID(ctx, req.SeasonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown season: %s", req.SeasonID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load season")
	}
	ok, err := s.seasons.Exists(ctx, req.SeasonID, req.OperatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check references")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown operator: %d", req.OperatorID))
	}

	auditStart := season.StartDate
	auditEnd := season.EndDate
	if req.InspectionStartDate != nil {
		auditStart = *req.InspectionStartDate
	}
	if req.InspectionEndDate != nil {
		auditEnd = *req.InspectionEndDate
	}
	if auditStart.After(auditEnd) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "inspection start date must not be after inspection end date")
	}

	insp := &models.Inspection{
		DocumentType:        req.DocumentType,
		Status:              models.StatusDraft,
		OperatorID:          req.OperatorID,
		SeasonID:            req.SeasonID,
		Name:                req.Name,
		MinStartDate:        season.StartDate,
		StartDate:           season.StartDate,
		EndDate:             season.EndDate,
		InspectionStartDate: auditStart,
		InspectionEndDate:   auditEnd,
	}
	rel := models.UserRelation{RelatedBy: models.RelationCreatedBy, UserID: claims.UserID}
	if err := s.store.Create(ctx, insp, rel); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inspection")
	}
	s.logger.Info("inspection created",
		zap.String("id", insp.ID),
		zap.String("document_type", string(insp.DocumentType)),
		zap.Int("version", insp.Version),
	)
	return s.attach(ctx, insp)
}

// Get loads an inspection with its validation errors, linkage snapshot and
// audit trail.
func (s *InspectionService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleOperator && !claims.CanActForOperator(insp.OperatorID) {
		return nil, appErrors.ErrForbidden
	}
	return s.attach(ctx, insp)
}

// List returns inspections matching the query. Operator users only see
// their own operators.
func (s *InspectionService) List(ctx context.Context, query dto.InspectionQuery, claims *models.JWTClaims) ([]models.Inspection, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.InspectionFilter{
		OperatorID:   query.OperatorID,
		SeasonID:     query.SeasonID,
		DocumentType: query.DocumentType,
		Status:       query.Status,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if claims.Role == models.RoleOperator {
		if filter.OperatorID == nil || !claims.CanActForOperator(*filter.OperatorID) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "operator users must filter by an authorized operator")
		}
	}
	inspections, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inspections")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return inspections, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies free-form field edits. Only the name stays editable after
// a document leaves draft. These edits are last-write-wins on purpose; the
// compare-and-commit guarantee covers lifecycle transitions only.
func (s *InspectionService) Update(ctx context.Context, id string, req dto.UpdateInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.AllowedActions(claims, insp).Has(ActionUpdate) {
		return nil, appErrors.ErrForbidden
	}
	if insp.Status != models.StatusDraft {
		if req.MinStartDate != nil || req.StartDate != nil || req.EndDate != nil ||
			req.InspectionStartDate != nil || req.InspectionEndDate != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only the name is editable after submission")
		}
	}
	if err := s.checkEditedDates(insp, req); err != nil {
		return nil, err
	}

	params := repository.UpdateFieldsParams{
		ID:                  id,
		Name:                req.Name,
		MinStartDate:        req.MinStartDate,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		InspectionStartDate: req.InspectionStartDate,
		InspectionEndDate:   req.InspectionEndDate,
	}
	rel := models.UserRelation{RelatedBy: models.RelationUpdatedBy, UserID: claims.UserID}
	updated, err := s.store.UpdateFields(ctx, params, rel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update inspection")
	}
	return s.attach(ctx, updated)
}

// Submit moves a draft pre inspection or a sanctionable post inspection
// into review with its production validity window.
func (s *InspectionService) Submit(ctx context.Context, id string, req dto.SubmitInspectionRequest, claims *models.JWTClaims) (*models.Inspection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submit payload")
	}
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.guard(ActionSubmit, claims, insp)
	if err != nil {
		return nil, s.fail(ctx, ActionSubmit, insp, err)
	}
	if err := s.checkBlocking(ctx, insp); err != nil {
		return nil, s.fail(ctx, ActionSubmit, insp, err)
	}
	if err := s.checkProductionWindow(ctx, insp, req.StartDate, req.EndDate); err != nil {
		return nil, s.fail(ctx, ActionSubmit, insp, err)
	}

	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      tr.to,
		StartDate:      &req.StartDate,
		EndDate:        &req.EndDate,
		Relation:       &models.UserRelation{RelatedBy: models.RelationSubmittedBy, UserID: claims.UserID},
	}
	return s.commit(ctx, ActionSubmit, insp, params)
}

// MakeSanctionable moves a draft post inspection into the sanctionable
// intermediate state.
func (s *InspectionService) MakeSanctionable(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.guard(ActionMakeSanctionable, claims, insp)
	if err != nil {
		return nil, s.fail(ctx, ActionMakeSanctionable, insp, err)
	}
	if err := s.checkBlocking(ctx, insp); err != nil {
		return nil, s.fail(ctx, ActionMakeSanctionable, insp, err)
	}
	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      tr.to,
		Relation:       &models.UserRelation{RelatedBy: models.RelationMadeSanctionableBy, UserID: claims.UserID},
	}
	return s.commit(ctx, ActionMakeSanctionable, insp, params)
}

// AbandonSanctions returns a sanctionable post inspection to draft.
func (s *InspectionService) AbandonSanctions(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.guard(ActionAbandonSanctions, claims, insp)
	if err != nil {
		return nil, s.fail(ctx, ActionAbandonSanctions, insp, err)
	}
	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      tr.to,
		Relation:       &models.UserRelation{RelatedBy: models.RelationSanctionsAbandonedBy, UserID: claims.UserID},
	}
	return s.commit(ctx, ActionAbandonSanctions, insp, params)
}

// Accept records one party's acceptance of a post inspection in review.
// Flags only move from false to true; accepting twice is a no-op. Once
// both parties have accepted, publication is invoked automatically. If
// that publication fails the flags stay set and the publish error is
// returned along with the accepted document, so publish can be retried
// without re-accepting.
func (s *InspectionService) Accept(ctx context.Context, id string, party models.AcceptanceParty, claims *models.JWTClaims) (*models.Inspection, error) {
	if party != models.PartyHSL && party != models.PartyOperator {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown acceptance party: %s", party))
	}
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	action := acceptAction(party)
	if _, err := s.guard(action, claims, insp); err != nil {
		return nil, s.fail(ctx, action, insp, err)
	}

	trueVal := true
	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      insp.Status,
	}
	switch party {
	case models.PartyHSL:
		if insp.HslAccepted {
			return s.attach(ctx, insp)
		}
		params.HslAccepted = &trueVal
	default:
		if insp.OperatorAccepted {
			return s.attach(ctx, insp)
		}
		params.OperatorAccepted = &trueVal
	}

	accepted, err := s.commit(ctx, action, insp, params)
	if err != nil {
		return nil, err
	}
	if !accepted.HslAccepted || !accepted.OperatorAccepted {
		return accepted, nil
	}

	published, err := s.publishCommitted(ctx, accepted, claims, false)
	if err != nil {
		// Acceptance stands; publication can be retried manually. The
		// failure is still the caller's to see.
		s.logger.Warn("automatic publication failed after dual acceptance",
			zap.String("id", accepted.ID), zap.Error(err))
		return accepted, err
	}
	return published, nil
}

// Publish moves a reviewed inspection into production. Pre inspections
// need publish rights; post inspections additionally require both
// acceptance flags.
func (s *InspectionService) Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.publishCommitted(ctx, insp, claims, true)
}

func (s *InspectionService) publishCommitted(ctx context.Context, insp *models.Inspection, claims *models.JWTClaims, enforceRole bool) (*models.Inspection, error) {
	var tr lifecycleTransition
	var err error
	if enforceRole {
		tr, err = s.guard(ActionPublish, claims, insp)
	} else {
		// Auto-publication after dual acceptance runs with the accepting
		// actor's identity but without requiring publish rights.
		var ok bool
		tr, ok = transitionFor(ActionPublish, insp)
		if !ok {
			err = appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("publish is not allowed while %s", insp.Status))
		}
		if claims == nil {
			err = appErrors.ErrUnauthorized
		}
	}
	if err != nil {
		return nil, s.fail(ctx, ActionPublish, insp, err)
	}
	if insp.IsPost() && (!insp.HslAccepted || !insp.OperatorAccepted) {
		return nil, s.fail(ctx, ActionPublish, insp, appErrors.Clone(appErrors.ErrInvalidTransition,
			"post inspections require acceptance by both parties before publication"))
	}
	if err := s.checkBlocking(ctx, insp); err != nil {
		return nil, s.fail(ctx, ActionPublish, insp, err)
	}

	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      tr.to,
		Relation:       &models.UserRelation{RelatedBy: models.RelationPublishedBy, UserID: claims.UserID},
	}
	published, err := s.commit(ctx, ActionPublish, insp, params)
	if err != nil {
		return nil, err
	}

	// The in-effect version may have changed; linked post inspections may
	// now hold a stale evidence snapshot.
	s.versions.Invalidate(ctx, published.Key())
	if published.DocumentType == models.DocumentTypePre && s.refresher != nil {
		if err := s.refresher.EnqueueOperator(published.OperatorID); err != nil {
			s.logger.Warn("failed to schedule linkage refresh",
				zap.Int64("operator_id", published.OperatorID), zap.Error(err))
		}
	}
	return published, nil
}

// Reject returns a reviewed inspection to draft and clears post acceptance
// flags. Rejection targets draft uniformly, also for post inspections that
// passed through the sanctionable state.
func (s *InspectionService) Reject(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.guard(ActionReject, claims, insp)
	if err != nil {
		return nil, s.fail(ctx, ActionReject, insp, err)
	}
	params := repository.TransitionParams{
		ID:             insp.ID,
		ExpectedStatus: insp.Status,
		ExpectedAt:     insp.UpdatedAt,
		NewStatus:      tr.to,
		Relation:       &models.UserRelation{RelatedBy: models.RelationRejectedBy, UserID: claims.UserID},
	}
	if insp.IsPost() {
		falseVal := false
		params.HslAccepted = &falseVal
		params.OperatorAccepted = &falseVal
	}
	return s.commit(ctx, ActionReject, insp, params)
}

// Remove deletes a draft or in-production inspection. Removal fails while
// other inspections still reference this one as linked evidence.
func (s *InspectionService) Remove(ctx context.Context, id string, claims *models.JWTClaims) error {
	insp, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !s.policy.AllowedActions(claims, insp).Has(ActionRemove) {
		return appErrors.ErrForbidden
	}
	if insp.Status != models.StatusDraft && insp.Status != models.StatusInProduction {
		return s.fail(ctx, ActionRemove, insp, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("removal is not allowed while %s", insp.Status)))
	}
	refs, err := s.store.CountReferences(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check references")
	}
	if refs > 0 {
		return s.fail(ctx, ActionRemove, insp, appErrors.ErrLinkedRecordExists)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inspection")
	}
	if insp.Status == models.StatusInProduction {
		s.versions.Invalidate(ctx, insp.Key())
	}
	s.record(ActionRemove, "ok")
	s.logger.Info("inspection removed", zap.String("id", id), zap.String("user_id", claims.UserID))
	return nil
}

// UpdateLinkedInspections replaces a post inspection's evidence snapshot
// with the currently qualifying set and clears the staleness flag. The
// status is untouched; the action is unavailable once in production and is
// gated by the same rights as rejection.
func (s *InspectionService) UpdateLinkedInspections(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.AllowedActions(claims, insp).Has(ActionUpdateLinked) {
		return nil, appErrors.ErrForbidden
	}
	if !insp.IsPost() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only post inspections carry linked inspections")
	}
	if insp.Status == models.StatusInProduction {
		return nil, s.fail(ctx, ActionUpdateLinked, insp, appErrors.Clone(appErrors.ErrInvalidTransition,
			"linked inspections are frozen once in production"))
	}
	if s.qualifying == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "qualifying-set provider not configured")
	}
	current, err := s.qualifying.QualifyingPreInspections(ctx, insp.OperatorID, insp.InspectionStartDate, insp.InspectionEndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute qualifying set")
	}
	if err := s.store.ReplaceLinks(ctx, id, s.linkage.Snapshot(id, current)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update linked inspections")
	}
	s.record(ActionUpdateLinked, "ok")
	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, updated)
}

// RefreshLinkage recomputes the staleness flag of one post inspection
// against the current qualifying set. Used by the background refresher
// after contributing pre inspections publish.
func (s *InspectionService) RefreshLinkage(ctx context.Context, id string) error {
	insp, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !insp.IsPost() || insp.Status == models.StatusInProduction || s.qualifying == nil {
		return nil
	}
	links, err := s.store.Links(ctx, id)
	if err != nil {
		return err
	}
	current, err := s.qualifying.QualifyingPreInspections(ctx, insp.OperatorID, insp.InspectionStartDate, insp.InspectionEndDate)
	if err != nil {
		return err
	}
	stale := s.linkage.Stale(links, current)
	if stale == insp.LinkedInspectionUpdateAvailable {
		return nil
	}
	return s.store.SetLinkUpdateAvailable(ctx, id, stale)
}

// RefreshOperatorLinkage recomputes staleness flags for every post
// inspection of an operator that is not yet in production.
func (s *InspectionService) RefreshOperatorLinkage(ctx context.Context, operatorID int64) error {
	inspections, err := s.store.PostInspectionsForOperator(ctx, operatorID)
	if err != nil {
		return err
	}
	for i := range inspections {
		if err := s.RefreshLinkage(ctx, inspections[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// InEffect resolves the currently governing version for a key space.
func (s *InspectionService) InEffect(ctx context.Context, query dto.InEffectQuery) (*dto.InEffectResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid in-effect query")
	}
	key := models.VersionKey{
		OperatorID:   query.OperatorID,
		SeasonID:     query.SeasonID,
		DocumentType: query.DocumentType,
	}
	return s.versions.InEffect(ctx, key)
}

func (s *InspectionService) load(ctx context.Context, id string) (*models.Inspection, error) {
	insp, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	return insp, nil
}

func (s *InspectionService) attach(ctx context.Context, insp *models.Inspection) (*models.Inspection, error) {
	errs, err := s.store.ValidationErrors(ctx, insp.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation errors")
	}
	insp.ValidationErrors = errs
	if insp.IsPost() {
		links, err := s.store.Links(ctx, insp.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked inspections")
		}
		insp.LinkedInspections = links
	}
	rels, err := s.store.Relations(ctx, insp.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user relations")
	}
	insp.UserRelations = rels
	return insp, nil
}

// guard runs the shared precondition chain for a transition: actor
// present, role policy allows the action, and the action is legal from the
// current status.
func (s *InspectionService) guard(action Action, claims *models.JWTClaims, insp *models.Inspection) (lifecycleTransition, error) {
	if claims == nil {
		return lifecycleTransition{}, appErrors.ErrUnauthorized
	}
	if !s.policy.AllowedActions(claims, insp).Has(action) {
		return lifecycleTransition{}, appErrors.ErrForbidden
	}
	tr, ok := transitionFor(action, insp)
	if !ok {
		return lifecycleTransition{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("%s is not allowed for a %s inspection while %s", action, insp.DocumentType, insp.Status))
	}
	return tr, nil
}

func (s *InspectionService) checkBlocking(ctx context.Context, insp *models.Inspection) error {
	errs, err := s.store.ValidationErrors(ctx, insp.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation errors")
	}
	if s.gate.Blocked(errs) {
		return appErrors.ErrValidationBlocked
	}
	return nil
}

func (s *InspectionService) checkProductionWindow(ctx context.Context, insp *models.Inspection, start, end time.Time) error {
	if start.Before(insp.MinStartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "start date precedes the earliest allowed start")
	}
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	season, err := s.seasons.GetByID(ctx, insp.SeasonID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load season")
	}
	if end.After(season.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date exceeds the season end")
	}
	return nil
}

// checkEditedDates validates the merged date fields of a draft edit. Every
// invariant that can be checked without the season lookup is enforced
// here; the full window check runs again on submission.
func (s *InspectionService) checkEditedDates(insp *models.Inspection, req dto.UpdateInspectionRequest) error {
	minStart := insp.MinStartDate
	start := insp.StartDate
	end := insp.EndDate
	auditStart := insp.InspectionStartDate
	auditEnd := insp.InspectionEndDate
	if req.MinStartDate != nil {
		minStart = *req.MinStartDate
	}
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if req.InspectionStartDate != nil {
		auditStart = *req.InspectionStartDate
	}
	if req.InspectionEndDate != nil {
		auditEnd = *req.InspectionEndDate
	}
	if start.Before(minStart) {
		return appErrors.Clone(appErrors.ErrValidation, "start date precedes the earliest allowed start")
	}
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}
	if auditStart.After(auditEnd) {
		return appErrors.Clone(appErrors.ErrValidation, "inspection start date must not be after inspection end date")
	}
	return nil
}

// commit performs the atomic compare-and-commit and resolves zero-row
// updates into not-found or concurrent-modification.
func (s *InspectionService) commit(ctx context.Context, action Action, insp *models.Inspection, params repository.TransitionParams) (*models.Inspection, error) {
	committed, err := s.store.CommitTransition(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, loadErr := s.store.GetByID(ctx, params.ID); loadErr != nil {
				return nil, s.fail(ctx, action, nil, appErrors.ErrNotFound)
			}
			return nil, s.fail(ctx, action, insp, appErrors.ErrConcurrentModification)
		}
		return nil, s.fail(ctx, action, insp, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit transition"))
	}
	s.record(action, "ok")
	s.logger.Info("inspection transition committed",
		zap.String("id", committed.ID),
		zap.String("action", string(action)),
		zap.String("status", string(committed.Status)),
	)
	s.emitStatus(ctx, committed)
	return s.attach(ctx, committed)
}

// fail records the failure, notifies subscribers and returns the error
// unchanged so callers can hand it straight back.
func (s *InspectionService) fail(ctx context.Context, action Action, insp *models.Inspection, err error) error {
	appErr := appErrors.FromError(err)
	s.record(action, appErr.Code)
	s.emitError(ctx, insp, appErr)
	return appErr
}

func (s *InspectionService) record(action Action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(action, outcome)
	}
}

func (s *InspectionService) emitStatus(ctx context.Context, insp *models.Inspection) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, models.StatusEvent(insp))
	if s.metrics != nil {
		s.metrics.RecordEvent(string(models.EventStatusChanged))
	}
}

func (s *InspectionService) emitError(ctx context.Context, insp *models.Inspection, appErr *appErrors.Error) {
	if s.publisher == nil || insp == nil {
		return
	}
	s.publisher.Publish(ctx, models.ErrorEvent(insp, appErr.Code, appErr.Message))
	if s.metrics != nil {
		s.metrics.RecordEvent(string(models.EventErrorOccurred))
	}
}

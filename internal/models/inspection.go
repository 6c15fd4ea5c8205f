package models

import "time"

// DocumentType distinguishes forward-looking compliance plans from
// retrospective audits.
type DocumentType string

const (
	DocumentTypePre  DocumentType = "PRE"
	DocumentTypePost DocumentType = "POST"
)

// InspectionStatus captures lifecycle states for inspection documents.
type InspectionStatus string

const (
	StatusDraft        InspectionStatus = "DRAFT"
	StatusSanctionable InspectionStatus = "SANCTIONABLE"
	StatusInReview     InspectionStatus = "IN_REVIEW"
	StatusInProduction InspectionStatus = "IN_PRODUCTION"
)

// AcceptanceParty identifies who is accepting a post inspection in review.
type AcceptanceParty string

const (
	PartyHSL      AcceptanceParty = "hsl"
	PartyOperator AcceptanceParty = "operator"
)

// Inspection is the versioned regulatory document under lifecycle management.
// UpdatedAt doubles as the optimistic-concurrency token: every transition
// commits with a WHERE updated_at = <read value> guard.
type Inspection struct {
	ID           string           `db:"id" json:"id"`
	DocumentType DocumentType     `db:"document_type" json:"documentType"`
	Status       InspectionStatus `db:"status" json:"status"`
	Version      int              `db:"version" json:"version"`
	OperatorID   int64            `db:"operator_id" json:"operatorId"`
	SeasonID     string           `db:"season_id" json:"seasonId"`
	Name         string           `db:"name" json:"name"`

	MinStartDate time.Time `db:"min_start_date" json:"minStartDate"`
	StartDate    time.Time `db:"start_date" json:"startDate"`
	EndDate      time.Time `db:"end_date" json:"endDate"`

	InspectionStartDate time.Time `db:"inspection_start_date" json:"inspectionStartDate"`
	InspectionEndDate   time.Time `db:"inspection_end_date" json:"inspectionEndDate"`

	HslAccepted                    bool `db:"hsl_accepted" json:"hslAccepted"`
	OperatorAccepted               bool `db:"operator_accepted" json:"operatorAccepted"`
	LinkedInspectionUpdateAvailable bool `db:"linked_inspection_update_available" json:"linkedInspectionUpdateAvailable"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	ValidationErrors  []ValidationError  `db:"-" json:"validationErrors,omitempty"`
	LinkedInspections []LinkedInspection `db:"-" json:"linkedInspections,omitempty"`
	UserRelations     []UserRelation     `db:"-" json:"userRelations,omitempty"`
}

// IsPost reports whether the inspection is a retrospective audit document.
func (i *Inspection) IsPost() bool {
	return i.DocumentType == DocumentTypePost
}

// VersionKey groups the fields within which versions are unique and
// strictly increasing.
type VersionKey struct {
	OperatorID   int64
	SeasonID     string
	DocumentType DocumentType
}

// Key returns the inspection's version key space.
func (i *Inspection) Key() VersionKey {
	return VersionKey{OperatorID: i.OperatorID, SeasonID: i.SeasonID, DocumentType: i.DocumentType}
}

// LinkedInspection is one entry of a post inspection's evidence snapshot.
// LinkedVersion is the contributing pre inspection's version at snapshot
// time and serves as the staleness witness.
type LinkedInspection struct {
	InspectionID  string    `db:"inspection_id" json:"inspectionId"`
	LinkedID      string    `db:"linked_id" json:"linkedId"`
	LinkedVersion int       `db:"linked_version" json:"linkedVersion"`
	SnapshotAt    time.Time `db:"snapshot_at" json:"snapshotAt"`
}

// RelationRole labels audit-trail entries recorded on transitions.
type RelationRole string

const (
	RelationCreatedBy            RelationRole = "CREATED_BY"
	RelationUpdatedBy            RelationRole = "UPDATED_BY"
	RelationSubmittedBy          RelationRole = "SUBMITTED_BY"
	RelationPublishedBy          RelationRole = "PUBLISHED_BY"
	RelationRejectedBy           RelationRole = "REJECTED_BY"
	RelationMadeSanctionableBy   RelationRole = "MADE_SANCTIONABLE_BY"
	RelationSanctionsAbandonedBy RelationRole = "SANCTIONS_ABANDONED_BY"
)

// UserRelation is an append-only audit trail row. Rows are never mutated,
// only appended alongside the transition that caused them.
type UserRelation struct {
	ID           string       `db:"id" json:"id"`
	InspectionID string       `db:"inspection_id" json:"inspectionId"`
	RelatedBy    RelationRole `db:"related_by" json:"relatedBy"`
	UserID       string       `db:"user_id" json:"userId"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// InspectionFilter constrains listing queries.
type InspectionFilter struct {
	OperatorID   *int64
	SeasonID     string
	DocumentType DocumentType
	Status       []InspectionStatus
	Page         int
	PageSize     int
}

package dto

import (
	"time"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

// CreateInspectionRequest opens a new draft inspection. The version is
// assigned server-side; season dates come from the season reference data.
type CreateInspectionRequest struct {
	OperatorID          int64               `json:"operatorId" validate:"required,gt=0"`
	SeasonID            string              `json:"seasonId" validate:"required"`
	DocumentType        models.DocumentType `json:"documentType" validate:"required,oneof=PRE POST"`
	Name                string              `json:"name"`
	InspectionStartDate *time.Time          `json:"inspectionStartDate"`
	InspectionEndDate   *time.Time          `json:"inspectionEndDate"`
}

// UpdateInspectionRequest edits free-form fields. Name is editable in any
// state; the remaining fields only while the inspection is a draft. These
// edits are last-write-wins, unlike lifecycle transitions.
type UpdateInspectionRequest struct {
	Name                *string    `json:"name"`
	MinStartDate        *time.Time `json:"minStartDate"`
	StartDate           *time.Time `json:"startDate"`
	EndDate             *time.Time `json:"endDate"`
	InspectionStartDate *time.Time `json:"inspectionStartDate"`
	InspectionEndDate   *time.Time `json:"inspectionEndDate"`
}

// SubmitInspectionRequest moves a draft (pre) or sanctionable (post)
// inspection into review with its production validity window.
type SubmitInspectionRequest struct {
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// AcceptInspectionRequest records one party's acceptance of a post
// inspection in review.
type AcceptInspectionRequest struct {
	Party models.AcceptanceParty `json:"party" validate:"required,oneof=hsl operator"`
}

// InspectionQuery filters list requests.
type InspectionQuery struct {
	OperatorID   *int64                    `form:"operatorId"`
	SeasonID     string                    `form:"seasonId"`
	DocumentType models.DocumentType       `form:"documentType"`
	Status       []models.InspectionStatus `form:"status"`
	Page         int                       `form:"page"`
	PageSize     int                       `form:"pageSize"`
}

// InEffectQuery identifies a version key space.
type InEffectQuery struct {
	OperatorID   int64               `form:"operatorId" validate:"required,gt=0"`
	SeasonID     string              `form:"seasonId" validate:"required"`
	DocumentType models.DocumentType `form:"documentType" validate:"required,oneof=PRE POST"`
}

// InEffectResponse reports which version currently governs a key space,
// if any.
type InEffectResponse struct {
	OperatorID   int64               `json:"operatorId"`
	SeasonID     string              `json:"seasonId"`
	DocumentType models.DocumentType `json:"documentType"`
	InspectionID string              `json:"inspectionId,omitempty"`
	Version      int                 `json:"version,omitempty"`
	InEffect     bool                `json:"inEffect"`
}

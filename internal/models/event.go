package models

import "time"

// EventKind separates status-change notifications from error notifications.
type EventKind string

const (
	EventStatusChanged EventKind = "STATUS_CHANGED"
	EventErrorOccurred EventKind = "ERROR_OCCURRED"
)

// InspectionEvent is delivered to every subscriber of an inspection id
// after a transition commits (or fails). Seq is the committed record's
// UpdatedAt in unix nanoseconds; delivery order is not guaranteed, so
// receivers must discard events with a Seq at or below the last one they
// applied for the same id.
type InspectionEvent struct {
	Kind         EventKind        `json:"kind"`
	InspectionID string           `json:"inspectionId"`
	Status       InspectionStatus `json:"status"`
	Seq          int64            `json:"seq"`

	// Status change payload.
	StartDate           *time.Time `json:"startDate,omitempty"`
	EndDate             *time.Time `json:"endDate,omitempty"`
	InspectionStartDate *time.Time `json:"inspectionStartDate,omitempty"`
	InspectionEndDate   *time.Time `json:"inspectionEndDate,omitempty"`
	Version             int        `json:"version,omitempty"`

	// Error payload.
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StatusEvent builds the notification for a committed transition.
func StatusEvent(insp *Inspection) InspectionEvent {
	start, end := insp.StartDate, insp.EndDate
	auditStart, auditEnd := insp.InspectionStartDate, insp.InspectionEndDate
	return InspectionEvent{
		Kind:                EventStatusChanged,
		InspectionID:        insp.ID,
		Status:              insp.Status,
		Seq:                 insp.UpdatedAt.UnixNano(),
		StartDate:           &start,
		EndDate:             &end,
		InspectionStartDate: &auditStart,
		InspectionEndDate:   &auditEnd,
		Version:             insp.Version,
	}
}

// ErrorEvent builds the notification for a failed transition.
func ErrorEvent(insp *Inspection, errorType, message string) InspectionEvent {
	ev := InspectionEvent{
		Kind:      EventErrorOccurred,
		ErrorType: errorType,
		Message:   message,
		Seq:       time.Now().UnixNano(),
	}
	if insp != nil {
		ev.InspectionID = insp.ID
		ev.Status = insp.Status
	}
	return ev
}

package models

import "github.com/lib/pq"

// ValidationError is one error attached to an inspection by the external
// error-computation service. The lifecycle core never writes these rows;
// it only reads and classifies them.
type ValidationError struct {
	ID            string         `db:"id" json:"id"`
	InspectionID  string         `db:"inspection_id" json:"inspectionId"`
	Type          string         `db:"type" json:"type"`
	ObjectID      string         `db:"object_id" json:"objectId"`
	Keys          pq.StringArray `db:"keys" json:"keys"`
	ReferenceKeys pq.StringArray `db:"reference_keys" json:"referenceKeys"`
}

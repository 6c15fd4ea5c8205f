package models

import "time"

// Season is an external reference entity; only its date bounds matter to
// the lifecycle core (production windows must fit inside the season).
type Season struct {
	ID        string    `db:"id" json:"id"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
}

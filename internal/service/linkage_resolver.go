package service

import (
	"github.com/javandres/bultti-inspections-api/internal/models"
)

// LinkageResolver detects when a post inspection's evidence snapshot has
// drifted from the currently qualifying pre inspections. It never decides
// which inspections qualify; that set is supplied by the collaborator.
type LinkageResolver struct{}

// Stale reports whether the snapshot differs from the current qualifying
// set, either in membership or because a contributing pre inspection has
// been republished at a higher version since the snapshot was taken.
func (LinkageResolver) Stale(snapshot []models.LinkedInspection, current []models.Inspection) bool {
	if len(snapshot) != len(current) {
		return true
	}
	witness := make(map[string]int, len(snapshot))
	for _, link := range snapshot {
		witness[link.LinkedID] = link.LinkedVersion
	}
	for _, insp := range current {
		version, ok := witness[insp.ID]
		if !ok || version != insp.Version {
			return true
		}
	}
	return false
}

// Snapshot converts the current qualifying set into linkage rows for a
// post inspection, capturing each contributor's version as the staleness
// witness.
func (LinkageResolver) Snapshot(inspectionID string, current []models.Inspection) []models.LinkedInspection {
	links := make([]models.LinkedInspection, 0, len(current))
	for _, insp := range current {
		links = append(links, models.LinkedInspection{
			InspectionID:  inspectionID,
			LinkedID:      insp.ID,
			LinkedVersion: insp.Version,
		})
	}
	return links
}

package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

func TestCursorDiscardsStaleAndDuplicateEvents(t *testing.T) {
	cursor := NewCursor()

	require.True(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-1", Seq: 10}))
	// Duplicate delivery.
	require.False(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-1", Seq: 10}))
	// Out-of-order older event.
	require.False(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-1", Seq: 5}))
	// Newer event advances.
	require.True(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-1", Seq: 11}))
}

func TestCursorTracksInspectionsIndependently(t *testing.T) {
	cursor := NewCursor()

	require.True(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-1", Seq: 10}))
	require.True(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-2", Seq: 3}))
	require.False(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-2", Seq: 3}))
	require.True(t, cursor.Apply(models.InspectionEvent{InspectionID: "insp-2", Seq: 4}))
}

package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

func TestLinkageResolverStale(t *testing.T) {
	var resolver LinkageResolver
	snapshot := []models.LinkedInspection{
		{InspectionID: "post-1", LinkedID: "pre-1", LinkedVersion: 1},
		{InspectionID: "post-1", LinkedID: "pre-2", LinkedVersion: 3},
	}
	current := []models.Inspection{
		{ID: "pre-1", Version: 1},
		{ID: "pre-2", Version: 3},
	}

	require.False(t, resolver.Stale(snapshot, current))

	// A contributor republished at a higher version.
	require.True(t, resolver.Stale(snapshot, []models.Inspection{
		{ID: "pre-1", Version: 2},
		{ID: "pre-2", Version: 3},
	}))

	// Membership drift in either direction.
	require.True(t, resolver.Stale(snapshot, current[:1]))
	require.True(t, resolver.Stale(snapshot, append(current, models.Inspection{ID: "pre-3", Version: 1})))
	require.True(t, resolver.Stale(snapshot, []models.Inspection{
		{ID: "pre-1", Version: 1},
		{ID: "pre-9", Version: 1},
	}))

	require.False(t, resolver.Stale(nil, nil))
}

func TestLinkageResolverSnapshot(t *testing.T) {
	var resolver LinkageResolver
	links := resolver.Snapshot("post-1", []models.Inspection{
		{ID: "pre-1", Version: 2},
		{ID: "pre-2", Version: 1},
	})

	require.Len(t, links, 2)
	require.Equal(t, "post-1", links[0].InspectionID)
	require.Equal(t, "pre-1", links[0].LinkedID)
	require.Equal(t, 2, links[0].LinkedVersion)

	// A fresh snapshot is never stale against the set it was taken from.
	require.False(t, resolver.Stale(links, []models.Inspection{
		{ID: "pre-1", Version: 2},
		{ID: "pre-2", Version: 1},
	}))
}

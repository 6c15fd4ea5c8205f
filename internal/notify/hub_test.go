package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

type dropCounter struct {
	dropped int
}

func (d *dropCounter) RecordDroppedEvent() { d.dropped++ }

func TestHubDeliversToMatchingSubscribers(t *testing.T) {
	hub := NewHub(4, nil)
	chA, cancelA := hub.Subscribe("insp-1")
	defer cancelA()
	chB, cancelB := hub.Subscribe("insp-1")
	defer cancelB()
	chOther, cancelOther := hub.Subscribe("insp-2")
	defer cancelOther()

	ev := models.InspectionEvent{Kind: models.EventStatusChanged, InspectionID: "insp-1", Seq: 1}
	hub.Publish(context.Background(), ev)

	require.Equal(t, ev, <-chA)
	require.Equal(t, ev, <-chB)
	select {
	case unexpected := <-chOther:
		t.Fatalf("subscriber of another inspection received %+v", unexpected)
	default:
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	metrics := &dropCounter{}
	hub := NewHub(1, nil, WithMetrics(metrics))
	ch, cancel := hub.Subscribe("insp-1")
	defer cancel()

	hub.Publish(context.Background(), models.InspectionEvent{InspectionID: "insp-1", Seq: 1})
	hub.Publish(context.Background(), models.InspectionEvent{InspectionID: "insp-1", Seq: 2})

	require.Equal(t, 1, metrics.dropped)
	first := <-ch
	require.EqualValues(t, 1, first.Seq)
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(4, nil)
	ch, cancel := hub.Subscribe("insp-1")
	cancel()
	// A second cancel is harmless.
	cancel()

	_, open := <-ch
	require.False(t, open)

	// Publishing after cancellation must not panic or deliver.
	hub.Publish(context.Background(), models.InspectionEvent{InspectionID: "insp-1", Seq: 1})
}

func TestHubSubscriptionsAreIndependent(t *testing.T) {
	hub := NewHub(4, nil)
	ch1, cancel1 := hub.Subscribe("insp-1")
	ch2, cancel2 := hub.Subscribe("insp-1")
	defer cancel2()
	cancel1()

	hub.Publish(context.Background(), models.InspectionEvent{InspectionID: "insp-1", Seq: 5})
	require.EqualValues(t, 5, (<-ch2).Seq)

	_, open := <-ch1
	require.False(t, open)
}

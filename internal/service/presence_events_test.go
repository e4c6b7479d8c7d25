package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prmsu-campus/presence-api/internal/dto"
)

func TestPresenceEventsBroadcastToCampusSubscribers(t *testing.T) {
	events := NewPresenceEvents(nil, "", nil, testLogger())

	mainFeed, cancelMain := events.Subscribe("main")
	defer cancelMain()
	satelliteFeed, cancelSatellite := events.Subscribe("satellite")
	defer cancelSatellite()

	events.Publish(context.Background(), "main", "prof-a", EventPresenceUpdated)

	select {
	case event := <-mainFeed:
		require.Equal(t, "prof-a", event.SubjectID)
		require.Equal(t, EventPresenceUpdated, event.Kind)
		require.Equal(t, "main", event.CampusID)
	case <-time.After(time.Second):
		t.Fatal("expected an event on the main campus feed")
	}

	select {
	case event := <-satelliteFeed:
		t.Fatalf("unexpected event on the satellite feed: %+v", event)
	default:
	}
}

func TestPresenceEventsCancelClosesChannel(t *testing.T) {
	events := NewPresenceEvents(nil, "", nil, testLogger())

	feed, cancel := events.Subscribe("main")
	cancel()

	_, open := <-feed
	require.False(t, open)

	// Publishing after the last unsubscribe must not panic or block.
	events.Publish(context.Background(), "main", "prof-a", EventPresenceCleared)
}

func TestPresenceEventsInvokeRegisteredHooks(t *testing.T) {
	events := NewPresenceEvents(nil, "", nil, testLogger())

	var seen []dto.PresenceEvent
	events.OnEvent(func(event dto.PresenceEvent) {
		seen = append(seen, event)
	})

	events.Publish(context.Background(), "main", "prof-a", EventSharingChanged)

	require.Len(t, seen, 1)
	require.Equal(t, "main", seen[0].CampusID)
	require.Equal(t, EventSharingChanged, seen[0].Kind)
}

func TestPresenceEventsDropForSlowSubscribers(t *testing.T) {
	events := NewPresenceEvents(nil, "", nil, testLogger())

	feed, cancel := events.Subscribe("main")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < presenceEventBufferSize+10; i++ {
			events.Publish(context.Background(), "main", "prof-a", EventPresenceUpdated)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	var received []dto.PresenceEvent
drain:
	for {
		select {
		case event := <-feed:
			received = append(received, event)
		default:
			break drain
		}
	}
	require.Len(t, received, presenceEventBufferSize)
}

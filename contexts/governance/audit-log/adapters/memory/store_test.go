package memory

import (
	"context"
	"testing"
	"time"

	"psephos/contexts/governance/audit-log/domain/entities"

	"github.com/stretchr/testify/require"
)

func TestAppendOnceIsAtMostOncePerElectionAndType(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.AppendOnce(ctx, entities.Entry{
		ElectionID: 7,
		EventType:  entities.EventQuorumReached,
		Public:     true,
	})
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.AppendOnce(ctx, entities.Entry{
		ElectionID: 7,
		EventType:  entities.EventQuorumReached,
		Public:     true,
	})
	require.NoError(t, err)
	require.False(t, created)

	// A different election is an independent singleton.
	created, err = store.AppendOnce(ctx, entities.Entry{
		ElectionID: 8,
		EventType:  entities.EventQuorumReached,
	})
	require.NoError(t, err)
	require.True(t, created)

	entries, err := store.ListAll(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestListOrdersByTimestampThenID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, entities.Entry{
		ID: "z", ElectionID: 1, EventType: entities.EventTallyRound, Public: true, Timestamp: base,
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, entities.Entry{
		ID: "a", ElectionID: 1, EventType: entities.EventTallyRound, Public: true, Timestamp: base,
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, entities.Entry{
		ID: "m", ElectionID: 1, EventType: entities.EventBallotSubmitted, Public: false, Timestamp: base.Add(-time.Minute),
	})
	require.NoError(t, err)

	all, err := store.ListAll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "m", all[0].ID)
	require.Equal(t, "a", all[1].ID)
	require.Equal(t, "z", all[2].ID)

	public, err := store.ListPublic(ctx, 1)
	require.NoError(t, err)
	require.Len(t, public, 2)
	for _, entry := range public {
		require.True(t, entry.Public)
	}
}

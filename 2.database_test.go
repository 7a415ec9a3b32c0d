package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDBCounter int

// setupTestDB points the global DB at a fresh shared in-memory database.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter)

	ctx := context.Background()
	require.NoError(t, InitDatabase(ctx, dsn))
	t.Cleanup(CloseDatabase)
	return ctx
}

func testGiveaway(endsAt time.Time) *Giveaway {
	return &Giveaway{
		MessageID:    snowflake.ID(100 + testDBCounter),
		GuildID:      snowflake.ID(1),
		ChannelID:    snowflake.ID(2),
		WinnerAmount: 2,
		EndsAt:       endsAt.UTC(),
		Prize:        "Nitro",
		HostID:       snowflake.ID(3),
	}
}

func TestGiveawayRoundTrip(t *testing.T) {
	ctx := setupTestDB(t)

	g := testGiveaway(time.Now().Add(time.Hour))
	require.NoError(t, AddGiveaway(ctx, g))

	got, err := GetGiveaway(ctx, g.MessageID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.MessageID, got.MessageID)
	assert.Equal(t, g.Prize, got.Prize)
	assert.Equal(t, g.WinnerAmount, got.WinnerAmount)
	assert.False(t, got.Ended)
	assert.Empty(t, got.WinnerList)

	missing, err := GetGiveaway(ctx, snowflake.ID(999999))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGiveawayTerminalState(t *testing.T) {
	ctx := setupTestDB(t)

	g := testGiveaway(time.Now().Add(-time.Minute))
	require.NoError(t, AddGiveaway(ctx, g))

	winners := []snowflake.ID{10, 20}
	require.NoError(t, MarkGiveawayEnded(ctx, g.MessageID, winners))

	got, err := GetGiveaway(ctx, g.MessageID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Ended)
	assert.Equal(t, winners, got.WinnerList)

	// Ended giveaways are no longer endable.
	due, err := GetEndableGiveaways(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestGetEndableGiveawaysHorizon(t *testing.T) {
	ctx := setupTestDB(t)

	due := testGiveaway(time.Now().Add(3 * time.Second))
	require.NoError(t, AddGiveaway(ctx, due))

	far := testGiveaway(time.Now().Add(time.Hour))
	far.MessageID = due.MessageID + 1
	require.NoError(t, AddGiveaway(ctx, far))

	endable, err := GetEndableGiveaways(ctx, time.Now().Add(giveawayPollInterval))
	require.NoError(t, err)
	require.Len(t, endable, 1)
	assert.Equal(t, due.MessageID, endable[0].MessageID)
}

func TestParticipantJoinLeave(t *testing.T) {
	ctx := setupTestDB(t)

	g := testGiveaway(time.Now().Add(time.Hour))
	require.NoError(t, AddGiveaway(ctx, g))

	user := snowflake.ID(42)
	require.NoError(t, AddParticipant(ctx, g.GuildID, g.ChannelID, g.MessageID, user))

	// A duplicate join surfaces as a unique violation, not a silent success.
	err := AddParticipant(ctx, g.GuildID, g.ChannelID, g.MessageID, user)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	participants, err := GetParticipants(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{user}, participants)

	removed, err := RemoveParticipant(ctx, g.MessageID, user)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = RemoveParticipant(ctx, g.MessageID, user)
	require.NoError(t, err)
	assert.False(t, removed)

	participants, err = GetParticipants(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Empty(t, participants)
}

func TestDeleteGuildParticipant(t *testing.T) {
	ctx := setupTestDB(t)

	g1 := testGiveaway(time.Now().Add(time.Hour))
	g2 := testGiveaway(time.Now().Add(time.Hour))
	g2.MessageID = g1.MessageID + 1
	require.NoError(t, AddGiveaway(ctx, g1))
	require.NoError(t, AddGiveaway(ctx, g2))

	leaver := snowflake.ID(42)
	stayer := snowflake.ID(43)
	require.NoError(t, AddParticipant(ctx, g1.GuildID, g1.ChannelID, g1.MessageID, leaver))
	require.NoError(t, AddParticipant(ctx, g2.GuildID, g2.ChannelID, g2.MessageID, leaver))
	require.NoError(t, AddParticipant(ctx, g1.GuildID, g1.ChannelID, g1.MessageID, stayer))

	require.NoError(t, DeleteGuildParticipant(ctx, g1.GuildID, leaver))

	p1, err := GetParticipants(ctx, g1.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{stayer}, p1)

	p2, err := GetParticipants(ctx, g2.MessageID)
	require.NoError(t, err)
	assert.Empty(t, p2)
}

func TestRetentionBoundary(t *testing.T) {
	ctx := setupTestDB(t)

	old := testGiveaway(time.Now().Add(-giveawayRetention - time.Second))
	require.NoError(t, AddGiveaway(ctx, old))
	require.NoError(t, MarkGiveawayEnded(ctx, old.MessageID, nil))

	recent := testGiveaway(time.Now().Add(-giveawayRetention + time.Hour))
	recent.MessageID = old.MessageID + 1
	require.NoError(t, AddGiveaway(ctx, recent))
	require.NoError(t, MarkGiveawayEnded(ctx, recent.MessageID, nil))

	// A pending giveaway past the cutoff must survive: retention only applies
	// to ended rows.
	pending := testGiveaway(time.Now().Add(-giveawayRetention - time.Hour))
	pending.MessageID = old.MessageID + 2
	require.NoError(t, AddGiveaway(ctx, pending))

	expired, err := DeleteExpiredGiveaways(ctx, time.Now().Add(-giveawayRetention))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.MessageID, expired[0].MessageID)

	kept, err := GetGiveaway(ctx, recent.MessageID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	keptPending, err := GetGiveaway(ctx, pending.MessageID)
	require.NoError(t, err)
	assert.NotNil(t, keptPending)
}

func TestCountGuildGiveaways(t *testing.T) {
	ctx := setupTestDB(t)

	base := testGiveaway(time.Now().Add(time.Hour))
	otherChannel := snowflake.ID(99)
	for i := 0; i < 3; i++ {
		g := *base
		g.MessageID = base.MessageID + snowflake.ID(i)
		if i == 2 {
			g.ChannelID = otherChannel
		}
		require.NoError(t, AddGiveaway(ctx, &g))
	}

	guildCount, channelCount, err := CountGuildGiveaways(ctx, base.GuildID, base.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, 3, guildCount)
	assert.Equal(t, 2, channelCount)
}

func TestGuildTemplateCRUD(t *testing.T) {
	ctx := setupTestDB(t)
	guildID := snowflake.ID(7)

	got, err := GetGuildTemplate(ctx, guildID)
	require.NoError(t, err)
	assert.Nil(t, got)

	tpl := &GiveawayTemplate{GuildID: guildID, Title: "{prize}", Description: "Ends {ends}"}
	require.NoError(t, SetGuildTemplate(ctx, tpl))

	tpl.Description = "Ends {ends} ({time_left})"
	require.NoError(t, SetGuildTemplate(ctx, tpl))

	got, err = GetGuildTemplate(ctx, guildID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ends {ends} ({time_left})", got.Description)

	require.NoError(t, DeleteGuildTemplate(ctx, guildID))
	got, err = GetGuildTemplate(ctx, guildID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

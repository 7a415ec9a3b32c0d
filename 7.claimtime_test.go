package main

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWith(guildID snowflake.ID, cfg *ClaimtimeConfig) *ClaimtimeStore {
	return &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{guildID: cfg}}
}

func TestClaimtimeLayeringAdds(t *testing.T) {
	guildID := snowflake.ID(1)
	roleA, roleB, roleC := snowflake.ID(10), snowflake.ID(11), snowflake.ID(12)

	s := storeWith(guildID, &ClaimtimeConfig{
		Roles: map[snowflake.ID]ClaimtimeRole{
			roleA: {Time: 10},
			roleB: {Time: 30},
		},
	})

	// Non-override grants add up; roles without a grant contribute nothing.
	got := s.GetMemberClaimtime(guildID, []snowflake.ID{roleA, roleB, roleC})
	assert.Equal(t, 40*time.Second, got)

	// Only held roles count.
	got = s.GetMemberClaimtime(guildID, []snowflake.ID{roleB})
	assert.Equal(t, 30*time.Second, got)

	// No held configured role means no claim window.
	got = s.GetMemberClaimtime(guildID, []snowflake.ID{roleC})
	assert.Equal(t, time.Duration(0), got)
}

func TestClaimtimeLayeringOverride(t *testing.T) {
	guildID := snowflake.ID(1)
	roleA, roleB := snowflake.ID(10), snowflake.ID(11)

	s := storeWith(guildID, &ClaimtimeConfig{
		Roles: map[snowflake.ID]ClaimtimeRole{
			roleA: {Time: 30},
			roleB: {Time: 20, Override: true},
		},
	})

	// An override role replaces whatever accumulated before it, and later
	// non-override grants keep adding on top of the replaced base.
	assert.Equal(t, 20*time.Second, s.GetMemberClaimtime(guildID, []snowflake.ID{roleA, roleB}))
	assert.Equal(t, 50*time.Second, s.GetMemberClaimtime(guildID, []snowflake.ID{roleB, roleA}))

	// Without the override role, the plain grant applies.
	assert.Equal(t, 30*time.Second, s.GetMemberClaimtime(guildID, []snowflake.ID{roleA}))
}

func TestClaimtimeOverrideOrder(t *testing.T) {
	guildID := snowflake.ID(1)
	roleA, roleB := snowflake.ID(10), snowflake.ID(11)

	s := storeWith(guildID, &ClaimtimeConfig{
		Roles: map[snowflake.ID]ClaimtimeRole{
			roleA: {Time: 60, Override: true},
			roleB: {Time: 20, Override: true},
		},
	})

	// With several override roles, each replaces the total in turn, so the
	// last one in the member's role order wins.
	assert.Equal(t, 20*time.Second, s.GetMemberClaimtime(guildID, []snowflake.ID{roleA, roleB}))
	assert.Equal(t, 60*time.Second, s.GetMemberClaimtime(guildID, []snowflake.ID{roleB, roleA}))
}

func TestClaimtimeFractionalSeconds(t *testing.T) {
	ctx := setupTestDB(t)
	guildID := snowflake.ID(6)
	role := snowflake.ID(60)

	s := &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}
	require.NoError(t, s.SetRole(ctx, guildID, role, 30*time.Second+500*time.Millisecond, false))

	// Fractional seconds survive the JSON round trip.
	fresh := &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 30500*time.Millisecond, fresh.GetMemberClaimtime(guildID, []snowflake.ID{role}))
}

func TestClaimtimeUnknownGuild(t *testing.T) {
	s := &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}
	assert.Equal(t, time.Duration(0), s.GetMemberClaimtime(snowflake.ID(1), []snowflake.ID{10}))
	assert.Equal(t, "", s.GetWinMessage(snowflake.ID(1)))
}

func TestClaimtimeWinMessageGating(t *testing.T) {
	guildID := snowflake.ID(1)

	disabled := storeWith(guildID, &ClaimtimeConfig{WinMessage: "You won {prize}!", WinMsgEnabled: false})
	assert.Equal(t, "", disabled.GetWinMessage(guildID))

	enabled := storeWith(guildID, &ClaimtimeConfig{WinMessage: "You won {prize}!", WinMsgEnabled: true})
	assert.Equal(t, "You won {prize}!", enabled.GetWinMessage(guildID))
}

func TestClaimtimeStorePersistence(t *testing.T) {
	ctx := setupTestDB(t)
	guildID := snowflake.ID(5)
	roleA, roleB := snowflake.ID(50), snowflake.ID(51)

	s := &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}

	require.NoError(t, s.SetRole(ctx, guildID, roleA, 30*time.Second, false))
	require.NoError(t, s.SetRole(ctx, guildID, roleB, 20*time.Second, true))
	require.NoError(t, s.SetWinMessage(ctx, guildID, "Claim within {claim_time}!"))
	require.NoError(t, s.SetEnabled(ctx, guildID, true))

	// A fresh store sees everything after Load.
	fresh := &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}
	require.NoError(t, fresh.Load(ctx))

	assert.Equal(t, "Claim within {claim_time}!", fresh.GetWinMessage(guildID))
	assert.Equal(t, 20*time.Second, fresh.GetMemberClaimtime(guildID, []snowflake.ID{roleA, roleB}))
	assert.Equal(t, 30*time.Second, fresh.GetMemberClaimtime(guildID, []snowflake.ID{roleA}))

	removed, err := fresh.RemoveRole(ctx, guildID, roleB)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 30*time.Second, fresh.GetMemberClaimtime(guildID, []snowflake.ID{roleA, roleB}))

	removed, err = fresh.RemoveRole(ctx, guildID, roleB)
	require.NoError(t, err)
	assert.False(t, removed)
}

package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCompletionRegistry() {
	completionMu.Lock()
	completionTasks = map[snowflake.ID]*completionTask{}
	completionMu.Unlock()
}

func TestCompletionRegistrySingleEntry(t *testing.T) {
	resetCompletionRegistry()
	messageID := snowflake.ID(1)

	task, ok := registerCompletion(messageID)
	require.True(t, ok)
	require.NotNil(t, task)

	// A second registration for the same giveaway must fail while the first
	// is in flight: this is what keeps gend and the scheduler from racing.
	dup, ok := registerCompletion(messageID)
	assert.False(t, ok)
	assert.Nil(t, dup)

	// Another giveaway is unaffected.
	other, ok := registerCompletion(snowflake.ID(2))
	assert.True(t, ok)
	assert.NotNil(t, other)
}

func TestCompletionRegistryRetryAfterFinish(t *testing.T) {
	resetCompletionRegistry()
	messageID := snowflake.ID(1)

	task, ok := registerCompletion(messageID)
	require.True(t, ok)

	close(task.done)

	// A finished task no longer blocks re-registration, so a failed
	// completion is retried on the next poll.
	retry, ok := registerCompletion(messageID)
	assert.True(t, ok)
	assert.NotSame(t, task, retry)
}

func TestPurgeCompletionTasks(t *testing.T) {
	resetCompletionRegistry()

	finished, _ := registerCompletion(snowflake.ID(1))
	close(finished.done)
	running, _ := registerCompletion(snowflake.ID(2))

	purgeCompletionTasks()

	completionMu.Lock()
	defer completionMu.Unlock()
	assert.NotContains(t, completionTasks, snowflake.ID(1))
	assert.Same(t, running, completionTasks[snowflake.ID(2)])
}

func TestPickWinners(t *testing.T) {
	pool := []snowflake.ID{1, 2, 3, 4, 5}

	winners := pickWinners(pool, 2)
	require.Len(t, winners, 2)
	assert.NotEqual(t, winners[0], winners[1])
	for _, w := range winners {
		assert.Contains(t, pool, w)
	}

	// Too few participants yields no winners at all, never a partial draw.
	assert.Nil(t, pickWinners([]snowflake.ID{1}, 2))
	assert.Nil(t, pickWinners(nil, 1))

	// Drawing everyone is allowed.
	all := pickWinners(pool, len(pool))
	assert.ElementsMatch(t, pool, all)

	// The input pool is left untouched.
	assert.Equal(t, []snowflake.ID{1, 2, 3, 4, 5}, pool)
}

func TestPickWinnersDistinct(t *testing.T) {
	pool := []snowflake.ID{1, 2, 3, 4, 5, 6, 7, 8}
	for i := 0; i < 50; i++ {
		winners := pickWinners(pool, 3)
		require.Len(t, winners, 3)
		seen := map[snowflake.ID]bool{}
		for _, w := range winners {
			assert.False(t, seen[w], "winner %s drawn twice", w)
			seen[w] = true
		}
	}
}

func TestApplyTemplateVars(t *testing.T) {
	out := applyTemplateVars("{prize} hosted by {host(mention)} ends {ends}", map[string]string{
		"prize":         "Nitro",
		"host(mention)": "<@3>",
		"ends":          "<t:0:F>",
	})
	assert.Equal(t, "Nitro hosted by <@3> ends <t:0:F>", out)

	// Unknown placeholders pass through untouched.
	out = applyTemplateVars("{prize} {unknown}", map[string]string{"prize": "Nitro"})
	assert.Equal(t, "Nitro {unknown}", out)
}

func TestWinnerReplySubstitution(t *testing.T) {
	text := applyTemplateVars(MsgGiveawayWinnerReply, map[string]string{
		"winner(mention)": MentionUser(snowflake.ID(42)),
		"prize":           "Nitro",
	})
	assert.Equal(t, "Congratulations <@42>! You won **Nitro**!", text)
}

func TestGuildGiveawayTemplateSelection(t *testing.T) {
	ctx := setupTestDB(t)
	guildID := snowflake.ID(1)

	// Without a stored template both renditions fall back to the defaults.
	title, description := guildGiveawayTemplate(ctx, guildID)
	assert.Equal(t, defaultGiveawayTitle, title)
	assert.Equal(t, defaultGiveawayDescription, description)

	require.NoError(t, SetGuildTemplate(ctx, &GiveawayTemplate{
		GuildID:     guildID,
		Title:       "{prize} giveaway",
		Description: "Winners: {winner_list}",
	}))

	// The stored template drives the ended rendition too, with the winner
	// list substituted in.
	title, description = guildGiveawayTemplate(ctx, guildID)
	assert.Equal(t, "{prize} giveaway", title)
	out := applyTemplateVars(description, map[string]string{"winner_list": "<@7>, <@8>"})
	assert.Equal(t, "Winners: <@7>, <@8>", out)
}

func TestCompletionNotices(t *testing.T) {
	// The no-winner reply carries the needed and actual entry counts.
	assert.Equal(t, "Could not determine a winner! Needed 2, got 1.",
		fmt.Sprintf(MsgGiveawayNoWinner, 2, 1))

	// The claim window closes with a notice, not a silent deletion.
	assert.Equal(t, "30.00 seconds finished!",
		fmt.Sprintf(MsgClaimtimeExpiredReply, (30*time.Second).Seconds()))
}

func TestSweepExpiredGiveaways(t *testing.T) {
	ctx := setupTestDB(t)

	g := testGiveaway(time.Now().Add(-giveawayRetention - time.Hour))
	require.NoError(t, AddGiveaway(ctx, g))
	require.NoError(t, MarkGiveawayEnded(ctx, g.MessageID, nil))
	require.NoError(t, AddParticipant(ctx, g.GuildID, g.ChannelID, g.MessageID, snowflake.ID(42)))

	sweepExpiredGiveaways(ctx)

	gone, err := GetGiveaway(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	participants, err := GetParticipants(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Empty(t, participants)
}

package main

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGiveawayDurationShorthand(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1.5h", 90 * time.Minute},
		{"2,5d", 60 * time.Hour},
		{" 10M ", 10 * time.Minute},
	}
	for _, c := range cases {
		got, err := ParseGiveawayDuration(c.input)
		require.NoError(t, err, "input %q", c.input)
		assert.Equal(t, c.want, got, "input %q", c.input)
	}
}

func TestParseGiveawayDurationNatural(t *testing.T) {
	got, err := ParseGiveawayDuration("in 2 hours")
	require.NoError(t, err)
	assert.InDelta(t, (2 * time.Hour).Seconds(), got.Seconds(), 60)
}

func TestParseGiveawayDurationInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-5m", "0s", "5w"} {
		_, err := ParseGiveawayDuration(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIDListRoundTrip(t *testing.T) {
	ids := []snowflake.ID{1, 42, 9007199254740993}
	encoded := JoinIDList(ids)
	assert.Equal(t, "1,42,9007199254740993", encoded)

	decoded, err := SplitIDList(encoded)
	require.NoError(t, err)
	assert.Equal(t, ids, decoded)

	empty, err := SplitIDList("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = SplitIDList("1,notanid")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
	assert.Equal(t, "5m 0s", FormatDuration(5*time.Minute))
	assert.Equal(t, "1h 30m", FormatDuration(90*time.Minute))
	assert.Equal(t, "2d 4h", FormatDuration(52*time.Hour))
	assert.Equal(t, "0s", FormatDuration(0))
}

func TestMentionHelpers(t *testing.T) {
	assert.Equal(t, "<@42>", MentionUser(snowflake.ID(42)))
	assert.Equal(t, "<@1>, <@2>", MentionList([]snowflake.ID{1, 2}))

	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", RelativeTimestamp(ts))
	assert.Equal(t, "<t:1700000000:F>", FullTimestamp(ts))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hell...", Truncate("hello world", 7))
	assert.Equal(t, "he", Truncate("hello", 2))
}

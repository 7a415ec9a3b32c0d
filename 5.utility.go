package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sho0pi/naturaltime"
)

// ============================================================================
// Duration Parsing
// ============================================================================

var (
	durationParser *naturaltime.Parser

	// Shorthand like "30s", "1.5h", "2,5d".
	durationShorthand = regexp.MustCompile(`^(\d{1,5}(?:[.,]\d{1,5})?)([smhd])$`)
)

func init() {
	var err error
	durationParser, err = naturaltime.New()
	if err != nil {
		LogFatal("Failed to initialize naturaltime parser: %v", err)
	}
}

// ParseGiveawayDuration parses a user-supplied duration string. Shorthand
// (seconds/minutes/hours/days, decimal point or comma) is tried first, then
// natural language ("tomorrow at 6pm", "in 2 hours").
func ParseGiveawayDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if m := durationShorthand.FindStringSubmatch(input); m != nil {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration value: %w", err)
		}
		var unit time.Duration
		switch m[2] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		}
		d := time.Duration(value * float64(unit))
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return d, nil
	}

	now := time.Now()
	result, err := durationParser.ParseDate(input, now)
	if err == nil && result != nil && result.After(now) {
		return result.Sub(now), nil
	}

	return 0, fmt.Errorf("unrecognized duration %q", input)
}

// ============================================================================
// ID List Encoding
// ============================================================================

// JoinIDList encodes snowflakes as a comma-separated string for storage.
func JoinIDList(ids []snowflake.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// SplitIDList decodes a comma-separated snowflake string.
func SplitIDList(s string) ([]snowflake.ID, error) {
	if s == "" {
		return nil, nil
	}
	var ids []snowflake.ID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ============================================================================
// Discord Markdown
// ============================================================================

// RelativeTimestamp renders t as Discord relative-time markdown ("in 2 hours").
func RelativeTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// FullTimestamp renders t as Discord long date/time markdown.
func FullTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}

// MentionUser renders a user mention.
func MentionUser(id snowflake.ID) string {
	return fmt.Sprintf("<@%s>", id)
}

// MentionList renders a comma-separated list of user mentions.
func MentionList(ids []snowflake.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = MentionUser(id)
	}
	return strings.Join(parts, ", ")
}

// ============================================================================
// Helper Functions
// ============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Min returns the minimum of two integers.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two integers.
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ============================================================================
// String Utilities
// ============================================================================

// Truncate truncates a string to the specified length with ellipsis at the end.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// ============================================================================
// Time Utilities
// ============================================================================

// FormatDuration renders a duration compactly, e.g. "2d 4h", "5m 30s".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, h)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

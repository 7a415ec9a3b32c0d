package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

// ===========================
// Command Registration
// ===========================

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "claimtime",
		Description: "Configure how long winners get to claim their prize",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set",
				Description: "Set the claim time granted by a role",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionRole{
						Name:        "role",
						Description: "The role that grants claim time",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "duration",
						Description: "The claim time (e.g., '30s', '5m', '1h')",
						Required:    true,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "override",
						Description: "Whether this role replaces other claim times instead of adding to them",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove the claim time of a role",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionRole{
						Name:        "role",
						Description: "The role to remove",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "winmessage",
				Description: "Set the message sent to winners with a claim window",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "message",
						Description: "Template ({winner(mention)}, {prize}, {claim_time}, {host(mention)}, ...)",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "toggle",
				Description: "Enable or disable win messages",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionBool{
						Name:        "enabled",
						Description: "Whether win messages are sent",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stats",
				Description: "Show the claim time configuration of this server",
			},
		},
	}, handleClaimtime)
}

// ===========================
// Claimtime Store
// ===========================

// ClaimtimeRole is one role's claim grant. Seconds are kept as stored; the
// store converts to a duration on read.
type ClaimtimeRole struct {
	Time     float64 `json:"time"`
	Override bool    `json:"override"`
}

// ClaimtimeConfig is a guild's decoded claimtime configuration.
type ClaimtimeConfig struct {
	WinMessage    string
	WinMsgEnabled bool
	Roles         map[snowflake.ID]ClaimtimeRole
}

// ClaimtimeStore caches every guild's claimtime configuration in memory.
// Writes go to the database first and then reload the whole cache; nothing
// mutates a cached config in place.
type ClaimtimeStore struct {
	mu    sync.RWMutex
	cache map[snowflake.ID]*ClaimtimeConfig
}

var Claimtimes = &ClaimtimeStore{cache: map[snowflake.ID]*ClaimtimeConfig{}}

// claimtimeRoleOrder ranks a configured role by its position in the member's
// role list as reported by the gateway. Roles the member does not hold rank
// first so a stale config entry cannot shadow a held role.
var claimtimeRoleOrder = func(memberRoles []snowflake.ID, roleID snowflake.ID) int {
	for i, id := range memberRoles {
		if id == roleID {
			return i
		}
	}
	return -1
}

// Load replaces the cache with the current table contents.
func (s *ClaimtimeStore) Load(ctx context.Context) error {
	rows, err := GetAllClaimtimeRows(ctx)
	if err != nil {
		return err
	}

	cache := make(map[snowflake.ID]*ClaimtimeConfig, len(rows))
	for _, r := range rows {
		cfg := &ClaimtimeConfig{
			WinMessage:    r.WinMessage,
			WinMsgEnabled: r.WinMsgEnabled,
			Roles:         map[snowflake.ID]ClaimtimeRole{},
		}
		if r.RolesJSON != "" {
			var raw map[string]ClaimtimeRole
			if err := json.Unmarshal([]byte(r.RolesJSON), &raw); err != nil {
				return fmt.Errorf("invalid claimtime roles for guild %s: %w", r.GuildID, err)
			}
			for idStr, role := range raw {
				id, err := snowflake.Parse(idStr)
				if err != nil {
					return fmt.Errorf("invalid role ID '%s' for guild %s: %w", idStr, r.GuildID, err)
				}
				cfg.Roles[id] = role
			}
		}
		cache[r.GuildID] = cfg
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	LogClaimtime(MsgClaimtimeLoaded, len(cache))
	return nil
}

func (s *ClaimtimeStore) get(guildID snowflake.ID) *ClaimtimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[guildID]
}

// GetMemberClaimtime computes a member's claim window from the roles they
// hold. Roles layer in the member's role order: non-override grants add up,
// while an override role resets the running total to its own time before
// later grants keep layering. Zero means no claim window.
func (s *ClaimtimeStore) GetMemberClaimtime(guildID snowflake.ID, memberRoles []snowflake.ID) time.Duration {
	cfg := s.get(guildID)
	if cfg == nil || len(cfg.Roles) == 0 {
		return 0
	}

	type grant struct {
		order int
		role  ClaimtimeRole
	}
	var grants []grant
	for roleID, role := range cfg.Roles {
		order := claimtimeRoleOrder(memberRoles, roleID)
		if order < 0 {
			continue
		}
		grants = append(grants, grant{order: order, role: role})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].order < grants[j].order })

	total := 0.0
	for _, g := range grants {
		if g.role.Override {
			total = g.role.Time
		} else {
			total += g.role.Time
		}
	}
	return time.Duration(total * float64(time.Second))
}

// GetWinMessage returns the guild's win message template, or "" when win
// messages are disabled or unconfigured. Callers cannot tell those apart.
func (s *ClaimtimeStore) GetWinMessage(guildID snowflake.ID) string {
	cfg := s.get(guildID)
	if cfg == nil || !cfg.WinMsgEnabled {
		return ""
	}
	return cfg.WinMessage
}

// rolesJSON encodes the guild's current role grants for storage.
func (s *ClaimtimeStore) rolesJSON(guildID snowflake.ID, mutate func(map[snowflake.ID]ClaimtimeRole)) (string, error) {
	roles := map[snowflake.ID]ClaimtimeRole{}
	if cfg := s.get(guildID); cfg != nil {
		for id, role := range cfg.Roles {
			roles[id] = role
		}
	}
	mutate(roles)

	raw := make(map[string]ClaimtimeRole, len(roles))
	for id, role := range roles {
		raw[id.String()] = role
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetRole stores a role's claim grant and reloads the cache.
func (s *ClaimtimeStore) SetRole(ctx context.Context, guildID, roleID snowflake.ID, d time.Duration, override bool) error {
	encoded, err := s.rolesJSON(guildID, func(roles map[snowflake.ID]ClaimtimeRole) {
		roles[roleID] = ClaimtimeRole{Time: d.Seconds(), Override: override}
	})
	if err != nil {
		return err
	}
	if err := UpsertClaimtimeRoles(ctx, guildID, encoded); err != nil {
		return err
	}
	return s.Load(ctx)
}

// RemoveRole deletes a role's claim grant. It reports whether the role had one.
func (s *ClaimtimeStore) RemoveRole(ctx context.Context, guildID, roleID snowflake.ID) (bool, error) {
	cfg := s.get(guildID)
	if cfg == nil {
		return false, nil
	}
	if _, ok := cfg.Roles[roleID]; !ok {
		return false, nil
	}

	encoded, err := s.rolesJSON(guildID, func(roles map[snowflake.ID]ClaimtimeRole) {
		delete(roles, roleID)
	})
	if err != nil {
		return false, err
	}
	if err := UpsertClaimtimeRoles(ctx, guildID, encoded); err != nil {
		return false, err
	}
	return true, s.Load(ctx)
}

// SetWinMessage stores the guild's win message template and reloads the cache.
func (s *ClaimtimeStore) SetWinMessage(ctx context.Context, guildID snowflake.ID, message string) error {
	if err := UpsertClaimtimeWinMessage(ctx, guildID, message); err != nil {
		return err
	}
	return s.Load(ctx)
}

// SetEnabled toggles win messages for a guild and reloads the cache.
func (s *ClaimtimeStore) SetEnabled(ctx context.Context, guildID snowflake.ID, enabled bool) error {
	if err := UpsertClaimtimeEnabled(ctx, guildID, enabled); err != nil {
		return err
	}
	return s.Load(ctx)
}

// ===========================
// Command Handlers
// ===========================

// claimtimeRespond sends an ephemeral response message
func claimtimeRespond(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(true).
		Build())
	if err != nil {
		LogClaimtime("Failed to respond to interaction: %v", err)
	}
}

// handleClaimtime routes claimtime subcommands to their respective handlers
func handleClaimtime(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		claimtimeRespond(event, ErrClaimtimeGuildOnly)
		return
	}
	if !canManageGiveaways(event) {
		claimtimeRespond(event, ErrGiveawayNoPermission)
		return
	}

	switch *subCmd {
	case "set":
		handleClaimtimeSet(event, data, *guildID)
	case "remove":
		handleClaimtimeRemove(event, data, *guildID)
	case "winmessage":
		handleClaimtimeWinMessage(event, data, *guildID)
	case "toggle":
		handleClaimtimeToggle(event, data, *guildID)
	case "stats":
		handleClaimtimeStats(event, *guildID)
	}
}

func handleClaimtimeSet(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, guildID snowflake.ID) {
	roleID := data.Snowflake("role")
	override := false
	if o, ok := data.OptBool("override"); ok {
		override = o
	}

	duration, err := ParseGiveawayDuration(data.String("duration"))
	if err != nil || duration < time.Second {
		claimtimeRespond(event, ErrClaimtimeBadDuration)
		return
	}

	if err := Claimtimes.SetRole(AppContext, guildID, roleID, duration, override); err != nil {
		LogClaimtime("Failed to save claimtime role: %v", err)
		claimtimeRespond(event, ErrClaimtimeSaveFailed)
		return
	}

	msg := MsgClaimtimeSet
	if override {
		msg = MsgClaimtimeSetOverride
	}
	claimtimeRespond(event, fmt.Sprintf(msg, roleID, FormatDuration(duration)))
}

func handleClaimtimeRemove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, guildID snowflake.ID) {
	roleID := data.Snowflake("role")

	removed, err := Claimtimes.RemoveRole(AppContext, guildID, roleID)
	if err != nil {
		LogClaimtime("Failed to remove claimtime role: %v", err)
		claimtimeRespond(event, ErrClaimtimeSaveFailed)
		return
	}
	if !removed {
		claimtimeRespond(event, ErrClaimtimeNotConfigured)
		return
	}

	claimtimeRespond(event, fmt.Sprintf(MsgClaimtimeRemoved, roleID))
}

func handleClaimtimeWinMessage(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, guildID snowflake.ID) {
	message := data.String("message")

	if err := Claimtimes.SetWinMessage(AppContext, guildID, message); err != nil {
		LogClaimtime("Failed to save win message: %v", err)
		claimtimeRespond(event, ErrClaimtimeSaveFailed)
		return
	}

	claimtimeRespond(event, MsgClaimtimeWinMsgSet)
}

func handleClaimtimeToggle(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, guildID snowflake.ID) {
	enabled := data.Bool("enabled")

	if err := Claimtimes.SetEnabled(AppContext, guildID, enabled); err != nil {
		LogClaimtime("Failed to toggle win messages: %v", err)
		claimtimeRespond(event, ErrClaimtimeSaveFailed)
		return
	}

	if enabled {
		claimtimeRespond(event, MsgClaimtimeEnabled)
	} else {
		claimtimeRespond(event, MsgClaimtimeDisabled)
	}
}

func handleClaimtimeStats(event *events.ApplicationCommandInteractionCreate, guildID snowflake.ID) {
	cfg := Claimtimes.get(guildID)
	if cfg == nil || len(cfg.Roles) == 0 {
		claimtimeRespond(event, MsgClaimtimeStatsNone)
		return
	}

	type entry struct {
		id   snowflake.ID
		role ClaimtimeRole
	}
	entries := make([]entry, 0, len(cfg.Roles))
	for id, role := range cfg.Roles {
		entries = append(entries, entry{id: id, role: role})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	var sb strings.Builder
	sb.WriteString(MsgClaimtimeStatsHeader)
	for _, e := range entries {
		suffix := ""
		if e.role.Override {
			suffix = " (override)"
		}
		sb.WriteString(fmt.Sprintf(MsgClaimtimeStatsRole, e.id, FormatDuration(time.Duration(e.role.Time*float64(time.Second))), suffix))
	}

	status := MsgClaimtimeDisabled
	if cfg.WinMsgEnabled {
		status = MsgClaimtimeEnabled
	}
	sb.WriteString("\n" + status)
	if cfg.WinMessage != "" {
		sb.WriteString(fmt.Sprintf("\nWin message: `%s`", Truncate(cfg.WinMessage, 200)))
	}

	claimtimeRespond(event, sb.String())
}

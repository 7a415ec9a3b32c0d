package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ===========================
// Command Registration
// ===========================

func init() {
	OnClientReady(func(ctx context.Context, client *bot.Client) {
		RegisterDaemon(LogGiveaway, func(ctx context.Context) (bool, func(), func()) { return StartGiveawayScheduler(ctx, client) })
		RegisterDaemon(LogSweeper, func(ctx context.Context) (bool, func(), func()) { return StartRetentionSweeper(ctx) })
	})

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "gstart",
		Description: "Start a giveaway in this channel",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "duration",
				Description: "How long the giveaway runs (e.g., '30s', '1.5h', '2d', 'tomorrow at 6pm')",
				Required:    true,
			},
			discord.ApplicationCommandOptionInt{
				Name:        "winners",
				Description: "How many winners to draw",
				Required:    true,
			},
			discord.ApplicationCommandOptionString{
				Name:        "prize",
				Description: "What is being given away",
				Required:    true,
			},
		},
	}, handleGstart)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "gend",
		Description: "End a giveaway immediately",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:         "message_id",
				Description:  "The giveaway message (defaults to the most recent due giveaway in this channel)",
				Required:     false,
				Autocomplete: true,
			},
		},
	}, handleGend)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "greroll",
		Description: "Reroll one winner of an ended giveaway",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:         "message_id",
				Description:  "The giveaway message (defaults to the most recent due giveaway in this channel)",
				Required:     false,
				Autocomplete: true,
			},
		},
	}, handleGreroll)

	RegisterAutocompleteHandler("gend", handleGiveawayAutocomplete)
	RegisterAutocompleteHandler("greroll", handleGiveawayAutocomplete)

	RegisterComponentHandler(joinButtonID, handleJoinButton)
	RegisterComponentHandler(leaveButtonPrefix, handleLeaveButton)

	RegisterMemberLeaveHandler(handleGiveawayMemberLeave)
}

// ===========================
// Giveaway System Globals
// ===========================

const (
	joinButtonID      = "join_giveaway"
	leaveButtonPrefix = "leave_giveaway:"

	giveawayPollInterval   = 5 * time.Second
	retentionSweepInterval = 10 * time.Minute
	giveawayRetention      = 15 * 24 * time.Hour

	maxGuildGiveaways   = 15
	maxChannelGiveaways = 5
	maxGiveawayDuration = 30 * 24 * time.Hour
	maxGiveawayWinners  = 15

	manageGiveawaysRole = "Giveaways"

	defaultGiveawayTitle       = "🎉 **{prize}** 🎉"
	defaultGiveawayDescription = "Hosted by {host(mention)}\n" +
		"Winners: **{num_winners}**\n" +
		"Ends: {ends} ({time_left})\n\n" +
		"Press the button below to enter!"
)

// completionTask tracks one in-flight completion. The registry is the only
// synchronization between the scheduler and the gend command, so an entry is
// always inserted before the completion goroutine is spawned.
type completionTask struct {
	messageID snowflake.ID
	done      chan struct{}
}

func (t *completionTask) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

var (
	giveawaySchedulerRunning int32
	sweeperRunning           int32

	completionMu    sync.Mutex
	completionTasks = map[snowflake.ID]*completionTask{}

	claimWindowsMu sync.Mutex
	claimWindows   = map[string]struct{}{}
)

// registerCompletion inserts a registry entry for a giveaway, or reports that
// one is already running.
func registerCompletion(messageID snowflake.ID) (*completionTask, bool) {
	completionMu.Lock()
	defer completionMu.Unlock()

	if existing, ok := completionTasks[messageID]; ok && !existing.finished() {
		return nil, false
	}
	task := &completionTask{messageID: messageID, done: make(chan struct{})}
	completionTasks[messageID] = task
	return task, true
}

// purgeCompletionTasks drops finished entries so failed completions can be
// retried on a later poll.
func purgeCompletionTasks() {
	completionMu.Lock()
	defer completionMu.Unlock()

	for id, task := range completionTasks {
		if task.finished() {
			delete(completionTasks, id)
		}
	}
}

// ===========================
// Scheduler Daemon
// ===========================

// StartGiveawayScheduler starts the giveaway completion scheduler daemon
func StartGiveawayScheduler(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	if !atomic.CompareAndSwapInt32(&giveawaySchedulerRunning, 0, 1) {
		return false, nil, nil
	}

	return true, func() {
			ticker := time.NewTicker(giveawayPollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					pollDueGiveaways(ctx, client)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			LogGiveaway("Shutting down Giveaway System...")
		}
}

// pollDueGiveaways schedules a completion for every pending giveaway that ends
// within the next poll interval.
func pollDueGiveaways(parentCtx context.Context, client *bot.Client) {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	purgeCompletionTasks()

	giveaways, err := GetEndableGiveaways(ctx, time.Now().Add(giveawayPollInterval))
	if err != nil {
		LogGiveaway(MsgGiveawayPollFail, err)
		return
	}

	for _, g := range giveaways {
		task, ok := registerCompletion(g.MessageID)
		if !ok {
			continue
		}
		LogGiveaway(MsgGiveawayScheduled, g.MessageID, g.EndsAt.Format(time.RFC3339))
		safeGo(func() { completeGiveaway(parentCtx, client, g, true, task) })
	}
}

// ===========================
// Completion Procedure
// ===========================

// completeGiveaway runs the full completion: wait until due, draw winners,
// edit the giveaway message, announce, persist, and open claim windows. The
// message edit and announcements happen before the terminal state is
// persisted, so a crash in between replays the completion on restart.
func completeGiveaway(ctx context.Context, client *bot.Client, g *Giveaway, wait bool, task *completionTask) {
	defer close(task.done)

	if wait {
		if remaining := time.Until(g.EndsAt); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
	}

	LogGiveaway(MsgGiveawayCompleting, g.MessageID, Truncate(g.Prize, 50))

	participants, err := GetParticipants(ctx, g.MessageID)
	if err != nil {
		LogGiveaway(MsgGiveawayCompleteFail, g.MessageID, err)
		return
	}

	winners := pickWinners(participants, g.WinnerAmount)

	endedText := renderEndedGiveaway(ctx, client, g, winners)
	_, err = client.Rest.UpdateMessage(g.ChannelID, g.MessageID, discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		SetComponents(discord.NewContainer(discord.NewTextDisplay(endedText))).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		LogGiveaway(MsgGiveawayEditFail, g.MessageID, err)
	}

	if len(winners) == 0 {
		replyInChannel(ctx, client, g.ChannelID, g.MessageID,
			fmt.Sprintf(MsgGiveawayNoWinner, g.WinnerAmount, len(participants)))
	} else {
		limiter := rate.NewLimiter(rate.Every(time.Second), 1)
		for _, winnerID := range winners {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			text := strings.ReplaceAll(MsgGiveawayWinnerReply, "{winner(mention)}", MentionUser(winnerID))
			text = strings.ReplaceAll(text, "{prize}", g.Prize)
			if err := replyInChannel(ctx, client, g.ChannelID, g.MessageID, text); err != nil {
				LogGiveaway(MsgGiveawayAnnounceFail, winnerID, g.MessageID, err)
			}
		}
	}

	if err := MarkGiveawayEnded(ctx, g.MessageID, winners); err != nil {
		LogGiveaway(MsgGiveawayPersistFail, g.MessageID, err)
		return
	}

	LogGiveaway(MsgGiveawayCompleted, g.MessageID, len(winners))

	for _, winnerID := range winners {
		openClaimWindow(ctx, client, g, winnerID)
	}
}

// pickWinners draws n distinct winners, or none when the pool is too small.
func pickWinners(pool []snowflake.ID, n int) []snowflake.ID {
	if n <= 0 || len(pool) < n {
		return nil
	}
	shuffled := make([]snowflake.ID, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// openClaimWindow starts the claim window for one winner if the guild has a
// claim duration for them and win messages are enabled.
func openClaimWindow(ctx context.Context, client *bot.Client, g *Giveaway, winnerID snowflake.ID) {
	winMsg := Claimtimes.GetWinMessage(g.GuildID)
	if winMsg == "" {
		return
	}

	var roleIDs []snowflake.ID
	if member, err := client.Rest.GetMember(g.GuildID, winnerID, rest.WithCtx(ctx)); err == nil {
		roleIDs = member.RoleIDs
	}
	duration := Claimtimes.GetMemberClaimtime(g.GuildID, roleIDs)
	if duration <= 0 {
		return
	}

	key := fmt.Sprintf("%s:%s", g.MessageID, winnerID)
	claimWindowsMu.Lock()
	if _, exists := claimWindows[key]; exists {
		claimWindowsMu.Unlock()
		return
	}
	claimWindows[key] = struct{}{}
	claimWindowsMu.Unlock()

	safeGo(func() {
		defer func() {
			claimWindowsMu.Lock()
			delete(claimWindows, key)
			claimWindowsMu.Unlock()
		}()
		runClaimWindow(ctx, client, g, winnerID, duration, winMsg)
	})
}

// runClaimWindow sends the win message and replies to it with an expiry
// notice once the window closes.
func runClaimWindow(ctx context.Context, client *bot.Client, g *Giveaway, winnerID snowflake.ID, duration time.Duration, winMsg string) {
	text := renderWinMessage(client, g, winnerID, duration, winMsg)

	msg, err := client.Rest.CreateMessage(g.ChannelID, discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(text))).
		SetMessageReferenceByID(g.MessageID).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		LogClaimtime(MsgClaimtimeWinMsgFail, winnerID, err)
		return
	}

	LogClaimtime(MsgClaimtimeWindowOpen, FormatDuration(duration), winnerID, g.MessageID)

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	if err := replyInChannel(ctx, client, g.ChannelID, msg.ID, fmt.Sprintf(MsgClaimtimeExpiredReply, duration.Seconds())); err != nil {
		LogClaimtime(MsgClaimtimeWinMsgFail, winnerID, err)
	}
	LogClaimtime(MsgClaimtimeWindowClosed, winnerID, g.MessageID)
}

// ===========================
// Retention Sweeper Daemon
// ===========================

// StartRetentionSweeper starts the expired-giveaway retention sweeper daemon
func StartRetentionSweeper(ctx context.Context) (bool, func(), func()) {
	if !atomic.CompareAndSwapInt32(&sweeperRunning, 0, 1) {
		return false, nil, nil
	}

	return true, func() {
			ticker := time.NewTicker(retentionSweepInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					sweepExpiredGiveaways(ctx)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			LogSweeper("Shutting down Retention Sweeper...")
		}
}

// sweepExpiredGiveaways deletes ended giveaways past the retention period,
// claiming the rows first and cleaning up their participants after. The two
// steps are not transactional; an orphaned participant row is harmless since
// every lookup goes through a live giveaway.
func sweepExpiredGiveaways(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, 60*time.Second)
	defer cancel()

	expired, err := DeleteExpiredGiveaways(ctx, time.Now().Add(-giveawayRetention))
	if err != nil {
		LogSweeper(MsgSweeperPurgeFail, err)
		return
	}

	for _, g := range expired {
		if err := DeleteParticipantsFor(ctx, g.GuildID, g.ChannelID, g.MessageID); err != nil {
			LogSweeper(MsgSweeperParticipantsFail, g.MessageID, err)
		}
	}

	if len(expired) > 0 {
		LogSweeper(MsgSweeperPurged, len(expired))
	}
}

// ===========================
// Template Rendering
// ===========================

// applyTemplateVars substitutes {name} placeholders in a template.
func applyTemplateVars(template string, vars map[string]string) string {
	for name, value := range vars {
		template = strings.ReplaceAll(template, "{"+name+"}", value)
	}
	return template
}

func guildServerName(client *bot.Client, guildID snowflake.ID) string {
	if guild, ok := client.Caches.Guild(guildID); ok {
		return guild.Name
	}
	return "this server"
}

func lookupUsername(client *bot.Client, userID snowflake.ID) string {
	if user, err := client.Rest.GetUser(userID); err == nil {
		return user.Username
	}
	return userID.String()
}

// giveawayTemplateVars builds the substitution set shared by the running and
// ended renditions of a giveaway message.
func giveawayTemplateVars(client *bot.Client, g *Giveaway, winners []snowflake.ID) map[string]string {
	winnerList := "Not decided"
	winnersVar := fmt.Sprintf("%d", g.WinnerAmount)
	if len(winners) > 0 {
		winnerList = MentionList(winners)
		winnersVar = winnerList
	}
	return map[string]string{
		"prize":          g.Prize,
		"winners":        winnersVar,
		"winner_list":    winnerList,
		"num_winners":    fmt.Sprintf("%d", g.WinnerAmount),
		"host(mention)":  MentionUser(g.HostID),
		"host(username)": lookupUsername(client, g.HostID),
		"time_left":      RelativeTimestamp(g.EndsAt),
		"end_time":       FullTimestamp(g.EndsAt),
		"ends":           FullTimestamp(g.EndsAt),
		"server_name":    guildServerName(client, g.GuildID),
	}
}

// guildGiveawayTemplate returns the guild's configured template, or the
// defaults when none is stored.
func guildGiveawayTemplate(ctx context.Context, guildID snowflake.ID) (string, string) {
	if t, err := GetGuildTemplate(ctx, guildID); err == nil && t != nil {
		return t.Title, t.Description
	}
	return defaultGiveawayTitle, defaultGiveawayDescription
}

// renderRunningGiveaway renders the giveaway message text while entries are
// open, using the guild's template when one is configured.
func renderRunningGiveaway(ctx context.Context, client *bot.Client, g *Giveaway) string {
	title, description := guildGiveawayTemplate(ctx, g.GuildID)
	vars := giveawayTemplateVars(client, g, nil)
	return applyTemplateVars(title, vars) + "\n\n" + applyTemplateVars(description, vars)
}

// renderEndedGiveaway renders the terminal form of the giveaway message,
// running the guild's template (or the default) through the winner vars.
func renderEndedGiveaway(ctx context.Context, client *bot.Client, g *Giveaway, winners []snowflake.ID) string {
	title, description := guildGiveawayTemplate(ctx, g.GuildID)
	vars := giveawayTemplateVars(client, g, winners)
	return MsgGiveawayEndedTitle + "\n\n" +
		applyTemplateVars(title, vars) + "\n\n" +
		applyTemplateVars(description, vars) + "\n\n" +
		fmt.Sprintf(MsgGiveawayEndedWinners, vars["winner_list"])
}

// renderWinMessage renders a guild's configured win message for one winner.
func renderWinMessage(client *bot.Client, g *Giveaway, winnerID snowflake.ID, duration time.Duration, template string) string {
	return applyTemplateVars(template, map[string]string{
		"claim_time":       FormatDuration(duration),
		"prize":            g.Prize,
		"winner(mention)":  MentionUser(winnerID),
		"winner(username)": lookupUsername(client, winnerID),
		"host(mention)":    MentionUser(g.HostID),
		"host(username)":   lookupUsername(client, g.HostID),
	})
}

// ===========================
// Command Handlers
// ===========================

// giveawayRespond sends an ephemeral response message
func giveawayRespond(event *events.ApplicationCommandInteractionCreate, content string) {
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
		LogGiveaway("Failed to respond to interaction: %v", err)
	}
}

// canManageGiveaways reports whether the invoking member may manage giveaways:
// Manage Server permission, or a role named "Giveaways".
func canManageGiveaways(event *events.ApplicationCommandInteractionCreate) bool {
	member := event.Member()
	if member == nil {
		return false
	}
	if member.Permissions.Has(discord.PermissionManageGuild) || member.Permissions.Has(discord.PermissionAdministrator) {
		return true
	}

	guildID := event.GuildID()
	if guildID == nil {
		return false
	}
	for _, roleID := range member.RoleIDs {
		if role, ok := event.Client().Caches.Role(*guildID, roleID); ok && role.Name == manageGiveawaysRole {
			return true
		}
	}
	return false
}

// handleGstart creates and posts a new giveaway
func handleGstart(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	guildID := event.GuildID()
	if guildID == nil {
		giveawayRespond(event, ErrGiveawayGuildOnly)
		return
	}
	if !canManageGiveaways(event) {
		giveawayRespond(event, ErrGiveawayNoPermission)
		return
	}

	duration, err := ParseGiveawayDuration(data.String("duration"))
	if err != nil {
		giveawayRespond(event, ErrGiveawayInvalidDuration)
		return
	}
	if duration > maxGiveawayDuration {
		giveawayRespond(event, ErrGiveawayDurationTooLong)
		return
	}

	winners := data.Int("winners")
	if winners < 1 {
		giveawayRespond(event, ErrGiveawayBadWinners)
		return
	}
	if winners > maxGiveawayWinners {
		giveawayRespond(event, ErrGiveawayTooManyWinners)
		return
	}

	channelID := event.Channel().ID()
	guildCount, channelCount, err := CountGuildGiveaways(AppContext, *guildID, channelID)
	if err != nil {
		LogGiveaway(MsgGiveawaySaveFail, "new", err)
		giveawayRespond(event, ErrGiveawaySaveFailed)
		return
	}
	if guildCount >= maxGuildGiveaways {
		giveawayRespond(event, ErrGiveawayGuildLimit)
		return
	}
	if channelCount >= maxChannelGiveaways {
		giveawayRespond(event, ErrGiveawayChannelLimit)
		return
	}

	g := &Giveaway{
		GuildID:      *guildID,
		ChannelID:    channelID,
		WinnerAmount: winners,
		EndsAt:       time.Now().Add(duration).UTC(),
		Prize:        data.String("prize"),
		HostID:       event.User().ID,
	}

	text := renderRunningGiveaway(AppContext, event.Client(), g)
	msg, err := event.Client().Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(text),
				discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
				discord.NewActionRow(discord.NewButton(discord.ButtonStylePrimary, "🎉 Join", joinButtonID, "", 0)),
			),
		).
		Build())
	if err != nil {
		LogGiveaway(MsgGiveawaySaveFail, "new", err)
		giveawayRespond(event, ErrGiveawayPostFailed)
		return
	}

	g.MessageID = msg.ID
	if err := AddGiveaway(AppContext, g); err != nil {
		LogGiveaway(MsgGiveawaySaveFail, g.MessageID, err)
		_ = event.Client().Rest.DeleteMessage(channelID, msg.ID)
		giveawayRespond(event, ErrGiveawaySaveFailed)
		return
	}

	giveawayRespond(event, fmt.Sprintf(MsgGiveawayStarted, g.Prize, RelativeTimestamp(g.EndsAt)))
}

// resolveGiveaway resolves the target giveaway from an optional message_id
// option, falling back to the channel's most recent due giveaway.
func resolveGiveaway(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) (*Giveaway, string) {
	guildID := event.GuildID()
	if guildID == nil {
		return nil, ErrGiveawayGuildOnly
	}

	if idStr, ok := data.OptString("message_id"); ok {
		messageID, err := snowflake.Parse(strings.TrimSpace(idStr))
		if err != nil {
			return nil, ErrGiveawayInvalidMessageID
		}
		g, err := GetGiveaway(AppContext, messageID)
		if err != nil || g == nil {
			return nil, ErrGiveawayNotFound
		}
		return g, ""
	}

	g, err := GetLatestDueGiveaway(AppContext, *guildID, event.Channel().ID())
	if err != nil || g == nil {
		return nil, ErrGiveawayNoneDue
	}
	return g, ""
}

// handleGend completes a giveaway immediately
func handleGend(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	if !canManageGiveaways(event) {
		giveawayRespond(event, ErrGiveawayNoPermission)
		return
	}

	g, errMsg := resolveGiveaway(event, data)
	if errMsg != "" {
		giveawayRespond(event, errMsg)
		return
	}
	if g.Ended {
		giveawayRespond(event, ErrGiveawayAlreadyEnded)
		return
	}

	task, ok := registerCompletion(g.MessageID)
	if !ok {
		giveawayRespond(event, ErrGiveawayAlreadyEnding)
		return
	}

	client := event.Client()
	safeGo(func() { completeGiveaway(AppContext, client, g, false, task) })

	giveawayRespond(event, fmt.Sprintf(MsgGiveawayEndingNow, g.Prize))
}

// handleGreroll draws one replacement winner from an ended giveaway
func handleGreroll(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	if !canManageGiveaways(event) {
		giveawayRespond(event, ErrGiveawayNoPermission)
		return
	}

	g, errMsg := resolveGiveaway(event, data)
	if errMsg != "" {
		giveawayRespond(event, errMsg)
		return
	}
	if !g.Ended {
		giveawayRespond(event, ErrGiveawayNotEnded)
		return
	}

	participants, err := GetParticipants(AppContext, g.MessageID)
	if err != nil || len(participants) == 0 {
		giveawayRespond(event, ErrGiveawayRerollEmpty)
		return
	}

	winnerID := participants[rand.Intn(len(participants))]
	client := event.Client()

	text := fmt.Sprintf(MsgGiveawayRerollReply, MentionUser(winnerID), g.Prize)
	if err := replyInChannel(AppContext, client, g.ChannelID, g.MessageID, text); err != nil {
		LogGiveaway(MsgGiveawayAnnounceFail, winnerID, g.MessageID, err)
	}

	LogGiveaway(MsgGiveawayRerolled, g.MessageID, winnerID)
	safeGo(func() { openClaimWindow(AppContext, client, g, winnerID) })

	giveawayRespond(event, MsgGiveawayRerollDone)
}

// handleGiveawayAutocomplete suggests the channel's giveaways for the
// message_id option. gend offers running giveaways, greroll ended ones.
func handleGiveawayAutocomplete(event *events.AutocompleteInteractionCreate) {
	f := event.Data.Focused()
	if f.Name != "message_id" {
		return
	}
	focusedValue := strings.ToLower(f.String())
	wantEnded := event.Data.CommandName == "greroll"

	giveaways, err := GetChannelGiveaways(AppContext, event.Channel().ID(), 50)
	if err != nil {
		LogGiveaway(MsgGiveawayPollFail, err)
		return
	}

	var choices []discord.AutocompleteChoice
	for _, g := range giveaways {
		if g.Ended != wantEnded {
			continue
		}
		displayName := fmt.Sprintf("%s (%s)", Truncate(g.Prize, 80), g.MessageID)
		if focusedValue == "" || strings.Contains(strings.ToLower(displayName), focusedValue) {
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  displayName,
				Value: g.MessageID.String(),
			})
		}
		if len(choices) >= 25 {
			break
		}
	}

	event.AutocompleteResult(choices)
}

// replyInChannel sends a message referencing the giveaway message.
func replyInChannel(ctx context.Context, client *bot.Client, channelID, messageID snowflake.ID, content string) error {
	_, err := client.Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(content))).
		SetMessageReferenceByID(messageID).
		Build(), rest.WithCtx(ctx))
	return err
}

// ===========================
// Participation Gateway
// ===========================

// componentRespond sends an ephemeral response to a component interaction
func componentRespond(event *events.ComponentInteractionCreate, content string) {
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
		LogGiveaway("Failed to respond to interaction: %v", err)
	}
}

// handleJoinButton enters the pressing user into the giveaway. A duplicate
// entry is answered with a leave button instead of an error.
func handleJoinButton(event *events.ComponentInteractionCreate) {
	messageID := event.Message.ID

	g, err := GetGiveaway(AppContext, messageID)
	if err != nil || g == nil {
		componentRespond(event, ErrGiveawayNotFound)
		return
	}
	if g.Ended {
		componentRespond(event, ErrGiveawayAlreadyEnded)
		return
	}

	userID := event.User().ID
	err = AddParticipant(AppContext, g.GuildID, g.ChannelID, g.MessageID, userID)
	if err != nil {
		if IsUniqueViolation(err) {
			respondErr := event.CreateMessage(discord.NewMessageCreateBuilder().
				SetIsComponentsV2(true).
				AddComponents(
					discord.NewContainer(
						discord.NewTextDisplay(MsgGiveawayAlreadyIn),
						discord.NewActionRow(discord.NewButton(discord.ButtonStyleDanger, "Leave Giveaway", leaveButtonPrefix+messageID.String(), "", 0)),
					),
				).
				SetEphemeral(true).
				Build())
			if respondErr != nil {
				LogGiveaway("Failed to respond to interaction: %v", respondErr)
			}
			return
		}
		LogGiveaway(MsgGiveawaySaveFail, messageID, err)
		componentRespond(event, ErrGiveawayJoinFailed)
		return
	}

	componentRespond(event, MsgGiveawayJoined)
}

// handleLeaveButton removes the pressing user from the giveaway.
func handleLeaveButton(event *events.ComponentInteractionCreate) {
	idStr := strings.TrimPrefix(event.Data.CustomID(), leaveButtonPrefix)
	messageID, err := snowflake.Parse(idStr)
	if err != nil {
		componentRespond(event, ErrGiveawayNotFound)
		return
	}

	removed, err := RemoveParticipant(AppContext, messageID, event.User().ID)
	if err != nil || !removed {
		componentRespond(event, ErrGiveawayNotJoined)
		return
	}

	componentRespond(event, MsgGiveawayLeft)
}

// handleGiveawayMemberLeave drops the departing member's entries so they can
// no longer be drawn in the guild's giveaways.
func handleGiveawayMemberLeave(event *events.GuildMemberLeave) {
	userID := event.User.ID
	if err := DeleteGuildParticipant(AppContext, event.GuildID, userID); err != nil {
		LogGiveaway(MsgGiveawayMemberLeaveFail, userID, err)
		return
	}
	LogGiveaway(MsgGiveawayMemberLeft, userID, event.GuildID)
}

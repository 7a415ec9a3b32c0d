package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// --- Globals & Styles ---

var (
	// Level colors
	infoColor  = color.New()
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)

	// Component colors
	databaseColor  = color.New()
	giveawayColor  = color.New(color.FgMagenta)
	claimtimeColor = color.New(color.FgMagenta)
	sweeperColor   = color.New(color.FgMagenta)

	// Global state
	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	// Internal state
	logFile *os.File
	logMu   sync.Mutex
)

// --- Initialization ---

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	if LogToFile {
		exePath, exeErr := os.Executable()
		logName := GetProjectName() + ".log"
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
		}
	}

	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Public Logging API ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

// Component Loggers

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogGiveaway(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "giveaway"))
}

func LogClaimtime(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "claimtime"))
}

func LogSweeper(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "sweeper"))
}

// --- Log Handler Implementation ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format(DefaultTimeFormat)
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4:
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
		levelColor = infoColor
	}

	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", compColor.Sprintf("[%s] %s", component, r.Message))
	} else {
		displayMsg := fmt.Sprintf("[%s] %s", levelStr, r.Message)
		if levelStr == "INFO" && strings.HasPrefix(r.Message, "[") {
			if idx := strings.Index(r.Message, "]"); idx > 0 && idx < 20 {
				displayMsg = r.Message
			}
		}
		fmt.Fprintf(h.w, " %s\n", levelColor.Sprint(displayMsg))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

// --- Formatting Helpers ---

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "GIVEAWAY":
		return giveawayColor
	case "CLAIMTIME":
		return claimtimeColor
	case "SWEEPER":
		return sweeperColor
	default:
		return color.New(color.FgCyan)
	}
}

// --- Utilities & State ---

func GetLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// --- ANSI Stripper ---

type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	clean := s.re.ReplaceAll(p, []byte(""))
	_, err = s.w.Write(clean)
	return len(p), err
}

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotKillFail         = "Failed to kill old instance: %v"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotPIDWriteFail     = "Failed to write PID file: %v"
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgBotAPIStatusError   = "discord API returned status %d"
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands       = "Syncing %s commands..."
	MsgLoaderCleanup            = "[CLEANUP] Removing commands from previous dev guild: %s"
	MsgLoaderDevStarting        = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered      = "[DEV] Registered: %s"
	MsgLoaderDevFail            = "[DEV] Registration failed: %v"
	MsgLoaderDevGlobalClear     = "[DEV] Verifying global commands are cleared..."
	MsgLoaderDevGlobalClearFail = "[DEV] Global clear skipped (likely rate limited): %v"
	MsgLoaderProdStarting       = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered     = "[PROD] Registered: %s"
	MsgLoaderProdFail           = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered     = "Panic recovered in handler: %v"

	// --- Giveaway System ---
	MsgGiveawayPollFail        = "Failed to query due giveaways: %v"
	MsgGiveawayScheduled       = "Scheduled completion for giveaway %s (due %s)"
	MsgGiveawayCompleting      = "Completing giveaway %s (prize: %s)"
	MsgGiveawayCompleted       = "Completed giveaway %s with %d winner(s)"
	MsgGiveawayCompleteFail    = "Failed to complete giveaway %s: %v"
	MsgGiveawayEditFail        = "Failed to edit giveaway message %s: %v"
	MsgGiveawayAnnounceFail    = "Failed to announce winner %s for giveaway %s: %v"
	MsgGiveawayPersistFail     = "Failed to mark giveaway %s as ended: %v"
	MsgGiveawaySaveFail        = "Failed to save giveaway %s: %v"
	MsgGiveawayRerolled        = "Rerolled giveaway %s, new winner %s"
	MsgGiveawayMemberLeft      = "Removed giveaway entries of departing member %s in guild %s"
	MsgGiveawayMemberLeaveFail = "Failed to remove giveaway entries of member %s: %v"

	MsgGiveawayStarted      = "Giveaway for **%s** started! It will end %s."
	MsgGiveawayEndingNow    = "Ending the giveaway for **%s** now..."
	MsgGiveawayNoWinner     = "Could not determine a winner! Needed %d, got %d."
	MsgGiveawayWinnerReply  = "Congratulations {winner(mention)}! You won **{prize}**!"
	MsgGiveawayRerollReply  = "The giveaway was rerolled! Congratulations %s, you won **%s**!"
	MsgGiveawayRerollDone   = "Successfully rerolled the giveaway!"
	MsgGiveawayJoined       = "You joined the giveaway! Good luck."
	MsgGiveawayAlreadyIn    = "You already joined this giveaway. Want to leave it instead?"
	MsgGiveawayLeft         = "You left the giveaway."
	MsgGiveawayEndedTitle   = "Giveaway ended"
	MsgGiveawayEndedWinners = "Winner(s): %s"

	ErrGiveawayGuildOnly        = "This command can only be used in a server."
	ErrGiveawayNoPermission     = "You need the **Manage Server** permission or a role named `Giveaways` to manage giveaways."
	ErrGiveawayInvalidDuration  = "Invalid duration. Try formats like `30s`, `1.5h`, `2d` or `tomorrow at 6pm`."
	ErrGiveawayDurationTooLong  = "Giveaways cannot run longer than **30 days**."
	ErrGiveawayTooManyWinners   = "Giveaways cannot have more than **15** winners."
	ErrGiveawayBadWinners       = "The winner amount must be at least **1**."
	ErrGiveawayGuildLimit       = "This server already has **15** running giveaways."
	ErrGiveawayChannelLimit     = "This channel already has **5** running giveaways."
	ErrGiveawaySaveFailed       = "Failed to save the giveaway. Please try again."
	ErrGiveawayPostFailed       = "Failed to post the giveaway message."
	ErrGiveawayInvalidMessageID = "That message ID is not valid."
	ErrGiveawayNotFound         = "No giveaway was found for that message."
	ErrGiveawayNoneDue          = "There is no giveaway in this channel that is due to end."
	ErrGiveawayAlreadyEnding    = "That giveaway is already being completed."
	ErrGiveawayAlreadyEnded     = "This giveaway has already ended."
	ErrGiveawayNotEnded         = "That giveaway has not ended yet. Use `/gend` first."
	ErrGiveawayRerollEmpty      = "There are no participants to reroll from."
	ErrGiveawayNotJoined        = "You are not in this giveaway."
	ErrGiveawayJoinFailed       = "Failed to join the giveaway. Please try again."

	// --- Claimtime System ---
	MsgClaimtimeLoaded       = "Loaded claimtime configuration for %d guild(s)"
	MsgClaimtimeLoadFail     = "Failed to load claimtime configs: %v"
	MsgClaimtimeWindowOpen   = "Claim window of %s opened for winner %s (giveaway %s)"
	MsgClaimtimeWindowClosed = "Claim window for winner %s closed (giveaway %s)"
	MsgClaimtimeWinMsgFail   = "Failed to send win message to %s: %v"
	MsgClaimtimeExpiredReply = "%.2f seconds finished!"

	MsgClaimtimeSet         = "Members with <@&%s> now get **%s** of claim time."
	MsgClaimtimeSetOverride = "Members with <@&%s> now get **%s** of claim time (overrides other roles)."
	MsgClaimtimeRemoved     = "Removed the claim time for <@&%s>."
	MsgClaimtimeWinMsgSet   = "Win message updated."
	MsgClaimtimeEnabled     = "Win messages are now **enabled**."
	MsgClaimtimeDisabled    = "Win messages are now **disabled**."
	MsgClaimtimeStatsHeader = "**Claim Time Configuration**\n\n"
	MsgClaimtimeStatsRole   = "> <@&%s>: `%s`%s\n"
	MsgClaimtimeStatsNone   = "No claim times are configured for this server. Use `/claimtime set` to add one!"

	ErrClaimtimeGuildOnly     = "This command can only be used in a server."
	ErrClaimtimeSaveFailed    = "Failed to save the claim time configuration."
	ErrClaimtimeNotConfigured = "No claim time is configured for that role."
	ErrClaimtimeBadDuration   = "Invalid claim duration. Try formats like `30s`, `5m` or `1h`."

	// --- Giveaway Templates ---
	MsgTemplateSet   = "Giveaway template updated."
	MsgTemplateReset = "Giveaway template reset to the default."
	MsgTemplateNone  = "This server uses the default giveaway template."

	ErrTemplateGuildOnly  = "This command can only be used in a server."
	ErrTemplateSaveFailed = "Failed to save the template."

	// --- Retention Sweeper ---
	MsgSweeperPurged           = "Purged %d expired giveaway(s)"
	MsgSweeperPurgeFail        = "Failed to purge expired giveaways: %v"
	MsgSweeperParticipantsFail = "Failed to delete participants of giveaway %s: %v"
)

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/mattn/go-sqlite3"
)

// --- Phase 1: Configuration & Environment ---

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []string
	Silent       bool
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	ownerIDsStr := os.Getenv("OWNER_IDS")
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	cfg := &Config{
		Token:        token,
		GuildID:      os.Getenv("GUILD_ID"),
		DatabasePath: dbPath,
		OwnerIDs:     ownerIDs,
		Silent:       silent,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	return nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}

// --- Phase 2: Database Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// Explicitly reference sqlite3 driver to avoid blank identifier
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS giveaways (
			message_id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			winner_amount INTEGER NOT NULL,
			ends_at DATETIME NOT NULL,
			prize TEXT NOT NULL,
			host_id TEXT NOT NULL,
			ended INTEGER DEFAULT 0,
			winner_list TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS giveaway_participants (
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			UNIQUE(message_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS claimtimes_config (
			guild_id TEXT PRIMARY KEY,
			win_message TEXT,
			winmsg_enabled INTEGER DEFAULT 0,
			roles TEXT DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS gw_templates (
			guild_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	indexQueries := []string{
		"CREATE INDEX IF NOT EXISTS idx_giveaways_pending ON giveaways (ended, ends_at)",
		"CREATE INDEX IF NOT EXISTS idx_participants_message ON giveaway_participants (message_id)",
	}

	for _, q := range indexQueries {
		if _, err := DB.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// IsUniqueViolation reports whether err is a sqlite unique-constraint error.
func IsUniqueViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// --- Phase 3: Infrastructure & Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Phase 4: Application Logic (Giveaways) ---

// Giveaway is one giveaway row. The message is the giveaway: message_id is
// the primary key and never changes.
type Giveaway struct {
	MessageID    snowflake.ID
	GuildID      snowflake.ID
	ChannelID    snowflake.ID
	WinnerAmount int
	EndsAt       time.Time
	Prize        string
	HostID       snowflake.ID
	Ended        bool
	WinnerList   []snowflake.ID
}

const giveawayColumns = "message_id, guild_id, channel_id, winner_amount, ends_at, prize, host_id, ended, winner_list"

func scanGiveaway(row interface{ Scan(...any) error }) (*Giveaway, error) {
	g := &Giveaway{}
	var mid, gid, cid, hid string
	var ended int
	var winners sql.NullString

	err := row.Scan(&mid, &gid, &cid, &g.WinnerAmount, &g.EndsAt, &g.Prize, &hid, &ended, &winners)
	if err != nil {
		return nil, err
	}

	if g.MessageID, err = snowflake.Parse(mid); err != nil {
		return nil, fmt.Errorf("failed to parse message ID '%s': %w", mid, err)
	}
	if g.GuildID, err = snowflake.Parse(gid); err != nil {
		return nil, fmt.Errorf("failed to parse guild ID '%s' for giveaway %s: %w", gid, mid, err)
	}
	if g.ChannelID, err = snowflake.Parse(cid); err != nil {
		return nil, fmt.Errorf("failed to parse channel ID '%s' for giveaway %s: %w", cid, mid, err)
	}
	if g.HostID, err = snowflake.Parse(hid); err != nil {
		return nil, fmt.Errorf("failed to parse host ID '%s' for giveaway %s: %w", hid, mid, err)
	}
	g.Ended = ended == 1
	if winners.Valid {
		g.WinnerList, err = SplitIDList(winners.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse winner list for giveaway %s: %w", mid, err)
		}
	}
	return g, nil
}

func AddGiveaway(ctx context.Context, g *Giveaway) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO giveaways (message_id, guild_id, channel_id, winner_amount, ends_at, prize, host_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.MessageID.String(), g.GuildID.String(), g.ChannelID.String(), g.WinnerAmount, g.EndsAt.UTC(), g.Prize, g.HostID.String())
	return err
}

// GetGiveaway returns the giveaway for a message ID, or nil if none exists.
func GetGiveaway(ctx context.Context, messageID snowflake.ID) (*Giveaway, error) {
	row := DB.QueryRowContext(ctx,
		"SELECT "+giveawayColumns+" FROM giveaways WHERE message_id = ?",
		messageID.String())
	g, err := scanGiveaway(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

// GetLatestDueGiveaway returns the channel's due giveaway closest to its end
// time, or nil. Used to resolve gend/greroll without an explicit message.
func GetLatestDueGiveaway(ctx context.Context, guildID, channelID snowflake.ID) (*Giveaway, error) {
	row := DB.QueryRowContext(ctx,
		"SELECT "+giveawayColumns+" FROM giveaways WHERE guild_id = ? AND channel_id = ? AND ends_at < ? ORDER BY ends_at LIMIT 1",
		guildID.String(), channelID.String(), time.Now().UTC())
	g, err := scanGiveaway(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

// GetEndableGiveaways returns all pending giveaways that end before horizon.
func GetEndableGiveaways(ctx context.Context, horizon time.Time) ([]*Giveaway, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT "+giveawayColumns+" FROM giveaways WHERE ended = 0 AND ends_at < ?",
		horizon.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var giveaways []*Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, g)
	}
	return giveaways, rows.Err()
}

// GetChannelGiveaways returns a channel's giveaways, newest ending first,
// for autocomplete suggestions.
func GetChannelGiveaways(ctx context.Context, channelID snowflake.ID, limit int) ([]*Giveaway, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT "+giveawayColumns+" FROM giveaways WHERE channel_id = ? ORDER BY ends_at DESC LIMIT ?",
		channelID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var giveaways []*Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, g)
	}
	return giveaways, rows.Err()
}

// MarkGiveawayEnded persists the terminal state in a single statement. The
// winner list may be empty but is always set, never left behind.
func MarkGiveawayEnded(ctx context.Context, messageID snowflake.ID, winners []snowflake.ID) error {
	_, err := DB.ExecContext(ctx,
		"UPDATE giveaways SET ended = 1, winner_list = ? WHERE message_id = ?",
		JoinIDList(winners), messageID.String())
	return err
}

// CountGuildGiveaways returns the number of giveaway rows for a guild and for
// one of its channels, for plan-limit checks.
func CountGuildGiveaways(ctx context.Context, guildID, channelID snowflake.ID) (guildCount, channelCount int, err error) {
	err = DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(CASE WHEN channel_id = ? THEN 1 END) FROM giveaways WHERE guild_id = ?",
		channelID.String(), guildID.String()).Scan(&guildCount, &channelCount)
	return guildCount, channelCount, err
}

// DeleteExpiredGiveaways claims and returns all ended giveaways older than
// cutoff, deleting them in the same statement.
func DeleteExpiredGiveaways(ctx context.Context, cutoff time.Time) ([]*Giveaway, error) {
	rows, err := DB.QueryContext(ctx,
		"DELETE FROM giveaways WHERE ended = 1 AND ends_at < ? RETURNING "+giveawayColumns,
		cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var giveaways []*Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, g)
	}
	return giveaways, rows.Err()
}

// --- Phase 5: Application Logic (Participants) ---

// AddParticipant inserts a participant row inside a transaction. A duplicate
// join surfaces as a unique violation; see IsUniqueViolation.
func AddParticipant(ctx context.Context, guildID, channelID, messageID, userID snowflake.ID) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO giveaway_participants (guild_id, channel_id, message_id, user_id)
		VALUES (?, ?, ?, ?)
	`, guildID.String(), channelID.String(), messageID.String(), userID.String())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func RemoveParticipant(ctx context.Context, messageID, userID snowflake.ID) (bool, error) {
	result, err := DB.ExecContext(ctx,
		"DELETE FROM giveaway_participants WHERE message_id = ? AND user_id = ?",
		messageID.String(), userID.String())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

// GetParticipants returns the unordered participant set of a giveaway.
func GetParticipants(ctx context.Context, messageID snowflake.ID) ([]snowflake.ID, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT user_id FROM giveaway_participants WHERE message_id = ?",
		messageID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []snowflake.ID
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		id, err := snowflake.Parse(uid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse participant ID '%s': %w", uid, err)
		}
		participants = append(participants, id)
	}
	return participants, rows.Err()
}

// DeleteParticipantsFor removes the participant rows of one giveaway by its
// full key tuple. The sweeper calls this after claiming the giveaway row.
func DeleteParticipantsFor(ctx context.Context, guildID, channelID, messageID snowflake.ID) error {
	_, err := DB.ExecContext(ctx,
		"DELETE FROM giveaway_participants WHERE guild_id = ? AND channel_id = ? AND message_id = ?",
		guildID.String(), channelID.String(), messageID.String())
	return err
}

// DeleteGuildParticipant removes a user from every giveaway of a guild, used
// when a member leaves the server.
func DeleteGuildParticipant(ctx context.Context, guildID, userID snowflake.ID) error {
	_, err := DB.ExecContext(ctx,
		"DELETE FROM giveaway_participants WHERE guild_id = ? AND user_id = ?",
		guildID.String(), userID.String())
	return err
}

// --- Phase 6: Application Logic (Claimtime Config Rows) ---

// ClaimtimeRow is the raw claimtimes_config row. Role layering lives in the
// claimtime store; this layer only moves JSON in and out.
type ClaimtimeRow struct {
	GuildID       snowflake.ID
	WinMessage    string
	WinMsgEnabled bool
	RolesJSON     string
}

func GetAllClaimtimeRows(ctx context.Context) ([]ClaimtimeRow, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT guild_id, win_message, winmsg_enabled, roles FROM claimtimes_config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []ClaimtimeRow
	for rows.Next() {
		var r ClaimtimeRow
		var gid string
		var winMsg sql.NullString
		var enabled int
		if err := rows.Scan(&gid, &winMsg, &enabled, &r.RolesJSON); err != nil {
			return nil, err
		}
		if r.GuildID, err = snowflake.Parse(gid); err != nil {
			return nil, fmt.Errorf("failed to parse guild ID '%s': %w", gid, err)
		}
		r.WinMessage = winMsg.String
		r.WinMsgEnabled = enabled == 1
		configs = append(configs, r)
	}
	return configs, rows.Err()
}

func UpsertClaimtimeRoles(ctx context.Context, guildID snowflake.ID, rolesJSON string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO claimtimes_config (guild_id, roles) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET roles = excluded.roles
	`, guildID.String(), rolesJSON)
	return err
}

func UpsertClaimtimeWinMessage(ctx context.Context, guildID snowflake.ID, message string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO claimtimes_config (guild_id, win_message) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET win_message = excluded.win_message
	`, guildID.String(), message)
	return err
}

func UpsertClaimtimeEnabled(ctx context.Context, guildID snowflake.ID, enabled bool) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO claimtimes_config (guild_id, winmsg_enabled) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET winmsg_enabled = excluded.winmsg_enabled
	`, guildID.String(), boolToInt(enabled))
	return err
}

// --- Phase 7: Application Logic (Guild Embed Templates) ---

type GiveawayTemplate struct {
	GuildID     snowflake.ID
	Title       string
	Description string
}

func SetGuildTemplate(ctx context.Context, t *GiveawayTemplate) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO gw_templates (guild_id, title, description) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET title = excluded.title, description = excluded.description, updated_at = CURRENT_TIMESTAMP
	`, t.GuildID.String(), t.Title, t.Description)
	return err
}

// GetGuildTemplate returns the guild's template, or nil when unconfigured.
func GetGuildTemplate(ctx context.Context, guildID snowflake.ID) (*GiveawayTemplate, error) {
	t := &GiveawayTemplate{GuildID: guildID}
	err := DB.QueryRowContext(ctx,
		"SELECT title, description FROM gw_templates WHERE guild_id = ?",
		guildID.String()).Scan(&t.Title, &t.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func DeleteGuildTemplate(ctx context.Context, guildID snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM gw_templates WHERE guild_id = ?", guildID.String())
	return err
}

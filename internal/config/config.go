// Package config resolves the static rule configuration for one run. Values
// come from an optional TOML file overridden by environment variables; the
// environment names match the original scheduled-job deployment so existing
// workflow definitions keep working.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variable names consumed by Load.
const (
	EnvGuildID         = "GUILD_ID"
	EnvGrantRoleID     = "ROLE_ID"
	EnvThresholdDays   = "THRESHOLD_DAYS"
	EnvExcludeRoleIDs  = "EXCLUDE_ROLE_IDS"
	EnvForceAssign     = "FORCE_ASSIGN"
	EnvDryRun          = "DRY_RUN"
	EnvTargetMemberID  = "TARGET_USER_ID"
	EnvGrantMessage    = "DM_MESSAGE"
	EnvPairPrimaryRole = "PAIR_PRIMARY_ROLE_ID"
	EnvPairRolePrefix  = "PAIR_ROLE_ID_"
	EnvPairMsgPrefix   = "PAIR_DM_MESSAGE_"
)

// MaxPairRoles caps the configurable secondary-pair role list.
const MaxPairRoles = 3

// DefaultGrantMessage is the tenure DM sent when no template is configured.
const DefaultGrantMessage = "🎉 Hi {name}! You've been in **{server}** for more than " +
	"{days} days, so I've given you the **{role}** role. Welcome aboard!"

// PairEntry binds one secondary-pair role to its notification template. The
// template may contain newline-delimited segments, sent as separate messages.
type PairEntry struct {
	RoleID   string `toml:"role_id"`
	Template string `toml:"message"`
}

// Rules is the immutable per-run rule configuration threaded through the
// engine. Construct it with Load (or Default in tests) and do not mutate it
// once a run has started.
type Rules struct {
	ServerID       string
	GrantRoleID    string
	ThresholdDays  int
	ExcludeRoleIDs []string
	ForceAssign    bool
	DryRun         bool
	// TargetMemberID restricts the whole run to one member; empty means full scan.
	TargetMemberID string
	GrantTemplate  string

	PairPrimaryRoleID string
	PairRoles         []PairEntry
}

// Default returns the baseline configuration before file and env overrides.
func Default() Rules {
	return Rules{
		ThresholdDays: 2,
		GrantTemplate: DefaultGrantMessage,
	}
}

// Threshold converts the configured day count to a duration, floored at zero.
func (r Rules) Threshold() time.Duration {
	if r.ThresholdDays < 0 {
		return 0
	}
	return time.Duration(r.ThresholdDays) * 24 * time.Hour
}

// Targeted reports whether the run is restricted to a single member.
func (r Rules) Targeted() bool {
	return r.TargetMemberID != ""
}

// PairConfigured reports whether the pair-resolution phase has anything to do.
func (r Rules) PairConfigured() bool {
	return r.PairPrimaryRoleID != "" && len(r.PairRoles) > 0
}

// SecondaryRoleIDs returns the configured secondary-pair role IDs in order.
func (r Rules) SecondaryRoleIDs() []string {
	ids := make([]string, 0, len(r.PairRoles))
	for _, p := range r.PairRoles {
		ids = append(ids, p.RoleID)
	}
	return ids
}

// Load builds the run configuration: defaults, then the TOML file at path (if
// any), then environment overrides, then normalization and validation.
func Load(path string) (Rules, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Rules{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Rules{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Rules{}, err
	}
	return cfg, nil
}

type fileConfig struct {
	GuildID           string      `toml:"guild_id"`
	GrantRoleID       string      `toml:"grant_role_id"`
	ThresholdDays     int         `toml:"threshold_days"`
	ExcludeRoleIDs    []string    `toml:"exclude_role_ids"`
	ForceAssign       bool        `toml:"force_assign"`
	DryRun            bool        `toml:"dry_run"`
	TargetMemberID    string      `toml:"target_member_id"`
	GrantMessage      string      `toml:"grant_message"`
	PairPrimaryRoleID string      `toml:"pair_primary_role_id"`
	Pairs             []PairEntry `toml:"pair"`
}

func loadFile(path string, cfg *Rules) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("guild_id") {
		cfg.ServerID = strings.TrimSpace(raw.GuildID)
	}
	if meta.IsDefined("grant_role_id") {
		cfg.GrantRoleID = strings.TrimSpace(raw.GrantRoleID)
	}
	if meta.IsDefined("threshold_days") {
		cfg.ThresholdDays = raw.ThresholdDays
	}
	if meta.IsDefined("exclude_role_ids") {
		cfg.ExcludeRoleIDs = normalizeIDs(raw.ExcludeRoleIDs)
	}
	if meta.IsDefined("force_assign") {
		cfg.ForceAssign = raw.ForceAssign
	}
	if meta.IsDefined("dry_run") {
		cfg.DryRun = raw.DryRun
	}
	if meta.IsDefined("target_member_id") {
		cfg.TargetMemberID = strings.TrimSpace(raw.TargetMemberID)
	}
	if meta.IsDefined("grant_message") {
		cfg.GrantTemplate = raw.GrantMessage
	}
	if meta.IsDefined("pair_primary_role_id") {
		cfg.PairPrimaryRoleID = strings.TrimSpace(raw.PairPrimaryRoleID)
	}
	if meta.IsDefined("pair") {
		cfg.PairRoles = raw.Pairs
	}
	return nil
}

func applyEnv(cfg *Rules) error {
	if v, ok := lookupEnv(EnvGuildID); ok {
		cfg.ServerID = v
	}
	if v, ok := lookupEnv(EnvGrantRoleID); ok {
		cfg.GrantRoleID = v
	}
	if v, ok := lookupEnv(EnvThresholdDays); ok {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvThresholdDays, err)
		}
		cfg.ThresholdDays = days
	}
	if v, ok := lookupEnv(EnvExcludeRoleIDs); ok {
		cfg.ExcludeRoleIDs = normalizeIDs(strings.Split(v, ","))
	}
	if v, ok := lookupEnv(EnvForceAssign); ok {
		cfg.ForceAssign = parseFlag(v)
	}
	if v, ok := lookupEnv(EnvDryRun); ok {
		cfg.DryRun = parseFlag(v)
	}
	if v, ok := lookupEnv(EnvTargetMemberID); ok {
		cfg.TargetMemberID = v
	}
	if v := os.Getenv(EnvGrantMessage); v != "" {
		cfg.GrantTemplate = v
	}
	if v, ok := lookupEnv(EnvPairPrimaryRole); ok {
		cfg.PairPrimaryRoleID = v
	}

	var pairs []PairEntry
	envPairs := false
	for i := 1; i <= MaxPairRoles; i++ {
		id, ok := lookupEnv(fmt.Sprintf("%s%d", EnvPairRolePrefix, i))
		if !ok {
			continue
		}
		envPairs = true
		pairs = append(pairs, PairEntry{
			RoleID:   id,
			Template: os.Getenv(fmt.Sprintf("%s%d", EnvPairMsgPrefix, i)),
		})
	}
	if envPairs {
		cfg.PairRoles = pairs
	}
	return nil
}

// normalize drops unset sentinels and over-limit pair entries so the engine
// only ever sees usable values.
func (r *Rules) normalize() {
	if r.TargetMemberID == "0" {
		r.TargetMemberID = ""
	}
	if r.ThresholdDays < 0 {
		r.ThresholdDays = 0
	}
	kept := r.PairRoles[:0]
	for _, p := range r.PairRoles {
		p.RoleID = strings.TrimSpace(p.RoleID)
		if p.RoleID == "" || p.RoleID == "0" {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) > MaxPairRoles {
		kept = kept[:MaxPairRoles]
	}
	r.PairRoles = kept
}

// Validate checks the required identifiers. Missing server or grant-role IDs
// are a fatal startup error; the pair rule is optional.
func (r Rules) Validate() error {
	if r.ServerID == "" {
		return fmt.Errorf("config missing guild id (set %s)", EnvGuildID)
	}
	if !isSnowflake(r.ServerID) {
		return fmt.Errorf("invalid guild id %q", r.ServerID)
	}
	if r.GrantRoleID == "" {
		return fmt.Errorf("config missing grant role id (set %s)", EnvGrantRoleID)
	}
	if !isSnowflake(r.GrantRoleID) {
		return fmt.Errorf("invalid grant role id %q", r.GrantRoleID)
	}
	if r.TargetMemberID != "" && !isSnowflake(r.TargetMemberID) {
		return fmt.Errorf("invalid target member id %q", r.TargetMemberID)
	}
	for _, id := range r.ExcludeRoleIDs {
		if !isSnowflake(id) {
			return fmt.Errorf("invalid exclude role id %q", id)
		}
	}
	if r.PairPrimaryRoleID != "" && !isSnowflake(r.PairPrimaryRoleID) {
		return fmt.Errorf("invalid pair primary role id %q", r.PairPrimaryRoleID)
	}
	for i, p := range r.PairRoles {
		if !isSnowflake(p.RoleID) {
			return fmt.Errorf("pair[%d] invalid role id %q", i, p.RoleID)
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", false
	}
	return v, true
}

// parseFlag accepts the original job's "1" convention plus standard booleans.
func parseFlag(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return v
}

func normalizeIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		v := strings.TrimSpace(id)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func isSnowflake(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

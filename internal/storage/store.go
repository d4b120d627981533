package storage

import (
	"context"
	"errors"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// SettingMetaAccessToken holds the token legacy accounts fall back to.
const SettingMetaAccessToken = "meta_access_token"

// Store persists everything that outlives a poll: rules, the append-only
// surf log, per-campaign flags, accounts and global settings.
type Store interface {
	engine.RuleSource
	SaveRules(ctx context.Context, rules []engine.Rule) error

	AppendLogs(ctx context.Context, logs []engine.SurfLog) error
	RecentLogs(ctx context.Context, limit int) ([]engine.SurfLog, error)

	LoadFlags(ctx context.Context, accountID string) (map[string]campaign.Flags, error)
	SaveFlag(ctx context.Context, accountID, key string, f campaign.Flags) error

	GetAccount(ctx context.Context, id string) (campaign.Account, error)
	ListAccounts(ctx context.Context) ([]campaign.Account, error)
	SaveAccount(ctx context.Context, a campaign.Account) error

	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key, value string) error

	Close()
}

const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	if limit > MaxLogLimit {
		return MaxLogLimit
	}
	return limit
}

package storage

import (
	"context"
	"sort"
	"sync"

	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
)

// MemoryStore is the in-process Store used by tests and `storage.driver: memory`.
// The surf log is append-only here too.
type MemoryStore struct {
	mu       sync.RWMutex
	rules    []engine.Rule
	logs     []engine.SurfLog
	flags    map[string]map[string]campaign.Flags
	accounts map[string]campaign.Account
	settings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:    map[string]map[string]campaign.Flags{},
		accounts: map[string]campaign.Account{},
		settings: map[string]string{},
	}
}

func (m *MemoryStore) LoadRules(ctx context.Context) ([]engine.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.Rule(nil), m.rules...), nil
}

func (m *MemoryStore) SaveRules(ctx context.Context, rules []engine.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]engine.Rule(nil), rules...)
	return nil
}

func (m *MemoryStore) AppendLogs(ctx context.Context, logs []engine.SurfLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
	return nil
}

// RecentLogs returns up to limit logs, newest first.
func (m *MemoryStore) RecentLogs(ctx context.Context, limit int) ([]engine.SurfLog, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.SurfLog, 0, min(limit, len(m.logs)))
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *MemoryStore) LoadFlags(ctx context.Context, accountID string) (map[string]campaign.Flags, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]campaign.Flags, len(m.flags[accountID]))
	for k, v := range m.flags[accountID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveFlag(ctx context.Context, accountID, key string, f campaign.Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flags[accountID] == nil {
		m.flags[accountID] = map[string]campaign.Flags{}
	}
	m.flags[accountID][key] = f
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (campaign.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return campaign.Account{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) ListAccounts(ctx context.Context) ([]campaign.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]campaign.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveAccount(ctx context.Context, a campaign.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func (m *MemoryStore) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SaveSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) Close() {}

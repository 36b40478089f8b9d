package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager is an EmbeddingProvider that tries its providers in preference
// order and parks a provider for a cooldown after quota or rate errors.
type Manager struct {
	providers []NamedEmbedProvider
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	parkedUntil map[int]time.Time
}

// NewManager builds providers from a "name[:alias]|name[:alias]" list. An
// empty list yields a manager with no providers.
func NewManager(list string, dim int, cooldown time.Duration) (*Manager, error) {
	m := &Manager{cooldown: cooldown, now: time.Now, parkedUntil: make(map[int]time.Time)}
	if strings.TrimSpace(list) == "" {
		return m, nil
	}
	for _, ref := range ParseProviderList(list) {
		p, err := buildProvider(ref, dim)
		if err != nil {
			return nil, err
		}
		m.providers = append(m.providers, NamedEmbedProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewManagerWith wraps already constructed providers.
func NewManagerWith(cooldown time.Duration, providers ...NamedEmbedProvider) *Manager {
	return &Manager{providers: providers, cooldown: cooldown, now: time.Now, parkedUntil: make(map[int]time.Time)}
}

func (m *Manager) Count() int { return len(m.providers) }

func (m *Manager) Refs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p.Ref)
	}
	return out
}

func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if len(m.providers) == 0 {
		return nil, ProviderInfo{}, errors.New("no embedding providers configured")
	}
	var errs []error
	for _, i := range m.preferredOrder() {
		if m.parked(i) {
			continue
		}
		p := m.providers[i]
		vecs, info, err := p.Provider.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		if ctx.Err() != nil {
			return nil, info, ctx.Err()
		}
		kind := ClassifyError(err)
		if kind == ErrorQuota || kind == ErrorRate {
			m.park(i)
		}
		slog.Warn("embedding provider failed", "provider", p.Ref.Raw, "kind", kind, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Ref.Raw, err))
	}
	if len(errs) == 0 {
		return nil, ProviderInfo{}, errors.New("all embedding providers cooling down")
	}
	return nil, ProviderInfo{}, errors.Join(errs...)
}

func (m *Manager) parked(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.parkedUntil[i]
	if !ok {
		return false
	}
	if m.now().After(until) {
		delete(m.parkedUntil, i)
		return false
	}
	return true
}

func (m *Manager) park(i int) {
	if m.cooldown <= 0 {
		return
	}
	m.mu.Lock()
	m.parkedUntil[i] = m.now().Add(m.cooldown)
	m.mu.Unlock()
}

// preferredOrder puts real providers ahead of the mock.
func (m *Manager) preferredOrder() []int {
	out := make([]int, 0, len(m.providers))
	for i, p := range m.providers {
		if strings.ToLower(p.Ref.Name) != "mock" {
			out = append(out, i)
		}
	}
	for i, p := range m.providers {
		if strings.ToLower(p.Ref.Name) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ref.Name)
	}
}

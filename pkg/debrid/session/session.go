package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

// State is a provider's credential state.
type State int

const (
	LoggedOut State = iota
	Authorizing
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authorizing:
		return "authorizing"
	case Authenticated:
		return "authenticated"
	default:
		return "logged_out"
	}
}

// Manager owns the per-provider auth state machines, the enabled set and the
// active-provider selection. Credential bytes live in the injected store;
// the manager only tracks lifecycle.
type Manager struct {
	mu      sync.Mutex
	store   types.CredentialStore
	sink    types.StatusSink
	logger  zerolog.Logger
	clients map[types.Provider]types.Client
	order   []types.Provider
	states  map[types.Provider]State
	enabled map[types.Provider]bool
	active  types.Provider
	pending map[types.Provider]context.CancelFunc
}

func NewManager(store types.CredentialStore, sink types.StatusSink, logger zerolog.Logger) *Manager {
	if sink == nil {
		sink = types.NopSink{}
	}
	return &Manager{
		store:   store,
		sink:    sink,
		logger:  logger,
		clients: make(map[types.Provider]types.Client),
		states:  make(map[types.Provider]State),
		enabled: make(map[types.Provider]bool),
		pending: make(map[types.Provider]context.CancelFunc),
	}
}

// Register adds a provider client. Registration order is the iteration order
// for EnabledClients.
func (m *Manager) Register(client types.Client, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := client.Name()
	if _, ok := m.clients[name]; !ok {
		m.order = append(m.order, name)
	}
	m.clients[name] = client
	m.states[name] = LoggedOut
	m.enabled[name] = enabled
}

// Restore installs previously stored credentials, marking their providers
// authenticated. Called once at startup.
func (m *Manager) Restore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range m.order {
		token, err := m.store.Get(name)
		if err != nil || token == "" {
			continue
		}
		m.clients[name].SetToken(token)
		m.states[name] = Authenticated
		m.logger.Debug().Msgf("Restored %s session", name)
	}
	m.autoSelectLocked()
}

func (m *Manager) client(provider types.Provider) (types.Client, error) {
	c, ok := m.clients[provider]
	if !ok {
		return nil, &types.InvalidInputError{Reason: fmt.Sprintf("unknown provider %s", provider)}
	}
	return c, nil
}

// BeginAuth starts a provider's auth flow and moves it to Authorizing.
func (m *Manager) BeginAuth(ctx context.Context, provider types.Provider) (*types.AuthPrompt, error) {
	m.mu.Lock()
	c, err := m.client(provider)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.cancelPendingLocked(provider)
	m.states[provider] = Authorizing
	m.mu.Unlock()

	prompt, err := c.BeginAuth(ctx)
	if err != nil {
		m.mu.Lock()
		m.states[provider] = LoggedOut
		m.mu.Unlock()
		return nil, err
	}
	return prompt, nil
}

// CompleteAuth finishes a pending flow. For polling providers this blocks
// until the user confirms out of band; CancelAuth (or ctx) aborts the poll
// without leaking it. Nothing is persisted on failure.
func (m *Manager) CompleteAuth(ctx context.Context, provider types.Provider, code string) error {
	m.mu.Lock()
	c, err := m.client(provider)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.states[provider] != Authorizing {
		m.mu.Unlock()
		return &types.AuthError{Provider: provider, Reason: "no auth flow in progress"}
	}
	m.cancelPendingLocked(provider)
	pollCtx, cancel := context.WithCancel(ctx)
	m.pending[provider] = cancel
	m.mu.Unlock()

	token, err := c.CompleteAuth(pollCtx, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.pending[provider]; ok {
		stored()
		delete(m.pending, provider)
	}

	if err != nil {
		m.states[provider] = LoggedOut
		if types.IsCancelled(err) {
			return err
		}
		m.sink.Report(fmt.Sprintf("%s login failed", provider), types.SeverityError)
		return err
	}

	if err := m.store.Set(provider, token); err != nil {
		m.states[provider] = LoggedOut
		return &types.AuthError{Provider: provider, Reason: "storing credential failed", Err: err}
	}
	c.SetToken(token)
	m.states[provider] = Authenticated
	m.autoSelectLocked()
	m.sink.Report(fmt.Sprintf("Logged in to %s", provider), types.SeverityInfo)
	return nil
}

// CancelAuth aborts a pending auth poll and reverts the provider to
// LoggedOut. Safe to call when nothing is pending.
func (m *Manager) CancelAuth(provider types.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPendingLocked(provider)
	if m.states[provider] == Authorizing {
		m.states[provider] = LoggedOut
	}
}

func (m *Manager) cancelPendingLocked(provider types.Provider) {
	if cancel, ok := m.pending[provider]; ok {
		cancel()
		delete(m.pending, provider)
	}
}

// Logout clears the provider's credential. Remote revocation is not
// attempted; providers that need it messaged tell the sink so the UI can
// point the user at the account page.
func (m *Manager) Logout(provider types.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.client(provider)
	if err != nil {
		return err
	}
	m.cancelPendingLocked(provider)
	if err := m.store.Clear(provider); err != nil {
		return err
	}
	c.SetToken("")
	m.states[provider] = LoggedOut
	if m.active == provider {
		m.active = ""
	}
	if c.RequiresManualRevocation() {
		m.sink.Report(fmt.Sprintf("%s does not revoke tokens remotely; remove the key from your account page", provider), types.SeverityWarn)
	}
	return nil
}

// autoSelectLocked picks the active provider when exactly one is enabled and
// it just became authenticated.
func (m *Manager) autoSelectLocked() {
	if m.active != "" {
		return
	}
	var only types.Provider
	count := 0
	for _, name := range m.order {
		if m.enabled[name] {
			only = name
			count++
		}
	}
	if count == 1 && m.states[only] == Authenticated {
		m.active = only
		m.logger.Debug().Msgf("Auto-selected %s as active provider", only)
	}
}

// State reports a provider's credential state.
func (m *Manager) State(provider types.Provider) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[provider]
}

// Active returns the provider currently used for match status and resolves,
// or empty when none is selected.
func (m *Manager) Active() types.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive selects the provider used for searches. It must be enabled and
// authenticated.
func (m *Manager) SetActive(provider types.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.client(provider); err != nil {
		return err
	}
	if !m.enabled[provider] {
		return &types.InvalidInputError{Reason: fmt.Sprintf("provider %s is disabled", provider)}
	}
	if m.states[provider] != Authenticated {
		return &types.AuthError{Provider: provider, Reason: "not authenticated"}
	}
	m.active = provider
	return nil
}

// SetEnabled toggles a provider. Disabling the active provider clears the
// selection.
func (m *Manager) SetEnabled(provider types.Provider, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[provider]; !ok {
		return
	}
	m.enabled[provider] = enabled
	if !enabled && m.active == provider {
		m.active = ""
	}
	if enabled {
		m.autoSelectLocked()
	}
}

// EnabledClients returns the enabled, authenticated clients in registration
// order. These are the fan-out targets for availability lookups.
func (m *Manager) EnabledClients() []types.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	clients := make([]types.Client, 0, len(m.order))
	for _, name := range m.order {
		if m.enabled[name] && m.states[name] == Authenticated {
			clients = append(clients, m.clients[name])
		}
	}
	return clients
}

// Client returns the registered client for a provider.
func (m *Manager) Client(provider types.Provider) (types.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client(provider)
}

// Providers lists registered providers in registration order.
func (m *Manager) Providers() []types.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Provider, len(m.order))
	copy(out, m.order)
	return out
}

// Enabled reports whether a provider is enabled.
func (m *Manager) Enabled(provider types.Provider) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[provider]
}

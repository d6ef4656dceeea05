package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Lifecycle events emitted through the injector
const (
	EventAfterListen       = "AfterListen"
	EventOnDestroy         = "OnDestroy"
	EventBeforeAgendaStart = "BeforeAgendaStart"
	EventAfterAgendaStart  = "AfterAgendaStart"
)

var (
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrInvalidProvider   = errors.New("provider requires a token and an instance")
)

// ProviderType groups providers that share a purpose (e.g. "agenda")
type ProviderType string

// ProviderTypeDefault is used when a provider is registered without a type
const ProviderTypeDefault ProviderType = "provider"

// Provider is a managed instance registered in the injector
type Provider struct {
	Token    string
	Type     ProviderType
	Instance interface{}
	Store    *Store
}

// Injector is an ordered registry of providers
type Injector struct {
	mu        sync.RWMutex
	providers []*Provider
	byToken   map[string]*Provider
	logger    *slog.Logger
}

// NewInjector creates a new injector
func NewInjector(logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Injector{
		byToken: make(map[string]*Provider),
		logger:  logger,
	}
}

// Logger returns the root logger
func (i *Injector) Logger() *slog.Logger {
	return i.logger
}

// Register adds a provider. Registration order is preserved for lookups and events.
func (i *Injector) Register(p *Provider) error {
	if p == nil || p.Token == "" || p.Instance == nil {
		return ErrInvalidProvider
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.byToken[p.Token]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Token)
	}

	if p.Type == "" {
		p.Type = ProviderTypeDefault
	}
	if p.Store == nil {
		p.Store = NewStore()
	}

	i.providers = append(i.providers, p)
	i.byToken[p.Token] = p

	i.logger.Debug("Provider registered", "token", p.Token, "type", p.Type)

	return nil
}

// Provider returns the provider registered under token
func (i *Injector) Provider(token string) (*Provider, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	p, exists := i.byToken[token]
	return p, exists
}

// Get returns the instance registered under token
func (i *Injector) Get(token string) (interface{}, bool) {
	p, exists := i.Provider(token)
	if !exists {
		return nil, false
	}
	return p.Instance, true
}

// GetProviders returns providers of the given types, or all providers when no type is given
func (i *Injector) GetProviders(types ...ProviderType) []*Provider {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := make([]*Provider, 0, len(i.providers))
	for _, p := range i.providers {
		if len(types) == 0 || containsType(types, p.Type) {
			result = append(result, p)
		}
	}

	return result
}

// Emit calls the method named event on every provider that declares it with the
// signature func(context.Context) error. Providers are called in registration
// order and the first error stops the emission.
func (i *Injector) Emit(ctx context.Context, event string) error {
	i.logger.Debug("Emitting event", "event", event)

	for _, p := range i.GetProviders() {
		hook, ok := lookupHook(p.Instance, event)
		if !ok {
			continue
		}

		if err := hook(ctx); err != nil {
			return fmt.Errorf("%s on provider %s: %w", event, p.Token, err)
		}
	}

	return nil
}

func lookupHook(instance interface{}, event string) (func(context.Context) error, bool) {
	method := reflect.ValueOf(instance).MethodByName(event)
	if !method.IsValid() {
		return nil, false
	}

	hook, ok := method.Interface().(func(context.Context) error)
	return hook, ok
}

func containsType(types []ProviderType, t ProviderType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

package parser

import (
	"fmt"
	"sort"
	"sync"

	"docextract/internal/config"
	"docextract/internal/port"
)

// Provider is an LLM backend that both classifies documents and extracts fields.
type Provider interface {
	port.DocumentClassifier
	port.FieldExtractor
}

// ProviderFactory creates a Provider from a provider config.
type ProviderFactory func(cfg *config.ParserProviderConfig) (Provider, error)

var (
	mu        sync.RWMutex
	providers = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// RegisteredProviders lists the registered provider names, sorted.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(providers))
	for name := range providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewProvider creates a Provider from a provider config using the registered factory.
func NewProvider(cfg *config.ParserProviderConfig) (Provider, error) {
	mu.RLock()
	factory, ok := providers[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown parser provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

package providers

import (
	"fmt"
	"sort"
	"sync"
)

// ProviderCreator builds an adapter from its configuration
type ProviderCreator func(config Config) (Adapter, error)

// ProviderFactory maps backend types to adapter constructors
type ProviderFactory struct {
	mu       sync.RWMutex
	creators map[string]ProviderCreator
}

// NewProviderFactory creates a factory with the built-in connectors registered
func NewProviderFactory() *ProviderFactory {
	f := &ProviderFactory{
		creators: make(map[string]ProviderCreator),
	}

	f.Register("ollama", NewOllamaAdapter)
	f.Register("vllm", NewVLLMAdapter)

	return f
}

// Register registers a creator for a backend type, replacing any previous one
func (f *ProviderFactory) Register(providerType string, creator ProviderCreator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[providerType] = creator
}

// Create builds an adapter for config.Type
func (f *ProviderFactory) Create(config Config) (Adapter, error) {
	f.mu.RLock()
	creator, exists := f.creators[config.Type]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, config.Type)
	}

	adapter, err := creator(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s (%s): %w", config.Name, config.Type, err)
	}

	return adapter, nil
}

// SupportedTypes returns the registered backend types, sorted
func (f *ProviderFactory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for t := range f.creators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

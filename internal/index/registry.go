package index

import (
	"errors"
	"fmt"
	"sync"
)

// open collection directories held by managers in this process, keyed by absolute path
var (
	registryMu sync.Mutex
	registry   = map[string]*Manager{}
)

func register(m *Manager) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	holder, ok := registry[m.cfg.Path]
	if !ok || holder == m {
		registry[m.cfg.Path] = m
		return nil
	}
	if holder.cfg != m.cfg {
		return fmt.Errorf("%w: %s is open with dimensions=%d metric=%s model=%q",
			ErrConfigurationMismatch, m.cfg.Path, holder.cfg.Dimensions, holder.cfg.Metric, holder.cfg.Model)
	}
	return fmt.Errorf("%w: %s", ErrCollectionInUse, m.cfg.Path)
}

func unregister(m *Manager) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry[m.cfg.Path] == m {
		delete(registry, m.cfg.Path)
	}
}

// ErrNotInitialized is returned by Default before Init.
var ErrNotInitialized = errors.New("index not initialized")

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Init creates the process-wide manager. Calling it again with the same configuration
// returns the existing manager; a different configuration is ErrConfigurationMismatch.
func Init(cfg Config, opts ...Option) (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	cfg = cfg.withDefaults()
	if defaultManager != nil {
		if defaultManager.cfg != cfg {
			return nil, fmt.Errorf("%w: already initialized for %s", ErrConfigurationMismatch, defaultManager.cfg.Path)
		}
		return defaultManager, nil
	}
	m, err := NewManager(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defaultManager = m
	return m, nil
}

// Default returns the process-wide manager created by Init.
func Default() (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultManager == nil {
		return nil, ErrNotInitialized
	}
	return defaultManager, nil
}

// Shutdown closes and forgets the process-wide manager.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultManager == nil {
		return nil
	}
	err := defaultManager.Close()
	defaultManager = nil
	return err
}

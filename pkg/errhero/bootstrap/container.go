package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Container resolves services by name.
type Container interface {
	Has(name string) bool
	Get(name string) (any, error)
}

// Registrar is a Container that accepts new services. Building the default
// logger requires one.
type Registrar interface {
	Set(name string, service any)
}

// MapContainer is an in-memory Container and Registrar.
type MapContainer struct {
	mu       sync.RWMutex
	services map[string]any
	order    []string
}

var (
	_ Container = (*MapContainer)(nil)
	_ Registrar = (*MapContainer)(nil)
)

// NewMapContainer creates an empty container.
func NewMapContainer() *MapContainer {
	return &MapContainer{services: make(map[string]any)}
}

func (c *MapContainer) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[name]
	return ok
}

func (c *MapContainer) Get(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q not found", name)
	}
	return s, nil
}

func (c *MapContainer) Set(name string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.services[name]; !ok {
		c.order = append(c.order, name)
	}
	c.services[name] = service
}

// Close closes every service implementing io.Closer, most recently
// registered first.
func (c *MapContainer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.order) - 1; i >= 0; i-- {
		name := c.order[i]
		if closer, ok := c.services[name].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

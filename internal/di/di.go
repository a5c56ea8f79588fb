// Package di provides a small lazy dependency injection container with
// type-safe tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by name.
type ServiceRegistry interface {
	Get(name string) any
	Has(name string) bool
}

// Container is a ServiceRegistry that accepts registrations.
type Container interface {
	ServiceRegistry
	Register(name string, svc any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	once     sync.Once
	factory  func(ServiceRegistry) any
	instance any
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

// Register stores an already constructed service.
func (c *container) Register(name string, svc any) {
	e := &entry{instance: svc}
	e.once.Do(func() {})

	c.mu.Lock()
	c.entries[name] = e
	c.mu.Unlock()
}

// RegisterFactory stores a factory that is invoked once, on first Get.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	c.entries[name] = &entry{factory: factory}
	c.mu.Unlock()
}

// Get resolves a service. It panics when the name is unknown, the same way a
// factory panics when its dependencies cannot be built.
func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}

	e.once.Do(func() {
		e.instance = e.factory(c)
	})
	return e.instance
}

// Has reports whether name is registered.
func (c *container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Token identifies a service of type T.
type Token[T any] struct {
	name string
}

// NewToken creates a token. Names follow "<context>.<Service>" for public
// services and "<context>:<dep>" for private ones.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registry key of the token.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory under the token's name.
func RegisterToken[T any](c Container, t Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(t.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token and asserts its type. A factory may return
// nil for an optional service; GetToken then returns the zero T.
func GetToken[T any](sr ServiceRegistry, t Token[T]) T {
	v := sr.Get(t.name)
	if v == nil {
		var zero T
		return zero
	}
	svc, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T", t.name, v))
	}
	return svc
}

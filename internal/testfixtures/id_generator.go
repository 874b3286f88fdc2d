package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator issues deterministic identifiers in the canonical UUID layout,
// so fixtures look like the ids uuid.NewString assigns in production. The
// namespace fills the first group, letting a test tell two generators apart.
type IDGenerator struct {
	mu        sync.Mutex
	namespace uint32
	issued    uint64
}

func NewIDGenerator(namespace uint32) *IDGenerator {
	return &IDGenerator{namespace: namespace}
}

// Next returns the next identifier, starting at ...-000000000001.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return SequentialID(g.namespace, g.issued)
}

// NextFunc returns g.Next for injection into services.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers have been handed out.
func (g *IDGenerator) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

// SequentialID formats the n-th identifier of namespace.
func SequentialID(namespace uint32, n uint64) string {
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", namespace, n)
}

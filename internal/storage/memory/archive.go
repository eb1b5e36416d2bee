// Package memory holds archived bodies in memory, for tests.
package memory

import (
	"context"
	"sync"
)

// Archive stores objects in a map.
type Archive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New returns an empty Archive.
func New() *Archive {
	return &Archive{objects: make(map[string][]byte)}
}

// Save stores a copy of data under objectName.
func (a *Archive) Save(_ context.Context, objectName string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[objectName] = append([]byte(nil), data...)
	return nil
}

// Object returns the stored bytes and whether the object exists.
func (a *Archive) Object(objectName string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[objectName]
	return data, ok
}

// Len reports how many objects are stored.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}

// Package memmetadata is an in-memory reference implementation of
// dsqlengine.MetadataProvider and dsqlengine.StatisticsProvider (spec
// §6.2), for tests, the demo CLI, and anyone wiring the engine without a
// real metadata service. It is grounded on the teacher's schema.go
// registry shape (a map keyed by identity, populated once at startup)
// adapted from a struct-schema registry to an object-metadata catalog.
package memmetadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/arllen133/dsqlengine"
)

// Catalog holds ObjectMetadata and row-count/selectivity statistics for a
// fixed set of logical objects, registered up front via Register.
type Catalog struct {
	mu      sync.RWMutex
	objects map[string]dsqlengine.ObjectMetadata
	rows    map[string]int64
}

// NewCatalog builds an empty Catalog; call Register for each object before
// using it as a MetadataProvider/StatisticsProvider.
func NewCatalog() *Catalog {
	return &Catalog{
		objects: make(map[string]dsqlengine.ObjectMetadata),
		rows:    make(map[string]int64),
	}
}

// Register adds (or replaces) one object's metadata and its approximate row
// count, used by the optimizer's cardinality estimation.
func (c *Catalog) Register(meta dsqlengine.ObjectMetadata, rowCount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[meta.ObjectName] = meta
	c.rows[meta.ObjectName] = rowCount
}

// Get implements dsqlengine.MetadataProvider.
func (c *Catalog) Get(ctx context.Context, objectName string) (dsqlengine.ObjectMetadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.objects[objectName]
	if !ok {
		return dsqlengine.ObjectMetadata{}, fmt.Errorf("memmetadata: unknown object %q", objectName)
	}
	return meta, nil
}

// RowCount implements dsqlengine.StatisticsProvider.
func (c *Catalog) RowCount(ctx context.Context, objectName string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.rows[objectName]
	if !ok {
		return 0, fmt.Errorf("memmetadata: unknown object %q", objectName)
	}
	return n, nil
}

// FieldSelectivity implements dsqlengine.StatisticsProvider, reading the
// per-field Selectivity recorded on the object's FieldMetadata (spec §4.3).
func (c *Catalog) FieldSelectivity(ctx context.Context, objectName, fieldName string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.objects[objectName]
	if !ok {
		return 0, fmt.Errorf("memmetadata: unknown object %q", objectName)
	}
	field, ok := meta.Fields[fieldName]
	if !ok {
		return 0, fmt.Errorf("memmetadata: object %q has no field %q", objectName, fieldName)
	}
	return field.Selectivity, nil
}

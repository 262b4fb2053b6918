// Package identity translates legacy identifiers into target ids and
// guarantees each (entity type, legacy id) pair resolves to at most one
// target entity across any number of runs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
)

// Entity type keys used in the mapping table and external references.
const (
	EntityUser      = "user"
	EntityAffiliate = "affiliate"
	EntityOrder     = "order"
)

var (
	// ErrNoMapping means neither a mapping nor a natural-key match exists;
	// the caller creates the target entity and binds it.
	ErrNoMapping = errors.New("no mapping")
	// ErrMappingConflict means a different mapping already exists for the
	// key. It indicates an invariant violation and aborts the run.
	ErrMappingConflict = errors.New("mapping conflict")
)

// ExternalRef derives the idempotency key stored on target entities.
func ExternalRef(entityType string, legacyID int64) string {
	return fmt.Sprintf("legacy:%s:%d", entityType, legacyID)
}

// NaturalKeys are the fallback identifiers used when no mapping exists yet.
// Email comparison is case-insensitive.
type NaturalKeys struct {
	Email    string
	Username string
}

// LookupFunc finds a pre-existing target entity by natural keys, returning
// "" when none matches.
type LookupFunc func(ctx context.Context, keys NaturalKeys) (string, error)

// Resolver resolves and records identity mappings. Natural-key matches take
// priority over creating new entities, so the same email under two legacy
// ids converges on one target user.
type Resolver struct {
	mappings *repository.MappingRepo
	lookups  map[string]LookupFunc
	locks    [64]sync.Mutex
}

func NewResolver(mappings *repository.MappingRepo) *Resolver {
	return &Resolver{mappings: mappings, lookups: map[string]LookupFunc{}}
}

// RegisterLookup installs the natural-key lookup for one entity type.
func (r *Resolver) RegisterLookup(entityType string, fn LookupFunc) {
	r.lookups[entityType] = fn
}

// Guard serializes resolve/create/bind sequences for one key. Callers hold
// the returned unlock across the whole sequence.
func (r *Resolver) Guard(entityType string, legacyID int64) func() {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", entityType, legacyID)
	mu := &r.locks[h.Sum32()%uint32(len(r.locks))]
	mu.Lock()
	return mu.Unlock
}

// Resolve returns the target id for a legacy entity. Resolution order:
// existing mapping, then natural keys; a natural-key hit records a mapping
// to the pre-existing entity before returning. ErrNoMapping when neither
// matches.
func (r *Resolver) Resolve(ctx context.Context, entityType string, legacyID int64, keys NaturalKeys) (string, error) {
	m, err := r.mappings.Get(ctx, entityType, legacyID)
	if err != nil {
		return "", fmt.Errorf("mapping lookup %s/%d: %w", entityType, legacyID, err)
	}
	if m != nil {
		return m.TargetID, nil
	}

	lookup, ok := r.lookups[entityType]
	if !ok || (strings.TrimSpace(keys.Email) == "" && strings.TrimSpace(keys.Username) == "") {
		return "", ErrNoMapping
	}
	targetID, err := lookup(ctx, keys)
	if err != nil {
		return "", fmt.Errorf("natural key lookup %s/%d: %w", entityType, legacyID, err)
	}
	if targetID == "" {
		return "", ErrNoMapping
	}
	if err := r.Bind(ctx, entityType, legacyID, targetID); err != nil {
		return "", err
	}
	return targetID, nil
}

// Bind records a new mapping. A pre-existing identical mapping is a no-op;
// a differing one is ErrMappingConflict.
func (r *Resolver) Bind(ctx context.Context, entityType string, legacyID int64, targetID string) error {
	existing, err := r.mappings.Get(ctx, entityType, legacyID)
	if err != nil {
		return fmt.Errorf("mapping lookup %s/%d: %w", entityType, legacyID, err)
	}
	if existing != nil {
		if existing.TargetID == targetID {
			return nil
		}
		return fmt.Errorf("%w: %s/%d already bound to %s, refusing %s",
			ErrMappingConflict, entityType, legacyID, existing.TargetID, targetID)
	}
	if err := r.mappings.Insert(ctx, entityType, legacyID, targetID); err != nil {
		// Unguarded callers resolving the same foreign key can both pass
		// the existence check; the loser's insert trips the primary key.
		// Converging on the same target is fine, diverging is a conflict.
		if strings.Contains(err.Error(), "UNIQUE") {
			stored, gerr := r.mappings.Get(ctx, entityType, legacyID)
			if gerr != nil {
				return fmt.Errorf("mapping lookup %s/%d: %w", entityType, legacyID, gerr)
			}
			if stored != nil {
				if stored.TargetID == targetID {
					return nil
				}
				return fmt.Errorf("%w: %s/%d already bound to %s, refusing %s",
					ErrMappingConflict, entityType, legacyID, stored.TargetID, targetID)
			}
		}
		return fmt.Errorf("bind %s/%d: %w", entityType, legacyID, err)
	}
	return nil
}

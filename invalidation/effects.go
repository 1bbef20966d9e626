package invalidation

import (
	"strings"

	"github.com/arunvm123/ticketinventory/cache"
	"github.com/arunvm123/ticketinventory/model"
)

// KeyPattern is either a literal cache key or a prefix ending in "*".
type KeyPattern string

func Exact(key string) KeyPattern { return KeyPattern(key) }

func Prefix(prefix string) KeyPattern { return KeyPattern(prefix + "*") }

func (p KeyPattern) IsWildcard() bool { return strings.HasSuffix(string(p), "*") }

// Prefix returns the literal part of a wildcard pattern.
func (p KeyPattern) Prefix() string { return strings.TrimSuffix(string(p), "*") }

func (p KeyPattern) String() string { return string(p) }

// Policy tunes which catalog caches an event write touches.
type Policy struct {
	// PurgeCatalogOnEventWrite also drops categories:all / tags:all when an
	// event changed its category or tags. Off by default: those caches list
	// catalog entities, not events.
	PurgeCatalogOnEventWrite bool
}

// RegisterWriteEffect maps a committed write to the cache patterns it makes
// stale. It is pure: same input, same output, no I/O.
func (p Policy) RegisterWriteEffect(ev model.DomainEvent) []KeyPattern {
	allLists := Prefix(cache.EventListPrefix)

	switch ev.Type {
	case model.EventCreated, model.EventUpdated, model.EventDeleted:
		patterns := []KeyPattern{Exact(cache.EventByIDKey(ev.EventID)), allLists}
		if p.PurgeCatalogOnEventWrite {
			if ev.CategoryChanged {
				patterns = append(patterns, Exact(cache.CategoriesAllKey))
			}
			if ev.TagsChanged {
				patterns = append(patterns, Exact(cache.TagsAllKey))
			}
		}
		return patterns

	case model.BookingCreated, model.BookingCancelled, model.BookingUpdated:
		return []KeyPattern{Exact(cache.EventByIDKey(ev.EventID)), allLists}

	case model.CategoryChanged:
		// listings filter by category
		return []KeyPattern{Exact(cache.CategoriesAllKey), allLists}

	case model.TagChanged:
		return []KeyPattern{Exact(cache.TagsAllKey)}

	case model.TagRenamed:
		// tag names are embedded in every cached event that carries them
		return []KeyPattern{Exact(cache.TagsAllKey), allLists, Prefix(cache.EventByIDPrefix)}
	}
	return nil
}

package cache

import (
	"fmt"
	"net/url"
	"time"
)

// Key namespaces
const (
	EventByIDPrefix  = "events:byId:"
	EventListPrefix  = "events:list:"
	CategoriesAllKey = "categories:all"
	TagsAllKey       = "tags:all"
)

func EventByIDKey(eventID string) string {
	return EventByIDPrefix + eventID
}

// EventListKey identifies one page of a filtered event listing. Free-text
// fields are query-escaped so none of them can contain the ':' separator;
// the tag segment is present only when filtering by tag.
func EventListKey(page, pageSize int, search, category, tag string) string {
	key := fmt.Sprintf("%s%d:%d:%s:%s", EventListPrefix, page, pageSize,
		url.QueryEscape(search), url.QueryEscape(category))
	if tag != "" {
		key += ":" + url.QueryEscape(tag)
	}
	return key
}

// Class groups keys that share a TTL.
type Class string

const (
	ClassEvent   Class = "event"
	ClassList    Class = "list"
	ClassCatalog Class = "catalog"
)

// TTLPolicy assigns a time-to-live to each key class. A stale entry that
// escaped invalidation lives at most this long.
type TTLPolicy struct {
	Event   time.Duration
	List    time.Duration
	Catalog time.Duration
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Event:   30 * time.Minute,
		List:    5 * time.Minute,
		Catalog: 10 * time.Minute,
	}
}

func (p TTLPolicy) For(class Class) time.Duration {
	switch class {
	case ClassEvent:
		return p.Event
	case ClassList:
		return p.List
	default:
		return p.Catalog
	}
}

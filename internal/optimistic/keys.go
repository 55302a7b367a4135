package optimistic

import (
	"strconv"
	"sync"
	"time"
)

// Kind is the entity kind a cache scope holds.
type Kind uint8

const (
	// KindCollections is the global collection list.
	KindCollections Kind = iota + 1
	// KindCollection is the detail of one collection.
	KindCollection
	// KindTasks is the top-level task list of one collection.
	KindTasks
)

func (k Kind) String() string {
	switch k {
	case KindCollections:
		return "collections"
	case KindCollection:
		return "collection"
	case KindTasks:
		return "tasks"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Key addresses one cache scope.
type Key struct {
	Kind  Kind
	Scope int64
}

func CollectionsKey() Key {
	return Key{Kind: KindCollections}
}

func CollectionKey(id int64) Key {
	return Key{Kind: KindCollection, Scope: id}
}

func TasksKey(collectionID int64) Key {
	return Key{Kind: KindTasks, Scope: collectionID}
}

func (k Key) String() string {
	if k.Kind == KindCollections {
		return k.Kind.String()
	}
	return k.Kind.String() + ":" + strconv.FormatInt(k.Scope, 10)
}

func (k Key) less(other Key) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.Scope < other.Scope
}

// ID identifies a cached entity. A provisional ID stands in for an entity
// the server has not confirmed yet and is never sent to the server. Two IDs
// are equal only if both the tag and the value match.
type ID struct {
	value       int64
	provisional bool
}

func Confirmed(value int64) ID {
	return ID{value: value}
}

func Provisional(value int64) ID {
	return ID{value: value, provisional: true}
}

func (id ID) Value() int64 {
	return id.value
}

func (id ID) IsProvisional() bool {
	return id.provisional
}

func (id ID) String() string {
	if id.provisional {
		return "provisional:" + strconv.FormatInt(id.value, 10)
	}
	return strconv.FormatInt(id.value, 10)
}

// idGenerator hands out provisional IDs from the wall clock in nanoseconds,
// strictly increasing even when the clock does not advance between calls.
type idGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *idGenerator) next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := time.Now().UnixNano()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return Provisional(n)
}

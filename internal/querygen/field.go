package querygen

// Join is a raw join clause that makes Alias available to filters, e.g.
// {Alias: "tg", Clause: "JOIN chats_rooms_room_tags AS tg ON tg.room_id = r.uuid"}.
type Join struct {
	Alias  string
	Clause string
}

// FilterField maps a logical filter key to where its value physically lives.
type FilterField struct {
	// Column or document path the predicate is written against
	SourceField string
	// Alias qualifying SourceField in SQL. Empty for search backends.
	TableAlias string
	// Joins that must be present for TableAlias to resolve, in the order they must appear
	JoinClause []Join
}

// FilterSet resolves logical filter keys for one resource. Unknown keys report false and are never an error.
type FilterSet interface {
	GetField(key string) (FilterField, bool)
}

// MapFilterSet is a FilterSet backed by a map. It is never mutated after construction.
type MapFilterSet map[string]FilterField

func (s MapFilterSet) GetField(key string) (FilterField, bool) {
	field, ok := s[key]
	return field, ok
}

// Keys lists the logical keys this set accepts, sorted.
func (s MapFilterSet) Keys() []string {
	return sortedNames(s)
}

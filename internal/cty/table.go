package cty

import (
	"errors"
	"iter"
	"strings"
)

// Entity is one DXCC entity (country or territory) as listed in cty.dat.
type Entity struct {
	Name      string  `json:"name" yaml:"name"`
	CQZone    int     `json:"cqz" yaml:"cqz"`
	ITUZone   int     `json:"ituz" yaml:"ituz"`
	Continent string  `json:"cont" yaml:"cont"`
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"long" yaml:"long"` // cty.dat convention: positive is West
	UTCOffset float64 `json:"utc_offset" yaml:"utc_offset"`
	// Prefix is the canonical prefix and the unique key of the entity.
	// A leading '*' marks an entity that is not on the DXCC list proper
	// (WAE or CQ-only entities such as *TA1 or *IT9).
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Record pairs an entity with the raw test tokens that belong to it,
// exactly as a loader delivers them.
type Record struct {
	Entity Entity
	Tokens []string
}

// Table is an immutable prefix database. It is safe for concurrent use.
type Table struct {
	entities []Entity
	entries  [][]TestEntry // parallel to entities
	byPrefix map[string]int
	count    int
}

// Build parses every token of every record and returns the resulting table.
// Any malformed token or canonical prefix fails the whole build.
func Build(records []Record) (*Table, error) {
	t := &Table{
		entities: make([]Entity, 0, len(records)),
		entries:  make([][]TestEntry, 0, len(records)),
		byPrefix: make(map[string]int, len(records)),
	}

	for _, rec := range records {
		prefix := strings.TrimSpace(rec.Entity.Prefix)
		switch {
		case prefix == "":
			return nil, &MalformedEntryError{Entity: rec.Entity.Name, Reason: "empty canonical prefix"}
		case strings.HasPrefix(prefix, "="):
			return nil, &MalformedEntryError{Entity: rec.Entity.Name, Token: prefix, Reason: "canonical prefix cannot be an exact callsign"}
		}
		if _, dup := t.byPrefix[prefix]; dup {
			return nil, &MalformedEntryError{Entity: rec.Entity.Name, Token: prefix, Reason: "duplicate canonical prefix"}
		}

		entity := rec.Entity
		entity.Prefix = prefix
		entries := make([]TestEntry, 0, len(rec.Tokens))
		for _, raw := range rec.Tokens {
			entry, err := ParseToken(raw)
			if err != nil {
				var me *MalformedEntryError
				if errors.As(err, &me) {
					me.Entity = prefix
				}
				return nil, err
			}
			entries = append(entries, entry)
		}

		t.byPrefix[prefix] = len(t.entities)
		t.entities = append(t.entities, entity)
		t.entries = append(t.entries, entries)
		t.count += len(entries)
	}
	return t, nil
}

// AllEntries yields every (entity, entry) pair in insertion order: entities
// in the order they were built, then each entity's tokens in order.
// The sequence may be ranged over any number of times.
func (t *Table) AllEntries() iter.Seq2[Entity, TestEntry] {
	return func(yield func(Entity, TestEntry) bool) {
		if t == nil {
			return
		}
		for i, entity := range t.entities {
			for _, entry := range t.entries[i] {
				if !yield(entity, entry) {
					return
				}
			}
		}
	}
}

// Entity returns the entity with the given canonical prefix.
func (t *Table) Entity(prefix string) (Entity, bool) {
	if t == nil {
		return Entity{}, false
	}
	i, ok := t.byPrefix[prefix]
	if !ok {
		return Entity{}, false
	}
	return t.entities[i], true
}

// Entities returns a copy of all entities in insertion order.
func (t *Table) Entities() []Entity {
	if t == nil {
		return nil
	}
	return append([]Entity(nil), t.entities...)
}

// Len returns the number of entities.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entities)
}

// EntryCount returns the number of test entries across all entities.
func (t *Table) EntryCount() int {
	if t == nil {
		return 0
	}
	return t.count
}

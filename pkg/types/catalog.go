package types

import (
	"fmt"
	"sort"
)

// Catalog is an immutable, validated list of badge definitions. The zero
// value is an empty catalog.
type Catalog struct {
	defs  []BadgeDefinition
	index map[string]int
}

// NewCatalog validates defs and returns a catalog holding a private copy.
// A malformed definition yields ErrConfiguration; a repeated id yields
// ErrDuplicateBadgeID. Duplicates are never silently dropped.
func NewCatalog(defs []BadgeDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]BadgeDefinition, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("badge %d: %w", i, err)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBadgeID, d.ID)
		}
		c.index[d.ID] = i
		c.defs[i] = d
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error. It is meant for
// compiled-in catalogs.
func MustCatalog(defs []BadgeDefinition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns a copy of the definitions in catalog order.
func (c *Catalog) Definitions() []BadgeDefinition {
	if c == nil {
		return nil
	}
	out := make([]BadgeDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of badges.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}

// Lookup returns the definition with the given id.
func (c *Catalog) Lookup(id string) (BadgeDefinition, bool) {
	if c == nil {
		return BadgeDefinition{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return BadgeDefinition{}, false
	}
	return c.defs[i], true
}

// ByThreshold returns the definitions sorted by RequiredTrips. Ties keep
// catalog order.
func (c *Catalog) ByThreshold() []BadgeDefinition {
	out := c.Definitions()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequiredTrips < out[j].RequiredTrips
	})
	return out
}

// defaultBadges are the tiers shipped with the travel journal.
var defaultBadges = []BadgeDefinition{
	{ID: "exp", Name: "Explorer", Description: "Complete your very first trip.", Icon: "🗺️", RequiredTrips: 1},
	{ID: "adv", Name: "Adventurer", Description: "Log 3 trips to different locations.", Icon: "🧭", RequiredTrips: 3},
	{ID: "globetrot", Name: "Globetrotter", Description: "Reach 5 total logged trips.", Icon: "🌐", RequiredTrips: 5},
	{ID: "world_trav", Name: "World Traveler", Description: "Achieve 8 or more total trips.", Icon: "🌟", RequiredTrips: 8},
	{ID: "frequent_flier", Name: "Frequent Flier", Description: "Travel a lot this year.", Icon: "✈️", RequiredTrips: 12},
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return MustCatalog(defaultBadges)
}

// Package catalog loads badge catalogs from catalog.yaml and renders them
// back to YAML.
//
// The file holds a single key:
//
//	badges:
//	  - id: exp
//	    name: Explorer
//	    description: Complete your very first trip.
//	    icon: "🗺️"
//	    required_trips: 1
//
// Without a catalog file the built-in catalog is used.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/milestones/internal/paths"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

const keyBadges = "badges"

// rawBadge mirrors one catalog entry. RequiredTrips is a pointer so an
// omitted threshold is told apart from a zero one.
type rawBadge struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description"`
	Icon          string     `yaml:"icon"`
	RequiredTrips *tripCount `yaml:"required_trips"`
}

// tripCount accepts only YAML integers. Floats, booleans and quoted
// strings are rejected instead of being coerced.
type tripCount int

func (c *tripCount) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return fmt.Errorf("required_trips must be an integer, got %q", n.Value)
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return err
	}
	*c = tripCount(v)
	return nil
}

// Load reads catalog.yaml from configDir. A missing file yields the
// built-in catalog; a present but malformed file is an ErrConfiguration,
// and duplicate ids are ErrDuplicateBadgeID.
func Load(configDir string) (*types.Catalog, error) {
	path := paths.CatalogFile(configDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("stat catalog file: %w", err)
	}
	return LoadFile(path)
}

// LoadFile reads a catalog from an explicit YAML file.
func LoadFile(path string) (*types.Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrConfiguration, path, err)
	}
	if !v.IsSet(keyBadges) {
		return nil, fmt.Errorf("%w: %s has no %q list", types.ErrConfiguration, path, keyBadges)
	}

	raw, err := decodeBadges(v.Get(keyBadges))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", types.ErrConfiguration, path, err)
	}

	defs := make([]types.BadgeDefinition, len(raw))
	for i, r := range raw {
		if r.RequiredTrips == nil {
			return nil, fmt.Errorf("%w: badge %d (%q) is missing required_trips", types.ErrConfiguration, i, r.ID)
		}
		defs[i] = types.BadgeDefinition{
			ID:            r.ID,
			Name:          r.Name,
			Description:   r.Description,
			Icon:          r.Icon,
			RequiredTrips: int(*r.RequiredTrips),
		}
	}

	c, err := types.NewCatalog(defs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// decodeBadges re-encodes the list viper read and decodes it strictly:
// unknown keys and non-integer thresholds are errors.
func decodeBadges(list any) ([]rawBadge, error) {
	data, err := yaml.Marshal(list)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw []rawBadge
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return raw, nil
}

// Marshal renders c in the catalog.yaml format.
func Marshal(c *types.Catalog) ([]byte, error) {
	doc := struct {
		Badges []types.BadgeDefinition `yaml:"badges"`
	}{Badges: c.Definitions()}
	if doc.Badges == nil {
		doc.Badges = []types.BadgeDefinition{}
	}
	return yaml.Marshal(doc)
}

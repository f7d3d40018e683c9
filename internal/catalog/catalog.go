// Package catalog holds the fixed, versioned set of analytical queries that can
// be run against the artifact tables.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	sqldocs "artifactcore/docs/schema/sql"
)

// ErrUnknownQuery is returned when an identifier is not in the catalog.
var ErrUnknownQuery = errors.New("catalog: unknown query")

// Query is one named analytical statement.
type Query struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	SQL   string `yaml:"sql" json:"sql"`
}

type document struct {
	Version int     `yaml:"version"`
	Queries []Query `yaml:"queries"`
}

// Catalog is an immutable id → query mapping that keeps file order.
type Catalog struct {
	version int
	order   []string
	byID    map[string]Query
}

// Default parses the catalog embedded in the docs tree.
func Default() (*Catalog, error) {
	return Parse(sqldocs.Queries)
}

// Parse decodes a YAML catalog document and validates it.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("catalog version must be >= 1, got %d", doc.Version)
	}
	c := &Catalog{version: doc.Version, byID: make(map[string]Query, len(doc.Queries))}
	for i, q := range doc.Queries {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: id required", i)
		}
		if strings.TrimSpace(q.SQL) == "" {
			return nil, fmt.Errorf("catalog entry %s: sql required", q.ID)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("catalog entry %s: duplicate id", q.ID)
		}
		c.byID[q.ID] = q
		c.order = append(c.order, q.ID)
	}
	return c, nil
}

// Version returns the catalog document version.
func (c *Catalog) Version() int { return c.version }

// Lookup returns the query registered under id.
func (c *Catalog) Lookup(id string) (Query, error) {
	q, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownQuery, id)
	}
	return q, nil
}

// IDs returns the identifiers in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// List returns every query in catalog order.
func (c *Catalog) List() []Query {
	out := make([]Query, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of queries.
func (c *Catalog) Len() int { return len(c.order) }

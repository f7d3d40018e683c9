package catalog

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestDefaultCatalogHasTwentyQueriesInOrder(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Version() != 1 {
		t.Fatalf("expected version 1, got %d", c.Version())
	}
	ids := c.IDs()
	if len(ids) != 20 || c.Len() != 20 {
		t.Fatalf("expected 20 queries, got %d", len(ids))
	}
	for i, id := range ids {
		if id != strconv.Itoa(i+1) {
			t.Fatalf("position %d: expected id %d, got %s", i, i+1, id)
		}
	}
	for _, q := range c.List() {
		if q.Title == "" {
			t.Fatalf("query %s has no title", q.ID)
		}
	}
}

func TestDefaultCatalogTextIsVerbatim(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	cases := map[string]string{
		"1":  "SELECT * FROM artifactmetadata WHERE century = '11th century' AND culture = 'Byzantine'",
		"3":  "SELECT * FROM artifactmetadata WHERE period LIKE '%Archaic%'",
		"7":  "SELECT AVG(`rank`) as avg_rank FROM artifactmedia WHERE `rank` IS NOT NULL",
		"10": "SELECT COUNT(*) FROM artifactmedia WHERE mediacount = 0",
		"14": "SELECT m.title, m.culture, a.rank FROM artifactmetadata m JOIN artifactmedia a ON m.id = objectid WHERE m.period IS NOT NULL",
		"19": "SELECT DISTINCT m.title FROM artifactmetadata m JOIN artifactmedia a ON m.id = a.objectid JOIN artifactcolors c ON m.id = c.objectid WHERE c.hue = 'Grey' AND a.`rank` <= 10",
		"20": "SELECT classification, COUNT(*) as artifact_count, AVG(a.mediacount) as avg_media FROM artifactmetadata m JOIN artifactmedia a ON m.id = a.objectid GROUP BY classification ORDER BY artifact_count DESC LIMIT 10",
	}
	for id, want := range cases {
		q, err := c.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", id, err)
		}
		if q.SQL != want {
			t.Fatalf("query %s drifted:\nwant: %s\ngot:  %s", id, want, q.SQL)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	for _, id := range []string{"0", "21", "", "abc"} {
		if _, err := c.Lookup(id); !errors.Is(err, ErrUnknownQuery) {
			t.Fatalf("Lookup(%q): expected ErrUnknownQuery, got %v", id, err)
		}
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "version: [",
		"no version":   "queries: []",
		"missing id":   "version: 1\nqueries:\n  - sql: SELECT 1\n",
		"missing sql":  "version: 1\nqueries:\n  - id: \"1\"\n",
		"duplicate id": "version: 1\nqueries:\n  - id: \"1\"\n    sql: SELECT 1\n  - id: \"1\"\n    sql: SELECT 2\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestIDsReturnsCopy(t *testing.T) {
	c, err := Parse([]byte("version: 2\nqueries:\n  - id: a\n    sql: SELECT 1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ids := c.IDs()
	ids[0] = "mutated"
	if c.IDs()[0] != "a" {
		t.Fatalf("IDs must not expose internal state")
	}
	if !strings.Contains(c.List()[0].SQL, "SELECT 1") {
		t.Fatalf("unexpected list %v", c.List())
	}
}

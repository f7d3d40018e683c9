// Package domain defines the artifact records, row shapes, and store contract
// shared by the collector, transformer, loader, and query catalog.
package domain

// RawRecord is one artifact object as returned by the remote catalog API.
// Numbers are kept as json.Number so integer fields survive decoding intact.
type RawRecord map[string]any

// Classifications are the artifact categories offered for collection.
var Classifications = []string{"Coins", "Paintings", "Sculpture", "Jewelry", "Drawings"}

// DefaultTargetRecords is the number of records collected per classification
// when the caller does not ask for a specific amount.
const DefaultTargetRecords = 2500

// DescriptionLimit caps the stored description length, in characters.
const DescriptionLimit = 500

// MaxColorsPerArtifact caps the color rows emitted for one artifact.
const MaxColorsPerArtifact = 5

// Table names of the relational store.
const (
	TableMetadata = "artifactmetadata"
	TableMedia    = "artifactmedia"
	TableColors   = "artifactcolors"
)

// Column lists in insert order. They match the Values methods below.
var (
	MetadataColumns = []string{"id", "title", "culture", "period", "century", "medium", "dimensions", "description", "department", "classification", "accessionyear", "accessionmethod"}
	MediaColumns    = []string{"objectid", "imagecount", "mediacount", "colorcount", "rank", "datebegin", "dateend"}
	ColorColumns    = []string{"objectid", "spectrum", "hue", "color", "percent", "css3"}
)

// ArtifactMetadata is one row of artifactmetadata. Nil pointers are stored as NULL.
type ArtifactMetadata struct {
	ID              *int64  `json:"id"`
	Title           *string `json:"title"`
	Culture         *string `json:"culture"`
	Period          *string `json:"period"`
	Century         *string `json:"century"`
	Medium          *string `json:"medium"`
	Dimensions      *string `json:"dimensions"`
	Description     string  `json:"description"`
	Department      *string `json:"department"`
	Classification  *string `json:"classification"`
	AccessionYear   *int64  `json:"accessionyear"`
	AccessionMethod *string `json:"accessionmethod"`
}

// Values returns the row in MetadataColumns order.
func (m ArtifactMetadata) Values() []any {
	return []any{
		nullable(m.ID), nullable(m.Title), nullable(m.Culture), nullable(m.Period),
		nullable(m.Century), nullable(m.Medium), nullable(m.Dimensions), m.Description,
		nullable(m.Department), nullable(m.Classification), nullable(m.AccessionYear),
		nullable(m.AccessionMethod),
	}
}

// ArtifactMedia is one row of artifactmedia.
type ArtifactMedia struct {
	ObjectID   *int64 `json:"objectid"`
	ImageCount *int64 `json:"imagecount"`
	MediaCount *int64 `json:"mediacount"`
	ColorCount *int64 `json:"colorcount"`
	Rank       *int64 `json:"rank"`
	DateBegin  *int64 `json:"datebegin"`
	DateEnd    *int64 `json:"dateend"`
}

// Values returns the row in MediaColumns order.
func (m ArtifactMedia) Values() []any {
	return []any{
		nullable(m.ObjectID), nullable(m.ImageCount), nullable(m.MediaCount),
		nullable(m.ColorCount), nullable(m.Rank), nullable(m.DateBegin), nullable(m.DateEnd),
	}
}

// ArtifactColor is one row of artifactcolors.
type ArtifactColor struct {
	ObjectID *int64   `json:"objectid"`
	Spectrum *string  `json:"spectrum"`
	Hue      *string  `json:"hue"`
	Color    *string  `json:"color"`
	Percent  *float64 `json:"percent"`
	CSS3     *string  `json:"css3"`
}

// Values returns the row in ColorColumns order.
func (c ArtifactColor) Values() []any {
	return []any{
		nullable(c.ObjectID), nullable(c.Spectrum), nullable(c.Hue),
		nullable(c.Color), nullable(c.Percent), nullable(c.CSS3),
	}
}

// Batch groups the three row sets produced from one collection.
type Batch struct {
	Metadata []ArtifactMetadata `json:"metadata"`
	Media    []ArtifactMedia    `json:"media"`
	Colors   []ArtifactColor    `json:"colors"`
}

// Empty reports whether the batch carries no rows at all.
func (b Batch) Empty() bool {
	return len(b.Metadata) == 0 && len(b.Media) == 0 && len(b.Colors) == 0
}

// nullable unwraps p so that a nil pointer becomes an untyped nil driver value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

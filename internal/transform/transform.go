// Package transform reshapes raw catalog records into the three artifact row sets.
// It performs no I/O and never rejects a record.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"artifactcore/pkg/domain"
)

// Transform maps records into metadata, media and color rows. Output keeps the
// input order, and the color rows of one artifact stay contiguous.
func Transform(records []domain.RawRecord) domain.Batch {
	batch := domain.Batch{
		Metadata: make([]domain.ArtifactMetadata, 0, len(records)),
		Media:    make([]domain.ArtifactMedia, 0, len(records)),
	}
	for _, rec := range records {
		id := intField(rec, "id", nil)
		batch.Metadata = append(batch.Metadata, metadataRow(rec, id))
		batch.Media = append(batch.Media, mediaRow(rec, id))
		batch.Colors = append(batch.Colors, colorRows(rec, id)...)
	}
	return batch
}

func metadataRow(rec domain.RawRecord, id *int64) domain.ArtifactMetadata {
	return domain.ArtifactMetadata{
		ID:              id,
		Title:           textField(rec, "title"),
		Culture:         textField(rec, "culture"),
		Period:          textField(rec, "period"),
		Century:         textField(rec, "century"),
		Medium:          textField(rec, "medium"),
		Dimensions:      textField(rec, "dimensions"),
		Description:     Truncate(description(rec), domain.DescriptionLimit),
		Department:      textField(rec, "department"),
		Classification:  textField(rec, "classification"),
		AccessionYear:   intField(rec, "accessionyear", nil),
		AccessionMethod: textField(rec, "accessionmethod"),
	}
}

// Counts and rank default to 0 while the date range defaults to null.
func mediaRow(rec domain.RawRecord, id *int64) domain.ArtifactMedia {
	zero := int64(0)
	return domain.ArtifactMedia{
		ObjectID:   cloneInt(id),
		ImageCount: intField(rec, "imagecount", &zero),
		MediaCount: intField(rec, "mediacount", &zero),
		ColorCount: intField(rec, "colorcount", &zero),
		Rank:       intField(rec, "rank", &zero),
		DateBegin:  intField(rec, "datebegin", nil),
		DateEnd:    intField(rec, "dateend", nil),
	}
}

func colorRows(rec domain.RawRecord, id *int64) []domain.ArtifactColor {
	raw, ok := rec["colors"]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	if len(entries) > domain.MaxColorsPerArtifact {
		entries = entries[:domain.MaxColorsPerArtifact]
	}
	rows := make([]domain.ArtifactColor, 0, len(entries))
	for _, entry := range entries {
		color, ok := asRecord(entry)
		if !ok {
			continue
		}
		rows = append(rows, domain.ArtifactColor{
			ObjectID: cloneInt(id),
			Spectrum: textField(color, "spectrum"),
			Hue:      textField(color, "hue"),
			Color:    textField(color, "color"),
			Percent:  floatField(color, "percent", 0),
			CSS3:     textField(color, "css3"),
		})
	}
	return rows
}

// Truncate shortens s to at most n characters (runes, not bytes).
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func description(rec domain.RawRecord) string {
	v, ok := rec["description"]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// textField returns "" for an absent key and nil for an explicit null.
func textField(rec domain.RawRecord, key string) *string {
	v, ok := rec[key]
	if !ok {
		empty := ""
		return &empty
	}
	if v == nil {
		return nil
	}
	s := stringify(v)
	return &s
}

// intField returns def for an absent key and nil for null or non-numeric values.
// Non-integral numbers are rounded half away from zero.
func intField(rec domain.RawRecord, key string, def *int64) *int64 {
	v, ok := rec[key]
	if !ok {
		return cloneInt(def)
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case int32:
		i := int64(n)
		return &i
	}
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	i := int64(math.Round(f))
	return &i
}

// floatField returns def for an absent key and nil for null or non-numeric values.
// Non-finite values pass through; the loader nulls them.
func floatField(rec domain.RawRecord, key string, def float64) *float64 {
	v, ok := rec[key]
	if !ok {
		return &def
	}
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func asRecord(v any) (domain.RawRecord, bool) {
	switch m := v.(type) {
	case map[string]any:
		return domain.RawRecord(m), true
	case domain.RawRecord:
		return m, true
	default:
		return nil, false
	}
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

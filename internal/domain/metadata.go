package domain

import (
	"fmt"
	"math"
	"strings"
)

// AttributesDelimiter joins the attribute tags into a single scalar value.
const AttributesDelimiter = ","

// Metadata keys written for every chunk.
const (
	KeySourceDocID    = "source_doc_id"
	KeyChunkIndex     = "chunk_index"
	KeySectionHeading = "section_heading"
	KeyJournal        = "journal"
	KeyPublishYear    = "publish_year"
	KeyUsageCount     = "usage_count"
	KeyAttributes     = "attributes"
	KeyLink           = "link"
	KeyDOI            = "doi"
	KeySchemaVersion  = "schema_version"
)

// Metadata is the flat scalar map persisted next to each vector.
// Values are string, int64, float64 or bool once normalized.
type Metadata map[string]any

// Validate rejects any value that is not a scalar.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("%w: metadata key is empty", ErrValidation)
		}
		if _, ok := normalizeScalar(v); !ok {
			return fmt.Errorf("%w: metadata value for %q has non-scalar type %T", ErrValidation, k, v)
		}
	}
	return nil
}

// Normalized returns a copy with integer kinds widened to int64 and
// floats to float64. Non-scalar values are dropped.
func (m Metadata) Normalized() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if nv, ok := normalizeScalar(v); ok {
			out[k] = nv
		}
	}
	return out
}

func normalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return nil, false
		}
		return int64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return nil, false
	}
}

// EncodeChunk flattens a chunk into store metadata. The id and text are
// stored separately by the index and are not part of the map.
func EncodeChunk(c Chunk, schemaVersion string) Metadata {
	md := Metadata{
		KeySourceDocID:    c.SourceDocID,
		KeyChunkIndex:     int64(c.ChunkIndex),
		KeySectionHeading: c.SectionHeading,
		KeyJournal:        c.Journal,
		KeyPublishYear:    int64(c.PublishYear),
		KeyUsageCount:     int64(c.UsageCount),
		KeyAttributes:     strings.Join(c.Attributes, AttributesDelimiter),
		KeySchemaVersion:  schemaVersion,
	}
	if c.Link != nil {
		md[KeyLink] = *c.Link
	}
	if c.DOI != nil {
		md[KeyDOI] = *c.DOI
	}
	return md
}

// DecodeAttributes restores the ordered tag list. Anything other than a
// non-empty string decodes to an empty list.
func DecodeAttributes(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return []string{}
	}
	return strings.Split(s, AttributesDelimiter)
}

// DecodeRecord rebuilds a record from what the index returned.
func DecodeRecord(id, text string, md Metadata) (ChunkRecord, error) {
	if md == nil {
		return ChunkRecord{}, fmt.Errorf("%w: %s has no metadata", ErrMalformedRecord, id)
	}
	return ChunkRecord{
		ID:             id,
		SourceDocID:    stringValue(md[KeySourceDocID]),
		ChunkIndex:     optionalInt(md, KeyChunkIndex),
		SectionHeading: stringValue(md[KeySectionHeading]),
		Journal:        stringValue(md[KeyJournal]),
		PublishYear:    intValue(md[KeyPublishYear]),
		UsageCount:     intValue(md[KeyUsageCount]),
		Attributes:     DecodeAttributes(md[KeyAttributes]),
		Link:           optionalString(md, KeyLink),
		DOI:            optionalString(md, KeyDOI),
		SchemaVersion:  stringValue(md[KeySchemaVersion]),
		Text:           text,
	}, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func optionalString(md Metadata, key string) *string {
	s, ok := md[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func optionalInt(md Metadata, key string) *int {
	v, ok := md[key]
	if !ok {
		return nil
	}
	switch v.(type) {
	case int, int32, int64, float32, float64:
		n := intValue(v)
		return &n
	default:
		return nil
	}
}

func intValue(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float32:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import (
	"strconv"
	"time"
)

// --- Record kinds ---

// Kind discriminates the records stored in a library partition.
type Kind string

const (
	KindChunk          Kind = "chunk"
	KindChapterSummary Kind = "chapterSummary"
	KindMeta           Kind = "meta"
)

// Valid reports whether the kind is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindChunk, KindChapterSummary, KindMeta:
		return true
	default:
		return false
	}
}

// IsChunkLike reports whether records of this kind carry chunk text and an embedding.
func (k Kind) IsChunkLike() bool {
	return k == KindChunk || k == KindChapterSummary
}

// --- Document field names ---

// Field names of the engine documents. Facet replicas live at the top level so
// they are addressable by filters without unpacking FieldDocMeta.
const (
	FieldID                = "_id"
	FieldKind              = "kind"
	FieldLibraryID         = "libraryId"
	FieldOwner             = "owner"
	FieldSourceID          = "sourceId"
	FieldSourceDisplayName = "sourceDisplayName"
	FieldUpsertedAt        = "upsertedAt"
	FieldEmbedding         = "embedding"
	FieldScore             = "score"

	FieldChunkIndex     = "chunkIndex"
	FieldText           = "text"
	FieldHeadingContext = "headingContext"
	FieldStartOffset    = "startOffset"
	FieldEndOffset      = "endOffset"

	FieldTitle            = "title"
	FieldShortTitle       = "shortTitle"
	FieldSlug             = "slug"
	FieldSummary          = "summary"
	FieldTeaser           = "teaser"
	FieldChapters         = "chapters"
	FieldChapterCount     = "chapterCount"
	FieldChunkCount       = "chunkCount"
	FieldDocMeta          = "docMetaJson"
	FieldYear             = "year"
	FieldAuthors          = "authors"
	FieldRegion           = "region"
	FieldDocType          = "docType"
	FieldSource           = "source"
	FieldTags             = "tags"
	FieldTopics           = "topics"
	FieldTrack            = "track"
	FieldSpeakers         = "speakers"
	FieldDate             = "date"
	FieldCoverImageURL    = "coverImageUrl"
	FieldSpeakersImageURL = "speakersImageUrl"
	FieldURL              = "url"
)

// --- Records ---

// Chapter is one entry of a document's ordered chapter list.
type Chapter struct {
	Index      int
	ID         string
	Title      string
	Summary    string
	ChunkCount int
}

// MetaFields holds the document-level fields of a meta record.
//
// DocMeta is the tenant's extended metadata and stays the source of truth for
// display. The facet fields (Year..Date) are flattened replicas of values
// that also live in DocMeta.
type MetaFields struct {
	Title        string
	ShortTitle   string
	Slug         string
	Summary      string
	Teaser       string
	Chapters     []Chapter
	ChapterCount int
	ChunkCount   int
	DocMeta      map[string]any

	Year     *int
	Authors  []string
	Region   string
	DocType  string
	Source   string
	Tags     []string
	Topics   []string
	Track    string
	Speakers []string
	Date     string

	CoverImageURL string
	// SpeakersImageURL is list-shaped. Legacy writers stored it as a list, a
	// single string or a stringified list, so readers must normalize it.
	SpeakersImageURL any
	URL              string
}

// VectorRecord is a single stored record: a chunk, a chapter summary or the
// document meta record.
type VectorRecord struct {
	ID                string
	LibraryID         string
	Owner             string
	SourceID          string
	SourceDisplayName string
	UpsertedAt        time.Time
	Kind              Kind

	// Chunk and chapter summary fields.
	ChunkIndex     int
	Text           string
	HeadingContext string
	StartOffset    int
	EndOffset      int

	// Embedding is required for chunk-like kinds and optional for meta.
	Embedding []float32

	Meta *MetaFields
}

// MetaID returns the deterministic id of a source's meta record.
func MetaID(sourceID string) string {
	return sourceID + "-meta"
}

// ChunkID returns the deterministic id of a chunk-like record.
func ChunkID(sourceID string, kind Kind, chunkIndex int) string {
	return sourceID + "-" + string(kind) + "-" + strconv.Itoa(chunkIndex)
}

// DeterministicID returns the id the record must be stored under.
func (r VectorRecord) DeterministicID() string {
	if r.Kind == KindMeta {
		return MetaID(r.SourceID)
	}
	return ChunkID(r.SourceID, r.Kind, r.ChunkIndex)
}

// Document renders the record into the engine document shape.
func (r VectorRecord) Document() Document {
	doc := Document{
		FieldID:         r.ID,
		FieldKind:       string(r.Kind),
		FieldLibraryID:  r.LibraryID,
		FieldSourceID:   r.SourceID,
		FieldUpsertedAt: r.UpsertedAt.UTC(),
	}
	putString(doc, FieldOwner, r.Owner)
	putString(doc, FieldSourceDisplayName, r.SourceDisplayName)
	if len(r.Embedding) > 0 {
		emb := make([]float32, len(r.Embedding))
		copy(emb, r.Embedding)
		doc[FieldEmbedding] = emb
	}

	if r.Kind.IsChunkLike() {
		doc[FieldChunkIndex] = r.ChunkIndex
		doc[FieldText] = r.Text
		putString(doc, FieldHeadingContext, r.HeadingContext)
		doc[FieldStartOffset] = r.StartOffset
		doc[FieldEndOffset] = r.EndOffset
		return doc
	}

	if r.Meta == nil {
		return doc
	}
	m := r.Meta
	putString(doc, FieldTitle, m.Title)
	putString(doc, FieldShortTitle, m.ShortTitle)
	putString(doc, FieldSlug, m.Slug)
	putString(doc, FieldSummary, m.Summary)
	putString(doc, FieldTeaser, m.Teaser)
	if len(m.Chapters) > 0 {
		chapters := make([]any, len(m.Chapters))
		for i, c := range m.Chapters {
			chapters[i] = map[string]any{
				"index":      c.Index,
				"id":         c.ID,
				"title":      c.Title,
				"summary":    c.Summary,
				"chunkCount": c.ChunkCount,
			}
		}
		doc[FieldChapters] = chapters
	}
	doc[FieldChapterCount] = m.ChapterCount
	doc[FieldChunkCount] = m.ChunkCount
	if len(m.DocMeta) > 0 {
		doc[FieldDocMeta] = cloneMap(m.DocMeta)
	}
	if m.Year != nil {
		doc[FieldYear] = *m.Year
	}
	putStrings(doc, FieldAuthors, m.Authors)
	putString(doc, FieldRegion, m.Region)
	putString(doc, FieldDocType, m.DocType)
	putString(doc, FieldSource, m.Source)
	putStrings(doc, FieldTags, m.Tags)
	putStrings(doc, FieldTopics, m.Topics)
	putString(doc, FieldTrack, m.Track)
	putStrings(doc, FieldSpeakers, m.Speakers)
	putString(doc, FieldDate, m.Date)
	putString(doc, FieldCoverImageURL, m.CoverImageURL)
	if m.SpeakersImageURL != nil {
		doc[FieldSpeakersImageURL] = m.SpeakersImageURL
	}
	putString(doc, FieldURL, m.URL)
	return doc
}

// Document is the engine-level representation of a record.
type Document map[string]any

// ID returns the document id or "" when absent.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

func putString(doc Document, key, v string) {
	if v != "" {
		doc[key] = v
	}
}

// putStrings always writes the slice (even when empty) so that an explicit
// empty facet list is distinguishable from a missing one.
func putStrings(doc Document, key string, v []string) {
	if v == nil {
		return
	}
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	doc[key] = out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- Tenants and facets ---

// Library is the tenant descriptor every write and query path requires.
type Library struct {
	ID        string
	Owner     string
	Partition string
	Facets    []FacetDefinition
}

// FacetDefinition declares a filterable and aggregable metadata field.
type FacetDefinition struct {
	MetaKey string
	Type    FacetType
	Label   string
}

// FacetBucket is one value/count pair of a facet histogram.
type FacetBucket struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

var galleryProjection = []string{
	store.FieldID, store.FieldSourceID, store.FieldSourceDisplayName, store.FieldUpsertedAt,
	store.FieldTitle, store.FieldShortTitle, store.FieldSlug, store.FieldTeaser, store.FieldSummary,
	store.FieldChapterCount, store.FieldChunkCount,
	store.FieldYear, store.FieldAuthors, store.FieldRegion, store.FieldDocType, store.FieldSource,
	store.FieldTags, store.FieldTopics, store.FieldTrack, store.FieldSpeakers, store.FieldDate,
	store.FieldCoverImageURL, store.FieldSpeakersImageURL, store.FieldURL, store.FieldDocMeta,
}

// FindOptions controls a gallery listing. Zero Limit means DefaultPageSize;
// an empty Sort means newest first.
type FindOptions struct {
	Limit int
	Skip  int
	Sort  []store.SortField
}

// DocSummary is the gallery view of a meta record.
type DocSummary struct {
	ID               string    `json:"id"`
	SourceID         string    `json:"sourceId"`
	FileName         string    `json:"fileName,omitempty"`
	Title            string    `json:"title,omitempty"`
	ShortTitle       string    `json:"shortTitle,omitempty"`
	Slug             string    `json:"slug,omitempty"`
	Teaser           string    `json:"teaser,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Year             *int      `json:"year,omitempty"`
	Authors          []string  `json:"authors,omitempty"`
	Region           string    `json:"region,omitempty"`
	DocType          string    `json:"docType,omitempty"`
	Source           string    `json:"source,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Topics           []string  `json:"topics,omitempty"`
	Track            string    `json:"track,omitempty"`
	Speakers         []string  `json:"speakers,omitempty"`
	Date             string    `json:"date,omitempty"`
	CoverImageURL    string    `json:"coverImageUrl,omitempty"`
	SpeakersImageURL []string  `json:"speakersImageUrl,omitempty"`
	URL              string    `json:"url,omitempty"`
	ChapterCount     int       `json:"chapterCount"`
	ChunkCount       int       `json:"chunkCount"`
	UpsertedAt       time.Time `json:"upsertedAt"`
}

// DocPage is one page of a listing plus the total number of matches.
type DocPage struct {
	Items []DocSummary `json:"items"`
	Total int          `json:"total"`
}

// metaFilter scopes a translated filter to the library's meta records.
func metaFilter(lib *store.Library, filter store.Filter) (store.NativeFilter, error) {
	native, err := TranslateFilter(filter)
	if err != nil {
		return nil, err
	}
	return native.
		With(store.FieldKind, store.Eq(string(store.KindMeta))).
		With(store.FieldLibraryID, store.Eq(lib.ID)), nil
}

// galleryPartition resolves the partition and makes a best effort at the
// listing indexes. A failure there only costs speed, so it is logged.
func (r *Repository) galleryPartition(ctx context.Context, lib *store.Library) (store.Partition, error) {
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return nil, err
	}
	if err := r.ensureGalleryIndexes(ctx, part); err != nil {
		r.logger.Warn("gallery indexes unavailable", slog.String("partition", part.Name()), slog.Any("error", err))
	}
	return part, nil
}

// AggregateFacets counts facet values over the library's meta records that
// match filter. Nulls and missing values are excluded, list facets count each
// element, and buckets are sorted by value. A nil facets slice means the
// library's own facets.
func (r *Repository) AggregateFacets(ctx context.Context, lib *store.Library, filter store.Filter, facets []store.FacetDefinition) (map[string][]store.FacetBucket, error) {
	start := time.Now()
	out, err := r.aggregateFacets(ctx, lib, filter, facets)
	r.metrics.observe("aggregate_facets", start, err)
	return out, err
}

func (r *Repository) aggregateFacets(ctx context.Context, lib *store.Library, filter store.Filter, facets []store.FacetDefinition) (map[string][]store.FacetBucket, error) {
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	if facets == nil {
		facets = lib.Facets
	}
	for _, f := range facets {
		if err := f.Validate(); err != nil {
			return nil, scouterr.Wrap(err, scouterr.CodeRepoQueryInvalidInput, "invalid facet definition")
		}
	}
	native, err := metaFilter(lib, filter)
	if err != nil {
		return nil, err
	}
	part, err := r.galleryPartition(ctx, lib)
	if err != nil {
		return nil, err
	}

	results := make([][]store.FacetBucket, len(facets))
	g, gctx := errgroup.WithContext(ctx)
	for i, facet := range facets {
		g.Go(func() error {
			buckets, err := part.FacetCounts(gctx, native, facet.MetaKey, facet.Type.IsArray())
			if err != nil {
				return scouterr.Wrap(err, scouterr.CodeRepoGalleryFailure, "aggregating facet "+facet.MetaKey,
					scouterr.FieldPartition(part.Name()))
			}
			results[i] = buckets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]store.FacetBucket, len(facets))
	for i, facet := range facets {
		if results[i] == nil {
			results[i] = []store.FacetBucket{}
		}
		out[facet.MetaKey] = results[i]
	}
	return out, nil
}

// FindDocs lists the library's meta records page by page. The page and the
// total count are fetched concurrently.
func (r *Repository) FindDocs(ctx context.Context, lib *store.Library, filter store.Filter, opts FindOptions) (DocPage, error) {
	start := time.Now()
	page, err := r.findDocs(ctx, lib, filter, opts, true)
	r.metrics.observe("find_docs", start, err)
	return page, err
}

// FindDocSummaries is FindDocs without the total count.
func (r *Repository) FindDocSummaries(ctx context.Context, lib *store.Library, filter store.Filter, opts FindOptions) ([]DocSummary, error) {
	start := time.Now()
	page, err := r.findDocs(ctx, lib, filter, opts, false)
	r.metrics.observe("find_doc_summaries", start, err)
	return page.Items, err
}

func (r *Repository) findDocs(ctx context.Context, lib *store.Library, filter store.Filter, opts FindOptions, withTotal bool) (DocPage, error) {
	if err := lib.Validate(); err != nil {
		return DocPage{}, err
	}
	findOpts, err := normalizeFindOptions(opts)
	if err != nil {
		return DocPage{}, err
	}
	native, err := metaFilter(lib, filter)
	if err != nil {
		return DocPage{}, err
	}
	part, err := r.galleryPartition(ctx, lib)
	if err != nil {
		return DocPage{}, err
	}

	var (
		docs  []store.Document
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = part.Find(gctx, native, findOpts)
		if err != nil {
			return scouterr.Wrap(err, scouterr.CodeRepoGalleryFailure, "listing documents", scouterr.FieldPartition(part.Name()))
		}
		return nil
	})
	if withTotal {
		g.Go(func() error {
			var err error
			total, err = part.Count(gctx, native)
			if err != nil {
				return scouterr.Wrap(err, scouterr.CodeRepoGalleryFailure, "counting documents", scouterr.FieldPartition(part.Name()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DocPage{}, err
	}

	items := make([]DocSummary, 0, len(docs))
	for _, doc := range docs {
		items = append(items, summarize(doc))
	}
	return DocPage{Items: items, Total: total}, nil
}

func normalizeFindOptions(opts FindOptions) (store.FindOptions, error) {
	if opts.Skip < 0 || opts.Limit < 0 {
		return store.FindOptions{}, scouterr.Errorf(scouterr.CodeRepoQueryInvalidInput,
			"limit and skip must not be negative (limit %d, skip %d)", opts.Limit, opts.Skip)
	}
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	sorts := opts.Sort
	if len(sorts) == 0 {
		sorts = []store.SortField{{Field: store.FieldUpsertedAt, Desc: true}}
	}
	return store.FindOptions{Limit: limit, Skip: opts.Skip, Sort: sorts, Project: galleryProjection}, nil
}

// GetDocBySourceID returns the gallery view of one source's meta record.
func (r *Repository) GetDocBySourceID(ctx context.Context, lib *store.Library, sourceID string) (*DocSummary, error) {
	if sourceID == "" {
		return nil, scouterr.New(scouterr.CodeRepoQueryInvalidInput, "sourceId is required")
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return nil, err
	}
	docs, err := part.Find(ctx, store.NativeFilter{
		store.FieldID:        store.Eq(store.MetaID(sourceID)),
		store.FieldLibraryID: store.Eq(lib.ID),
	}, store.FindOptions{Limit: 1, Project: galleryProjection})
	if err != nil {
		return nil, scouterr.Wrap(err, scouterr.CodeRepoGalleryFailure, "reading document",
			scouterr.FieldPartition(part.Name()), scouterr.FieldSourceID(sourceID))
	}
	if len(docs) == 0 {
		return nil, scouterr.New(scouterr.CodeStoreRecordNotFound, "document not found",
			scouterr.FieldPartition(part.Name()), scouterr.FieldSourceID(sourceID))
	}
	summary := summarize(docs[0])
	return &summary, nil
}

func summarize(doc store.Document) DocSummary {
	docMeta, _ := doc[store.FieldDocMeta].(map[string]any)
	s := DocSummary{
		ID:               doc.ID(),
		SourceID:         pickString(doc, nil, store.FieldSourceID),
		FileName:         pickString(doc, nil, store.FieldSourceDisplayName),
		Title:            pickString(doc, docMeta, store.FieldTitle),
		ShortTitle:       pickString(doc, docMeta, store.FieldShortTitle),
		Slug:             pickString(doc, docMeta, store.FieldSlug),
		Teaser:           pickString(doc, docMeta, store.FieldTeaser),
		Summary:          pickString(doc, docMeta, store.FieldSummary),
		Year:             pickInt(doc, docMeta, store.FieldYear),
		Authors:          pickStrings(doc, docMeta, store.FieldAuthors),
		Region:           pickString(doc, docMeta, store.FieldRegion),
		DocType:          pickString(doc, docMeta, store.FieldDocType),
		Source:           pickString(doc, docMeta, store.FieldSource),
		Tags:             pickStrings(doc, docMeta, store.FieldTags),
		Topics:           pickStrings(doc, docMeta, store.FieldTopics),
		Track:            pickString(doc, docMeta, store.FieldTrack),
		Speakers:         pickStrings(doc, docMeta, store.FieldSpeakers),
		Date:             pickString(doc, docMeta, store.FieldDate),
		CoverImageURL:    pickString(doc, docMeta, store.FieldCoverImageURL),
		SpeakersImageURL: pickStrings(doc, docMeta, store.FieldSpeakersImageURL),
		URL:              pickString(doc, docMeta, store.FieldURL),
	}
	if n := pickInt(doc, nil, store.FieldChapterCount); n != nil {
		s.ChapterCount = *n
	}
	if n := pickInt(doc, nil, store.FieldChunkCount); n != nil {
		s.ChunkCount = *n
	}
	if t, ok := doc[store.FieldUpsertedAt].(time.Time); ok {
		s.UpsertedAt = t
	}
	return s
}

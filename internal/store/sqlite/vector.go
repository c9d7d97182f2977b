// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type vecTable struct {
	table string
	dim   int
}

// vecTables returns the vec0 tables backing every similarity index of the
// partition together with their dimensions.
func (p *Partition) vecTables(ctx context.Context, q queryer) ([]vecTable, error) {
	rows, err := q.QueryContext(ctx, `SELECT vec_table, definition FROM search_indexes WHERE partition = ?`, p.name)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "listing vector tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []vecTable
	for rows.Next() {
		var table, rawDef string
		if err := rows.Scan(&table, &rawDef); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning vector table: %w", err)
		}
		var def store.IndexDefinition
		if err := json.Unmarshal([]byte(rawDef), &def); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding index definition: %w", err)
		}
		vf, _ := def.VectorField()
		out = append(out, vecTable{table: table, dim: vf.NumDimensions})
	}
	return out, rows.Err()
}

// ListSearchIndexes reads the index catalog. SQLite always supports
// introspection; an empty name lists every index.
func (p *Partition) ListSearchIndexes(ctx context.Context, name string) ([]store.IndexInfo, error) {
	q := `SELECT id, name, definition, status, message FROM search_indexes WHERE partition = ?`
	args := []any{p.name}
	if name != "" {
		q += ` AND name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "listing search indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.IndexInfo
	for rows.Next() {
		var (
			info   store.IndexInfo
			rawDef string
			status string
		)
		if err := rows.Scan(&info.ID, &info.Name, &rawDef, &status, &info.Message); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning search index: %w", err)
		}
		if err := json.Unmarshal([]byte(rawDef), &info.Definition); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding index definition: %w", err)
		}
		info.Status = store.NormalizeIndexStatus(status)
		info.Queryable = info.Status == store.IndexStatusActive || info.Status == store.IndexStatusReady
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating search indexes: %w", err)
	}
	return out, nil
}

// CreateSearchIndex creates a vec0 table for the definition's vector field,
// backfills it from stored embeddings of the same dimension, and registers it
// in the catalog. The index is queryable as soon as this returns.
func (p *Partition) CreateSearchIndex(ctx context.Context, def store.IndexDefinition) error {
	vf, ok := def.VectorField()
	if !ok || vf.NumDimensions <= 0 {
		return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "index %s has no vector field with dimensions", def.Name)
	}
	if vf.Path != store.FieldEmbedding {
		return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "unsupported vector path %q", vf.Path)
	}
	rawDef, err := json.Marshal(def)
	if err != nil {
		return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "encoding index definition: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_indexes WHERE partition = ? AND name = ?`, p.name, def.Name).Scan(&exists); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "checking search index: %w", err)
	}
	if exists > 0 {
		return store.NewAlreadyExistsError(def.Name)
	}

	table := "vec_" + shortHash(p.name+"/"+def.Name)
	ddl := fmt.Sprintf(
		`CREATE VIRTUAL TABLE %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		table, vf.NumDimensions,
	)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "creating vector table: %w", err)
	}

	backfill := `INSERT INTO ` + table + `(id, embedding) SELECT id, vec FROM embeddings WHERE partition = ? AND dim = ?`
	if _, err := tx.ExecContext(ctx, backfill, p.name, vf.NumDimensions); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "backfilling vector table: %w", err)
	}

	const catalogQ = `INSERT INTO search_indexes(partition, name, id, vec_table, definition, status, created)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, catalogQ,
		p.name, def.Name, uuid.NewString(), table, string(rawDef),
		string(store.IndexStatusActive), formatTime(time.Now()),
	); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "registering search index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "committing search index: %w", err)
	}
	return nil
}

func (p *Partition) lookupIndex(ctx context.Context, name string) (table string, def store.IndexDefinition, err error) {
	var rawDef string
	err = p.db.QueryRowContext(ctx,
		`SELECT vec_table, definition FROM search_indexes WHERE partition = ? AND name = ?`,
		p.name, name,
	).Scan(&table, &rawDef)
	if errors.Is(err, sql.ErrNoRows) {
		return "", def, store.NewIndexNotFoundError(name)
	}
	if err != nil {
		return "", def, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "reading search index: %w", err)
	}
	if err := json.Unmarshal([]byte(rawDef), &def); err != nil {
		return "", def, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding index definition: %w", err)
	}
	return table, def, nil
}

// VectorSearch runs a KNN query over the index's vec0 table, then applies
// the filter to the candidate pool, widening the pool while too few
// candidates match. Filter fields must be declared on the
// index, and array-valued fields must be declared as token.
func (p *Partition) VectorSearch(ctx context.Context, req store.VectorSearchRequest) ([]store.SearchHit, error) {
	table, def, err := p.lookupIndex(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	if err := p.checkFilterDeclared(ctx, def, req.Filter); err != nil {
		return nil, err
	}
	vf, _ := def.VectorField()
	if vf.NumDimensions != len(req.Vector) {
		return nil, &store.EngineError{
			Code:    store.EngineCodeDimensionMismatch,
			Path:    vf.Path,
			Message: "query vector dimension does not match index",
		}
	}

	blob, err := sqlite_vec.SerializeFloat32(req.Vector)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreInvalidInput, "serializing query vector: %w", err)
	}
	k := req.NumCandidates
	if k <= 0 {
		k = max(req.Limit, 1)
	}
	where, args, err := whereClause(req.Filter)
	if err != nil {
		return nil, err
	}

	// The filter runs after the KNN cut, so a selective filter can empty a
	// full candidate pool. Widen the pool until Limit documents match or
	// vec0 has no more rows to return.
	var hits []store.SearchHit
	for {
		k = min(k, maxKNN)
		ids, distances, err := p.nearest(ctx, table, blob, k)
		if err != nil {
			return nil, err
		}
		hits, err = p.loadCandidates(ctx, ids, distances, where, args, req.Project)
		if err != nil {
			return nil, err
		}
		if req.Limit <= 0 || len(hits) >= req.Limit || len(ids) < k || k == maxKNN {
			break
		}
		k *= 2
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Doc.ID() < hits[j].Doc.ID()
		}
		return hits[i].Score > hits[j].Score
	})
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

// maxKNN is the largest k sqlite-vec accepts in a KNN query.
const maxKNN = 4096

// nearest returns the ids of the k nearest vectors with their distances.
func (p *Partition) nearest(ctx context.Context, table string, blob []byte, k int) ([]string, map[string]float64, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, distance FROM `+table+` WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		blob, k,
	)
	if err != nil {
		return nil, nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	distances := make(map[string]float64, k)
	var ids []string
	for rows.Next() {
		var (
			id   string
			dist float64
		)
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning vector result: %w", err)
		}
		distances[id] = dist
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating vector results: %w", err)
	}
	return ids, distances, nil
}

// loadCandidates reads the candidate documents that pass the filter.
func (p *Partition) loadCandidates(ctx context.Context, ids []string, distances map[string]float64, where string, args []any, fields []string) ([]store.SearchHit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := `SELECT doc FROM records WHERE partition = ? AND id IN (` + placeholders + `) AND ` + where
	qArgs := make([]any, 0, 1+len(ids)+len(args))
	qArgs = append(qArgs, p.name)
	for _, id := range ids {
		qArgs = append(qArgs, id)
	}
	qArgs = append(qArgs, args...)

	rows, err := p.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "loading candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []store.SearchHit
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning candidate: %w", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding candidate: %w", err)
		}
		hits = append(hits, store.SearchHit{
			Score: cosineDistanceScore(distances[doc.ID()]),
			Doc:   project(doc, fields),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating candidates: %w", err)
	}
	return hits, nil
}

// cosineDistanceScore maps a cosine distance in [0,2] to a similarity in [0,1].
func cosineDistanceScore(d float64) float64 {
	s := 1 - d/2
	return math.Max(0, math.Min(1, s))
}

func (p *Partition) checkFilterDeclared(ctx context.Context, def store.IndexDefinition, filter store.NativeFilter) error {
	for _, field := range filter.Fields() {
		decl, declared := def.Field(field)
		if declared && decl.Type == store.IndexFieldToken {
			continue
		}
		hasArray, err := p.hasArrayAt(ctx, field)
		if err != nil {
			return err
		}
		if hasArray {
			return store.NewTokenIndexError(field)
		}
		if !declared {
			return store.NewFilterNotIndexedError(field)
		}
	}
	return nil
}

func (p *Partition) hasArrayAt(ctx context.Context, field string) (bool, error) {
	path, err := jsonPath(field)
	if err != nil {
		return false, err
	}
	var found int
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM records WHERE partition = ? AND json_type(doc, '%s') = 'array')`, path)
	if err := p.db.QueryRowContext(ctx, q, p.name).Scan(&found); err != nil {
		return false, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "probing field %s: %w", field, err)
	}
	return found == 1, nil
}

func deserializeFloat32(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

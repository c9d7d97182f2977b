// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// UpsertMany inserts or replaces documents and keeps every similarity index
// of the partition in step, inside one transaction.
func (p *Partition) UpsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	vecTables, err := p.vecTables(ctx, tx)
	if err != nil {
		return err
	}

	const recordQ = `INSERT INTO records(partition, id, source_id, kind, doc) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(partition, id) DO UPDATE SET
	source_id = excluded.source_id,
	kind = excluded.kind,
	doc = excluded.doc`
	const embQ = `INSERT INTO embeddings(partition, id, dim, vec) VALUES (?, ?, ?, ?)
ON CONFLICT(partition, id) DO UPDATE SET dim = excluded.dim, vec = excluded.vec`

	for _, doc := range docs {
		enc, err := encodeDoc(doc)
		if err != nil {
			return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "encoding document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, recordQ, p.name, enc.id, enc.sourceID, enc.kind, enc.json); err != nil {
			return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "upserting record %s: %w", enc.id, err)
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		for _, vt := range vecTables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+vt.table+` WHERE id = ?`, enc.id); err != nil {
				return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "deleting vector %s: %w", enc.id, err)
			}
		}

		if len(enc.embedding) == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE partition = ? AND id = ?`, p.name, enc.id); err != nil {
				return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "clearing embedding %s: %w", enc.id, err)
			}
			continue
		}

		blob, err := sqlite_vec.SerializeFloat32(enc.embedding)
		if err != nil {
			return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "serializing embedding %s: %w", enc.id, err)
		}
		if _, err := tx.ExecContext(ctx, embQ, p.name, enc.id, len(enc.embedding), blob); err != nil {
			return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "upserting embedding %s: %w", enc.id, err)
		}
		for _, vt := range vecTables {
			if vt.dim != len(enc.embedding) {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO `+vt.table+`(id, embedding) VALUES (?, ?)`, enc.id, blob); err != nil {
				return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "inserting vector %s: %w", enc.id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "committing upsert: %w", err)
	}
	return nil
}

// DeleteMany removes every matching record with its embedding and vectors.
func (p *Partition) DeleteMany(ctx context.Context, filter store.NativeFilter) (int, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM records WHERE partition = ? AND `+where, append([]any{p.name}, args...)...)
	if err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "selecting records to delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning record id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating record ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	vecTables, err := p.vecTables(ctx, tx)
	if err != nil {
		return 0, err
	}

	for _, chunk := range chunkIDs(ids, 500) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		idArgs := make([]any, len(chunk))
		for i, id := range chunk {
			idArgs[i] = id
		}
		scoped := append([]any{p.name}, idArgs...)

		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE partition = ? AND id IN (`+placeholders+`)`, scoped...); err != nil {
			return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "deleting records: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE partition = ? AND id IN (`+placeholders+`)`, scoped...); err != nil {
			return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "deleting embeddings: %w", err)
		}
		for _, vt := range vecTables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+vt.table+` WHERE id IN (`+placeholders+`)`, idArgs...); err != nil {
				return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "deleting vectors: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "committing delete: %w", err)
	}
	return len(ids), nil
}

func chunkIDs(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// Find lists matching records.
func (p *Partition) Find(ctx context.Context, filter store.NativeFilter, opts store.FindOptions) ([]store.Document, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(opts.Sort)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	q := `SELECT doc FROM records WHERE partition = ? AND ` + where + ` ` + order + ` LIMIT ? OFFSET ?`
	qArgs := append([]any{p.name}, args...)
	qArgs = append(qArgs, limit, max(opts.Skip, 0))

	rows, err := p.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "querying records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []store.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning record: %w", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding record: %w", err)
		}
		docs = append(docs, project(doc, opts.Project))
	}
	if err := rows.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating records: %w", err)
	}
	return docs, nil
}

// Count returns the number of matching records.
func (p *Partition) Count(ctx context.Context, filter store.NativeFilter) (int, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	var n int
	q := `SELECT COUNT(*) FROM records WHERE partition = ? AND ` + where
	if err := p.db.QueryRowContext(ctx, q, append([]any{p.name}, args...)...).Scan(&n); err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "counting records: %w", err)
	}
	return n, nil
}

// FacetCounts groups the values at field over matching records, skipping
// null and missing values. With unwind, arrays contribute one count per element.
func (p *Partition) FacetCounts(ctx context.Context, filter store.NativeFilter, field string, unwind bool) ([]store.FacetBucket, error) {
	path, err := jsonPath(field)
	if err != nil {
		return nil, err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	var q string
	if unwind {
		q = fmt.Sprintf(`SELECT fv.value, COUNT(*) FROM records, json_each(records.doc, '%s') AS fv
WHERE records.partition = ? AND fv.type != 'null' AND %s
GROUP BY fv.value ORDER BY fv.value`, path, where)
	} else {
		q = fmt.Sprintf(`SELECT json_extract(records.doc, '%[1]s') AS v, COUNT(*) FROM records
WHERE records.partition = ? AND json_extract(records.doc, '%[1]s') IS NOT NULL AND %[2]s
GROUP BY v ORDER BY v`, path, where)
	}

	rows, err := p.db.QueryContext(ctx, q, append([]any{p.name}, args...)...)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "aggregating facet %s: %w", field, err)
	}
	defer func() { _ = rows.Close() }()

	var buckets []store.FacetBucket
	for rows.Next() {
		var b store.FacetBucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "scanning facet bucket: %w", err)
		}
		if raw, ok := b.Value.([]byte); ok {
			b.Value = string(raw)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating facet buckets: %w", err)
	}
	return buckets, nil
}

// FindOneWithEmbedding returns a record whose embedding has the given
// dimension. Only the standard embedding field is stored as a vector.
func (p *Partition) FindOneWithEmbedding(ctx context.Context, path string, dimension int) (store.Document, error) {
	if path != store.FieldEmbedding {
		return nil, scouterr.Errorf(scouterr.CodeStoreInvalidInput, "unsupported embedding path %q", path)
	}
	const q = `SELECT r.doc, e.vec FROM embeddings e
JOIN records r ON r.partition = e.partition AND r.id = e.id
WHERE e.partition = ? AND e.dim = ?
ORDER BY e.id LIMIT 1`

	var (
		raw  string
		blob []byte
	)
	err := p.db.QueryRowContext(ctx, q, p.name, dimension).Scan(&raw, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "sampling embedding: %w", err)
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding sample: %w", err)
	}
	doc[store.FieldEmbedding] = deserializeFloat32(blob)
	return doc, nil
}

// EnsureFieldIndexes creates JSON expression indexes for the given fields.
func (p *Partition) EnsureFieldIndexes(ctx context.Context, indexes []store.FieldIndex) error {
	for _, idx := range indexes {
		exprs := []string{"partition"}
		for _, f := range idx.Fields {
			path, err := jsonPath(f)
			if err != nil {
				return err
			}
			exprs = append(exprs, fmt.Sprintf("json_extract(doc, '%s')", path))
		}
		name := "idx_" + shortHash(p.name+"/"+idx.Name)
		ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON records(%s)`, name, strings.Join(exprs, ", "))
		if _, err := p.db.ExecContext(ctx, ddl); err != nil {
			return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "creating field index %s: %w", idx.Name, err)
		}
	}
	return nil
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:8])
}

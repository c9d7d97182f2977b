// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for engine operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIntrospectionUnsupported is returned by ListSearchIndexes when the
	// engine (or the deployment) cannot list similarity indexes.
	ErrIntrospectionUnsupported = errors.New("search index introspection unsupported")

	// ErrIndexNotFound indicates a query named a similarity index that does
	// not exist.
	ErrIndexNotFound = errors.New("search index not found")

	// ErrAlreadyExists indicates an index with the same name already exists.
	ErrAlreadyExists = errors.New("already exists")
)

// EngineCode is a typed reason attached to engine errors by backends that can
// classify their failures without inspecting message text.
type EngineCode string

const (
	EngineCodeIndexNotFound     EngineCode = "index_not_found"
	EngineCodeAlreadyExists     EngineCode = "already_exists"
	EngineCodeTokenIndexMissing EngineCode = "token_index_missing"
	EngineCodeFilterNotIndexed  EngineCode = "filter_not_indexed"
	EngineCodeDimensionMismatch EngineCode = "dimension_mismatch"
)

// EngineError is a classified engine failure.
type EngineError struct {
	Code EngineCode
	// Path is the document field the failure refers to, if any.
	Path    string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel that corresponds to the code.
func (e *EngineError) Is(target error) bool {
	switch e.Code {
	case EngineCodeIndexNotFound:
		return target == ErrIndexNotFound
	case EngineCodeAlreadyExists:
		return target == ErrAlreadyExists
	}
	return false
}

// NewTokenIndexError reports a filter on path that needs token indexing. The
// message matches the wording Atlas uses for the same condition.
func NewTokenIndexError(path string) error {
	return &EngineError{
		Code:    EngineCodeTokenIndexMissing,
		Path:    path,
		Message: fmt.Sprintf("Path '%s' needs to be indexed as token", path),
	}
}

// NewFilterNotIndexedError reports a filter on a path the index does not declare.
func NewFilterNotIndexedError(path string) error {
	return &EngineError{
		Code:    EngineCodeFilterNotIndexed,
		Path:    path,
		Message: fmt.Sprintf("Path '%s' needs to be indexed as filter", path),
	}
}

// NewIndexNotFoundError reports a query against a missing index.
func NewIndexNotFoundError(name string) error {
	return &EngineError{
		Code:    EngineCodeIndexNotFound,
		Message: fmt.Sprintf("index not found: %s", name),
	}
}

// NewAlreadyExistsError reports a duplicate index creation.
func NewAlreadyExistsError(name string) error {
	return &EngineError{
		Code:    EngineCodeAlreadyExists,
		Message: fmt.Sprintf("duplicate index: %s already exists", name),
	}
}

func engineCode(err error) (EngineCode, *EngineError) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, ee
	}
	return "", nil
}

// IsIndexNotFound reports whether err says the named similarity index does
// not exist. Typed codes win; message text is the fallback for engines that
// only return strings.
func IsIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIndexNotFound) {
		return true
	}
	if code, _ := engineCode(err); code != "" {
		return code == EngineCodeIndexNotFound
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index not found") ||
		strings.Contains(msg, "indexnotfound") ||
		strings.Contains(msg, "no such index") ||
		(strings.Contains(msg, "index") && strings.Contains(msg, "does not exist"))
}

// IsAlreadyExists reports whether err is a duplicate-creation failure.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	if code, _ := engineCode(err); code != "" {
		return code == EngineCodeAlreadyExists
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

var tokenFieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[Pp]ath\s+'([^']+)'\s+needs to be indexed as token`),
	regexp.MustCompile(`[Pp]ath\s+"([^"]+)"\s+needs to be indexed as token`),
	regexp.MustCompile(`"([^"]+)"\s+(?:is not|needs to be)\s+indexed as token`),
	regexp.MustCompile(`field\s+'?([\w.\-]+)'?\s+.*\btoken\b`),
}

// ParseTokenIndexError is the single adapter that recognises "array filter
// field is not token indexed" failures. It returns the offending field; field
// is "" when the failure is recognised but the name cannot be extracted.
func ParseTokenIndexError(err error) (field string, ok bool) {
	if err == nil {
		return "", false
	}
	if code, ee := engineCode(err); code != "" {
		if code == EngineCodeTokenIndexMissing {
			return ee.Path, true
		}
		return "", false
	}

	msg := err.Error()
	if !strings.Contains(strings.ToLower(msg), "token") {
		return "", false
	}
	for _, re := range tokenFieldPatterns {
		if m := re.FindStringSubmatch(msg); len(m) == 2 {
			return m[1], true
		}
	}
	if strings.Contains(strings.ToLower(msg), "indexed as token") {
		return "", true
	}
	return "", false
}

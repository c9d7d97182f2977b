// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes follow the shape area.component[.operation].reason; the last segment
// drives the Is* classifiers below.
type Code string

const (
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreRecordNotFound     Code = "store.record.get.not_found"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreConflict           Code = "store.conflict"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigLibraryNotFound      Code = "config.library.lookup.not_found"

	CodeRepoConfigInvalid       Code = "vectorrepo.config.invalid"
	CodeRepoIndexNotFound       Code = "vectorrepo.index.not_found"
	CodeRepoIndexTokenMissing   Code = "vectorrepo.index.token_missing"
	CodeRepoIndexCreateFailure  Code = "vectorrepo.index.create.failure"
	CodeRepoQueryInvalidInput   Code = "vectorrepo.query.invalid_input"
	CodeRepoQueryFailure        Code = "vectorrepo.query.failure"
	CodeRepoWriteInvalidInput   Code = "vectorrepo.write.invalid_input"
	CodeRepoWriteFailure        Code = "vectorrepo.write.failure"
	CodeRepoGalleryFailure      Code = "vectorrepo.gallery.failure"
	CodeRepoPartitionOpenFailed Code = "vectorrepo.partition.open.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPartition(value string) Attr {
	return Field("partition", value)
}

func FieldLibraryID(value string) Attr {
	return Field("library_id", value)
}

func FieldIndex(value string) Attr {
	return Field("index", value)
}

func FieldSourceID(value string) Attr {
	return Field("source_id", value)
}

func build(code Code, fields []Attr) oops.OopsErrorBuilder {
	return oops.Code(code).With(flatten(fields)...)
}

func New(code Code, msg string, fields ...Attr) error {
	return build(code, fields).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return build(code, fields).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, keeping its code.
// Uncoded errors are treated as engine failures.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	if code == "" {
		code = CodeStoreDatabaseFailure
	}
	return build(code, fields).Wrap(err)
}

// Join collects several errors under one code, e.g. every validation
// failure of a config file. It returns nil when all errs are nil.
func Join(code Code, msg string, errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(code).Wrapf(joined, "%s", msg)
}

// CodeOf returns the code of the innermost coded error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oopsErr.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	case nil:
		return ""
	default:
		return Code(fmt.Sprint(c))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	switch reason(CodeOf(err)) {
	case "invalid", "invalid_input", "invalid_value", "invalid_format":
		return true
	}
	return false
}

// IsConfiguration reports whether err is a caller configuration problem
// (missing dimension, tenant or partition) raised before any engine I/O.
func IsConfiguration(err error) bool {
	code := CodeOf(err)
	return code == CodeRepoConfigInvalid || strings.HasPrefix(string(code), "config.")
}

// Process exit statuses of the CLI.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
)

// ExitCode maps err onto a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsConfiguration(err), IsInvalidInput(err):
		return ExitUsage
	case IsNotFound(err):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

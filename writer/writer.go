// Package writer serializes raw PDF objects and produces incremental-update
// revisions. It never re-emits bytes belonging to a previous revision: the
// Builder/Interceptor conventions below are adapted from a larger
// from-scratch document writer, but the actual write path (incrementalWriter.Write,
// in incremental.go) only ever appends.
package writer

import (
	"context"

	"github.com/inkwell-dev/pdfedit/ir/raw"
)

// Config controls how an incremental update is produced.
type Config struct {
	// Deterministic disables any timestamp-dependent output so repeated
	// writes of the same patched bytes produce byte-identical revisions.
	Deterministic bool
}

// Writer is the append-only counterpart of a full-document writer: it knows
// how to turn one new content-stream payload into a complete incremental
// revision built on top of an already-parsed original document.
type Writer interface {
	// Write appends a new revision to out that replaces pageObjRef's
	// content stream with newContent, preserving every other object.
	// original is the exact byte sequence the document was parsed from;
	// it is copied to out verbatim before any new bytes are appended.
	Write(ctx context.Context, original []byte, doc *raw.Document, pageObjRef raw.ObjectRef, newContent []byte, out WriterAt, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// NewWriter returns the default incremental Writer.
func NewWriter() Writer { return (&WriterBuilder{}).Build() }

// Interceptor observes objects as they are serialized, mirroring the hook
// points a full-document writer offers (logging, metrics, auditing).
type Interceptor interface {
	BeforeWrite(ctx context.Context, obj raw.Object) error
	AfterWrite(ctx context.Context, obj raw.Object, bytesWritten int64) error
}

// WriterBuilder assembles a Writer with optional interceptors.
type WriterBuilder struct {
	interceptors []Interceptor
}

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}

func (b *WriterBuilder) Build() Writer {
	return &incrementalWriter{interceptors: b.interceptors}
}

// WriterAt is the minimal sink a Writer appends bytes to.
type WriterAt interface {
	Write(p []byte) (n int, err error)
}

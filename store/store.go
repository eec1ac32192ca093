// Package store holds per-document state for the editor: the original and
// current PDF bytes, the parsed page-0 context, and the IR/cache derived
// from it. Each document is guarded by its own lock so patch batches
// serialize independently per document.
package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/inkwell-dev/pdfedit/apierr"
	"github.com/inkwell-dev/pdfedit/contentstream"
	"github.com/inkwell-dev/pdfedit/ir/model"
	"github.com/inkwell-dev/pdfedit/ir/raw"
	"github.com/inkwell-dev/pdfedit/observability"
	"github.com/inkwell-dev/pdfedit/patch"
	"github.com/inkwell-dev/pdfedit/pdfdoc"
	"github.com/inkwell-dev/pdfedit/writer"
)

//go:embed assets/sample.pdf
var sampleBytes []byte

// Document is one open PDF's full mutable state. Reads take RLock; a patch
// batch takes Lock for its entire duration so it is indivisible from any
// other operation on the same document.
type Document struct {
	mu            sync.RWMutex
	id            string
	originalBytes []byte
	currentBytes  []byte
	raw           *raw.Document
	page          *pdfdoc.Page
	cache         contentstream.Cache
	ir            model.DocumentIR
}

// Store is the process-wide registry of open documents.
type Store struct {
	mu      sync.Mutex
	docs    map[string]*Document
	counter atomic.Uint64
	logger  observability.Logger
	tracer  observability.Tracer
}

// New returns an empty Store that logs and traces nothing.
func New() *Store {
	return NewWithLogger(observability.NopLogger{})
}

// NewWithLogger returns an empty Store that logs document-opened and
// patch-batch-committed/rolled-back events through logger, tracing nothing.
func NewWithLogger(logger observability.Logger) *Store {
	return NewWithObservability(logger, observability.NopTracer())
}

// NewWithObservability returns an empty Store wired to logger and tracer. A
// nil logger or tracer falls back to its no-op implementation.
func NewWithObservability(logger observability.Logger, tracer observability.Tracer) *Store {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Store{docs: make(map[string]*Document), logger: logger, tracer: tracer}
}

func (s *Store) nextID() string {
	n := s.counter.Add(1)
	return fmt.Sprintf("doc-%04d", n)
}

// Open ingests PDF bytes (or, if data is empty, the embedded sample
// document), builds the page-0 IR, and registers it under a new id.
func (s *Store) Open(ctx context.Context, data []byte) (string, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.Open")
	defer span.Finish()

	if len(data) == 0 {
		data = sampleBytes
	}

	parseCtx, parseSpan := s.tracer.StartSpan(ctx, "pdfdoc.Parse")
	doc, err := pdfdoc.Parse(parseCtx, data)
	parseSpan.Finish()
	if err != nil {
		span.SetError(err)
		return "", apierr.Wrap(apierr.ParseError, "failed to parse PDF", err)
	}

	loadCtx, loadSpan := s.tracer.StartSpan(ctx, "pdfdoc.LoadPage0")
	page, err := pdfdoc.LoadPage0(loadCtx, doc)
	loadSpan.Finish()
	if err != nil {
		span.SetError(err)
		return "", apierr.Wrap(apierr.ParseError, "failed to locate page 0", err)
	}

	_, interpretSpan := s.tracer.StartSpan(ctx, "contentstream.Interpret")
	result, err := page.Interpret()
	interpretSpan.Finish()
	if err != nil {
		span.SetError(err)
		return "", apierr.Wrap(apierr.ParseError, "failed to interpret content stream", err)
	}

	d := &Document{
		originalBytes: append([]byte(nil), data...),
		currentBytes:  append([]byte(nil), data...),
		raw:           doc,
		page:          page,
		cache:         result.Cache,
		ir:            page.ToIR(result),
	}

	s.mu.Lock()
	d.id = s.nextID()
	s.docs[d.id] = d
	s.mu.Unlock()

	span.SetTag("docId", d.id)
	s.logger.Info("document opened",
		observability.String("docId", d.id),
		observability.Int("objectCount", len(doc.Objects)),
	)
	return d.id, nil
}

func (s *Store) lookup(id string) (*Document, error) {
	s.mu.Lock()
	d, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("unknown document %q", id))
	}
	return d, nil
}

// GetIR returns the document's current IR.
func (s *Store) GetIR(id string) (model.DocumentIR, error) {
	d, err := s.lookup(id)
	if err != nil {
		return model.DocumentIR{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ir, nil
}

// GetPDF returns the document's current PDF bytes.
func (s *Store) GetPDF(id string) ([]byte, error) {
	d, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentBytes, nil
}

// PatchResponse is the JSON body returned to a successful or failed patch
// request.
type PatchResponse struct {
	OK         bool   `json:"ok"`
	UpdatedPdf string `json:"updatedPdf,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ApplyPatch runs a patch batch against document id, atomically: either every
// op succeeds and the document advances to a new revision, or none do and
// the document is left exactly as it was.
func (s *Store) ApplyPatch(ctx context.Context, id string, ops []model.PatchOp) (PatchResponse, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.ApplyPatch")
	defer span.Finish()
	span.SetTag("docId", id)
	span.SetTag("opCount", len(ops))

	d, err := s.lookup(id)
	if err != nil {
		span.SetError(err)
		return PatchResponse{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, patchSpan := s.tracer.StartSpan(ctx, "patch.ApplyBatch")
	outcome, err := patch.ApplyBatch(d.page, d.cache, ops)
	patchSpan.Finish()
	if err != nil {
		if apiErr, ok := err.(*apierr.Error); ok && apiErr.Kind == apierr.Unsupported {
			s.logger.Info("patch batch rolled back",
				observability.String("docId", id),
				observability.String("reason", apiErr.Message),
			)
			return PatchResponse{OK: false, Message: apiErr.Message}, nil
		}
		span.SetError(err)
		s.logger.Warn("patch batch rolled back",
			observability.String("docId", id),
			observability.Error("cause", err),
		)
		return PatchResponse{}, err
	}

	var out bytes.Buffer
	w := writer.NewWriter()
	writeCtx, writeSpan := s.tracer.StartSpan(ctx, "writer.Write")
	writeErr := w.Write(writeCtx, d.currentBytes, d.raw, d.page.PageRef, outcome.Page.Content, &out, writer.Config{Deterministic: true})
	writeSpan.Finish()
	if writeErr != nil {
		span.SetError(writeErr)
		return PatchResponse{}, apierr.Wrap(apierr.WriteError, "failed to write incremental update", writeErr)
	}
	newBytes := out.Bytes()

	reparseCtx, reparseSpan := s.tracer.StartSpan(ctx, "pdfdoc.Parse")
	reparsed, err := pdfdoc.Parse(reparseCtx, newBytes)
	reparseSpan.Finish()
	if err != nil {
		span.SetError(err)
		return PatchResponse{}, apierr.Wrap(apierr.WriteError, "incremental update failed to re-parse", err)
	}
	reparsedPage, err := pdfdoc.LoadPage0(reparseCtx, reparsed)
	if err != nil {
		span.SetError(err)
		return PatchResponse{}, apierr.Wrap(apierr.WriteError, "incremental update page 0 unreadable", err)
	}
	reparsedResult, err := reparsedPage.Interpret()
	if err != nil {
		span.SetError(err)
		return PatchResponse{}, apierr.Wrap(apierr.WriteError, "incremental update content unreadable", err)
	}

	d.currentBytes = newBytes
	d.raw = reparsed
	d.page = reparsedPage
	d.cache = reparsedResult.Cache
	d.ir = reparsedPage.ToIR(reparsedResult)

	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(newBytes)
	s.logger.Info("patch batch committed",
		observability.String("docId", id),
		observability.Int("opCount", len(ops)),
		observability.Int("newSize", len(newBytes)),
	)
	return PatchResponse{OK: true, UpdatedPdf: dataURL}, nil
}

package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/inkwell-dev/pdfedit/ir/raw"
)

func buildDoc() (*raw.Document, raw.ObjectRef) {
	pageRef := raw.ObjectRef{Num: 3, Gen: 0}
	catalogRef := raw.ObjectRef{Num: 1, Gen: 0}
	contentRef := raw.ObjectRef{Num: 4, Gen: 0}

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792),
	))
	page.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))

	content := raw.NewStream(raw.Dict(), []byte("q Q"))

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))

	doc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			catalogRef: catalog,
			pageRef:    page,
			contentRef: content,
		},
		Trailer: trailer,
		Version: "1.7",
	}
	return doc, pageRef
}

const fakeOriginal = "%PDF-1.7\n1 0 obj\n<< >>\nendobj\nxref\n0 1\n0000000000 65535 f \ntrailer\n<< /Size 1 /Root 1 0 R >>\nstartxref\n9\n%%EOF\n"

func TestWriteAppendsOriginalBytesVerbatim(t *testing.T) {
	doc, pageRef := buildDoc()
	w := NewWriter()

	var out bytes.Buffer
	err := w.Write(context.Background(), []byte(fakeOriginal), doc, pageRef, []byte("BT (hi) Tj ET"), &out, Config{Deterministic: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, fakeOriginal) {
		t.Fatalf("output does not start with the original bytes verbatim")
	}
}

func TestWriteProducesNewContentStreamAndPrevChain(t *testing.T) {
	doc, pageRef := buildDoc()
	w := NewWriter()

	var out bytes.Buffer
	if err := w.Write(context.Background(), []byte(fakeOriginal), doc, pageRef, []byte("BT (hi) Tj ET"), &out, Config{Deterministic: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "BT (hi) Tj ET") {
		t.Fatalf("output does not contain the new content stream bytes")
	}
	if !strings.Contains(got, "/Prev 9") {
		t.Fatalf("output does not chain /Prev to the prior startxref offset: %s", got)
	}
	if !strings.Contains(got, "startxref\n") {
		t.Fatalf("output missing a new startxref")
	}
	if strings.Count(got, "%%EOF") < 2 {
		t.Fatalf("output does not have a second %%%%EOF marking the new revision")
	}
}

func TestWriteIsDeterministicAcrossRuns(t *testing.T) {
	doc, pageRef := buildDoc()
	w := NewWriter()

	var out1, out2 bytes.Buffer
	if err := w.Write(context.Background(), []byte(fakeOriginal), doc, pageRef, []byte("BT (hi) Tj ET"), &out1, Config{Deterministic: true}); err != nil {
		t.Fatalf("Write (1): %v", err)
	}
	if err := w.Write(context.Background(), []byte(fakeOriginal), doc, pageRef, []byte("BT (hi) Tj ET"), &out2, Config{Deterministic: true}); err != nil {
		t.Fatalf("Write (2): %v", err)
	}
	if out1.String() != out2.String() {
		t.Fatalf("two writes of identical input produced different output")
	}
}

func TestWriteUnknownPageRefErrors(t *testing.T) {
	doc, _ := buildDoc()
	w := NewWriter()
	var out bytes.Buffer
	err := w.Write(context.Background(), []byte(fakeOriginal), doc, raw.ObjectRef{Num: 999, Gen: 0}, []byte("x"), &out, Config{Deterministic: true})
	if err == nil {
		t.Fatalf("want error for unknown page ref, got nil")
	}
}

func TestWriteMissingStartxrefErrors(t *testing.T) {
	doc, pageRef := buildDoc()
	w := NewWriter()
	var out bytes.Buffer
	err := w.Write(context.Background(), []byte("not a pdf at all"), doc, pageRef, []byte("x"), &out, Config{Deterministic: true})
	if err == nil {
		t.Fatalf("want error when original bytes have no startxref, got nil")
	}
}

package patch

import (
	"context"
	"testing"

	"github.com/inkwell-dev/pdfedit/apierr"
	"github.com/inkwell-dev/pdfedit/ir/model"
	"github.com/inkwell-dev/pdfedit/ir/raw"
	"github.com/inkwell-dev/pdfedit/pdfdoc"
)

func buildPage(t *testing.T, content []byte) *pdfdoc.Page {
	t.Helper()

	pageRef := raw.ObjectRef{Num: 3, Gen: 0}
	pagesRef := raw.ObjectRef{Num: 2, Gen: 0}
	catalogRef := raw.ObjectRef{Num: 1, Gen: 0}
	contentRef := raw.ObjectRef{Num: 4, Gen: 0}
	imageRef := raw.ObjectRef{Num: 5, Gen: 0}

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(pageRef.Num, pageRef.Gen)))

	resources := raw.Dict()
	xobjDict := raw.Dict()
	xobjDict.Set(raw.NameLiteral("Im0"), raw.Ref(imageRef.Num, imageRef.Gen))
	resources.Set(raw.NameLiteral("XObject"), xobjDict)

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792),
	))
	page.Set(raw.NameLiteral("Resources"), resources)
	page.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, contentRef.Gen))

	contentStream := raw.NewStream(raw.Dict(), content)

	imageDict := raw.Dict()
	imageDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	imageStream := raw.NewStream(imageDict, []byte{})

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))

	doc := &raw.Document{
		Objects: map[raw.ObjectRef]raw.Object{
			catalogRef: catalog,
			pagesRef:   pages,
			pageRef:    page,
			contentRef: contentStream,
			imageRef:   imageStream,
		},
		Trailer: trailer,
		Version: "1.7",
	}

	pg, err := pdfdoc.LoadPage0(context.Background(), doc)
	if err != nil {
		t.Fatalf("LoadPage0: %v", err)
	}
	return pg
}

func TestApplyBatchTransformsTextMatrix(t *testing.T) {
	pg := buildPage(t, []byte("BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hi) Tj ET"))
	result, err := pg.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	textID := result.Objects[0].Text.ID

	ops := []model.PatchOp{{
		Op: model.OpTransform,
		Transform: &model.Transform{
			Target:        model.Target{Page: 0, ID: textID},
			DeltaMatrixPt: model.Matrix6{1, 0, 0, 1, 10, -5},
			Kind:          model.TargetText,
		},
	}}

	outcome, err := ApplyBatch(pg, result.Cache, ops)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(outcome.Result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(outcome.Result.Objects))
	}
	got := outcome.Result.Objects[0].Text.Tm
	want := model.Matrix6{1, 0, 0, 1, 82, 695}
	if got != want {
		t.Fatalf("Tm after transform = %v, want %v", got, want)
	}
	// original page content must be untouched
	if string(pg.Content) != "BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hi) Tj ET" {
		t.Fatalf("ApplyBatch mutated the source page's content: %q", pg.Content)
	}
}

func TestApplyBatchUnknownTargetIsNotFound(t *testing.T) {
	pg := buildPage(t, []byte("BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hi) Tj ET"))
	result, err := pg.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}

	ops := []model.PatchOp{{
		Op: model.OpTransform,
		Transform: &model.Transform{
			Target:        model.Target{Page: 0, ID: "t:999"},
			DeltaMatrixPt: model.Matrix6{1, 0, 0, 1, 0, 0},
			Kind:          model.TargetText,
		},
	}}

	_, err = ApplyBatch(pg, result.Cache, ops)
	if err == nil {
		t.Fatalf("want error for unknown target, got nil")
	}
	if e, ok := err.(*apierr.Error); !ok || e.Kind != apierr.NotFound {
		t.Fatalf("err = %v, want apierr.NotFound", err)
	}
}

func TestApplyBatchEditTextIsUnsupported(t *testing.T) {
	pg := buildPage(t, []byte("BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hi) Tj ET"))
	result, err := pg.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	textID := result.Objects[0].Text.ID

	ops := []model.PatchOp{{
		Op: model.OpEditText,
		EditText: &model.EditText{
			Target: model.Target{Page: 0, ID: textID},
			Text:   "replacement",
		},
	}}

	_, err = ApplyBatch(pg, result.Cache, ops)
	if e, ok := err.(*apierr.Error); !ok || e.Kind != apierr.Unsupported {
		t.Fatalf("err = %v, want apierr.Unsupported", err)
	}
}

func TestApplyBatchChainsMultipleOpsInOneCall(t *testing.T) {
	pg := buildPage(t, []byte("BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hi) Tj ET"))
	result, err := pg.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	textID := result.Objects[0].Text.ID

	ops := []model.PatchOp{
		{
			Op: model.OpTransform,
			Transform: &model.Transform{
				Target:        model.Target{Page: 0, ID: textID},
				DeltaMatrixPt: model.Matrix6{1, 0, 0, 1, 5, 0},
				Kind:          model.TargetText,
			},
		},
		{
			Op: model.OpTransform,
			Transform: &model.Transform{
				Target:        model.Target{Page: 0, ID: textID},
				DeltaMatrixPt: model.Matrix6{1, 0, 0, 1, 5, 0},
				Kind:          model.TargetText,
			},
		},
	}

	outcome, err := ApplyBatch(pg, result.Cache, ops)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	got := outcome.Result.Objects[0].Text.Tm
	want := model.Matrix6{1, 0, 0, 1, 82, 700}
	if got != want {
		t.Fatalf("Tm after two chained transforms = %v, want %v", got, want)
	}
}

package contentstream

import (
	"testing"

	"github.com/inkwell-dev/pdfedit/coords"
)

func TestInterpretSimpleTextProducesTextObjectAndCacheEntry(t *testing.T) {
	src := []byte("BT /F1 24 Tf 1 0 0 1 72 700 Tm (Hello) Tj ET")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 4, nil)

	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1: %+v", len(result.Objects), result.Objects)
	}
	obj := result.Objects[0]
	if obj.Kind != "text" || obj.Text == nil {
		t.Fatalf("object = %+v, want text", obj)
	}
	if obj.Text.Font.ResName != "F1" || obj.Text.Font.Size != 24 {
		t.Fatalf("font = %+v, want F1/24", obj.Text.Font)
	}
	if obj.Text.Tm != (coords.Matrix6{1, 0, 0, 1, 72, 700}) {
		t.Fatalf("Tm = %v, want {1,0,0,1,72,700}", obj.Text.Tm)
	}

	entry, ok := result.Cache.Text[obj.Text.ID]
	if !ok {
		t.Fatalf("no cache entry for %q", obj.Text.ID)
	}
	if entry.TmToken == nil {
		t.Fatalf("TmToken = nil, want a locator for the explicit Tm operator")
	}
	anchored := string(src[entry.TmToken.ByteRange.Start:entry.TmToken.ByteRange.End])
	if anchored != "1 0 0 1 72 700 Tm" {
		t.Fatalf("TmToken anchors %q, want the Tm operator span", anchored)
	}
}

func TestInterpretTextWithoutTmGetsInsertionPoint(t *testing.T) {
	src := []byte("BT /F1 12 Tf (no matrix) Tj ET")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, nil)
	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(result.Objects))
	}
	entry := result.Cache.Text[result.Objects[0].Text.ID]
	if entry.TmToken != nil {
		t.Fatalf("TmToken = %+v, want nil (no explicit Tm present)", entry.TmToken)
	}
	if entry.InsertionPoint != entry.BtRange.End {
		t.Fatalf("InsertionPoint = %d, want BtRange.End = %d", entry.InsertionPoint, entry.BtRange.End)
	}
}

func TestInterpretEmptyTextBlockProducesNoObject(t *testing.T) {
	src := []byte("BT /F1 12 Tf ET")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, nil)
	if len(result.Objects) != 0 {
		t.Fatalf("len(Objects) = %d, want 0 for a text block with no glyphs", len(result.Objects))
	}
}

// TestInterpretTDTranslatesLikeTd covers the TD operator (move-and-set-leading):
// without a case for it, translation/baseMatrix never update and the text
// object keeps the identity matrix instead of the position TD establishes.
func TestInterpretTDTranslatesLikeTd(t *testing.T) {
	src := []byte("BT /F1 12 Tf 72 700 TD (Hi) Tj ET")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, nil)
	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(result.Objects))
	}
	entry := result.Cache.Text[result.Objects[0].Text.ID]
	want := coords.Matrix6{1, 0, 0, 1, 72, 700}
	if entry.Tm != want {
		t.Fatalf("Tm = %v, want %v (TD must translate like Td)", entry.Tm, want)
	}
}

// TestInterpretTStarUsesDefaultLeadingWithoutTD covers the other half of TD:
// when TD/TL never ran, T* must still fall back to the 1.2x-font-size guess
// rather than an uninitialized leading value.
func TestInterpretTStarUsesDefaultLeadingWithoutTD(t *testing.T) {
	src := []byte("BT /F1 20 Tf T* (Hi) Tj ET")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, nil)
	entry := result.Cache.Text[result.Objects[0].Text.ID]
	// No prior translate, so T* is the first move: identity -> (0, -20*1.2).
	want := coords.Matrix6{1, 0, 0, 1, 0, -24}
	if entry.Tm != want {
		t.Fatalf("Tm = %v, want %v (T* must use the 1.2x-font-size default leading)", entry.Tm, want)
	}
}

func TestInterpretImageCapturesConcatenatedCTM(t *testing.T) {
	src := []byte("q 2 0 0 2 0 0 cm 100 0 0 100 10 20 cm /Im0 Do Q")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, map[string]bool{"/Im0": true})
	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(result.Objects))
	}
	obj := result.Objects[0]
	if obj.Kind != "image" || obj.Image == nil {
		t.Fatalf("object = %+v, want image", obj)
	}

	// The CTM in effect is the composition of both cm operators: scale(2,2)
	// applied first, then the image's own placement matrix concatenated on
	// top of it, exercising the "concatenated-to-CTM" cm semantics rather
	// than the raw last operand.
	want := coords.Matrix6{2, 0, 0, 2, 0, 0}.Multiply(coords.Matrix6{100, 0, 0, 100, 10, 20})
	if obj.Image.Cm != want {
		t.Fatalf("Cm = %v, want %v (composed CTM, not raw last cm operand)", obj.Image.Cm, want)
	}

	entry := result.Cache.Image[obj.Image.ID]
	if entry.CmToken == nil {
		t.Fatalf("CmToken = nil, want a locator anchored on the last cm operator")
	}
}

func TestInterpretDoIgnoresNonImageXObjects(t *testing.T) {
	src := []byte("/Fm0 Do")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, map[string]bool{"/Im0": true})
	if len(result.Objects) != 0 {
		t.Fatalf("len(Objects) = %d, want 0 for a non-image XObject", len(result.Objects))
	}
}

func TestInterpretQRestoresGraphicsState(t *testing.T) {
	src := []byte("q 2 0 0 2 0 0 cm Q 5 0 0 5 0 0 cm /Im0 Do")
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	result := Interpret(toks, 1, map[string]bool{"/Im0": true})
	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1", len(result.Objects))
	}
	// Q must have discarded the q-scoped 2x scale, so the CTM in effect for
	// Do is just the post-Q 5x scale, not their composition.
	want := coords.Matrix6{5, 0, 0, 5, 0, 0}
	if result.Objects[0].Image.Cm != want {
		t.Fatalf("Cm = %v, want %v (scale from the q/Q-scoped cm discarded)", result.Objects[0].Image.Cm, want)
	}
}

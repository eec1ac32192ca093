// Package patch applies a batch of editor patch operations to a page's
// content-stream bytes, re-parsing after every splice so byte anchors stay
// correct for the rest of the batch.
package patch

import (
	"fmt"

	"github.com/inkwell-dev/pdfedit/apierr"
	"github.com/inkwell-dev/pdfedit/contentstream"
	"github.com/inkwell-dev/pdfedit/ir/model"
	"github.com/inkwell-dev/pdfedit/pdfdoc"
)

// Outcome is the result of successfully applying an entire patch batch.
type Outcome struct {
	Page   *pdfdoc.Page
	Result contentstream.Result
}

// ApplyBatch applies ops in order against pg's current content. It never
// mutates pg: on success it returns a new Page/Result pair reflecting every
// op; on the first op's failure it returns that error and pg is untouched.
func ApplyBatch(pg *pdfdoc.Page, cache contentstream.Cache, ops []model.PatchOp) (*Outcome, error) {
	working := append([]byte(nil), pg.Content...)

	for _, op := range ops {
		var err error
		working, cache, err = applyOne(working, pg, cache, op)
		if err != nil {
			return nil, err
		}
	}

	newPage := &pdfdoc.Page{
		Doc:           pg.Doc,
		PageRef:       pg.PageRef,
		StreamRef:     pg.StreamRef,
		Content:       working,
		ImageXObjects: pg.ImageXObjects,
		WidthPt:       pg.WidthPt,
		HeightPt:      pg.HeightPt,
	}
	result, err := newPage.Interpret()
	if err != nil {
		return nil, apierr.Wrap(apierr.ParseError, "re-parsing patched content failed", err)
	}
	return &Outcome{Page: newPage, Result: result}, nil
}

func applyOne(working []byte, pg *pdfdoc.Page, cache contentstream.Cache, op model.PatchOp) ([]byte, contentstream.Cache, error) {
	switch op.Op {
	case model.OpTransform:
		return applyTransform(working, pg, cache, *op.Transform)
	case model.OpEditText, model.OpSetStyle:
		return nil, contentstream.Cache{}, apierr.New(apierr.Unsupported, "unimplemented")
	default:
		return nil, contentstream.Cache{}, apierr.New(apierr.BadRequest, fmt.Sprintf("unknown patch op %q", op.Op))
	}
}

func applyTransform(working []byte, pg *pdfdoc.Page, cache contentstream.Cache, t model.Transform) ([]byte, contentstream.Cache, error) {
	if t.Target.Page != 0 {
		return nil, contentstream.Cache{}, apierr.New(apierr.BadRequest, "target.page must be 0")
	}

	var mutated []byte
	switch t.Kind {
	case model.TargetText:
		entry, ok := cache.Text[t.Target.ID]
		if !ok {
			return nil, contentstream.Cache{}, apierr.New(apierr.NotFound, fmt.Sprintf("text object %q not found", t.Target.ID))
		}
		updated := t.DeltaMatrixPt.Multiply(entry.Tm)
		formatted := FormatMatrix(updated)
		if entry.TmToken != nil {
			mutated = spliceRange(working, entry.TmToken.ByteRange.Start, entry.TmToken.ByteRange.End, []byte(formatted+" Tm"))
		} else {
			mutated = insertAt(working, entry.InsertionPoint, []byte(" "+formatted+" Tm\n"))
		}
	case model.TargetImage:
		entry, ok := cache.Image[t.Target.ID]
		if !ok {
			return nil, contentstream.Cache{}, apierr.New(apierr.NotFound, fmt.Sprintf("image object %q not found", t.Target.ID))
		}
		if entry.CmToken == nil {
			return nil, contentstream.Cache{}, apierr.New(apierr.Unsupported, fmt.Sprintf("image object %q has no cm anchor", t.Target.ID))
		}
		updated := t.DeltaMatrixPt.Multiply(entry.Cm)
		formatted := FormatMatrix(updated)
		mutated = spliceRange(working, entry.CmToken.ByteRange.Start, entry.CmToken.ByteRange.End, []byte(formatted+" cm"))
	default:
		return nil, contentstream.Cache{}, apierr.New(apierr.BadRequest, fmt.Sprintf("unknown transform kind %q", t.Kind))
	}

	tokens, err := contentstream.Tokenize(mutated)
	if err != nil {
		return nil, contentstream.Cache{}, apierr.Wrap(apierr.ParseError, "patched content stream failed to re-tokenize", err)
	}
	refreshed := contentstream.Interpret(tokens, pg.StreamRef.Num, pg.ImageXObjects)
	return mutated, refreshed.Cache, nil
}

func spliceRange(buf []byte, start, end int, replacement []byte) []byte {
	out := make([]byte, 0, len(buf)-(end-start)+len(replacement))
	out = append(out, buf[:start]...)
	out = append(out, replacement...)
	out = append(out, buf[end:]...)
	return out
}

func insertAt(buf []byte, at int, data []byte) []byte {
	out := make([]byte, 0, len(buf)+len(data))
	out = append(out, buf[:at]...)
	out = append(out, data...)
	out = append(out, buf[at:]...)
	return out
}

// Package pdfdoc loads page 0 of a parsed PDF into an IR + byte-anchor cache,
// and knows how to re-run that same extraction after a patch splice mutates
// the content-stream bytes.
package pdfdoc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/inkwell-dev/pdfedit/contentstream"
	"github.com/inkwell-dev/pdfedit/filters"
	"github.com/inkwell-dev/pdfedit/ir/model"
	"github.com/inkwell-dev/pdfedit/ir/raw"
	"github.com/inkwell-dev/pdfedit/parser"
	"github.com/inkwell-dev/pdfedit/recovery"
	"github.com/inkwell-dev/pdfedit/security"
)

// Page holds everything needed to interpret, patch, and re-serialize page 0
// of a document: the parsed object table, the page's own object reference,
// its content-stream object reference, and the decoded bytes currently in
// effect for that stream.
type Page struct {
	Doc           *raw.Document
	PageRef       raw.ObjectRef
	StreamRef     raw.ObjectRef
	Content       []byte
	ImageXObjects map[string]bool
	WidthPt       float64
	HeightPt      float64
}

func newPipeline() *filters.Pipeline {
	limits := security.DefaultLimits()
	return filters.NewPipeline([]filters.Decoder{
		filters.NewFlateDecoder(),
		filters.NewLZWDecoder(),
		filters.NewRunLengthDecoder(),
		filters.NewASCII85Decoder(),
		filters.NewASCIIHexDecoder(),
		filters.NewCryptDecoder(),
	}, filters.Limits{
		MaxDecompressedSize: limits.MaxDecompressedSize,
		MaxDecodeTime:       limits.MaxDecodeTime,
	})
}

// Parse loads a raw.Document from PDF bytes, tolerating malformed input only
// to the extent recovery.Strategy allows (default: fail fast).
func Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	p := parser.NewDocumentParser(parser.Config{Recovery: recovery.NewStrictStrategy()})
	doc, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: parse: %w", err)
	}
	return doc, nil
}

// LoadPage0 locates the document's first page, decodes its content stream,
// and resolves the resource dictionary's image XObjects.
func LoadPage0(ctx context.Context, doc *raw.Document) (*Page, error) {
	pageRef, pageDict, ancestors, err := firstPage(doc)
	if err != nil {
		return nil, err
	}

	widthPt, heightPt, err := pageDimensions(doc, pageDict, ancestors)
	if err != nil {
		return nil, err
	}

	streamRef, streamObjs, err := pageContentStreams(doc, pageDict)
	if err != nil {
		return nil, err
	}

	content, err := decodeAndConcatStreams(ctx, streamObjs)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: decode content stream: %w", err)
	}

	resources := resolveResources(doc, pageDict, ancestors)
	imageNames, err := gatherImageXObjectNames(doc, resources)
	if err != nil {
		return nil, err
	}

	return &Page{
		Doc:           doc,
		PageRef:       pageRef,
		StreamRef:     streamRef,
		Content:       content,
		ImageXObjects: imageNames,
		WidthPt:       widthPt,
		HeightPt:      heightPt,
	}, nil
}

// Interpret tokenizes and interprets the page's current content, returning
// a fresh IR + cache. Called on open and again after every patch splice.
func (pg *Page) Interpret() (contentstream.Result, error) {
	tokens, err := contentstream.Tokenize(pg.Content)
	if err != nil {
		return contentstream.Result{}, fmt.Errorf("pdfdoc: tokenize: %w", err)
	}
	return contentstream.Interpret(tokens, pg.StreamRef.Num, pg.ImageXObjects), nil
}

// ToIR wraps a single page's interpretation result in a DocumentIR.
func (pg *Page) ToIR(res contentstream.Result) model.DocumentIR {
	return model.DocumentIR{
		Pages: []model.PageIR{{
			Index:    0,
			WidthPt:  pg.WidthPt,
			HeightPt: pg.HeightPt,
			Objects:  res.Objects,
		}},
	}
}

func dictGet(d *raw.DictObj, key string) (raw.Object, bool) {
	if d == nil {
		return nil, false
	}
	return d.Get(raw.NameLiteral(key))
}

func resolve(doc *raw.Document, obj raw.Object) (raw.Object, bool) {
	if ref, ok := obj.(raw.RefObj); ok {
		resolved, ok := doc.Objects[ref.R]
		return resolved, ok
	}
	return obj, obj != nil
}

// firstPage returns the first leaf page along with every /Pages ancestor
// dict walked to reach it (root first, nearest parent last), so callers can
// resolve inheritable attributes the leaf itself doesn't carry.
func firstPage(doc *raw.Document) (raw.ObjectRef, *raw.DictObj, []*raw.DictObj, error) {
	rootObj, ok := dictGet(asDict(doc.Trailer), "Root")
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: trailer missing /Root")
	}
	catalog, ok := resolve(doc, rootObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: /Root does not resolve")
	}
	catalogDict, ok := catalog.(*raw.DictObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: /Root is not a dictionary")
	}
	pagesObj, ok := dictGet(catalogDict, "Pages")
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: catalog missing /Pages")
	}
	return firstLeafPage(doc, pagesObj, 0, nil)
}

// firstLeafPage walks /Kids to the first /Type /Page leaf, depth-limited to
// guard against cyclic page trees. Every intermediate /Pages node's dict is
// collected into ancestors as the walk descends, since /MediaBox, /Resources,
// /CropBox, and /Rotate are inheritable down the tree per the PDF spec.
func firstLeafPage(doc *raw.Document, node raw.Object, depth int, ancestors []*raw.DictObj) (raw.ObjectRef, *raw.DictObj, []*raw.DictObj, error) {
	if depth > 64 {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: page tree too deep")
	}
	ref, ok := node.(raw.RefObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: page tree node is not a reference")
	}
	resolved, ok := doc.Objects[ref.R]
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: page tree node %s not found", ref.R)
	}
	dict, ok := resolved.(*raw.DictObj)
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: page tree node %s is not a dictionary", ref.R)
	}
	typeName, _ := dictGet(dict, "Type")
	if name, ok := typeName.(raw.NameObj); ok && name.Value() == "Page" {
		return ref.R, dict, ancestors, nil
	}
	kidsObj, ok := dictGet(dict, "Kids")
	if !ok {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: intermediate page node missing /Kids")
	}
	kids, ok := kidsObj.(*raw.ArrayObj)
	if !ok || kids.Len() == 0 {
		return raw.ObjectRef{}, nil, nil, fmt.Errorf("pdfdoc: /Kids is empty or not an array")
	}
	first, _ := kids.Get(0)
	return firstLeafPage(doc, first, depth+1, append(ancestors, dict))
}

// inheritedDictValue looks up key on the leaf page dict first, falling back
// to the nearest-to-furthest /Pages ancestor chain, matching the PDF page
// tree's inheritance rule for /MediaBox, /Resources, /CropBox, and /Rotate.
func inheritedDictValue(leaf *raw.DictObj, ancestors []*raw.DictObj, key string) (raw.Object, bool) {
	if v, ok := dictGet(leaf, key); ok {
		return v, true
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if v, ok := dictGet(ancestors[i], key); ok {
			return v, true
		}
	}
	return nil, false
}

func asDict(d raw.Dictionary) *raw.DictObj {
	if dd, ok := d.(*raw.DictObj); ok {
		return dd
	}
	return nil
}

func pageDimensions(doc *raw.Document, page *raw.DictObj, ancestors []*raw.DictObj) (float64, float64, error) {
	mb, ok := inheritedDictValue(page, ancestors, "MediaBox")
	if !ok {
		return 0, 0, fmt.Errorf("pdfdoc: page MediaBox missing")
	}
	resolved, ok := resolve(doc, mb)
	if !ok {
		return 0, 0, fmt.Errorf("pdfdoc: MediaBox does not resolve")
	}
	arr, ok := resolved.(*raw.ArrayObj)
	if !ok || arr.Len() < 4 {
		return 0, 0, fmt.Errorf("pdfdoc: invalid MediaBox")
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		n, ok := item.(raw.NumberObj)
		if !ok {
			return 0, 0, fmt.Errorf("pdfdoc: MediaBox entry %d is not numeric", i)
		}
		v[i] = n.Float()
	}
	return v[2] - v[0], v[3] - v[1], nil
}

func resolveResources(doc *raw.Document, page *raw.DictObj, ancestors []*raw.DictObj) *raw.DictObj {
	resObj, ok := inheritedDictValue(page, ancestors, "Resources")
	if !ok {
		return raw.Dict()
	}
	resolved, ok := resolve(doc, resObj)
	if !ok {
		return raw.Dict()
	}
	dict, ok := resolved.(*raw.DictObj)
	if !ok {
		return raw.Dict()
	}
	return dict
}

func gatherImageXObjectNames(doc *raw.Document, resources *raw.DictObj) (map[string]bool, error) {
	names := map[string]bool{}
	xobjObj, ok := dictGet(resources, "XObject")
	if !ok {
		return names, nil
	}
	resolved, ok := resolve(doc, xobjObj)
	if !ok {
		return names, nil
	}
	xobjDict, ok := resolved.(*raw.DictObj)
	if !ok {
		return names, nil
	}
	for _, key := range xobjDict.Keys() {
		val, _ := xobjDict.Get(key)
		ref, ok := val.(raw.RefObj)
		if !ok {
			continue
		}
		obj, ok := doc.Objects[ref.R]
		if !ok {
			continue
		}
		stream, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		subtype, _ := dictGet(stream.Dict, "Subtype")
		if name, ok := subtype.(raw.NameObj); ok && name.Value() == "Image" {
			names["/"+key.Value()] = true
		}
	}
	return names, nil
}

// pageContentStreams resolves /Contents to its ordered list of content-stream
// objects. A bare reference yields one; an array yields each entry in order,
// matching how a multi-stream page is decoded and concatenated into a single
// working buffer. The returned ObjectRef identifies the first stream, used
// only as the bt_span stream-object number for objects in the merged buffer
// (the writer always replaces /Contents with one new stream regardless of
// how many it started from).
func pageContentStreams(doc *raw.Document, page *raw.DictObj) (raw.ObjectRef, []*raw.StreamObj, error) {
	contentsObj, ok := dictGet(page, "Contents")
	if !ok {
		return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: page missing /Contents")
	}

	resolveEntry := func(obj raw.Object) (raw.ObjectRef, *raw.StreamObj, error) {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: /Contents entry is not a reference")
		}
		resolved, ok := doc.Objects[ref.R]
		if !ok {
			return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: /Contents reference %s not found", ref.R)
		}
		stream, ok := resolved.(*raw.StreamObj)
		if !ok {
			return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: /Contents entry is not a stream")
		}
		return ref.R, stream, nil
	}

	switch v := contentsObj.(type) {
	case raw.RefObj:
		ref, stream, err := resolveEntry(v)
		if err != nil {
			return raw.ObjectRef{}, nil, err
		}
		return ref, []*raw.StreamObj{stream}, nil
	case *raw.ArrayObj:
		if v.Len() == 0 {
			return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: /Contents array is empty")
		}
		streams := make([]*raw.StreamObj, 0, v.Len())
		var firstRef raw.ObjectRef
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			ref, stream, err := resolveEntry(item)
			if err != nil {
				return raw.ObjectRef{}, nil, err
			}
			if i == 0 {
				firstRef = ref
			}
			streams = append(streams, stream)
		}
		return firstRef, streams, nil
	default:
		return raw.ObjectRef{}, nil, fmt.Errorf("pdfdoc: unsupported /Contents shape")
	}
}

func decodeStream(ctx context.Context, stream *raw.StreamObj) ([]byte, error) {
	names, params := filtersForStream(stream.Dict)
	if len(names) == 0 {
		return stream.Data, nil
	}
	return newPipeline().Decode(ctx, stream.Data, names, params)
}

// decodeAndConcatStreams decodes each content stream and joins them with a
// separating newline, so a page built from several content streams is
// interpreted and patched as one continuous buffer, per the system's only
// supported multi-stream handling: concatenation.
func decodeAndConcatStreams(ctx context.Context, streams []*raw.StreamObj) ([]byte, error) {
	decoded := make([][]byte, len(streams))
	for i, s := range streams {
		d, err := decodeStream(ctx, s)
		if err != nil {
			return nil, err
		}
		decoded[i] = d
	}
	return bytes.Join(decoded, []byte("\n")), nil
}

func filtersForStream(d *raw.DictObj) ([]string, []raw.Dictionary) {
	fObj, ok := dictGet(d, "Filter")
	if !ok {
		return nil, nil
	}
	var names []string
	switch v := fObj.(type) {
	case raw.NameObj:
		names = []string{v.Value()}
	case *raw.ArrayObj:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Value())
			}
		}
	}
	var params []raw.Dictionary
	if dp, ok := dictGet(d, "DecodeParms"); ok {
		switch p := dp.(type) {
		case *raw.DictObj:
			params = append(params, p)
		case *raw.ArrayObj:
			for i := 0; i < p.Len(); i++ {
				item, _ := p.Get(i)
				if dd, ok := item.(*raw.DictObj); ok {
					params = append(params, dd)
				}
			}
		}
	}
	return names, params
}

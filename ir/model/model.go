// Package model defines the editor's intermediate representation: a typed,
// JSON-serializable tree of page objects plus the patch operations a client
// submits to mutate them.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/inkwell-dev/pdfedit/coords"
)

// Matrix6 is the wire/interpreter representation of a 2-D affine transform.
type Matrix6 = coords.Matrix6

// BBox is an axis-aligned hit-test hint, not rendering geometry.
type BBox [4]float64

// FontInfo names the resource and size in effect for a text object.
type FontInfo struct {
	ResName string  `json:"resName"`
	Size    float64 `json:"size"`
}

// Span locates the BT/ET byte range a text object was built from, within the
// content-stream object that owns it.
type Span struct {
	StreamObj int `json:"streamObj"`
	Start     int `json:"start"`
	End       int `json:"end"`
}

// TextObject is one BT/ET block that produced at least one glyph.
type TextObject struct {
	ID     string   `json:"id"`
	Tm     Matrix6  `json:"tm"`
	Font   FontInfo `json:"font"`
	BtSpan Span     `json:"btSpan"`
	BBox   BBox     `json:"bbox"`
}

// ImageObject is one Do invocation of an Image-subtype XObject.
type ImageObject struct {
	ID      string  `json:"id"`
	XObject string  `json:"xObject"`
	Cm      Matrix6 `json:"cm"`
	BBox    BBox    `json:"bbox"`
}

// ObjectKind discriminates the IRObject wire variant.
type ObjectKind string

const (
	KindText  ObjectKind = "text"
	KindImage ObjectKind = "image"
	KindPath  ObjectKind = "path"
)

// IRObject is one page-level drawn object. Exactly one of Text/Image/Path is
// set, matching Kind. Path is reserved and never populated by the core.
type IRObject struct {
	Kind  ObjectKind
	Text  *TextObject
	Image *ImageObject
}

func NewTextIRObject(t TextObject) IRObject   { return IRObject{Kind: KindText, Text: &t} }
func NewImageIRObject(i ImageObject) IRObject { return IRObject{Kind: KindImage, Image: &i} }

// ID returns the object's wire id regardless of variant.
func (o IRObject) ID() string {
	switch o.Kind {
	case KindText:
		if o.Text != nil {
			return o.Text.ID
		}
	case KindImage:
		if o.Image != nil {
			return o.Image.ID
		}
	}
	return ""
}

func (o IRObject) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case KindText:
		if o.Text == nil {
			return nil, fmt.Errorf("model: text IRObject missing payload")
		}
		return json.Marshal(struct {
			Kind ObjectKind `json:"kind"`
			TextObject
		}{Kind: KindText, TextObject: *o.Text})
	case KindImage:
		if o.Image == nil {
			return nil, fmt.Errorf("model: image IRObject missing payload")
		}
		return json.Marshal(struct {
			Kind ObjectKind `json:"kind"`
			ImageObject
		}{Kind: KindImage, ImageObject: *o.Image})
	default:
		return nil, fmt.Errorf("model: unknown IRObject kind %q", o.Kind)
	}
}

func (o *IRObject) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind ObjectKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case KindText:
		var t TextObject
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		o.Kind, o.Text, o.Image = KindText, &t, nil
	case KindImage:
		var i ImageObject
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		o.Kind, o.Image, o.Text = KindImage, &i, nil
	default:
		return fmt.Errorf("model: unknown IRObject kind %q", head.Kind)
	}
	return nil
}

// PageIR is one page's worth of IR objects, in interpretation order.
type PageIR struct {
	Index     int        `json:"index"`
	WidthPt   float64    `json:"widthPt"`
	HeightPt  float64    `json:"heightPt"`
	Objects   []IRObject `json:"objects"`
}

// DocumentIR is the full client-facing tree for a document. The core only
// ever populates page 0.
type DocumentIR struct {
	Pages []PageIR `json:"pages"`
}

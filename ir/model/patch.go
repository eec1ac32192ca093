package model

import (
	"encoding/json"
	"fmt"
)

// TargetKind distinguishes which object family a Transform addresses.
type TargetKind string

const (
	TargetText  TargetKind = "text"
	TargetImage TargetKind = "image"
)

// Target names one object within one page.
type Target struct {
	Page int    `json:"page"`
	ID   string `json:"id"`
}

// OpKind discriminates the PatchOp wire variant.
type OpKind string

const (
	OpTransform OpKind = "transform"
	OpEditText  OpKind = "editText"
	OpSetStyle  OpKind = "setStyle"
)

// Transform moves an object by left-multiplying its current matrix by
// DeltaMatrixPt.
type Transform struct {
	Target        Target     `json:"target"`
	DeltaMatrixPt Matrix6    `json:"deltaMatrixPt"`
	Kind          TargetKind `json:"kind"`
}

// EditText retexts an object. The schema is accepted; the core has no font
// pipeline and always rejects it as unsupported.
type EditText struct {
	Target   Target  `json:"target"`
	Text     string  `json:"text"`
	FontPref *string `json:"fontPref,omitempty"`
}

// SetStyle restyles an object. Same unimplemented treatment as EditText.
type SetStyle struct {
	Target Target          `json:"target"`
	Style  json.RawMessage `json:"style"`
}

// PatchOp is one entry in a patch batch. Exactly one of Transform/EditText/
// SetStyle is set, matching Op.
type PatchOp struct {
	Op        OpKind
	Transform *Transform
	EditText  *EditText
	SetStyle  *SetStyle
}

func (p PatchOp) MarshalJSON() ([]byte, error) {
	switch p.Op {
	case OpTransform:
		if p.Transform == nil {
			return nil, fmt.Errorf("model: transform op missing payload")
		}
		return json.Marshal(struct {
			Op OpKind `json:"op"`
			Transform
		}{Op: OpTransform, Transform: *p.Transform})
	case OpEditText:
		if p.EditText == nil {
			return nil, fmt.Errorf("model: editText op missing payload")
		}
		return json.Marshal(struct {
			Op OpKind `json:"op"`
			EditText
		}{Op: OpEditText, EditText: *p.EditText})
	case OpSetStyle:
		if p.SetStyle == nil {
			return nil, fmt.Errorf("model: setStyle op missing payload")
		}
		return json.Marshal(struct {
			Op OpKind `json:"op"`
			SetStyle
		}{Op: OpSetStyle, SetStyle: *p.SetStyle})
	default:
		return nil, fmt.Errorf("model: unknown patch op %q", p.Op)
	}
}

func (p *PatchOp) UnmarshalJSON(data []byte) error {
	var head struct {
		Op OpKind `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Op {
	case OpTransform:
		var t Transform
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*p = PatchOp{Op: OpTransform, Transform: &t}
	case OpEditText:
		var t EditText
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*p = PatchOp{Op: OpEditText, EditText: &t}
	case OpSetStyle:
		var t SetStyle
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*p = PatchOp{Op: OpSetStyle, SetStyle: &t}
	default:
		return fmt.Errorf("model: unknown patch op %q", head.Op)
	}
	return nil
}

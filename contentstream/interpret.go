package contentstream

import (
	"strconv"

	"github.com/inkwell-dev/pdfedit/coords"
	"github.com/inkwell-dev/pdfedit/ir/model"
)

// Locator pins a cache entry to the token that produced it, so a later
// splice can find the exact bytes to rewrite.
type Locator struct {
	TokenIndex int
	ByteRange  ByteRange
}

// TextCacheEntry remembers how to rewrite one text object's matrix.
type TextCacheEntry struct {
	Tm             coords.Matrix6
	TmToken        *Locator // nil: no Tm token exists yet, insert one
	BtRange        ByteRange
	InsertionPoint int // byte offset just past BT, used when TmToken is nil
}

// ImageCacheEntry remembers how to rewrite one image object's matrix.
type ImageCacheEntry struct {
	Cm      coords.Matrix6
	CmToken *Locator // nil: no cm operator set this image's matrix
	XObject string
}

// Cache is the ephemeral, never-serialized side table produced alongside a
// PageIR. It is rebuilt from scratch every time a content stream is
// (re-)interpreted.
type Cache struct {
	Text  map[string]TextCacheEntry
	Image map[string]ImageCacheEntry
}

func newCache() Cache {
	return Cache{Text: map[string]TextCacheEntry{}, Image: map[string]ImageCacheEntry{}}
}

// Result is the outcome of interpreting one page's token stream.
type Result struct {
	Objects []model.IRObject
	Cache   Cache
}

type graphicsState struct {
	ctm    coords.Matrix6
	lastCM *cmRecord
}

func (g graphicsState) clone() graphicsState { return g }

type cmRecord struct {
	locator Locator
	matrix  coords.Matrix6
}

type textState struct {
	active      bool
	btRange     ByteRange
	tmMatrix    *coords.Matrix6
	tmToken     *Locator
	baseMatrix  *coords.Matrix6
	translation coords.Matrix6
	fontResName string
	fontSize    float64
	leading     float64
	leadingSet  bool // true once TD has set an explicit leading
	glyphCount  int
}

func newTextState(btRange ByteRange) textState {
	return textState{
		active:      true,
		btRange:     btRange,
		translation: coords.Identity(),
		fontSize:    12,
	}
}

// Interpret replays tokens against graphics/text state, producing IR objects
// in interpretation order and the byte-anchor cache that lets later patches
// find their bytes. streamObjNum identifies the content-stream object the
// tokens were lexed from, for the bt_span wire field. imageXObjectNames is
// the set of resource names ("/Im0", ...) that resolve to Image-subtype
// XObjects in the page's resources.
func Interpret(tokens []Token, streamObjNum int, imageXObjectNames map[string]bool) Result {
	var objects []model.IRObject
	cache := newCache()

	gs := graphicsState{ctm: coords.Identity()}
	var stack []graphicsState
	var ts textState
	textCounter := 0
	imageCounter := 0

	for i, tok := range tokens {
		switch tok.Operator {
		case "q":
			stack = append(stack, gs.clone())
		case "Q":
			if n := len(stack); n > 0 {
				gs = stack[n-1]
				stack = stack[:n-1]
			} else {
				gs = graphicsState{ctm: coords.Identity()}
			}
		case "cm":
			if m, ok := matrixFromOperands(tok.Operands); ok {
				gs.ctm = gs.ctm.Multiply(m)
				gs.lastCM = &cmRecord{
					locator: Locator{TokenIndex: i, ByteRange: tok.ByteRange},
					matrix:  gs.ctm,
				}
			}
		case "BT":
			ts = newTextState(tok.ByteRange)
		case "ET":
			if obj, entry, ok := finishText(&ts, tok.ByteRange, streamObjNum, textCounter); ok {
				objects = append(objects, model.NewTextIRObject(obj))
				cache.Text[obj.ID] = entry
				textCounter++
			}
			ts = textState{}
		case "Tf":
			setFont(&ts, tok.Operands)
		case "Tm":
			if m, ok := matrixFromOperands(tok.Operands); ok {
				ts.tmMatrix = &m
				ts.baseMatrix = &m
				ts.translation = m
				loc := Locator{TokenIndex: i, ByteRange: tok.ByteRange}
				ts.tmToken = &loc
			}
		case "Td":
			translate(&ts, tok.Operands)
		case "TD":
			translateAndSetLeading(&ts, tok.Operands)
		case "T*":
			lineFeed(&ts)
		case "Tj", "TJ":
			touch(&ts, tok, textCounter)
		case "Do":
			if name, ok := firstName(tok.Operands); ok && imageXObjectNames[name] {
				obj, entry := captureImage(name, gs, imageCounter)
				objects = append(objects, model.NewImageIRObject(obj))
				cache.Image[obj.ID] = entry
				imageCounter++
			}
		}
	}

	return Result{Objects: objects, Cache: cache}
}

func setFont(ts *textState, operands []Operand) {
	if len(operands) < 2 {
		return
	}
	if operands[0].Kind == OperandName {
		ts.fontResName = trimLeadingSlash(operands[0].Name)
	}
	if operands[1].Kind == OperandNumber {
		ts.fontSize = operands[1].Number
	}
}

func translate(ts *textState, operands []Operand) {
	if len(operands) < 2 || operands[0].Kind != OperandNumber || operands[1].Kind != OperandNumber {
		return
	}
	ts.translation = ts.translation.Multiply(coords.Translate(operands[0].Number, operands[1].Number))
	if ts.baseMatrix == nil {
		m := ts.translation
		ts.baseMatrix = &m
	}
}

// translateAndSetLeading handles TD: move like Td, then set the leading T*
// uses to -ty, per the operator's definition (equivalent to "-ty TL tx ty Td").
func translateAndSetLeading(ts *textState, operands []Operand) {
	if len(operands) < 2 || operands[0].Kind != OperandNumber || operands[1].Kind != OperandNumber {
		return
	}
	ts.leading = -operands[1].Number
	ts.leadingSet = true
	translate(ts, operands)
}

func lineFeed(ts *textState) {
	leading := ts.leading
	if !ts.leadingSet {
		leading = ts.fontSize * 1.2
	}
	ts.translation = ts.translation.Multiply(coords.Translate(0, -leading))
	if ts.baseMatrix == nil {
		m := ts.translation
		ts.baseMatrix = &m
	}
}

func touch(ts *textState, tok Token, counter int) {
	if !ts.active {
		return
	}
	ts.glyphCount += glyphCount(tok)
	if ts.baseMatrix == nil {
		if ts.tmMatrix != nil {
			m := *ts.tmMatrix
			ts.baseMatrix = &m
		} else {
			m := ts.translation
			ts.baseMatrix = &m
		}
	}
	if ts.fontResName == "" {
		ts.fontResName = "F" + strconv.Itoa(counter)
	}
}

func finishText(ts *textState, etRange ByteRange, streamObjNum int, counter int) (model.TextObject, TextCacheEntry, bool) {
	if !ts.active || ts.glyphCount == 0 {
		return model.TextObject{}, TextCacheEntry{}, false
	}
	matrix := coords.Identity()
	if ts.baseMatrix != nil {
		matrix = *ts.baseMatrix
	}
	fontName := ts.fontResName
	if fontName == "" {
		fontName = "F0"
	}
	id := "t:" + strconv.Itoa(counter)
	obj := model.TextObject{
		ID: id,
		Tm: matrix,
		Font: model.FontInfo{
			ResName: fontName,
			Size:    ts.fontSize,
		},
		BtSpan: model.Span{
			StreamObj: streamObjNum,
			Start:     ts.btRange.Start,
			End:       etRange.End,
		},
		BBox: approximateTextBBox(matrix, ts.fontSize, ts.glyphCount),
	}
	entry := TextCacheEntry{
		Tm:             matrix,
		TmToken:        ts.tmToken,
		BtRange:        ts.btRange,
		InsertionPoint: ts.btRange.End,
	}
	return obj, entry, true
}

func captureImage(name string, gs graphicsState, counter int) (model.ImageObject, ImageCacheEntry) {
	matrix := coords.Identity()
	var locator *Locator
	if gs.lastCM != nil {
		matrix = gs.lastCM.matrix
		loc := gs.lastCM.locator
		locator = &loc
	}
	id := "img:" + strconv.Itoa(counter)
	xObjectName := trimLeadingSlash(name)
	obj := model.ImageObject{
		ID:      id,
		XObject: xObjectName,
		Cm:      matrix,
		BBox:    approximateImageBBox(matrix),
	}
	entry := ImageCacheEntry{Cm: matrix, CmToken: locator, XObject: xObjectName}
	return obj, entry
}

func glyphCount(tok Token) int {
	switch tok.Operator {
	case "Tj":
		n := 0
		for _, op := range tok.Operands {
			if op.Kind == OperandString {
				n += len(op.Str)
			}
		}
		return n
	case "TJ":
		n := 0
		for _, op := range tok.Operands {
			if op.Kind != OperandArray {
				continue
			}
			for _, item := range op.Array {
				if item.Kind == OperandString {
					n += len(item.Str)
				}
			}
		}
		return n
	default:
		return 0
	}
}

func matrixFromOperands(operands []Operand) (coords.Matrix6, bool) {
	if len(operands) < 6 {
		return coords.Matrix6{}, false
	}
	var m coords.Matrix6
	for i := 0; i < 6; i++ {
		if operands[i].Kind != OperandNumber {
			return coords.Matrix6{}, false
		}
		m[i] = operands[i].Number
	}
	return m, true
}

func firstName(operands []Operand) (string, bool) {
	if len(operands) == 0 || operands[0].Kind != OperandName {
		return "", false
	}
	return operands[0].Name, true
}

func approximateTextBBox(m coords.Matrix6, fontSize float64, glyphs int) model.BBox {
	width := fontSize * float64(glyphs) * 0.6
	height := fontSize * 1.2
	return model.BBox{m[4], m[5], m[4] + width, m[5] + height}
}

func approximateImageBBox(m coords.Matrix6) model.BBox {
	width := abs(m[0])
	height := abs(m[3])
	return model.BBox{m[4], m[5], m[4] + width, m[5] + height}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}


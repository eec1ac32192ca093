package writer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/inkwell-dev/pdfedit/ir/raw"
)

type incrementalWriter struct {
	interceptors []Interceptor
}

// Write implements Writer by appending a single new revision: a new
// content-stream object, a rewritten page dictionary pointing at it, a fresh
// xref section covering only those two object numbers, and a trailer
// chained to the previous one via /Prev. original is copied through
// unchanged; nothing before len(original) in the output ever differs from it.
func (w *incrementalWriter) Write(ctx context.Context, original []byte, doc *raw.Document, pageRef raw.ObjectRef, newContent []byte, out WriterAt, cfg Config) error {
	pageObj, ok := doc.Objects[pageRef]
	if !ok {
		return fmt.Errorf("writer: page object %s not found in document", pageRef)
	}
	pageDict, ok := pageObj.(*raw.DictObj)
	if !ok {
		return fmt.Errorf("writer: page object %s is not a dictionary", pageRef)
	}

	prevXref, err := findLastStartXref(original)
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}

	maxID := pageRef.Num
	for ref := range doc.Objects {
		if ref.Num > maxID {
			maxID = ref.Num
		}
	}
	streamRef := raw.ObjectRef{Num: maxID + 1, Gen: 0}

	newPageDict := raw.Dict()
	for _, k := range pageDict.Keys() {
		if k.Value() == "Contents" {
			continue
		}
		v, _ := pageDict.Get(k)
		newPageDict.Set(k, v)
	}
	newPageDict.Set(raw.NameLiteral("Contents"), raw.Ref(streamRef.Num, streamRef.Gen))

	streamDict := raw.Dict()
	streamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(newContent))))
	streamObj := raw.NewStream(streamDict, newContent)

	if err := w.notifyBefore(ctx, streamObj); err != nil {
		return err
	}

	var body bytes.Buffer
	body.Write(original)
	if len(original) > 0 && original[len(original)-1] != '\n' {
		body.WriteByte('\n')
	}

	offsets := map[int]int64{}

	offsets[streamRef.Num] = int64(body.Len())
	streamBytes, err := w.SerializeObject(streamRef, streamObj)
	if err != nil {
		return fmt.Errorf("writer: serialize content stream: %w", err)
	}
	body.Write(streamBytes)
	if err := w.notifyAfter(ctx, streamObj, int64(len(streamBytes))); err != nil {
		return err
	}

	offsets[pageRef.Num] = int64(body.Len())
	pageBytes, err := w.SerializeObject(pageRef, newPageDict)
	if err != nil {
		return fmt.Errorf("writer: serialize page dictionary: %w", err)
	}
	body.Write(pageBytes)

	xrefOffset := int64(body.Len())
	writeXRefSection(&body, offsets)

	root, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return fmt.Errorf("writer: original trailer has no /Root entry")
	}

	fmt.Fprintf(&body, "trailer\n<< /Size %d /Root %s /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		maxID+2, string(serializePrimitive(root)), prevXref, xrefOffset)

	if _, err := out.Write(body.Bytes()); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	return nil
}

func (w *incrementalWriter) notifyBefore(ctx context.Context, obj raw.Object) error {
	for _, ic := range w.interceptors {
		if err := ic.BeforeWrite(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (w *incrementalWriter) notifyAfter(ctx context.Context, obj raw.Object, n int64) error {
	for _, ic := range w.interceptors {
		if err := ic.AfterWrite(ctx, obj, n); err != nil {
			return err
		}
	}
	return nil
}

// writeXRefSection emits a classic xref table covering exactly the object
// numbers present in offsets, grouped into contiguous subsections.
func writeXRefSection(buf *bytes.Buffer, offsets map[int]int64) {
	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	buf.WriteString("xref\n")
	i := 0
	for i < len(nums) {
		start := i
		for i+1 < len(nums) && nums[i+1] == nums[i]+1 {
			i++
		}
		run := nums[start : i+1]
		fmt.Fprintf(buf, "%d %d\n", run[0], len(run))
		for _, n := range run {
			fmt.Fprintf(buf, "%010d %05d %s \n", offsets[n], 0, "n")
		}
		i++
	}
}

// findLastStartXref locates the byte offset recorded by the final
// "startxref" keyword in buf, mirroring how the xref resolver itself locates
// the table it parses.
func findLastStartXref(buf []byte) (int64, error) {
	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("no startxref keyword found in original document")
	}
	rest := buf[idx+len("startxref"):]
	start := 0
	for start < len(rest) && isPDFSpace(rest[start]) {
		start++
	}
	end := start
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == start {
		return 0, fmt.Errorf("malformed startxref in original document")
	}
	n, err := strconv.ParseInt(string(rest[start:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed startxref offset: %w", err)
	}
	return n, nil
}

func isPDFSpace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	default:
		return false
	}
}

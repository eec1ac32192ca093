package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/inkwell-dev/pdfedit/ir/raw"
)

// SerializeObject renders a single indirect object as "N G obj\n...\nendobj\n",
// sorting dictionary keys so output is deterministic across runs.
func (w *incrementalWriter) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	switch o := obj.(type) {
	case *raw.StreamObj:
		buf.Write(serializeDict(o.Dict))
		buf.WriteString("\nstream\n")
		buf.Write(o.Data)
		buf.WriteString("\nendstream\n")
	case *raw.DictObj:
		buf.Write(serializeDict(o))
		buf.WriteString("\n")
	default:
		buf.Write(serializePrimitive(obj))
		buf.WriteString("\n")
	}
	buf.WriteString("endobj\n")
	return buf.Bytes(), nil
}

func serializeDict(d *raw.DictObj) []byte {
	var b bytes.Buffer
	b.WriteString("<<")
	keys := make([]string, 0, d.Len())
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("/" + k + " ")
		b.Write(serializePrimitive(d.KV[k]))
	}
	b.WriteString(">>")
	return b.Bytes()
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			return []byte(fmt.Sprintf("%d", v.Int()))
		}
		return []byte(fmt.Sprintf("%g", v.Float()))
	case raw.BoolObj:
		if v.Value() {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		return escapeLiteralString(v.Value())
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			item, _ := v.Get(i)
			b.Write(serializePrimitive(item))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		return serializeDict(v)
	case raw.RefObj:
		return []byte(v.R.String())
	default:
		return []byte("null")
	}
}

func escapeLiteralString(s []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

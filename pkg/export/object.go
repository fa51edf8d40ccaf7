package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Object is a string-keyed map that remembers insertion order. JSON, YAML
// and CBOR output keep that order.
type Object struct {
	keys  []string
	vals  []any
	index map[string]int
}

func NewObject() *Object { return &Object{index: map[string]int{}} }

func (o *Object) push(key string, v any) {
	if o.index == nil {
		o.index = map[string]int{}
	}
	o.index[key] = len(o.keys)
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

// Set appends key, or replaces its value when already present.
func (o *Object) Set(key string, v any) {
	if i, ok := o.index[key]; ok {
		o.vals[i] = v
		return
	}
	o.push(key, v)
}

// Add appends v under key. A key already present is suffixed with "#n",
// n being the first free occurrence number from 2 on.
func (o *Object) Add(key string, v any) {
	k := key
	for n := 2; o.Has(k); n++ {
		k = key + "#" + strconv.Itoa(n)
	}
	o.push(k, v)
}

func (o *Object) Get(key string) (any, bool) {
	if i, ok := o.index[key]; ok {
		return o.vals[i], true
	}
	return nil, false
}

func (o *Object) Has(key string) bool {
	_, ok := o.index[key]
	return ok
}

func (o *Object) Keys() []string { return o.keys }
func (o *Object) Len() int       { return len(o.keys) }

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Object) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, k := range o.keys {
		var key, val yaml.Node
		if err := key.Encode(k); err != nil {
			return nil, err
		}
		if err := val.Encode(o.vals[i]); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &key, &val)
	}
	return n, nil
}

var cborMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{ShortestFloat: cbor.ShortestFloatNone}.EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
	return em
}()

// MarshalCBOR writes a definite-length map in insertion order.
func (o *Object) MarshalCBOR() ([]byte, error) {
	buf := appendHead(nil, 5, uint64(len(o.keys)))
	for i, k := range o.keys {
		kb, err := cborMode.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := cborMode.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf = append(append(buf, kb...), vb...)
	}
	return buf, nil
}

// appendHead appends a CBOR initial byte and argument.
func appendHead(b []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(b, m|byte(n))
	case n <= 0xFF:
		return append(b, m|24, byte(n))
	case n <= 0xFFFF:
		return binary.BigEndian.AppendUint16(append(b, m|25), uint16(n))
	case n <= 0xFFFFFFFF:
		return binary.BigEndian.AppendUint32(append(b, m|26), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(b, m|27), n)
	}
}

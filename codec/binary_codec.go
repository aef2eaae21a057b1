package codec

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// BinaryCodec packs fixed-size values field by field with no padding, in the
// configured byte order. Struct payloads must use exported (or blank "_")
// fields so Decode can set them; Size reports -1 for any other struct.
type BinaryCodec struct {
	Order binary.ByteOrder
	typ   CodecType
}

var (
	LittleEndian = &BinaryCodec{Order: binary.LittleEndian, typ: CodecTypeLittleEndian}
	BigEndian    = &BinaryCodec{Order: binary.BigEndian, typ: CodecTypeBigEndian}
)

func (c *BinaryCodec) Size(v any) int {
	rv := reflect.Indirect(reflect.ValueOf(v))
	// binary.Size accepts slices, but their length is a runtime property
	if !rv.IsValid() || rv.Kind() == reflect.Slice || !settable(rv.Type()) {
		return -1
	}
	return binary.Size(rv.Interface())
}

// settable reports whether Decode can fill every field of t.
func settable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return settable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name != "_" && !f.IsExported() {
				return false
			}
			if !settable(f.Type) {
				return false
			}
		}
	}
	return true
}

func (c *BinaryCodec) Encode(dst []byte, v any) (int, error) {
	size := c.Size(v)
	if size < 0 {
		return 0, fmt.Errorf("BinaryCodec: %T is not fixed-size", v)
	}
	if len(dst) < size {
		return 0, fmt.Errorf("BinaryCodec: need %d bytes to encode %T, have %d", size, v, len(dst))
	}
	return binary.Encode(dst[:size], c.Order, v)
}

func (c *BinaryCodec) Decode(src []byte, v any) error {
	if reflect.ValueOf(v).Kind() != reflect.Pointer {
		return fmt.Errorf("BinaryCodec: v must be a pointer, got %T", v)
	}
	size := c.Size(v)
	if size < 0 {
		return fmt.Errorf("BinaryCodec: %T is not fixed-size", v)
	}
	if len(src) < size {
		return fmt.Errorf("BinaryCodec: need %d bytes to decode %T, have %d", size, v, len(src))
	}
	_, err := binary.Decode(src[:size], c.Order, v)
	return err
}

func (c *BinaryCodec) Type() CodecType {
	return c.typ
}

// Package codec serializes the fixed-size payloads of uRPC requests and replies.
//
// A fixed payload has a byte length fully determined by its Go type: integers,
// fixed-size arrays, and structs built from them. Slices, strings and maps are
// rejected because their size depends on runtime content.
package codec

type CodecType byte

const (
	CodecTypeLittleEndian CodecType = 0
	CodecTypeBigEndian    CodecType = 1
)

type Codec interface {
	// Size returns the encoded size of v, or -1 if v is not fixed-size.
	Size(v any) int
	// Encode writes v into dst and returns the number of bytes written.
	Encode(dst []byte, v any) (int, error)
	// Decode fills the value pointed to by v from src.
	Decode(src []byte, v any) error
	Type() CodecType
}

// GetCodec returns the codec for the given type. Unknown types fall back to little-endian,
// the native order of most microcontrollers on the other end of the link.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeBigEndian {
		return BigEndian
	}

	return LittleEndian
}

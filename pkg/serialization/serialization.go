// Package serialization encodes workflow snapshots for persistence and
// transport. A Codec handles the encoding itself; a Serializer wraps a codec
// with optional compression so stores can stay format-agnostic.
package serialization

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes a value to a byte payload.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Compression selects the compression applied around the codec payload.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Serializer is a codec plus compression pipeline.
type Serializer struct {
	codec       Codec
	compression Compression
}

// NewSerializer builds a serializer from a codec and compression choice.
func NewSerializer(codec Codec, compression Compression) *Serializer {
	return &Serializer{codec: codec, compression: compression}
}

// Default returns the serializer used when nothing is configured:
// MessagePack encoding under zstd compression.
func Default() *Serializer {
	return NewSerializer(NewMsgPackCodec(), CompressionZstd)
}

// Marshal encodes and compresses v.
func (s *Serializer) Marshal(v any) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode (%s): %w", s.codec.Name(), err)
	}
	data, err = s.compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress (%s): %w", s.compression, err)
	}
	return data, nil
}

// Unmarshal decompresses and decodes data into v.
func (s *Serializer) Unmarshal(data []byte, v any) error {
	data, err := s.decompress(data)
	if err != nil {
		return fmt.Errorf("decompress (%s): %w", s.compression, err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("decode (%s): %w", s.codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	switch s.compression {
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                    { return "json" }

type msgpackCodec struct{}

func (msgpackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (msgpackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) Name() string                    { return "msgpack" }

// NewJSONCodec returns the JSON codec. Its output matches the canvas wire
// format, so payloads stay readable and diffable.
func NewJSONCodec() Codec { return jsonCodec{} }

// NewMsgPackCodec returns the MessagePack codec.
func NewMsgPackCodec() Codec { return msgpackCodec{} }

// Package compress packs sequence columns and insertion shards.
//
// Columns of a genome position are highly redundant with the reference
// genome, so the codec can be primed with the reference as a raw zstd
// dictionary. The same reference must be used to read what was written.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// dictID tags frames written with a reference dictionary.
const dictID = 0x4c415053

// minDictLen is the smallest reference zstd accepts as raw dictionary content.
const minDictLen = 8

var ErrCorrupt = errors.New("compress: corrupt data")

// Codec is safe for concurrent use.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec builds a codec primed with reference. A nil or too short
// reference gives a plain zstd codec.
func NewCodec(reference []byte) (*Codec, error) {
	encOpts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedBetterCompression)}
	decOpts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if len(reference) >= minDictLen {
		encOpts = append(encOpts, zstd.WithEncoderDictRaw(dictID, reference))
		decOpts = append(decOpts, zstd.WithDecoderDictRaw(dictID, reference))
	}

	enc, err := zstd.NewWriter(nil, encOpts...)
	if err != nil {
		return nil, fmt.Errorf("compress: new encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress: new decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

func (c *Codec) Compress(src []byte) []byte {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/4+16))
}

func (c *Codec) CompressString(s string) []byte {
	return c.Compress([]byte(s))
}

func (c *Codec) Decompress(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

func (c *Codec) DecompressString(src []byte) (string, error) {
	b, err := c.Decompress(src)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

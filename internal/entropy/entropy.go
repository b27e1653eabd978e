// Package entropy wraps the dictionary-compressed zstd layer that sits on
// top of internal/codec's byte streams (spec §4.3). Every compressed frame
// is prefixed with the decoded size so a reader can preallocate before
// expanding, and with a dictionary id so an open store can tell a mismatched
// dictionary apart from a genuinely corrupt unit.
package entropy

import (
	"encoding/binary"
	"fmt"
	"sync"

	"tradedb/internal/dictionary"
	"tradedb/internal/xerrors"

	"github.com/klauspost/compress/zstd"
)

// frameHeaderLen is 1 byte dictionary id + 4 bytes little-endian decoded
// size, prefixed to every compressed payload.
const frameHeaderLen = 5

// Config controls the entropy layer's tunables (spec §4.3 "compression
// level is configurable").
type Config struct {
	Level zstd.EncoderLevel
}

// DefaultConfig maxes out compression, per spec §4.3's default.
func DefaultConfig() Config {
	return Config{Level: zstd.SpeedBestCompression}
}

// Codec compresses and decompresses unit blobs against one of the trained
// dictionaries. A Codec is safe for concurrent use; the underlying
// zstd encoders/decoders are pooled internally by klauspost/compress.
type Codec struct {
	mu       sync.Mutex
	encoders map[dictionary.Kind]*zstd.Encoder
	decoders map[dictionary.Kind]*zstd.Decoder
}

// New builds a Codec with encoders/decoders for both dictionary kinds
// pre-warmed, so the hot write/read path never pays dictionary-load cost.
// A zero Config.Level defaults to DefaultConfig's best-compression level.
func New(cfg Config) (*Codec, error) {
	if cfg.Level == 0 {
		cfg = DefaultConfig()
	}
	c := &Codec{
		encoders: make(map[dictionary.Kind]*zstd.Encoder),
		decoders: make(map[dictionary.Kind]*zstd.Decoder),
	}
	for _, kind := range []dictionary.Kind{dictionary.Candles, dictionary.Ticks} {
		// The dictionaries are raw codec output, not zstd-format dictionary
		// files, so they are registered as raw content under a non-zero id.
		dictID := uint32(kind) + 1
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderDictRaw(dictID, dictionary.Bytes(kind)),
			zstd.WithEncoderLevel(cfg.Level),
		)
		if err != nil {
			return nil, fmt.Errorf("entropy: New: build encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(dictID, dictionary.Bytes(kind)))
		if err != nil {
			return nil, fmt.Errorf("entropy: New: build decoder: %w", err)
		}
		c.encoders[kind] = enc
		c.decoders[kind] = dec
	}
	return c, nil
}

// Close releases the pooled decoders (the teacher's resource-cleanup
// convention — see libs/database/connection.go Close).
func (c *Codec) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dec := range c.decoders {
		dec.Close()
	}
}

// Compress wraps a codec-produced blob with the decoded-size-hint frame and
// returns the dictionary-compressed bytes.
func (c *Codec) Compress(kind dictionary.Kind, decoded []byte) ([]byte, error) {
	c.mu.Lock()
	enc, ok := c.encoders[kind]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("entropy: Compress: %w: unknown dictionary kind %d", xerrors.ErrInvalidConfig, kind)
	}

	header := make([]byte, frameHeaderLen)
	header[0] = byte(kind)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(decoded)))

	out := enc.EncodeAll(decoded, header)
	return out, nil
}

// Decompress strips the frame header, validates the dictionary id, and
// expands the payload back to its decoded size.
func (c *Codec) Decompress(kind dictionary.Kind, frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderLen {
		return nil, fmt.Errorf("entropy: Decompress: %w: frame too short (%d bytes)", xerrors.ErrCorrupt, len(frame))
	}
	gotKind := dictionary.Kind(frame[0])
	if gotKind != kind {
		return nil, fmt.Errorf("entropy: Decompress: %w: dictionary mismatch (want %d, got %d)", xerrors.ErrCorrupt, kind, gotKind)
	}
	decodedSize := binary.LittleEndian.Uint32(frame[1:frameHeaderLen])

	c.mu.Lock()
	dec, ok := c.decoders[kind]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("entropy: Decompress: %w: unknown dictionary kind %d", xerrors.ErrInvalidConfig, kind)
	}

	out := make([]byte, 0, decodedSize)
	out, err := dec.DecodeAll(frame[frameHeaderLen:], out)
	if err != nil {
		return nil, fmt.Errorf("entropy: Decompress: %w: %v", xerrors.ErrCorrupt, err)
	}
	if uint32(len(out)) != decodedSize {
		return nil, fmt.Errorf("entropy: Decompress: %w: size hint mismatch (want %d, got %d)", xerrors.ErrCorrupt, decodedSize, len(out))
	}
	return out, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a frame payload.
// The values are carried in frames; changing them breaks peers.
type Compression uint8

const (
	// CompressionNone sends payloads as they are.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression. Cheap enough to leave
	// on for binary payloads.
	CompressionLZ4 Compression = 1

	// CompressionZstd uses zstd at the default level. Better ratios on
	// text-heavy payloads such as JSON method channels.
	CompressionZstd Compression = 2
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string
// means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", name)
	}
}

// errIncompressible means compression would not shrink the payload.
var errIncompressible = errors.New("payload is incompressible")

// zstd.Encoder is safe for concurrent use. Decoders are created per
// payload so each one carries that payload's limit.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transport: zstd encoder initialization failed: " + err.Error())
	}
}

// compress returns payload compressed with algorithm, or
// errIncompressible when the result would not be smaller.
func compress(payload []byte, algorithm Compression) ([]byte, error) {
	switch algorithm {
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(payload)))
		written, err := lz4.CompressBlock(payload, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(payload) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(payload, nil)
		if len(compressed) >= len(payload) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression %s", algorithm)
	}
}

// decompress reverses compress. size is the original payload length
// and must not exceed limit.
func decompress(compressed []byte, algorithm Compression, size, limit int) ([]byte, error) {
	if size < 0 || size > limit {
		return nil, fmt.Errorf("decompressed size %d exceeds limit %d", size, limit)
	}
	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil

	case CompressionZstd:
		return zstdDecompress(compressed, size, limit)

	default:
		return nil, fmt.Errorf("unsupported compression %s", algorithm)
	}
}

// zstdDecompress streams compressed through a decoder whose window and
// output are capped at limit, reading at most size+1 bytes. A payload
// that inflates past its declared size fails after size+1 bytes rather
// than after the whole payload is expanded.
func zstdDecompress(compressed []byte, size, limit int) ([]byte, error) {
	bound := max(uint64(limit), zstd.MinWindowSize)
	decoder, err := zstd.NewReader(bytes.NewReader(compressed),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(bound),
		zstd.WithDecoderMaxMemory(bound),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	defer decoder.Close()

	result := make([]byte, size)
	if read, err := io.ReadFull(decoder, result); err != nil {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d: %w", read, size, err)
	}
	var extra [1]byte
	switch read, err := io.ReadFull(decoder, extra[:]); {
	case read > 0:
		return nil, fmt.Errorf("zstd decompress: more than the expected %d bytes", size)
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return result, nil
}

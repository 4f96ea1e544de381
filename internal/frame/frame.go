package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/nearlsh/codec"
)

// Version is the current frame format version.
const Version uint8 = 1

var magic = [4]byte{'N', 'L', 'S', 'H'}

var (
	// ErrCorrupt is returned when a frame is truncated or fails its checksum.
	ErrCorrupt = errors.New("corrupt frame")
	// ErrIncompatibleFormat is returned for unknown versions, codecs or
	// compression types.
	ErrIncompatibleFormat = errors.New("incompatible frame format")
)

// Compression selects the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, good for cold snapshots).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// ParseCompression resolves a compression by name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: compression %q", ErrIncompatibleFormat, name)
	}
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode marshals v with c (codec.Default if nil) and wraps it in a frame.
func Encode(c codec.Codec, comp Compression, v any) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frame: marshal with %s: %w", c.Name(), err)
	}

	stored, err := compress(payload, comp)
	if err != nil {
		return nil, err
	}
	storedSize := uint32(len(stored))
	if stored == nil {
		stored = payload
		storedSize = 0
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("%w: codec name too long", ErrIncompatibleFormat)
	}

	out := make([]byte, 0, 4+3+len(name)+12+len(stored))
	out = append(out, magic[:]...)
	out = append(out, Version, uint8(comp), uint8(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = binary.LittleEndian.AppendUint32(out, storedSize)
	out = binary.LittleEndian.AppendUint32(out, crc32.Checksum(payload, crc32cTable))
	out = append(out, stored...)
	return out, nil
}

// Decode validates a frame and unmarshals its payload into v using the codec
// recorded in the header.
func Decode(data []byte, v any) error {
	c, payload, err := open(data)
	if err != nil {
		return err
	}
	if err := c.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("frame: unmarshal with %s: %w", c.Name(), err)
	}
	return nil
}

func open(data []byte) (codec.Codec, []byte, error) {
	if len(data) < 7 || [4]byte(data[:4]) != magic {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if data[4] != Version {
		return nil, nil, fmt.Errorf("%w: version %d", ErrIncompatibleFormat, data[4])
	}
	comp := Compression(data[5])
	nameLen := int(data[6])
	off := 7
	if len(data) < off+nameLen+12 {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	name := string(data[off : off+nameLen])
	off += nameLen

	c, ok := codec.ByName(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: codec %q", ErrIncompatibleFormat, name)
	}

	rawSize := binary.LittleEndian.Uint32(data[off:])
	storedSize := binary.LittleEndian.Uint32(data[off+4:])
	sum := binary.LittleEndian.Uint32(data[off+8:])
	body := data[off+12:]

	var payload []byte
	if storedSize == 0 {
		if uint32(len(body)) != rawSize {
			return nil, nil, fmt.Errorf("%w: payload size", ErrCorrupt)
		}
		payload = body
	} else {
		if uint32(len(body)) != storedSize {
			return nil, nil, fmt.Errorf("%w: payload size", ErrCorrupt)
		}
		var err error
		payload, err = decompress(body, comp, rawSize)
		if err != nil {
			return nil, nil, err
		}
	}

	if crc32.Checksum(payload, crc32cTable) != sum {
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return c, payload, nil
}

// compress returns nil when the payload should be stored raw.
func compress(data []byte, comp Compression) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var out []byte
	switch comp {
	case CompressionNone:
		return nil, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("frame: lz4: %w", err)
		}
		out = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrIncompatibleFormat, comp)
	}

	// Not worth it below a 10% saving.
	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return nil, nil
	}
	return out, nil
}

func decompress(body []byte, comp Compression, rawSize uint32) ([]byte, error) {
	result := make([]byte, rawSize)
	switch comp {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrIncompatibleFormat, comp)
	}
}

// cache/codec.go
package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
)

// Stored values are framed as [tag][created_at unix ms, 8 bytes BE][body].
const (
	tagRaw  byte = 0x00
	tagGzip byte = 0x01

	headerSize = 9
)

// DefaultCompressionThreshold is the payload size above which values are gzip'd.
const DefaultCompressionThreshold = 1024

type frame struct {
	body       []byte
	createdAt  time.Time
	compressed bool
}

// encodeFrame compresses payload when it is larger than threshold and the
// compressed form is actually smaller.
func encodeFrame(payload []byte, createdAt time.Time, threshold int) ([]byte, bool, error) {
	tag, body := tagRaw, payload
	if len(payload) > threshold {
		zipped, err := gzipBytes(payload)
		if err != nil {
			return nil, false, err
		}
		if len(zipped) < len(payload) {
			tag, body = tagGzip, zipped
		}
	}

	out := make([]byte, headerSize+len(body))
	out[0] = tag
	binary.BigEndian.PutUint64(out[1:headerSize], uint64(createdAt.UnixMilli()))
	copy(out[headerSize:], body)
	return out, tag == tagGzip, nil
}

// decodeFrame reads a tagged value. Values without a recognised tag predate
// the framing and are sniffed instead.
func decodeFrame(stored []byte) (frame, error) {
	if len(stored) >= headerSize && (stored[0] == tagRaw || stored[0] == tagGzip) {
		createdAt := time.UnixMilli(int64(binary.BigEndian.Uint64(stored[1:headerSize])))
		body := stored[headerSize:]
		if stored[0] == tagRaw {
			return frame{body: body, createdAt: createdAt}, nil
		}
		plain, err := gunzipBytes(body)
		if err != nil {
			return frame{}, fmt.Errorf("%w: %v", cache_errors.ErrCorruptPayload, err)
		}
		return frame{body: plain, createdAt: createdAt, compressed: true}, nil
	}
	return sniffLegacy(stored)
}

// sniffLegacy tries gzip first. A structural failure (no gzip header) means
// the bytes were stored raw; a failure past a valid header means a corrupt
// compressed payload.
func sniffLegacy(stored []byte) (frame, error) {
	zr, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		if errors.Is(err, gzip.ErrHeader) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return frame{body: stored}, nil
		}
		return frame{}, fmt.Errorf("%w: %v", cache_errors.ErrCorruptPayload, err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", cache_errors.ErrCorruptPayload, err)
	}
	return frame{body: plain, compressed: true}, nil
}

func gzipBytes(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

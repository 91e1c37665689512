package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
)

func TestFrameRoundTrip(t *testing.T) {
	createdAt := time.UnixMilli(1_700_000_000_123)
	tests := []struct {
		name           string
		payload        []byte
		wantCompressed bool
	}{
		{name: "empty", payload: []byte{}},
		{name: "small json", payload: []byte(`{"score":75}`)},
		{name: "at threshold", payload: bytes.Repeat([]byte("a"), DefaultCompressionThreshold)},
		{name: "above threshold", payload: bytes.Repeat([]byte("a"), DefaultCompressionThreshold+1), wantCompressed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, compressed, err := encodeFrame(tt.payload, createdAt, DefaultCompressionThreshold)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompressed, compressed)

			f, err := decodeFrame(stored)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.payload, f.body))
			assert.Equal(t, tt.wantCompressed, f.compressed)
			assert.True(t, createdAt.Equal(f.createdAt))
		})
	}
}

func TestDecodeFrameCorruptGzip(t *testing.T) {
	stored, compressed, err := encodeFrame(bytes.Repeat([]byte("score"), 1000), time.Now(), 10)
	require.NoError(t, err)
	require.True(t, compressed)

	truncated := stored[:len(stored)/2]
	_, err = decodeFrame(truncated)
	assert.ErrorIs(t, err, cache_errors.ErrCorruptPayload)
}

func TestMemoryUsed(t *testing.T) {
	info := map[string]map[string]string{
		"Memory": {"used_memory": "1048576", "used_memory_human": "1.00M"},
	}
	assert.EqualValues(t, 1048576, memoryUsed(info))
	assert.EqualValues(t, 0, memoryUsed(map[string]map[string]string{}))
	assert.EqualValues(t, 0, memoryUsed(nil))
}

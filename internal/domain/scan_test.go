package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeScan(t *testing.T) {
	t.Run("seconds timestamp is normalized", func(t *testing.T) {
		payload, err := msgpack.Marshal(map[string]any{
			"xlocs":     []float64{-97.5, -97.4},
			"ylocs":     []float64{35.3, 35.4},
			"data":      []float64{12.5, 40},
			"timestamp": 1714144200,
		})
		require.NoError(t, err)

		scan, err := DecodeScan(payload)
		require.NoError(t, err)

		want := RadarScan{
			Xlocs:     []float64{-97.5, -97.4},
			Ylocs:     []float64{35.3, 35.4},
			Data:      []float64{12.5, 40},
			Timestamp: 1714144200000,
		}
		if diff := cmp.Diff(want, scan); diff != "" {
			t.Fatalf("decoded scan mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC), scan.Time())
	})

	t.Run("milliseconds timestamp is kept", func(t *testing.T) {
		payload, err := EncodeScan(RadarScan{Data: []float64{1}, Timestamp: 1714144200000})
		require.NoError(t, err)

		scan, err := DecodeScan(payload)
		require.NoError(t, err)
		assert.Equal(t, int64(1714144200000), scan.Timestamp)
	})

	t.Run("integer samples decode as floats", func(t *testing.T) {
		payload, err := msgpack.Marshal(map[string]any{
			"data":      []int{5, 10},
			"timestamp": 100,
		})
		require.NoError(t, err)

		scan, err := DecodeScan(payload)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 10}, scan.Data)
	})

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := DecodeScan([]byte{0xc1, 0x00, 0xff})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDecode))

		var decErr *DecodeError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := DecodeScan(nil)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("wrong shape", func(t *testing.T) {
		payload, err := msgpack.Marshal([]string{"not", "a", "scan"})
		require.NoError(t, err)

		_, err = DecodeScan(payload)
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, int64(100_000), NormalizeTimestamp(100))
	assert.Equal(t, int64(1714144200000), NormalizeTimestamp(1714144200))
	assert.Equal(t, int64(1714144200000), NormalizeTimestamp(1714144200000))
	assert.Equal(t, int64(0), NormalizeTimestamp(0))
}

func TestFetchError(t *testing.T) {
	err := &FetchError{Resource: ResourceScan, Station: "KTLX", Sweep: 2, StatusCode: 404}
	assert.Equal(t, "fetch scan for KTLX sweep 2: status 404", err.Error())
	assert.ErrorIs(t, err, ErrFetch)
	assert.NotErrorIs(t, err, ErrDecode)

	cause := errors.New("connection refused")
	wrapped := &FetchError{Resource: ResourceMetadata, Station: "KTLX", Err: cause}
	assert.Equal(t, "fetch metadata for KTLX: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int, from, to float64) ([]float64, []float64) {
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = from + (to-from)*float64(i)/float64(n-1)
		volumes[i] = 1_000_000 + float64(i)
	}
	return closes, volumes
}

func TestBuildStartsAtOffset(t *testing.T) {
	closes, volumes := linearSeries(100, 100, 150)
	rows := Build(closes, volumes, Options{StartOffset: DefaultStartOffset})

	require.Len(t, rows, 75)
	first := rows[0]
	require.Len(t, first, NumFeatures)
	assert.Equal(t, closes[25], first[ColClose])
	assert.Equal(t, volumes[25], first[ColVolume])

	// a rising line keeps moving averages below price
	assert.Less(t, first[ColSMA5Ratio], 1.0)
	assert.Less(t, first[ColSMA20Ratio], first[ColSMA5Ratio])
	assert.Equal(t, 1.0, first[ColRSI])
	assert.Greater(t, first[ColMACD], 0.0)
}

func TestBuildCapsToMostRecent(t *testing.T) {
	closes, volumes := linearSeries(400, 50, 80)
	rows := Build(closes, volumes, Options{StartOffset: DefaultStartOffset, MaxPoints: 250})

	require.Len(t, rows, 250)
	assert.Equal(t, closes[len(closes)-1], rows[len(rows)-1][ColClose])
	assert.Equal(t, closes[len(closes)-250], rows[0][ColClose])
}

func TestBuildSkipsUndefinedAverages(t *testing.T) {
	closes, volumes := linearSeries(30, 10, 20)
	rows := Build(closes, volumes, Options{StartOffset: 0})
	// sma20 is first defined at index 19
	require.Len(t, rows, 11)
	assert.Equal(t, closes[19], rows[0][ColClose])
}

func TestBuildSkipsZeroClose(t *testing.T) {
	closes, volumes := linearSeries(40, 10, 20)
	closes[30] = 0
	rows := Build(closes, volumes, Options{StartOffset: DefaultStartOffset})
	assert.Len(t, rows, 14)
	for _, r := range rows {
		assert.NotZero(t, r[ColClose])
	}
}

func TestBuildTooShort(t *testing.T) {
	closes, volumes := linearSeries(20, 10, 20)
	assert.Empty(t, Build(closes, volumes, Options{StartOffset: DefaultStartOffset}))
}

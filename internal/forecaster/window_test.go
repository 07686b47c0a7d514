package forecaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_PushEvictsOldest(t *testing.T) {
	w := newWindow(3)
	for i := 1; i <= 5; i++ {
		w.Push(entry{Value: float64(i)})
	}

	require.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Trailing(3))
	assert.Equal(t, []float64{4, 5}, w.Trailing(2))

	newest, ok := w.Back(1)
	require.True(t, ok)
	assert.Equal(t, 5.0, newest.Value)

	oldest, ok := w.Back(3)
	require.True(t, ok)
	assert.Equal(t, 3.0, oldest.Value)

	_, ok = w.Back(4)
	assert.False(t, ok)
	_, ok = w.Back(0)
	assert.False(t, ok)
}

func TestWindow_PartiallyFilled(t *testing.T) {
	w := newWindow(4)
	w.Push(entry{Value: 1})
	w.Push(entry{Value: 2})

	assert.Equal(t, 2, w.Len())
	assert.Equal(t, []float64{1, 2}, w.Trailing(10))

	entries := w.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1.0, entries[0].Value)
}

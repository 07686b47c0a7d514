package forecaster

import (
	"time"
)

// entry is one slot of the rolling window. Features is the vector the
// model saw for that date (nil when unknown); synthetic entries are forecasts.
type entry struct {
	Date      time.Time
	Value     float64
	Features  []float64
	Synthetic bool
}

// window is a fixed-capacity ring buffer: pushing into a full window
// evicts the oldest entry, so the size never exceeds capacity.
type window struct {
	buf  []entry
	head int // index of the oldest entry
	size int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]entry, capacity)}
}

func (w *window) Len() int { return w.size }

func (w *window) Push(e entry) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = e
		w.size++
		return
	}
	w.buf[w.head] = e
	w.head = (w.head + 1) % len(w.buf)
}

// Back returns the entry k steps back from the end (Back(1) is the newest)
func (w *window) Back(k int) (entry, bool) {
	if k < 1 || k > w.size {
		return entry{}, false
	}
	return w.buf[(w.head+w.size-k)%len(w.buf)], true
}

// Trailing returns the values of the newest n entries, oldest first
func (w *window) Trailing(n int) []float64 {
	if n > w.size {
		n = w.size
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		e, _ := w.Back(n - i)
		out[i] = e.Value
	}
	return out
}

// Entries returns every entry, oldest first
func (w *window) Entries() []entry {
	out := make([]entry, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

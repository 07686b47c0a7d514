package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory Remote
type fakeRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	sets int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string][]byte)}
}

func (f *fakeRemote) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeRemote) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.sets++
	return nil
}

func (f *fakeRemote) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func countingLoader(calls *int, value interface{}, cacheable bool) Loader {
	return func(context.Context) (interface{}, bool, error) {
		*calls++
		return value, cacheable, nil
	}
}

func TestTiered_ReadThrough(t *testing.T) {
	remote := newFakeRemote()
	c, err := NewTiered(8, time.Minute, remote, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	calls := 0
	load := countingLoader(&calls, []string{"a", "b"}, true)

	var got []string
	require.NoError(t, c.Fetch(ctx, "businesses", &got, load))
	assert.Equal(t, []string{"a", "b"}, got)

	got = nil
	require.NoError(t, c.Fetch(ctx, "businesses", &got, load))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, remote.sets)
}

func TestTiered_RemoteHitFillsLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.data["k"] = []byte(`[1,2,3]`)

	c, err := NewTiered(8, time.Minute, remote, nil, zerolog.Nop())
	require.NoError(t, err)

	calls := 0
	var got []int
	require.NoError(t, c.Fetch(context.Background(), "k", &got, countingLoader(&calls, nil, true)))
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, calls)

	delete(remote.data, "k")
	got = nil
	require.NoError(t, c.Fetch(context.Background(), "k", &got, countingLoader(&calls, nil, true)))
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, calls)
}

func TestTiered_NotCacheable(t *testing.T) {
	c, err := NewTiered(8, time.Minute, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	calls := 0
	var got []int
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Fetch(context.Background(), "empty", &got, countingLoader(&calls, []int{}, false)))
	}
	assert.Equal(t, 3, calls)
}

func TestTiered_RemoteFailureDegrades(t *testing.T) {
	remote := newFakeRemote()
	remote.err = errors.New("connection refused")

	c, err := NewTiered(8, time.Minute, remote, nil, zerolog.Nop())
	require.NoError(t, err)

	calls := 0
	var got string
	require.NoError(t, c.Fetch(context.Background(), "k", &got, countingLoader(&calls, "v", true)))
	assert.Equal(t, "v", got)
	assert.Equal(t, 1, calls)
}

func TestTiered_LoaderError(t *testing.T) {
	c, err := NewTiered(8, time.Minute, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	boom := errors.New("db down")
	var got string
	err = c.Fetch(context.Background(), "k", &got, func(context.Context) (interface{}, bool, error) {
		return nil, false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTiered_Invalidate(t *testing.T) {
	remote := newFakeRemote()
	c, err := NewTiered(8, time.Minute, remote, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	calls := 0
	var got int
	for _, k := range []string{"sales:b1:input", "sales:b1:forecast", "sales:b2:input"} {
		require.NoError(t, c.Fetch(ctx, k, &got, countingLoader(&calls, 1, true)))
	}
	require.NoError(t, c.Invalidate(ctx, "sales:b1:"))

	assert.Len(t, remote.data, 1)
	require.NoError(t, c.Fetch(ctx, "sales:b1:input", &got, countingLoader(&calls, 1, true)))
	require.NoError(t, c.Fetch(ctx, "sales:b2:input", &got, countingLoader(&calls, 1, true)))
	assert.Equal(t, 4, calls)
}

package decision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

var threeFaces = []types.Rect{
	{X: 10, Y: 10, Width: 40, Height: 54},
	{X: 80, Y: 20, Width: 40, Height: 54},
	{X: 140, Y: 30, Width: 40, Height: 54},
}

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

// countingStore records how often the wrapped store is touched
type countingStore struct {
	Store
	lookups atomic.Int32
	saves   atomic.Int32
}

func (s *countingStore) Lookup(ctx context.Context, key string) (int, bool, error) {
	s.lookups.Add(1)
	return s.Store.Lookup(ctx, key)
}

func (s *countingStore) Save(ctx context.Context, key string, index int) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, key, index)
}

func fixedChooser(idx int, calls *atomic.Int32) ChooserFunc {
	return func(ctx context.Context, key string, previews []string) (int, error) {
		calls.Add(1)
		return idx, nil
	}
}

func failingChooser(t *testing.T) ChooserFunc {
	return func(ctx context.Context, key string, previews []string) (int, error) {
		t.Fatalf("operator asked about %s", key)
		return 0, nil
	}
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.PreviewDir = filepath.Join(t.TempDir(), "decisions")
	return opts
}

func TestResolveUsesStoredDecision(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "/photos/img.jpg", 2))

	d := New(store, failingChooser(t), testOptions(t))
	rect, idx, err := d.Resolve(context.Background(), "/photos/img.jpg", testImage(), threeFaces)

	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, threeFaces[2], rect)
}

func TestResolveSingleCandidateSkipsStore(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore()}
	d := New(store, failingChooser(t), testOptions(t))

	rect, idx, err := d.Resolve(context.Background(), "/photos/one.jpg", testImage(), threeFaces[:1])

	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, threeFaces[0], rect)
	assert.Zero(t, store.lookups.Load())
	assert.Zero(t, store.saves.Load())
}

func TestResolveNoCandidates(t *testing.T) {
	d := New(NewMemoryStore(), failingChooser(t), testOptions(t))

	_, _, err := d.Resolve(context.Background(), "/photos/none.jpg", testImage(), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestResolvePromptsOnceAcrossRuns(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "decisions.json")
	var calls atomic.Int32

	for run := 0; run < 2; run++ {
		store, err := OpenFileStore(storePath, nil)
		require.NoError(t, err)

		d := New(store, fixedChooser(1, &calls), testOptions(t))
		rect, idx, err := d.Resolve(context.Background(), "/photos/group.jpg", testImage(), threeFaces)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		assert.Equal(t, threeFaces[1], rect)

		require.NoError(t, store.Close())
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveConcurrentSameKeyPromptsOnce(t *testing.T) {
	var calls atomic.Int32
	d := New(NewMemoryStore(), fixedChooser(2, &calls), testOptions(t))
	img := testImage()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, idx, err := d.Resolve(context.Background(), "/photos/group.jpg", img, threeFaces)
			assert.NoError(t, err)
			assert.Equal(t, 2, idx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveWritesAndRemovesPreviews(t *testing.T) {
	for _, format := range []string{"jpg", "png", "webp"} {
		opts := testOptions(t)
		opts.PreviewFormat = format

		var seen []string
		chooser := ChooserFunc(func(ctx context.Context, key string, previews []string) (int, error) {
			seen = previews
			for _, p := range previews {
				assert.FileExists(t, p)
			}
			return 0, nil
		})

		d := New(NewMemoryStore(), chooser, opts)
		_, _, err := d.Resolve(context.Background(), "/photos/group."+format, testImage(), threeFaces)
		require.NoError(t, err, format)

		require.Len(t, seen, 3)
		for i, p := range seen {
			assert.Equal(t, filepath.Join(opts.PreviewDir, []string{"0", "1", "2"}[i]+"."+format), p)
			assert.NoFileExists(t, p)
		}
	}
}

func TestResolveInvalidChoiceIsFatal(t *testing.T) {
	for _, chooser := range []ChooserFunc{
		func(ctx context.Context, key string, previews []string) (int, error) { return 3, nil },
		func(ctx context.Context, key string, previews []string) (int, error) { return -1, nil },
		func(ctx context.Context, key string, previews []string) (int, error) {
			return 0, ErrInvalidChoice
		},
	} {
		opts := testOptions(t)
		store := NewMemoryStore()
		d := New(store, chooser, opts)

		_, _, err := d.Resolve(context.Background(), "/photos/group.jpg", testImage(), threeFaces)
		assert.ErrorIs(t, err, ErrInvalidChoice)
		assert.Zero(t, store.Len())

		entries, err := os.ReadDir(opts.PreviewDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestResolveChooserError(t *testing.T) {
	boom := errors.New("stdin closed")
	d := New(NewMemoryStore(), ChooserFunc(func(ctx context.Context, key string, previews []string) (int, error) {
		return 0, boom
	}), testOptions(t))

	_, _, err := d.Resolve(context.Background(), "/photos/group.jpg", testImage(), threeFaces)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidChoice)
}

func TestResolveWithoutChooser(t *testing.T) {
	d := New(NewMemoryStore(), nil, testOptions(t))

	_, _, err := d.Resolve(context.Background(), "/photos/group.jpg", testImage(), threeFaces)
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestResolveStaleDecision(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "/photos/group.jpg", 5))

	d := New(store, failingChooser(t), testOptions(t))
	_, _, err := d.Resolve(context.Background(), "/photos/group.jpg", testImage(), threeFaces)

	assert.ErrorIs(t, err, ErrStaleDecision)
}

func TestKey(t *testing.T) {
	key, err := Key("photos/../photos/./img.jpg")
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "photos", "img.jpg"), key)
}

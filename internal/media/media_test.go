package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isavelev/yatube/pkg/storage"
)

func newTestStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return store
}

// smallPNG encodes a tiny valid PNG in memory.
func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSaveImage_StoresOriginalAndThumb(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store)
	ctx := context.Background()

	imageKey, thumbKey, err := p.SaveImage(ctx, bytes.NewReader(smallPNG(t)), "small.png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(imageKey, "posts/"))
	assert.True(t, strings.HasPrefix(thumbKey, "posts/thumbs/"))
	assert.True(t, strings.HasSuffix(imageKey, ".png"))
	assert.True(t, strings.HasSuffix(thumbKey, ".png"))

	for _, key := range []string{imageKey, thumbKey} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "expected %s to exist", key)
	}

	// The stored thumbnail must decode back to an image.
	rc, err := store.Read(ctx, thumbKey)
	require.NoError(t, err)
	defer rc.Close()
	_, err = imaging.Decode(rc)
	assert.NoError(t, err)
}

func TestSaveImage_RejectsNonImage(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store)

	_, _, err := p.SaveImage(context.Background(), strings.NewReader("definitely not an image"), "notes.txt")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestSaveImage_UnknownExtensionFallsBackToJPEG(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store)

	imageKey, thumbKey, err := p.SaveImage(context.Background(), bytes.NewReader(smallPNG(t)), "upload.bin")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(imageKey, ".jpg"))
	assert.True(t, strings.HasSuffix(thumbKey, ".jpg"))
}

package frames

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestDecode(t *testing.T) {
	dir := t.TempDir()

	t.Run("ColorImage", func(t *testing.T) {
		path := filepath.Join(dir, "a_001.png")
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 24, 32, gocv.MatTypeCV8UC3)
		defer img.Close()
		require.True(t, gocv.IMWrite(path, img))

		decoded, err := Decode(Ref{Name: "a_001.png", Path: path}, 0)
		require.NoError(t, err)
		defer decoded.Close()
		assert.Equal(t, Dimensions{Width: 32, Height: 24, Channels: 3}, DimensionsOf(decoded))
	})

	t.Run("GrayscaleIsLoadedAsColor", func(t *testing.T) {
		path := filepath.Join(dir, "g_001.png")
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
		defer img.Close()
		require.True(t, gocv.IMWrite(path, img))

		decoded, err := Decode(Ref{Name: "g_001.png", Path: path}, 0)
		require.NoError(t, err)
		defer decoded.Close()
		assert.Equal(t, 3, decoded.Channels())
	})

	t.Run("Unreadable", func(t *testing.T) {
		path := filepath.Join(dir, "broken_001.png")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

		_, err := Decode(Ref{Name: "broken_001.png", Path: path}, 4)
		require.ErrorIs(t, err, ErrDecodeFailure)
		assert.Contains(t, err.Error(), "frame 4")
	})
}

func TestCheckDimensions(t *testing.T) {
	want := Dimensions{Width: 4, Height: 2, Channels: 3}
	assert.NoError(t, CheckDimensions(want, want, Ref{}, 1))

	err := CheckDimensions(want, Dimensions{Width: 5, Height: 2, Channels: 3}, Ref{Path: "b.png"}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "b.png")
}

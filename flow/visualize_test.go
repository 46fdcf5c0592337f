package flow

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// field builds a rows x cols flow field whose left half moves by (dx, dy)
// and whose right half is still.
func field(rows, cols int, dx, dy float64) gocv.Mat {
	x := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32F)
	defer x.Close()
	y := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32F)
	defer y.Close()

	left := image.Rect(0, 0, cols/2, rows)
	xl := x.Region(left)
	xl.SetTo(gocv.NewScalar(dx, 0, 0, 0))
	xl.Close()
	yl := y.Region(left)
	yl.SetTo(gocv.NewScalar(dy, 0, 0, 0))
	yl.Close()

	out := gocv.NewMat()
	gocv.Merge([]gocv.Mat{x, y}, &out)
	return out
}

func visualize(t *testing.T, f gocv.Mat) gocv.Mat {
	t.Helper()
	vis, err := Visualize(f)
	require.NoError(t, err)
	return vis
}

// hsvAt reads back the hue, saturation and value of one pixel of vis.
func hsvAt(vis gocv.Mat, row, col int) (int, int, int) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(vis, &hsv, gocv.ColorBGRToHSV)
	px := hsv.GetVecbAt(row, col)
	return int(px[0]), int(px[1]), int(px[2])
}

func TestVisualize(t *testing.T) {
	t.Run("RightwardMotionIsRed", func(t *testing.T) {
		f := field(4, 8, 2, 0)
		defer f.Close()

		vis := visualize(t, f)
		defer vis.Close()
		require.Equal(t, gocv.MatTypeCV8UC3, vis.Type())
		assert.Equal(t, 8, vis.Cols())
		assert.Equal(t, 4, vis.Rows())

		moving := vis.GetVecbAt(1, 1)
		assert.Equal(t, []uint8{0, 0, 255}, []uint8{moving[0], moving[1], moving[2]})
		still := vis.GetVecbAt(1, 6)
		assert.Equal(t, []uint8{0, 0, 0}, []uint8{still[0], still[1], still[2]})
	})

	t.Run("MagnitudeIsNormalizedPerImage", func(t *testing.T) {
		slow := field(4, 8, 0.5, 0)
		defer slow.Close()
		fast := field(4, 8, 40, 0)
		defer fast.Close()

		a := visualize(t, slow)
		defer a.Close()
		b := visualize(t, fast)
		defer b.Close()
		assert.Equal(t, a.ToBytes(), b.ToBytes())
	})

	t.Run("StillFieldIsBlack", func(t *testing.T) {
		f := field(4, 8, 0, 0)
		defer f.Close()

		vis := visualize(t, f)
		defer vis.Close()
		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(vis, &gray, gocv.ColorBGRToGray)
		assert.Zero(t, gocv.CountNonZero(gray))
	})

	// Hue is the direction angle over 2π spread on [0, 180), truncated.
	// Image rows grow downwards, so dy > 0 is downward motion.
	for _, tc := range []struct {
		name   string
		dx, dy float64
		hue    int
	}{
		{name: "Downward", dx: 0, dy: 2, hue: 45},
		{name: "Leftward", dx: -2, dy: 0, hue: 90},
		{name: "Upward", dx: 0, dy: -2, hue: 135},
		{name: "AlmostFullTurn", dx: 1, dy: -0.01, hue: 179},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := field(4, 8, tc.dx, tc.dy)
			defer f.Close()

			vis := visualize(t, f)
			defer vis.Close()

			h, s, v := hsvAt(vis, 1, 1)
			assert.InDelta(t, tc.hue, h, 1, "hue for angle %.3f", math.Atan2(tc.dy, tc.dx))
			assert.InDelta(t, 255, s, 1)
			assert.InDelta(t, 255, v, 1)
		})
	}

	t.Run("DownwardMotionIsGreen", func(t *testing.T) {
		f := field(4, 8, 0, 2)
		defer f.Close()

		vis := visualize(t, f)
		defer vis.Close()
		px := vis.GetVecbAt(1, 1)
		assert.LessOrEqual(t, int(px[0]), 1)
		assert.Equal(t, uint8(255), px[1])
		assert.InDelta(t, 128, int(px[2]), 10)
	})

	t.Run("LeftwardMotionIsCyan", func(t *testing.T) {
		f := field(4, 8, -2, 0)
		defer f.Close()

		vis := visualize(t, f)
		defer vis.Close()
		px := vis.GetVecbAt(1, 1)
		assert.InDelta(t, 255, int(px[0]), 10)
		assert.InDelta(t, 255, int(px[1]), 10)
		assert.LessOrEqual(t, int(px[2]), 1)
	})
}

func TestTruncate(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(44.9, 0, 0, 0), 2, 2, gocv.MatTypeCV32F)
	defer src.Close()

	out, err := truncate(src, 1)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, gocv.MatTypeCV8U, out.Type())
	assert.Equal(t, uint8(44), out.GetUCharAt(0, 0))

	big, err := truncate(src, 10)
	require.NoError(t, err)
	defer big.Close()
	assert.Equal(t, uint8(255), big.GetUCharAt(1, 1))
}

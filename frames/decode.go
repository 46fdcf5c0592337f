package frames

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Dimensions of a decoded frame.
type Dimensions struct {
	Width    int
	Height   int
	Channels int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%d(width) x %d(height) x %d", d.Width, d.Height, d.Channels)
}

func DimensionsOf(m gocv.Mat) Dimensions {
	return Dimensions{Width: m.Cols(), Height: m.Rows(), Channels: m.Channels()}
}

// Decode reads a frame as a 3-channel BGR image. The caller closes the returned Mat.
func Decode(ref Ref, index int) (gocv.Mat, error) {
	img := gocv.IMRead(ref.Path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), &FrameError{Op: "decode", Path: ref.Path, Index: index, Err: ErrDecodeFailure}
	}
	return img, nil
}

// CheckDimensions returns a FrameError wrapping ErrDimensionMismatch when got differs from want.
func CheckDimensions(want, got Dimensions, ref Ref, index int) error {
	if want == got {
		return nil
	}
	return &FrameError{
		Op:    "check dimensions",
		Path:  ref.Path,
		Index: index,
		Err:   fmt.Errorf("%w: expected %s, got %s", ErrDimensionMismatch, want, got),
	}
}

package flow

import (
	"math"

	"gocv.io/x/gocv"
)

// hueScale maps an angle in radians onto the 8-bit hue range [0, 180).
const hueScale = 180 / math.Pi / 2

// Visualize encodes a CV_32FC2 flow field as a BGR image: hue is the flow
// direction, saturation is full and value is the magnitude min-max normalized
// over this field alone. Brightness is therefore not comparable between two
// visualizations. The caller closes the returned Mat.
func Visualize(field gocv.Mat) (gocv.Mat, error) {
	components := gocv.Split(field)
	defer func() {
		for _, c := range components {
			c.Close()
		}
	}()

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	angle := gocv.NewMat()
	defer angle.Close()
	gocv.CartToPolar(components[0], components[1], &magnitude, &angle, false)

	hue, err := truncate(angle, hueScale)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer hue.Close()

	saturation := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), field.Rows(), field.Cols(), gocv.MatTypeCV8U)
	defer saturation.Close()

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(magnitude, &normalized, 0, 255, gocv.NormMinMax)
	value, err := truncate(normalized, 1)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer value.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.Merge([]gocv.Mat{hue, saturation, value}, &hsv)

	bgr := gocv.NewMat()
	gocv.CvtColor(hsv, &bgr, gocv.ColorHSVToBGR)
	return bgr, nil
}

// truncate scales a single channel float Mat into 8 bits, dropping the
// fraction. ConvertTo would round to nearest instead.
func truncate(src gocv.Mat, scale float64) (gocv.Mat, error) {
	in, err := src.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), err
	}
	dst := gocv.NewMatWithSize(src.Rows(), src.Cols(), gocv.MatTypeCV8U)
	out, err := dst.DataPtrUint8()
	if err != nil {
		dst.Close()
		return gocv.NewMat(), err
	}
	for i, v := range in {
		out[i] = uint8(math.Max(0, math.Min(255, math.Floor(float64(v)*scale))))
	}
	return dst, nil
}

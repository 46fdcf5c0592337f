package muxer

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Info is what a container reports about itself once written.
type Info struct {
	Frames int
	FPS    float64
	Width  int
	Height int
	Codec  string
}

// Probe opens a container and counts the frames it can actually decode.
// The frame count is read, not taken from the header, since some containers
// only estimate it.
func Probe(path string) (Info, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return Info{}, err
	}
	defer video.Close()
	if !video.IsOpened() {
		return Info{}, fmt.Errorf("unable to open video '%s'", path)
	}

	info := Info{
		FPS:    video.Get(gocv.VideoCaptureFPS),
		Width:  int(video.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(video.Get(gocv.VideoCaptureFrameHeight)),
		Codec:  codecFromFourCC(video.Get(gocv.VideoCaptureFOURCC)),
	}

	tmpMat := gocv.NewMat()
	defer tmpMat.Close()
	for video.Read(&tmpMat) {
		if tmpMat.Empty() {
			break
		}
		info.Frames++
	}
	return info, nil
}

var ErrFrameCountMismatch = errors.New("container frame count differs from frames written")

// Verify probes the container at path and checks that it decodes to exactly
// want frames.
func Verify(path string, want int) (Info, error) {
	info, err := Probe(path)
	if err != nil {
		return info, err
	}
	if info.Frames != want {
		return info, fmt.Errorf("%w: '%s' decodes %d frames, %d were written",
			ErrFrameCountMismatch, path, info.Frames, want)
	}
	return info, nil
}

func codecFromFourCC(value float64) string {
	codecID := int64(value)
	res := ""
	hexes := []int64{0xff, 0xff00, 0xff0000, 0xff000000}
	for i, h := range hexes {
		res += string(rune(codecID & h >> (uint(i * 8))))
	}
	return res
}

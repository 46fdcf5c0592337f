// Package flow turns an ordered frame sequence into dense optical flow
// visualizations, one image per pair of adjacent frames.
package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/denismakogon/videobox/frames"
)

// OutputName is the file name of the i-th visualization, counting from 1.
func OutputName(i int) string {
	return fmt.Sprintf("flow_%04d.png", i)
}

// EmitFunc receives each visualization with its 1-based index. vis is only
// valid until EmitFunc returns.
type EmitFunc func(index int, vis gocv.Mat) error

// State is carried from one pair to the next. Prev holds the intensity
// image of the last frame that was successfully encoded against its
// predecessor (or the first frame), Index counts emitted visualizations.
type State struct {
	Prev  gocv.Mat
	Dims  frames.Dimensions
	Index int
}

func (s *State) Close() error {
	return s.Prev.Close()
}

type Encoder struct {
	params Params
	log    logrus.FieldLogger
}

func NewEncoder(params Params, log logrus.FieldLogger) *Encoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Encoder{params: params, log: log}
}

// Start opens a fold with the first frame of a sequence.
func (e *Encoder) Start(first gocv.Mat) *State {
	gray := gocv.NewMat()
	gocv.CvtColor(first, &gray, gocv.ColorBGRToGray)
	return &State{Prev: gray, Dims: frames.DimensionsOf(first)}
}

// Step encodes curr against s.Prev and hands the result to emit. The state
// only advances once emit succeeded, a failed step leaves s untouched.
func (e *Encoder) Step(s *State, curr gocv.Mat, ref frames.Ref, emit EmitFunc) error {
	if err := frames.CheckDimensions(s.Dims, frames.DimensionsOf(curr), ref, s.Index+1); err != nil {
		return err
	}

	gray := gocv.NewMat()
	gocv.CvtColor(curr, &gray, gocv.ColorBGRToGray)

	field := gocv.NewMat()
	defer field.Close()
	gocv.CalcOpticalFlowFarneback(s.Prev, gray, &field,
		e.params.PyrScale, e.params.Levels, e.params.WindowSize,
		e.params.Iterations, e.params.PolyN, e.params.PolySigma, e.params.Flags)

	vis, err := Visualize(field)
	if err != nil {
		gray.Close()
		return &frames.FrameError{Op: "visualize flow", Path: ref.Path, Index: s.Index + 1, Err: err}
	}
	defer vis.Close()

	if err := emit(s.Index+1, vis); err != nil {
		gray.Close()
		return &frames.FrameError{Op: "emit flow", Path: ref.Path, Index: s.Index + 1, Err: err}
	}

	s.Prev.Close()
	s.Prev = gray
	s.Index++
	return nil
}

// Fold decodes seq frame by frame and emits len(seq)-1 visualizations in
// order. It returns how many were emitted. The first failure ends the fold.
func (e *Encoder) Fold(seq frames.Sequence, emit EmitFunc) (int, error) {
	if err := e.params.Validate(); err != nil {
		return 0, err
	}
	if err := seq.Validate(); err != nil {
		return 0, err
	}
	switch seq.Len() {
	case 0:
		return 0, fmt.Errorf("%w: '%s'", frames.ErrEmptySequence, seq.Dir)
	case 1:
		return 0, fmt.Errorf("%w: '%s' holds a single frame", frames.ErrInsufficientFrames, seq.Dir)
	}
	if emit == nil {
		return 0, ErrNoEmitter
	}

	first, err := frames.Decode(seq.Frames[0], 0)
	if err != nil {
		return 0, err
	}
	state := e.Start(first)
	first.Close()
	defer state.Close()

	for i := 1; i < seq.Len(); i++ {
		ref := seq.Frames[i]
		curr, err := frames.Decode(ref, i)
		if err != nil {
			return state.Index, err
		}
		err = e.Step(state, curr, ref, emit)
		curr.Close()
		if err != nil {
			return state.Index, err
		}
	}
	return state.Index, nil
}

var ErrNoEmitter = errors.New("optical flow fold needs an emit func")

// Run folds seq and writes every visualization into outDir as flow_0001.png,
// flow_0002.png and so on. outDir is created once the sequence is known to
// hold a pair. Existing files are overwritten.
func (e *Encoder) Run(seq frames.Sequence, outDir string) (int, error) {
	if err := e.params.Validate(); err != nil {
		return 0, err
	}
	if err := seq.Validate(); err != nil {
		return 0, err
	}
	if seq.Len() < 2 {
		return e.Fold(seq, nil)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory '%s': %w", outDir, err)
	}

	log := e.log.WithField("dir", seq.Dir)
	log.Infof("computing optical flow for %d frames into '%s'", seq.Len(), outDir)
	written, err := e.Fold(seq, func(index int, vis gocv.Mat) error {
		name := filepath.Join(outDir, OutputName(index))
		if !gocv.IMWrite(name, vis) {
			return fmt.Errorf("unable to write '%s'", name)
		}
		log.Debugf("flow image '%s' written", name)
		return nil
	})
	if err != nil {
		log.Errorf("optical flow stopped after %d images: %v", written, err)
		return written, err
	}
	log.Infof("optical flow generated: %d images", written)
	return written, nil
}

// Package muxer writes an ordered frame sequence into a video container.
package muxer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/denismakogon/videobox/frames"
)

type State int

const (
	Idle State = iota
	Opened
	Writing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Writing:
		return "writing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrInvalidCodec = errors.New("codec must be a four character code")
	ErrInvalidFPS   = errors.New("frame rate must be positive")
	ErrClosed       = errors.New("muxer is closed")
	ErrWriterOpen   = errors.New("unable to open video writer")
)

// Target describes the container to produce.
type Target struct {
	Path  string
	Codec string
	FPS   float64
}

func (t Target) Validate() error {
	if len(t.Codec) != 4 {
		return fmt.Errorf("%w: '%s'", ErrInvalidCodec, t.Codec)
	}
	if t.FPS <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFPS, t.FPS)
	}
	return nil
}

// Writer is the sink frames are appended to. *gocv.VideoWriter satisfies it.
type Writer interface {
	Write(img gocv.Mat) error
	Close() error
}

// OpenFunc opens a Writer for frames of the given size.
type OpenFunc func(t Target, width, height int) (Writer, error)

// OpenFile opens a gocv video writer on disk.
func OpenFile(t Target, width, height int) (Writer, error) {
	vw, err := gocv.VideoWriterFile(t.Path, t.Codec, t.FPS, width, height, true)
	if err != nil {
		return nil, err
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: '%s' with codec %s", ErrWriterOpen, t.Path, t.Codec)
	}
	return vw, nil
}

type Option func(m *Muxer)

func WithOpener(open OpenFunc) Option {
	return func(m *Muxer) {
		m.open = open
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Muxer) {
		m.log = log
	}
}

// Muxer appends frames to a single container. The first frame fixes the
// output dimensions; a frame of any other size closes the container and
// fails. Close must be called on every path, it is a no-op once Closed.
type Muxer struct {
	target  Target
	open    OpenFunc
	log     logrus.FieldLogger
	state   State
	writer  Writer
	dims    frames.Dimensions
	written int
}

func New(target Target, opts ...Option) *Muxer {
	m := &Muxer{
		target: target,
		open:   OpenFile,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Muxer) State() State {
	return m.state
}

func (m *Muxer) Written() int {
	return m.written
}

func (m *Muxer) Dimensions() frames.Dimensions {
	return m.dims
}

// Append writes frame as the next frame of the container. ref is used for error context.
func (m *Muxer) Append(frame gocv.Mat, ref frames.Ref) error {
	index := m.written
	switch m.state {
	case Closed:
		return ErrClosed
	case Idle:
		if err := m.target.Validate(); err != nil {
			m.state = Closed
			return err
		}
		dims := frames.DimensionsOf(frame)
		w, err := m.open(m.target, dims.Width, dims.Height)
		if err != nil {
			m.state = Closed
			return fmt.Errorf("unable to open '%s': %w", m.target.Path, err)
		}
		m.writer = w
		m.dims = dims
		m.state = Opened
		m.log.Infof("video '%s' opened, dimensions: %s", m.target.Path, dims)
	default:
		if err := frames.CheckDimensions(m.dims, frames.DimensionsOf(frame), ref, index); err != nil {
			m.Close()
			return err
		}
	}

	if err := m.writer.Write(frame); err != nil {
		m.Close()
		return &frames.FrameError{Op: "write frame", Path: ref.Path, Index: index, Err: err}
	}
	m.written++
	m.state = Writing
	return nil
}

// Close flushes and finalizes the container.
func (m *Muxer) Close() error {
	if m.state == Closed {
		return nil
	}
	m.state = Closed
	if m.writer == nil {
		return nil
	}
	err := m.writer.Close()
	m.writer = nil
	return err
}

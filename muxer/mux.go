package muxer

import (
	"github.com/denismakogon/videobox/frames"
)

type Outcome int

const (
	// OutcomeSkipped means the sequence was empty and no container was created.
	OutcomeSkipped Outcome = iota
	OutcomeWritten
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeFailed:
		return "failed"
	}
	return "skipped"
}

type Report struct {
	Outcome    Outcome
	Path       string
	Frames     int
	Dimensions frames.Dimensions
}

// Mux decodes seq frame by frame and writes it, in order, to target.
// An empty sequence is reported as OutcomeSkipped and touches nothing on disk.
// On a dimension mismatch the frames already written stay in a finalized
// container at target.Path; no cleanup is done here.
func Mux(seq frames.Sequence, target Target, opts ...Option) (Report, error) {
	report := Report{Outcome: OutcomeSkipped, Path: target.Path}
	if seq.Len() == 0 {
		return report, nil
	}
	if err := seq.Validate(); err != nil {
		report.Outcome = OutcomeFailed
		return report, err
	}
	if err := target.Validate(); err != nil {
		report.Outcome = OutcomeFailed
		return report, err
	}

	m := New(target, opts...)
	m.log.Infof("creating video '%s' with %d frames", target.Path, seq.Len())
	report.Outcome = OutcomeFailed
	for i, ref := range seq.Frames {
		frame, err := frames.Decode(ref, i)
		if err != nil {
			m.Close()
			report.Frames = m.Written()
			return report, err
		}
		err = m.Append(frame, ref)
		frame.Close()
		if err != nil {
			m.Close()
			report.Frames = m.Written()
			report.Dimensions = m.Dimensions()
			return report, err
		}
	}

	report.Frames = m.Written()
	report.Dimensions = m.Dimensions()
	if err := m.Close(); err != nil {
		return report, err
	}
	report.Outcome = OutcomeWritten
	m.log.Infof("video saved to '%s'", target.Path)
	return report, nil
}

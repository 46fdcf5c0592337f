// Package frames lists, orders, decodes and groups the still frames a
// dataset class directory is made of.
package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the frame file suffixes accepted when none are configured.
var DefaultExtensions = []string{".png", ".jpg"}

// Ref points at a frame file. Name is the sort key.
type Ref struct {
	Name string
	Path string
}

// Sequence is an ordered list of frames belonging to one directory.
type Sequence struct {
	Dir    string
	Frames []Ref
}

func (s Sequence) Len() int {
	return len(s.Frames)
}

// Validate checks that names are strictly increasing, which also rules out
// duplicates. Sequences built by hand rather than by Load go through it
// before any frame is decoded.
func (s Sequence) Validate() error {
	for i := 1; i < len(s.Frames); i++ {
		if s.Frames[i-1].Name >= s.Frames[i].Name {
			return &FrameError{
				Op:    "validate",
				Path:  s.Frames[i].Path,
				Index: i,
				Err:   ErrUnorderedSequence,
			}
		}
	}
	return nil
}

// Load lists the frame files of dir whose names end with one of exts and
// returns them in byte-lexicographic order. Subdirectories are not visited.
// Numeric suffixes must be zero-padded by the producer, no natural sort is applied.
// A directory without matching files yields an empty sequence.
func Load(dir string, exts []string) (Sequence, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Sequence{}, fmt.Errorf("%w: '%s'", ErrDirectoryNotFound, dir)
		}
		return Sequence{}, fmt.Errorf("unable to stat '%s': %w", dir, err)
	}
	if !info.IsDir() {
		return Sequence{}, fmt.Errorf("%w: '%s' is not a directory", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Sequence{}, fmt.Errorf("failed to read frames directory '%s': %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), exts) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	seq := Sequence{Dir: dir, Frames: make([]Ref, 0, len(names))}
	for _, name := range names {
		seq.Frames = append(seq.Frames, Ref{
			Name: name,
			Path: filepath.Join(dir, name),
		})
	}
	return seq, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

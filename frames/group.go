package frames

import (
	"path/filepath"
	"sort"
	"strings"
)

// Group holds the frames of one originating clip.
type Group struct {
	Key    string
	Frames Sequence
}

// GroupKey derives the clip identifier from a frame file name by dropping the
// extension and the final "_<token>". "video1_frame001.png" gives "video1",
// "a_b_007.jpg" gives "a_b". A name without an underscore gives "".
func GroupKey(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return ""
	}
	return base[:idx]
}

// GroupByVideo partitions seq by GroupKey. Groups come back sorted by key and
// every group keeps the order frames had in seq. Frames whose name carries no
// underscore are collected under the empty key.
func GroupByVideo(seq Sequence) []Group {
	index := map[string]int{}
	var groups []Group
	for _, f := range seq.Frames {
		key := GroupKey(f.Name)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Frames: Sequence{Dir: seq.Dir}})
		}
		groups[i].Frames.Frames = append(groups[i].Frames.Frames, f)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})
	return groups
}

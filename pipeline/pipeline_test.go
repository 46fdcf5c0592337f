package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/denismakogon/videobox/flow"
	"github.com/denismakogon/videobox/frames"
	"github.com/denismakogon/videobox/muxer"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	fail error
}

func (p *recordingPublisher) UploadFile(_ context.Context, key, filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) sorted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.keys...)
	sort.Strings(out)
	return out
}

func writeFrame(t *testing.T, path string, width, height, step int) {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), height, width, gocv.MatTypeCV8UC3)
	defer img.Close()
	x := 4 + step*2
	gocv.Rectangle(&img, image.Rect(x, 8, x+12, 20), color.RGBA{R: 200, G: 220, B: 240, A: 0}, -1)
	require.True(t, gocv.IMWrite(path, img))
}

func testConfig(t *testing.T, classes ...string) *Config {
	t.Helper()
	root := t.TempDir()
	cfg, err := LoadFrom(map[string]string{
		"CLASSES":           strings.Join(classes, ","),
		"INPUT_ROOT":        filepath.Join(root, "Train"),
		"FLOW_OUTPUT_ROOT":  filepath.Join(root, "Train", "OpticalFlow"),
		"VIDEO_OUTPUT_ROOT": filepath.Join(root, "videos"),
		"CODEC":             "MJPG",
		"S3_PREFIX":         "train",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	for _, class := range classes {
		require.NoError(t, os.MkdirAll(cfg.ClassInputDir(class), 0755))
	}
	return cfg
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestFlowTasks(t *testing.T) {
	cfg := testConfig(t, "Abuse", "Arrest", "Empty")
	for i := 1; i <= 5; i++ {
		writeFrame(t, filepath.Join(cfg.ClassInputDir("Abuse"), fmt.Sprintf("a_%03d.png", i)), 48, 32, i)
	}
	writeFrame(t, filepath.Join(cfg.ClassInputDir("Arrest"), "b_001.png"), 48, 32, 0)
	cfg.Classes = append(cfg.Classes, "Missing")

	pub := &recordingPublisher{}
	results := Run(context.Background(), FlowTasks(cfg, quietLogger(), pub), 2, nil)
	require.Len(t, results, 4)

	byName := map[string]Result{}
	for _, r := range results {
		assert.Equal(t, KindFlow, r.Kind)
		byName[r.Name] = r
	}

	require.NoError(t, byName["Abuse"].Err)
	assert.Equal(t, 4, byName["Abuse"].Outputs)
	assert.Equal(t,
		[]string{"flow_0001.png", "flow_0002.png", "flow_0003.png", "flow_0004.png"},
		dirNames(t, cfg.ClassFlowDir("Abuse")))

	assert.ErrorIs(t, byName["Arrest"].Err, frames.ErrInsufficientFrames)
	assert.NoDirExists(t, cfg.ClassFlowDir("Arrest"))
	assert.ErrorIs(t, byName["Empty"].Err, frames.ErrEmptySequence)
	assert.ErrorIs(t, byName["Missing"].Err, frames.ErrDirectoryNotFound)

	assert.Equal(t, []string{
		"train/flow/Abuse/flow_0001.png",
		"train/flow/Abuse/flow_0002.png",
		"train/flow/Abuse/flow_0003.png",
		"train/flow/Abuse/flow_0004.png",
	}, pub.sorted())
}

func TestRunFlowClassPublishFailure(t *testing.T) {
	cfg := testConfig(t, "Abuse")
	for i := 1; i <= 2; i++ {
		writeFrame(t, filepath.Join(cfg.ClassInputDir("Abuse"), fmt.Sprintf("a_%03d.png", i)), 48, 32, i)
	}
	denied := errors.New("access denied")

	n, err := RunFlowClass(context.Background(), cfg, "Abuse", quietLogger(), &recordingPublisher{fail: denied})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(cfg.ClassFlowDir("Abuse"), flow.OutputName(1)))
}

func TestVideoTasks(t *testing.T) {
	cfg := testConfig(t, "Shoplifting", "Empty")
	dir := cfg.ClassInputDir("Shoplifting")
	for i, name := range []string{"a_001.png", "a_002.png", "b_001.png", "b_002.png", "b_003.png", "loose.png"} {
		writeFrame(t, filepath.Join(dir, name), 48, 32, i)
	}
	cfg.Classes = append(cfg.Classes, "Missing")

	pub := &recordingPublisher{}
	tasks := VideoTasks(cfg, quietLogger(), pub)

	var names []string
	for _, task := range tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"Shoplifting/", "Shoplifting/a", "Shoplifting/b", "Empty", "Missing"}, names)

	results := Run(context.Background(), tasks, 3, nil)
	assert.ErrorIs(t, results[0].Err, frames.ErrUngroupedFrames)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 2, results[1].Outputs)
	require.NoError(t, results[2].Err)
	assert.Equal(t, 3, results[2].Outputs)
	assert.ErrorIs(t, results[3].Err, frames.ErrEmptySequence)
	assert.ErrorIs(t, results[4].Err, frames.ErrDirectoryNotFound)

	outDir := cfg.ClassVideoDir("Shoplifting")
	assert.Equal(t, []string{"a.avi", "b.avi"}, dirNames(t, outDir))

	info, err := muxer.Probe(filepath.Join(outDir, "b.avi"))
	require.NoError(t, err)
	assert.Equal(t, 3, info.Frames)
	assert.InDelta(t, 30, info.FPS, 0.01)

	assert.Equal(t, []string{"train/videos/Shoplifting/a.avi", "train/videos/Shoplifting/b.avi"}, pub.sorted())
}

func TestRunVideoGroupAtomic(t *testing.T) {
	cfg := testConfig(t, "Stealing")
	cfg.AtomicOutput = true
	dir := cfg.ClassInputDir("Stealing")
	writeFrame(t, filepath.Join(dir, "ok_001.png"), 48, 32, 0)
	writeFrame(t, filepath.Join(dir, "ok_002.png"), 48, 32, 1)
	writeFrame(t, filepath.Join(dir, "odd_001.png"), 48, 32, 0)
	writeFrame(t, filepath.Join(dir, "odd_002.png"), 64, 32, 1)

	seq, err := frames.Load(dir, nil)
	require.NoError(t, err)
	groups := frames.GroupByVideo(seq)
	require.Len(t, groups, 2)

	_, err = RunVideoGroup(context.Background(), cfg, "Stealing", groups[0], quietLogger(), nil)
	assert.ErrorIs(t, err, frames.ErrDimensionMismatch)

	n, err := RunVideoGroup(context.Background(), cfg, "Stealing", groups[1], quietLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"ok.avi"}, dirNames(t, cfg.ClassVideoDir("Stealing")))
}

func TestRunVideoGroupKeepsPartialContainer(t *testing.T) {
	cfg := testConfig(t, "Stealing")
	dir := cfg.ClassInputDir("Stealing")
	writeFrame(t, filepath.Join(dir, "odd_001.png"), 48, 32, 0)
	writeFrame(t, filepath.Join(dir, "odd_002.png"), 64, 32, 1)

	seq, err := frames.Load(dir, nil)
	require.NoError(t, err)

	n, err := RunVideoGroup(context.Background(), cfg, "Stealing", frames.GroupByVideo(seq)[0], quietLogger(), nil)
	assert.ErrorIs(t, err, frames.ErrDimensionMismatch)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(cfg.ClassVideoDir("Stealing"), "odd.avi"))
}

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/denismakogon/videobox/flow"
	"github.com/denismakogon/videobox/pipeline"
)

// parse runs the command tree on args and returns the configuration the
// selected subcommand would run with, starting from the env defaults in base.
func parse(t *testing.T, base map[string]string, args ...string) (*pipeline.Config, string) {
	t.Helper()
	var got *pipeline.Config
	var gotKind string
	app := newApp(func(_ context.Context, cmd *cli.Command, kind string, _ planFunc) error {
		cfg, err := pipeline.LoadFrom(base)
		require.NoError(t, err)
		applyFlags(cmd, cfg)
		got, gotKind = cfg, kind
		return nil
	})
	require.NoError(t, app.Run(context.Background(), append([]string{"datasetprep"}, args...)))
	require.NotNil(t, got)
	return got, gotKind
}

func TestApplyFlags(t *testing.T) {
	t.Run("FlowOverrides", func(t *testing.T) {
		cfg, kind := parse(t, map[string]string{"CLASSES": "Robbery", "FLOW_LEVELS": "4"},
			"--class", "Abuse", "--class", "Arrest", "--workers", "2", "--prefix", "train",
			"flow", "--output", "out/flow", "--window-size", "21", "--poly-sigma", "1.5", "--flags", "256")

		assert.Equal(t, pipeline.KindFlow, kind)
		assert.Equal(t, []string{"Abuse", "Arrest"}, cfg.Classes)
		assert.Equal(t, 2, cfg.Workers)
		assert.Equal(t, "train", cfg.S3Prefix)
		assert.Equal(t, "out/flow", cfg.FlowOutputRoot)
		assert.Equal(t, 21, cfg.Flow.WindowSize)
		assert.Equal(t, 1.5, cfg.Flow.PolySigma)
		assert.Equal(t, flow.FarnebackGaussian, cfg.Flow.Flags)
		assert.Equal(t, 4, cfg.Flow.Levels, "unset flags keep the env value")
		assert.Equal(t, "videos", cfg.VideoOutputRoot)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("VideoOverrides", func(t *testing.T) {
		cfg, kind := parse(t, map[string]string{"CLASSES": "Shoplifting"},
			"videos", "--output", "clips", "--fps", "25", "--codec", "MJPG", "--atomic")

		assert.Equal(t, pipeline.KindVideo, kind)
		assert.Equal(t, []string{"Shoplifting"}, cfg.Classes)
		assert.Equal(t, "clips", cfg.VideoOutputRoot)
		assert.Equal(t, 25.0, cfg.FrameRate)
		assert.Equal(t, "MJPG", cfg.Codec)
		assert.True(t, cfg.AtomicOutput)
		assert.Equal(t, "Train/OpticalFlow", cfg.FlowOutputRoot)
	})

	t.Run("DefaultsUntouched", func(t *testing.T) {
		base := map[string]string{"CLASSES": "Abuse"}
		want, err := pipeline.LoadFrom(base)
		require.NoError(t, err)

		cfg, _ := parse(t, base, "videos")
		assert.Equal(t, want, cfg)
	})

	t.Run("InvalidFlowFlagsRejected", func(t *testing.T) {
		cfg, _ := parse(t, map[string]string{"CLASSES": "Abuse"}, "flow", "--flags", "4")
		assert.ErrorIs(t, cfg.Validate(), pipeline.ErrInvalidConfig)
	})
}

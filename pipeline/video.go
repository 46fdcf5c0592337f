package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/denismakogon/videobox/frames"
	"github.com/denismakogon/videobox/muxer"
	"github.com/denismakogon/videobox/store"
)

// VideoTasks lists every class directory, groups its frames by clip and
// returns one task per group. A class that cannot be listed, or that holds
// no frames, becomes a single failing task so that the other classes still run.
func VideoTasks(cfg *Config, log logrus.FieldLogger, pub Publisher) []Task {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var tasks []Task
	for _, class := range cfg.Classes {
		class := class
		classLog := log.WithField("class", class)

		seq, err := frames.Load(cfg.ClassInputDir(class), cfg.Extensions)
		if err == nil && seq.Len() == 0 {
			err = fmt.Errorf("%w: no frames in '%s'", frames.ErrEmptySequence, seq.Dir)
		}
		if err != nil {
			tasks = append(tasks, failedTask(KindVideo, class, err))
			continue
		}

		groups := frames.GroupByVideo(seq)
		classLog.Infof("%d frames grouped into %d videos", seq.Len(), len(groups))
		for _, group := range groups {
			group := group
			tasks = append(tasks, Task{
				Kind: KindVideo,
				Name: class + "/" + group.Key,
				Run: func(ctx context.Context) (int, error) {
					return RunVideoGroup(ctx, cfg, class, group, classLog.WithField("group", group.Key), pub)
				},
			})
		}
	}
	return tasks
}

func failedTask(kind, name string, err error) Task {
	return Task{
		Kind: kind,
		Name: name,
		Run: func(context.Context) (int, error) {
			return 0, err
		},
	}
}

// RunVideoGroup writes one group into <VideoOutputRoot>/<class>/<key>.<ext>.
// With AtomicOutput the container is written under a temporary name and
// renamed once finalized; a failed group then leaves nothing behind.
// Otherwise a failed group keeps whatever the writer finalized.
// A written container is read back and must decode to every frame written.
func RunVideoGroup(ctx context.Context, cfg *Config, class string, group frames.Group, log logrus.FieldLogger, pub Publisher) (int, error) {
	if group.Key == "" {
		return 0, fmt.Errorf("%w: %d frames in '%s' have no '_<index>' suffix",
			frames.ErrUngroupedFrames, group.Frames.Len(), group.Frames.Dir)
	}

	outDir := cfg.ClassVideoDir(class)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory '%s': %w", outDir, err)
	}
	final := filepath.Join(outDir, cfg.VideoName(group.Key))
	path := final
	if cfg.AtomicOutput {
		path = filepath.Join(outDir, "."+uuid.New().String()+"."+cfg.ContainerExt)
	}

	report, err := muxer.Mux(group.Frames, cfg.Target(path), muxer.WithLogger(log))
	FramesMuxed.Add(float64(report.Frames))
	if err != nil {
		if cfg.AtomicOutput {
			os.Remove(path)
		}
		return report.Frames, err
	}
	if report.Outcome == muxer.OutcomeSkipped {
		log.Warnf("no frames provided for video '%s'", final)
		return 0, nil
	}
	info, err := muxer.Verify(path, report.Frames)
	if err != nil {
		if cfg.AtomicOutput {
			os.Remove(path)
		}
		return report.Frames, err
	}
	log.WithFields(logrus.Fields{
		"fps":    info.FPS,
		"codec":  info.Codec,
		"frames": info.Frames,
		"width":  info.Width,
		"height": info.Height,
	}).Infof("video '%s' verified", final)
	if cfg.AtomicOutput {
		if err := os.Rename(path, final); err != nil {
			os.Remove(path)
			return report.Frames, fmt.Errorf("unable to move '%s' to '%s': %w", path, final, err)
		}
	}
	VideosWritten.Inc()

	if pub != nil {
		key := store.Key(cfg.PublishPrefix(KindVideo, class), filepath.Base(final))
		if err := pub.UploadFile(ctx, key, final); err != nil {
			return report.Frames, err
		}
		log.Infof("video published to '%s'", key)
	}
	return report.Frames, nil
}

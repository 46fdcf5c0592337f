package pipeline

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/denismakogon/videobox/flow"
	"github.com/denismakogon/videobox/frames"
	"github.com/denismakogon/videobox/store"
)

// Publisher receives every file a task produced. *store.Store implements it.
type Publisher interface {
	UploadFile(ctx context.Context, key, filePath string) error
}

// FlowTasks returns one task per class. Each task turns
// <InputRoot>/<class> into <FlowOutputRoot>/<class>/flow_NNNN.png.
func FlowTasks(cfg *Config, log logrus.FieldLogger, pub Publisher) []Task {
	if log == nil {
		log = logrus.StandardLogger()
	}
	tasks := make([]Task, 0, len(cfg.Classes))
	for _, class := range cfg.Classes {
		class := class
		tasks = append(tasks, Task{
			Kind: KindFlow,
			Name: class,
			Run: func(ctx context.Context) (int, error) {
				return RunFlowClass(ctx, cfg, class, log.WithField("class", class), pub)
			},
		})
	}
	return tasks
}

// RunFlowClass computes the optical flow sequence of a single class.
func RunFlowClass(ctx context.Context, cfg *Config, class string, log logrus.FieldLogger, pub Publisher) (int, error) {
	log.Infof("processing class: %s", class)
	seq, err := frames.Load(cfg.ClassInputDir(class), cfg.Extensions)
	if err != nil {
		return 0, err
	}

	outDir := cfg.ClassFlowDir(class)
	written, err := flow.NewEncoder(cfg.Flow, log).Run(seq, outDir)
	FlowImagesWritten.Add(float64(written))
	if err != nil {
		return written, err
	}

	if pub != nil {
		for i := 1; i <= written; i++ {
			name := flow.OutputName(i)
			key := store.Key(cfg.PublishPrefix(KindFlow, class), name)
			if err := pub.UploadFile(ctx, key, filepath.Join(outDir, name)); err != nil {
				return written, err
			}
		}
		log.Infof("%d flow images published", written)
	}
	log.Infof("optical flow generated for class: %s", class)
	return written, nil
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fnproject/fdk-go"
	"github.com/sirupsen/logrus"

	"github.com/denismakogon/videobox/pipeline"
	"github.com/denismakogon/videobox/store"
)

func main() {
	fdk.Handle(fdk.HandlerFunc(withError))
}

func withError(ctx context.Context, in io.Reader, out io.Writer) {
	log := logrus.New()
	resp, err := myHandler(ctx, in, log)
	if err != nil {
		fdk.WriteStatus(out, http.StatusInternalServerError)
		out.Write([]byte(err.Error()))
		log.Error(err.Error())
		return
	}
	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	fdk.SetHeader(out, "Content-Type", "application/json")
	fdk.WriteStatus(out, status)
	json.NewEncoder(out).Encode(resp)
}

func myHandler(ctx context.Context, in io.Reader, log logrus.FieldLogger) (*ResponsePayload, error) {
	cfg, err := pipeline.Load()
	if err != nil {
		return nil, err
	}
	return handle(ctx, cfg, in, log, nil)
}

// presigner hands out download links for published videos.
type presigner interface {
	pipeline.Publisher
	PresignGet(key string, ttl time.Duration) (string, error)
}

// published remembers which key every local video was uploaded to.
type published struct {
	presigner
	mu   sync.Mutex
	keys map[string]string
}

func (p *published) UploadFile(ctx context.Context, key, filePath string) error {
	if err := p.presigner.UploadFile(ctx, key, filePath); err != nil {
		return err
	}
	p.mu.Lock()
	p.keys[filePath] = key
	p.mu.Unlock()
	return nil
}

func handle(ctx context.Context, cfg *pipeline.Config, in io.Reader, log logrus.FieldLogger, s presigner) (*ResponsePayload, error) {
	var p RequestPayload
	if err := json.NewDecoder(in).Decode(&p); err != nil {
		return nil, err
	}
	p.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ttl, err := p.ttl()
	if err != nil {
		return nil, err
	}

	if s == nil && cfg.S3Endpoint != "" {
		st, err := store.NewFromEndpoint(cfg.S3Endpoint, log)
		if err != nil {
			return nil, err
		}
		s = st
	}
	var pub pipeline.Publisher
	var rec *published
	if s != nil {
		rec = &published{presigner: s, keys: map[string]string{}}
		pub = rec
	}

	results := pipeline.Run(ctx, pipeline.VideoTasks(cfg, log, pub), cfg.Workers, nil)
	resp := &ResponsePayload{}
	for _, r := range results {
		v := Video{Name: r.Name, Frames: r.Outputs}
		if r.Err != nil {
			v.Error = r.Err.Error()
			resp.Failed++
			log.Error(r.String())
		} else if rec != nil {
			v.Key = rec.keyFor(cfg, r.Name)
			if v.Key != "" {
				url, err := s.PresignGet(v.Key, ttl)
				if err != nil {
					return nil, err
				}
				v.GetObjectURL = url
			}
		}
		resp.Videos = append(resp.Videos, v)
	}
	log.Infof("%d videos processed, %d failed", len(results), resp.Failed)
	return resp, nil
}

// keyFor maps a "<class>/<group>" task name back to the object key its video was uploaded to.
func (p *published) keyFor(cfg *pipeline.Config, task string) string {
	class, group, ok := strings.Cut(task, "/")
	if !ok {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[filepath.Join(cfg.ClassVideoDir(class), cfg.VideoName(group))]
}

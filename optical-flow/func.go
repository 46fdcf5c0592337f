package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

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
	return handle(ctx, cfg, in, log)
}

func handle(ctx context.Context, cfg *pipeline.Config, in io.Reader, log logrus.FieldLogger) (*ResponsePayload, error) {
	var p RequestPayload
	if err := json.NewDecoder(in).Decode(&p); err != nil {
		return nil, err
	}
	p.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var pub pipeline.Publisher
	if cfg.S3Endpoint != "" {
		s, err := store.NewFromEndpoint(cfg.S3Endpoint, log)
		if err != nil {
			return nil, err
		}
		pub = s
	}

	results := pipeline.Run(ctx, pipeline.FlowTasks(cfg, log, pub), cfg.Workers, nil)
	resp := &ResponsePayload{}
	for _, r := range results {
		cr := ClassResult{Class: r.Name, Images: r.Outputs}
		if r.Err != nil {
			cr.Error = r.Err.Error()
			resp.Failed++
			log.Error(r.String())
		}
		resp.Results = append(resp.Results, cr)
	}
	log.Infof("optical flow done for %d classes, %d failed", len(results), resp.Failed)
	return resp, nil
}

package main

import (
	"time"

	"github.com/denismakogon/videobox/pipeline"
)

type RequestPayload struct {
	Classes    []string `json:"classes"`
	InputRoot  string   `json:"input_root"`
	OutputRoot string   `json:"output_root"`
	S3Endpoint string   `json:"s3_endpoint"`
	Prefix     string   `json:"prefix"`
	Codec      string   `json:"codec"`
	FrameRate  float64  `json:"frames_per_second"`
	URLTTL     string   `json:"url_ttl"`
}

type Video struct {
	Name         string `json:"name"`
	Frames       int    `json:"frames"`
	Key          string `json:"key,omitempty"`
	GetObjectURL string `json:"get_object_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

type ResponsePayload struct {
	Videos []Video `json:"videos"`
	Failed int     `json:"failed"`
}

func (p *RequestPayload) apply(cfg *pipeline.Config) {
	if len(p.Classes) > 0 {
		cfg.Classes = p.Classes
	}
	if p.InputRoot != "" {
		cfg.InputRoot = p.InputRoot
	}
	if p.OutputRoot != "" {
		cfg.VideoOutputRoot = p.OutputRoot
	}
	if p.S3Endpoint != "" {
		cfg.S3Endpoint = p.S3Endpoint
	}
	if p.Prefix != "" {
		cfg.S3Prefix = p.Prefix
	}
	if p.Codec != "" {
		cfg.Codec = p.Codec
	}
	if p.FrameRate > 0 {
		cfg.FrameRate = p.FrameRate
	}
}

// ttl is how long returned download links stay valid, 15 minutes unless url_ttl is set.
func (p *RequestPayload) ttl() (time.Duration, error) {
	if p.URLTTL == "" {
		return 15 * time.Minute, nil
	}
	return time.ParseDuration(p.URLTTL)
}

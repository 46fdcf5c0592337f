package main

import "github.com/denismakogon/videobox/pipeline"

type RequestPayload struct {
	Classes    []string `json:"classes"`
	InputRoot  string   `json:"input_root"`
	OutputRoot string   `json:"output_root"`
	S3Endpoint string   `json:"s3_endpoint"`
	Prefix     string   `json:"prefix"`
}

type ClassResult struct {
	Class  string `json:"class"`
	Images int    `json:"images"`
	Error  string `json:"error,omitempty"`
}

type ResponsePayload struct {
	Results []ClassResult `json:"results"`
	Failed  int           `json:"failed"`
}

// apply overlays the non-empty payload fields on top of the function configuration.
func (p *RequestPayload) apply(cfg *pipeline.Config) {
	if len(p.Classes) > 0 {
		cfg.Classes = p.Classes
	}
	if p.InputRoot != "" {
		cfg.InputRoot = p.InputRoot
	}
	if p.OutputRoot != "" {
		cfg.FlowOutputRoot = p.OutputRoot
	}
	if p.S3Endpoint != "" {
		cfg.S3Endpoint = p.S3Endpoint
	}
	if p.Prefix != "" {
		cfg.S3Prefix = p.Prefix
	}
}

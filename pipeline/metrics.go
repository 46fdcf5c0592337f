package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videobox_tasks_total",
		Help: "Total number of pipeline tasks, by kind and status",
	}, []string{"kind", "status"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videobox_task_duration_seconds",
		Help:    "Duration of a single class or group task",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"kind"})

	FlowImagesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videobox_flow_images_written_total",
		Help: "Total number of optical flow visualizations written",
	})

	FramesMuxed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videobox_frames_muxed_total",
		Help: "Total number of frames written into video containers",
	})

	VideosWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videobox_videos_written_total",
		Help: "Total number of video containers finalized",
	})
)

package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/denismakogon/videobox/flow"
	"github.com/denismakogon/videobox/muxer"
	"github.com/denismakogon/videobox/store"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config drives both the optical flow and the video reassembly paths.
// It is passed explicitly to every entry point.
type Config struct {
	Classes         []string `env:"CLASSES"           envSeparator:","`
	InputRoot       string   `env:"INPUT_ROOT"        envDefault:"Train"`
	FlowOutputRoot  string   `env:"FLOW_OUTPUT_ROOT"  envDefault:"Train/OpticalFlow"`
	VideoOutputRoot string   `env:"VIDEO_OUTPUT_ROOT" envDefault:"videos"`
	Extensions      []string `env:"EXTENSIONS"        envSeparator:"," envDefault:".png,.jpg"`

	FrameRate    float64 `env:"FRAME_RATE"    envDefault:"30"`
	Codec        string  `env:"CODEC"         envDefault:"XVID"`
	ContainerExt string  `env:"CONTAINER_EXT" envDefault:"avi"`
	AtomicOutput bool    `env:"ATOMIC_OUTPUT" envDefault:"false"`

	Flow flow.Params `envPrefix:"FLOW_"`

	Workers int `env:"WORKERS" envDefault:"4"`

	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX"`

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom parses cfg from the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Classes) == 0 {
		return fmt.Errorf("%w: no classes to process", ErrInvalidConfig)
	}
	for _, class := range c.Classes {
		if class == "" || class != filepath.Base(class) {
			return fmt.Errorf("%w: class '%s' must be a plain directory name", ErrInvalidConfig, class)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.ContainerExt == "" {
		return fmt.Errorf("%w: empty container extension", ErrInvalidConfig)
	}
	if err := c.Target("").Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Flow.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Target returns the muxer target for the container at path.
func (c *Config) Target(path string) muxer.Target {
	return muxer.Target{Path: path, Codec: c.Codec, FPS: c.FrameRate}
}

func (c *Config) ClassInputDir(class string) string {
	return filepath.Join(c.InputRoot, class)
}

func (c *Config) ClassFlowDir(class string) string {
	return filepath.Join(c.FlowOutputRoot, class)
}

func (c *Config) ClassVideoDir(class string) string {
	return filepath.Join(c.VideoOutputRoot, class)
}

// PublishPrefix is the object key prefix the outputs of one kind and class are
// uploaded under: <S3Prefix>/flow/<class> or <S3Prefix>/videos/<class>.
func (c *Config) PublishPrefix(kind, class string) string {
	segment := "flow"
	if kind == KindVideo {
		segment = "videos"
	}
	return store.Key(c.S3Prefix, segment, class)
}

// VideoName is the container file name for a group key.
func (c *Config) VideoName(key string) string {
	return key + "." + c.ContainerExt
}

// Package config holds sink defaults loaded from YAML and the element
// registration rank derived from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of the sinks and the demo binary.
type Config struct {
	Renderer RendererConfig `yaml:"renderer"`
	Sink     SinkConfig     `yaml:"sink"`
	Loopback LoopbackConfig `yaml:"loopback"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type RendererConfig struct {
	MaxVideoWidth  uint32 `yaml:"max_video_width"`
	MaxVideoHeight uint32 `yaml:"max_video_height"`
}

type SinkConfig struct {
	SinglePathStream bool `yaml:"single_path_stream"`
	BufferCapacity   int  `yaml:"buffer_capacity"`
}

// LoopbackConfig drives the in-process renderer's need-data requests.
type LoopbackConfig struct {
	FrameCount int           `yaml:"frame_count"`
	Interval   time.Duration `yaml:"interval"`
}

type PipelineConfig struct {
	// Description is a gst-launch style pipeline whose appsinks are named
	// audiosink, videosink or textsink.
	Description string `yaml:"description"`
}

// maxBufferCapacity mirrors the sample buffer's high-water mark.
const maxBufferCapacity = 24

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{MaxVideoWidth: 1920, MaxVideoHeight: 1080},
		Sink:     SinkConfig{BufferCapacity: maxBufferCapacity},
		Loopback: LoopbackConfig{FrameCount: 3, Interval: 40 * time.Millisecond},
		Pipeline: PipelineConfig{
			Description: "videotestsrc num-buffers=300 ! x264enc tune=zerolatency ! h264parse ! " +
				"video/x-h264,stream-format=avc,alignment=au ! appsink name=videosink " +
				"audiotestsrc num-buffers=300 ! avenc_aac ! aacparse ! appsink name=audiosink",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Sink.BufferCapacity < 1 || c.Sink.BufferCapacity > maxBufferCapacity {
		return fmt.Errorf("config: sink.buffer_capacity %d out of range 1..%d", c.Sink.BufferCapacity, maxBufferCapacity)
	}
	if c.Loopback.FrameCount < 1 {
		return fmt.Errorf("config: loopback.frame_count must be positive")
	}
	if c.Loopback.Interval <= 0 {
		return fmt.Errorf("config: loopback.interval must be positive")
	}
	return nil
}

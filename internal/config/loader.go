package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults used for fields the file leaves unset.
const (
	DefaultListenAddr     = "0.0.0.0:40001"
	DefaultReadBuffer     = 4096
	DefaultSendTimeoutMs  = 250
	DefaultGain           = 1.0
	DefaultGainMin        = 0.0
	DefaultGainMax        = 10.0
	DefaultSampleRate     = 8000
	DefaultSourceChannels = 1
	DefaultAGCTargetDB    = -20.0
	DefaultAGCMaxStepDB   = 1.5
	DefaultAGCWindow      = 25
	DefaultVOXThreshold   = 1000.0
	DefaultVOXHangtimeMs  = 600
	DefaultVOXHardTimeout = 60000
	DefaultChannelDepth   = 32
	DefaultDrainTimeoutMs = 2000
	DefaultStatsIntervalS = 30
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults. Zero is a meaningful
// value only for booleans and the stats interval, which stay as given.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Ingress.ListenAddr == "" {
		cfg.Ingress.ListenAddr = DefaultListenAddr
	}
	if cfg.Ingress.ReadBuffer == 0 {
		cfg.Ingress.ReadBuffer = DefaultReadBuffer
	}
	if cfg.Egress.SendTimeoutMs == 0 {
		cfg.Egress.SendTimeoutMs = DefaultSendTimeoutMs
	}
	if cfg.Audio.Gain == 0 {
		cfg.Audio.Gain = DefaultGain
	}
	if cfg.Audio.GainMax == 0 {
		cfg.Audio.GainMax = DefaultGainMax
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.SourceRate == 0 {
		cfg.Audio.SourceRate = cfg.Audio.SampleRate
	}
	if cfg.Audio.SourceChannels == 0 {
		cfg.Audio.SourceChannels = DefaultSourceChannels
	}
	if cfg.AGC.TargetDB == 0 {
		cfg.AGC.TargetDB = DefaultAGCTargetDB
	}
	if cfg.AGC.MaxStepDB == 0 {
		cfg.AGC.MaxStepDB = DefaultAGCMaxStepDB
	}
	if cfg.AGC.WindowFrames == 0 {
		cfg.AGC.WindowFrames = DefaultAGCWindow
	}
	if cfg.VOX.Threshold == 0 {
		cfg.VOX.Threshold = DefaultVOXThreshold
	}
	if cfg.VOX.HangtimeMs == 0 {
		cfg.VOX.HangtimeMs = DefaultVOXHangtimeMs
	}
	if cfg.VOX.HardTimeoutMs == 0 {
		cfg.VOX.HardTimeoutMs = DefaultVOXHardTimeout
	}
	if cfg.Pipeline.ChannelDepth == 0 {
		cfg.Pipeline.ChannelDepth = DefaultChannelDepth
	}
	if cfg.Pipeline.DrainTimeoutMs == 0 {
		cfg.Pipeline.DrainTimeoutMs = DefaultDrainTimeoutMs
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// A validation failure is fatal at startup; nothing re-validates later.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if _, _, err := net.SplitHostPort(cfg.Ingress.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("ingress.listen_addr %q is not host:port: %v", cfg.Ingress.ListenAddr, err))
	}
	if cfg.Ingress.ReadBuffer < 64 {
		errs = append(errs, fmt.Errorf("ingress.read_buffer %d is too small to hold a frame header", cfg.Ingress.ReadBuffer))
	}

	if cfg.Egress.TargetAddr == "" {
		errs = append(errs, errors.New("egress.target_addr is required"))
	} else if _, _, err := net.SplitHostPort(cfg.Egress.TargetAddr); err != nil {
		errs = append(errs, fmt.Errorf("egress.target_addr %q is not host:port: %v", cfg.Egress.TargetAddr, err))
	}
	if cfg.Egress.SendTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("egress.send_timeout_ms %d is negative", cfg.Egress.SendTimeoutMs))
	}

	if cfg.Audio.GainMin < 0 {
		errs = append(errs, fmt.Errorf("audio.gain_min %.2f is negative", cfg.Audio.GainMin))
	}
	if cfg.Audio.GainMax < cfg.Audio.GainMin {
		errs = append(errs, fmt.Errorf("audio.gain_max %.2f is below audio.gain_min %.2f", cfg.Audio.GainMax, cfg.Audio.GainMin))
	}
	if cfg.Audio.Gain < cfg.Audio.GainMin || cfg.Audio.Gain > cfg.Audio.GainMax {
		errs = append(errs, fmt.Errorf("audio.gain %.2f is outside [%.2f, %.2f]", cfg.Audio.Gain, cfg.Audio.GainMin, cfg.Audio.GainMax))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SourceRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.source_rate %d must be positive", cfg.Audio.SourceRate))
	}
	if cfg.Audio.SourceChannels != 1 && cfg.Audio.SourceChannels != 2 {
		errs = append(errs, fmt.Errorf("audio.source_channels %d must be 1 or 2", cfg.Audio.SourceChannels))
	}

	if cfg.AGC.Enabled {
		if cfg.AGC.TargetDB > 0 {
			errs = append(errs, fmt.Errorf("agc.target_db %.1f must be at or below 0 dBFS", cfg.AGC.TargetDB))
		}
		if cfg.AGC.MaxStepDB <= 0 {
			errs = append(errs, fmt.Errorf("agc.max_step_db %.2f must be positive", cfg.AGC.MaxStepDB))
		}
		if cfg.AGC.WindowFrames <= 0 {
			errs = append(errs, fmt.Errorf("agc.window_frames %d must be positive", cfg.AGC.WindowFrames))
		}
	}

	if cfg.VOX.Enabled {
		if cfg.VOX.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("vox.threshold %.1f must be positive", cfg.VOX.Threshold))
		}
		if cfg.VOX.HangtimeMs <= 0 {
			errs = append(errs, fmt.Errorf("vox.hangtime_ms %d must be positive", cfg.VOX.HangtimeMs))
		}
		if cfg.VOX.HardTimeoutMs <= cfg.VOX.HangtimeMs {
			errs = append(errs, fmt.Errorf("vox.hard_timeout_ms %d must exceed vox.hangtime_ms %d", cfg.VOX.HardTimeoutMs, cfg.VOX.HangtimeMs))
		}
	}

	if cfg.Pipeline.ChannelDepth <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.channel_depth %d must be positive", cfg.Pipeline.ChannelDepth))
	}
	if cfg.Pipeline.DrainTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.drain_timeout_ms %d must be positive", cfg.Pipeline.DrainTimeoutMs))
	}
	if cfg.Pipeline.StatsIntervalS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.stats_interval_s %d is negative", cfg.Pipeline.StatsIntervalS))
	}

	seen := make(map[string]int, len(cfg.Plugins))
	for i, p := range cfg.Plugins {
		prefix := fmt.Sprintf("plugins[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of plugins[%d]", prefix, p.Name, prev))
		}
		seen[p.Name] = i
	}

	return errors.Join(errs...)
}

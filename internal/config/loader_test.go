package config

import (
	"strings"
	"testing"
)

const minimalYAML = `
egress:
  target_addr: "127.0.0.1:33100"
`

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, LogInfo)
	}
	if cfg.Ingress.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.Ingress.ListenAddr, DefaultListenAddr)
	}
	if cfg.Ingress.ReadBuffer != DefaultReadBuffer {
		t.Errorf("ReadBuffer = %d, want %d", cfg.Ingress.ReadBuffer, DefaultReadBuffer)
	}
	if cfg.Egress.SendTimeoutMs != DefaultSendTimeoutMs {
		t.Errorf("SendTimeoutMs = %d, want %d", cfg.Egress.SendTimeoutMs, DefaultSendTimeoutMs)
	}
	if cfg.Audio.Gain != DefaultGain {
		t.Errorf("Gain = %v, want %v", cfg.Audio.Gain, DefaultGain)
	}
	if cfg.Audio.GainMax != DefaultGainMax {
		t.Errorf("GainMax = %v, want %v", cfg.Audio.GainMax, DefaultGainMax)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if cfg.Audio.SourceRate != DefaultSampleRate {
		t.Errorf("SourceRate = %d, want %d (follows sample_rate)", cfg.Audio.SourceRate, DefaultSampleRate)
	}
	if cfg.Audio.SourceChannels != DefaultSourceChannels {
		t.Errorf("SourceChannels = %d, want %d", cfg.Audio.SourceChannels, DefaultSourceChannels)
	}
	if cfg.Pipeline.ChannelDepth != DefaultChannelDepth {
		t.Errorf("ChannelDepth = %d, want %d", cfg.Pipeline.ChannelDepth, DefaultChannelDepth)
	}
	if cfg.Pipeline.DrainTimeoutMs != DefaultDrainTimeoutMs {
		t.Errorf("DrainTimeoutMs = %d, want %d", cfg.Pipeline.DrainTimeoutMs, DefaultDrainTimeoutMs)
	}
	if cfg.AGC.Enabled || cfg.VOX.Enabled {
		t.Error("AGC and VOX must default to disabled")
	}
}

func TestLoadFromReaderFullConfig(t *testing.T) {
	yml := `
server:
  metrics_addr: ":9090"
  log_level: debug
ingress:
  listen_addr: "0.0.0.0:40001"
  read_buffer: 2048
egress:
  target_addr: "10.0.0.5:33100"
  send_timeout_ms: 100
audio:
  gain: 2.0
  gain_min: 0.5
  gain_max: 4.0
  use_frame_gain: true
  sample_rate: 8000
  source_rate: 16000
  source_channels: 2
agc:
  enabled: true
  target_db: -18
  max_step_db: 2.0
  window_frames: 10
vox:
  enabled: true
  threshold: 500
  hangtime_ms: 400
  hard_timeout_ms: 30000
pipeline:
  channel_depth: 16
  drain_timeout_ms: 1000
  stats_interval_s: 10
plugins:
  - name: dcblock
    enabled: true
  - name: passthrough
    enabled: false
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if !cfg.Audio.UseFrameGain {
		t.Error("UseFrameGain = false, want true")
	}
	if cfg.Audio.SourceRate != 16000 || cfg.Audio.SourceChannels != 2 {
		t.Errorf("SourceRate/SourceChannels = %d/%d, want 16000/2",
			cfg.Audio.SourceRate, cfg.Audio.SourceChannels)
	}
	if cfg.AGC.TargetDB != -18 {
		t.Errorf("AGC.TargetDB = %v, want -18", cfg.AGC.TargetDB)
	}
	if cfg.VOX.Threshold != 500 {
		t.Errorf("VOX.Threshold = %v, want 500", cfg.VOX.Threshold)
	}
	if len(cfg.Plugins) != 2 {
		t.Fatalf("len(Plugins) = %d, want 2", len(cfg.Plugins))
	}
	if cfg.Plugins[0].Name != "dcblock" || !cfg.Plugins[0].Enabled {
		t.Errorf("Plugins[0] = %+v, want enabled dcblock", cfg.Plugins[0])
	}
	if cfg.Plugins[1].Enabled {
		t.Error("Plugins[1].Enabled = true, want false")
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	yml := minimalYAML + `
bogus_section:
  key: value
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Error("LoadFromReader() error = nil, want error for unknown field")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			"missing target addr",
			func(c *Config) { c.Egress.TargetAddr = "" },
			"egress.target_addr",
		},
		{
			"bad listen addr",
			func(c *Config) { c.Ingress.ListenAddr = "not-an-addr" },
			"ingress.listen_addr",
		},
		{
			"gain above max",
			func(c *Config) { c.Audio.Gain = 99 },
			"audio.gain",
		},
		{
			"negative gain min",
			func(c *Config) { c.Audio.GainMin = -1 },
			"audio.gain_min",
		},
		{
			"negative source rate",
			func(c *Config) { c.Audio.SourceRate = -1 },
			"audio.source_rate",
		},
		{
			"three source channels",
			func(c *Config) { c.Audio.SourceChannels = 3 },
			"audio.source_channels",
		},
		{
			"bad log level",
			func(c *Config) { c.Server.LogLevel = "verbose" },
			"server.log_level",
		},
		{
			"agc positive target",
			func(c *Config) { c.AGC.Enabled = true; c.AGC.TargetDB = 3 },
			"agc.target_db",
		},
		{
			"vox hard timeout below hangtime",
			func(c *Config) {
				c.VOX.Enabled = true
				c.VOX.HangtimeMs = 1000
				c.VOX.HardTimeoutMs = 500
			},
			"vox.hard_timeout_ms",
		},
		{
			"zero channel depth",
			func(c *Config) { c.Pipeline.ChannelDepth = -1 },
			"pipeline.channel_depth",
		},
		{
			"duplicate plugin",
			func(c *Config) {
				c.Plugins = []PluginConfig{{Name: "dcblock"}, {Name: "dcblock"}}
			},
			"duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
			if err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Ingress.ListenAddr = "bad"
	cfg.Pipeline.ChannelDepth = -1
	// target_addr is also missing.

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want joined errors")
	}
	for _, sub := range []string{"ingress.listen_addr", "egress.target_addr", "pipeline.channel_depth"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("Validate() error missing %q: %v", sub, err)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	e := EgressConfig{SendTimeoutMs: 250}
	if got := e.SendTimeout().Milliseconds(); got != 250 {
		t.Errorf("SendTimeout() = %dms, want 250ms", got)
	}
	p := PipelineConfig{DrainTimeoutMs: 2000, StatsIntervalS: 30}
	if got := p.DrainTimeout().Seconds(); got != 2 {
		t.Errorf("DrainTimeout() = %vs, want 2s", got)
	}
	if got := p.StatsInterval().Seconds(); got != 30 {
		t.Errorf("StatsInterval() = %vs, want 30s", got)
	}
	v := VOXConfig{HangtimeMs: 600, HardTimeoutMs: 60000}
	if got := v.Hangtime().Milliseconds(); got != 600 {
		t.Errorf("Hangtime() = %dms, want 600ms", got)
	}
	if got := v.HardTimeout().Seconds(); got != 60 {
		t.Errorf("HardTimeout() = %vs, want 60s", got)
	}
}

// Package config provides the configuration schema and loader for the
// radiobridge relay.
//
// The configuration is an immutable snapshot: it is loaded and validated
// once at startup and passed by reference to each component's constructor.
// No component reads ambient state, and a running relay never re-validates.
package config

import "time"

// LogLevel controls log verbosity for the relay.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for radiobridge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ingress  IngressConfig  `yaml:"ingress"`
	Egress   EgressConfig   `yaml:"egress"`
	Audio    AudioConfig    `yaml:"audio"`
	AGC      AGCConfig      `yaml:"agc"`
	VOX      VOXConfig      `yaml:"vox"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Plugins  []PluginConfig `yaml:"plugins"`
}

// ServerConfig holds logging and the observability HTTP listener.
type ServerConfig struct {
	// MetricsAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g. ":9090"). Empty disables the HTTP listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// IngressConfig configures the inbound USRP socket.
type IngressConfig struct {
	// ListenAddr is the UDP address to bind (e.g. "0.0.0.0:40001").
	ListenAddr string `yaml:"listen_addr"`

	// ReadBuffer is the datagram read buffer size in bytes. Must hold the
	// largest expected datagram; anything the OS truncates beyond it is
	// rejected by the decoder.
	ReadBuffer int `yaml:"read_buffer"`
}

// EgressConfig configures the outbound TLV socket.
type EgressConfig struct {
	// TargetAddr is the UDP destination (e.g. "127.0.0.1:33100").
	TargetAddr string `yaml:"target_addr"`

	// SendTimeoutMs bounds each send so the gateway stage can never block
	// indefinitely on an unreachable destination.
	SendTimeoutMs int `yaml:"send_timeout_ms"`
}

// AudioConfig holds gain settings for the processing stage.
type AudioConfig struct {
	// Gain is the configured multiplier applied to every sample.
	Gain float64 `yaml:"gain"`

	// GainMin and GainMax bound the effective gain, whichever source it
	// comes from.
	GainMin float64 `yaml:"gain_min"`
	GainMax float64 `yaml:"gain_max"`

	// UseFrameGain decides the precedence rule: when true, a frame's carried
	// gain overrides Gain (still clamped to [GainMin, GainMax]); when false,
	// Gain always applies and carried gains are ignored.
	//
	// A carried gain of exactly 0 means "unset" and falls back to Gain.
	// Senders that do not use the gain field transmit zeros there, and
	// honouring them literally would mute all of their audio.
	UseFrameGain bool `yaml:"use_frame_gain"`

	// SampleRate is the PCM sample rate in Hz the egress side expects.
	SampleRate int `yaml:"sample_rate"`

	// SourceRate is the PCM sample rate in Hz the ingress side delivers.
	// When it differs from SampleRate, the processing stage resamples every
	// frame. Defaults to SampleRate (no resampling).
	SourceRate int `yaml:"source_rate"`

	// SourceChannels is the channel count of the ingress PCM, 1 or 2. Stereo
	// input is folded down to mono before any other processing.
	SourceChannels int `yaml:"source_channels"`
}

// AGCConfig holds the optional automatic gain control settings.
type AGCConfig struct {
	// Enabled turns AGC on.
	Enabled bool `yaml:"enabled"`

	// TargetDB is the loudness target in dBFS the AGC steers toward
	// (e.g. -20).
	TargetDB float64 `yaml:"target_db"`

	// MaxStepDB bounds the gain adjustment per frame in dB, limiting
	// audible pumping.
	MaxStepDB float64 `yaml:"max_step_db"`

	// WindowFrames is the rolling RMS window length in frames.
	WindowFrames int `yaml:"window_frames"`
}

// VOXConfig holds the optional voice-operated keyup derivation.
// When enabled, the processing stage derives the keyup state from the signal
// level instead of trusting the ingress header.
type VOXConfig struct {
	// Enabled turns VOX on.
	Enabled bool `yaml:"enabled"`

	// Threshold is the RMS amplitude above which the channel keys up.
	Threshold float64 `yaml:"threshold"`

	// HangtimeMs keeps the channel keyed for this long after the level last
	// exceeded the threshold, bridging short pauses in speech.
	HangtimeMs int `yaml:"hangtime_ms"`

	// HardTimeoutMs force-unkeys a continuous transmission after this long,
	// preventing a stuck carrier from keying the transmitter forever.
	HardTimeoutMs int `yaml:"hard_timeout_ms"`
}

// PipelineConfig holds channel sizing and lifecycle timing.
type PipelineConfig struct {
	// ChannelDepth is the bound of each inter-stage channel. Depth times the
	// frame duration is the admissible end-to-end buffering latency; keep it
	// small.
	ChannelDepth int `yaml:"channel_depth"`

	// DrainTimeoutMs bounds the flush of in-flight frames during shutdown.
	DrainTimeoutMs int `yaml:"drain_timeout_ms"`

	// StatsIntervalS is the period of the aggregated statistics report in
	// seconds. Zero disables periodic reporting.
	StatsIntervalS int `yaml:"stats_interval_s"`
}

// PluginConfig names one transform in the processing chain. Order in the
// list is application order; the chain is fixed for the life of the process
// unless swapped as a whole.
type PluginConfig struct {
	// Name selects a registered transform (e.g. "dcblock").
	Name string `yaml:"name"`

	// Enabled controls whether the transform runs. Disabled entries keep
	// their slot so chain order survives toggling.
	Enabled bool `yaml:"enabled"`
}

// SendTimeout returns the egress send deadline as a duration.
func (e EgressConfig) SendTimeout() time.Duration {
	return time.Duration(e.SendTimeoutMs) * time.Millisecond
}

// DrainTimeout returns the shutdown flush bound as a duration.
func (p PipelineConfig) DrainTimeout() time.Duration {
	return time.Duration(p.DrainTimeoutMs) * time.Millisecond
}

// StatsInterval returns the statistics report period as a duration.
func (p PipelineConfig) StatsInterval() time.Duration {
	return time.Duration(p.StatsIntervalS) * time.Second
}

// Hangtime returns the VOX hangtime as a duration.
func (v VOXConfig) Hangtime() time.Duration {
	return time.Duration(v.HangtimeMs) * time.Millisecond
}

// HardTimeout returns the VOX hard timeout as a duration.
func (v VOXConfig) HardTimeout() time.Duration {
	return time.Duration(v.HardTimeoutMs) * time.Millisecond
}

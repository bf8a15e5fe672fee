// Package dsp implements the processing stage of the relay: stereo fold-down
// and resampling to the egress rate, gain with saturating arithmetic, optional
// automatic gain control, optional voice-operated keyup derivation, and the
// pluggable transform chain.
//
// Only the PCM payload is processed. Sequence, carried gain, and the receive
// timestamp pass through verbatim; keyup passes through unless VOX is
// enabled, in which case the stage derives it from the signal level.
package dsp

import (
	"context"
	"log/slog"

	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/internal/plugin"
	"github.com/MrWong99/radiobridge/pkg/audio"
)

// Processor consumes frames from the ingress channel, processes the payload,
// and pushes the result onto the egress channel. It is single-threaded; all
// its state is confined to the Run goroutine.
type Processor struct {
	audioCfg config.AudioConfig
	agc      *AGC // nil when disabled
	vox      *VOX // nil when disabled
	chain    *plugin.Chain

	in    <-chan audio.Frame
	out   chan<- audio.Frame
	stats *observe.ProcessStats
	log   *slog.Logger
}

// New assembles the processing stage from configuration. The chain may be
// empty; AGC and VOX are constructed only when their config enables them.
func New(cfg *config.Config, chain *plugin.Chain, in <-chan audio.Frame, out chan<- audio.Frame, stats *observe.ProcessStats, log *slog.Logger) *Processor {
	p := &Processor{
		audioCfg: cfg.Audio,
		chain:    chain,
		in:       in,
		out:      out,
		stats:    stats,
		log:      log.With("stage", "process"),
	}
	if cfg.AGC.Enabled {
		p.agc = NewAGC(cfg.AGC)
	}
	if cfg.VOX.Enabled {
		p.vox = NewVOX(cfg.VOX)
	}
	return p
}

// Run consumes the input channel until it closes. Cancellation does not stop
// consumption, since already-accepted frames must drain during shutdown, but
// a cancelled ctx turns the output push into a counted drop so the drain
// deadline stays bounded.
//
// Run does not close the output channel; the orchestrator does that once Run
// has returned.
func (p *Processor) Run(ctx context.Context) error {
	for f := range p.in {
		p.stats.Received.Add(1)
		out := p.process(f)

		select {
		case p.out <- out:
			p.stats.Forwarded.Add(1)
		case <-ctx.Done():
			p.stats.Dropped.Add(1)
		}
	}
	return nil
}

// process normalises the payload to mono at the egress rate, then applies
// gain, AGC, the plugin chain, and VOX, returning a derived frame with the
// same sequence.
func (p *Processor) process(f audio.Frame) audio.Frame {
	pcm := f.PCM
	if len(pcm) > 0 {
		if p.audioCfg.SourceChannels == 2 {
			pcm = audio.StereoToMono(pcm)
		}
		if p.audioCfg.SourceRate != p.audioCfg.SampleRate {
			pcm = audio.ResampleMono16(pcm, p.audioCfg.SourceRate, p.audioCfg.SampleRate)
		}
		pcm = audio.ApplyGain(pcm, p.effectiveGain(f))
		if p.agc != nil {
			pcm = p.agc.Process(pcm)
		}

		var failures int
		pcm, failures = p.chain.Apply(pcm, func(name string, err error) {
			p.log.Warn("plugin failed, skipping for this frame", "plugin", name, "err", err)
		})
		if failures > 0 {
			p.stats.PluginFailures.Add(uint64(failures))
		}
	}

	out := f.WithPCM(pcm)
	if p.vox != nil {
		out.Keyup = p.vox.Update(audio.RMS(pcm))
	}
	return out
}

// effectiveGain resolves the precedence rule between the configured gain and
// the frame's carried gain, clamped to the configured bounds either way.
// A carried gain of exactly 0 means the sender left the field unset, so it
// falls back to the configured gain rather than muting the frame.
func (p *Processor) effectiveGain(f audio.Frame) float32 {
	g := p.audioCfg.Gain
	if p.audioCfg.UseFrameGain && f.Gain != 0 {
		g = float64(f.Gain)
	}
	return float32(audio.Clamp(g, p.audioCfg.GainMin, p.audioCfg.GainMax))
}

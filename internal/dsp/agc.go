package dsp

import (
	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/pkg/audio"
)

// agcGainBoundDB caps the total correction the AGC may accumulate in either
// direction, so a long quiet stretch cannot wind the gain up to an amount
// that blasts the first loud frame.
const agcGainBoundDB = 24.0

// AGC steers the signal level toward a configured dBFS target. It estimates
// loudness with a rolling RMS window and moves its correction gain by at most
// a configured step per frame, which keeps the adjustment below audible
// pumping. Silent frames (RMS 0) hold the current correction.
//
// AGC is stateful and not safe for concurrent use; the processing stage owns
// exactly one instance.
type AGC struct {
	targetDB  float64
	maxStepDB float64

	window []float64
	next   int
	filled int

	gainDB float64
}

// NewAGC returns an AGC configured from cfg. Callers must only construct one
// when cfg.Enabled is true; validation guarantees the parameters are sane.
func NewAGC(cfg config.AGCConfig) *AGC {
	return &AGC{
		targetDB:  cfg.TargetDB,
		maxStepDB: cfg.MaxStepDB,
		window:    make([]float64, cfg.WindowFrames),
	}
}

// Process applies the current correction to pcm and updates the loudness
// estimate. Returns the corrected payload.
func (a *AGC) Process(pcm []byte) []byte {
	rms := audio.RMS(pcm)
	if rms == 0 {
		// Digital silence: hold the correction, apply nothing.
		return pcm
	}

	a.window[a.next] = rms
	a.next = (a.next + 1) % len(a.window)
	if a.filled < len(a.window) {
		a.filled++
	}

	var sum float64
	for i := range a.filled {
		sum += a.window[i]
	}
	levelDB := audio.DBFS(sum / float64(a.filled))

	// Error between the target and where the corrected signal sits now.
	diff := a.targetDB - (levelDB + a.gainDB)
	step := audio.Clamp(diff, -a.maxStepDB, a.maxStepDB)
	a.gainDB = audio.Clamp(a.gainDB+step, -agcGainBoundDB, agcGainBoundDB)

	return audio.ApplyGain(pcm, float32(audio.GainFromDB(a.gainDB)))
}

// GainDB returns the current correction in dB. Exposed for tests and
// debug logging.
func (a *AGC) GainDB() float64 {
	return a.gainDB
}

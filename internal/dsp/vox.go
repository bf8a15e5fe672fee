package dsp

import (
	"time"

	"github.com/MrWong99/radiobridge/internal/config"
)

// VOX derives the keyup state from the signal level. The key opens as soon as
// a frame's RMS reaches the threshold and stays open through short pauses up
// to the configured hangtime. A hard timeout bounds a single continuous
// keyup; once it trips, the key stays closed until the signal drops below the
// threshold again, so a stuck carrier cannot hold the channel forever.
//
// VOX is stateful and not safe for concurrent use; the processing stage owns
// exactly one instance.
type VOX struct {
	threshold   float64
	hangtime    time.Duration
	hardTimeout time.Duration

	keyed      bool
	lockedOut  bool
	keyedSince time.Time
	lastActive time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewVOX returns a VOX configured from cfg with the key initially closed.
func NewVOX(cfg config.VOXConfig) *VOX {
	return &VOX{
		threshold:   cfg.Threshold,
		hangtime:    cfg.Hangtime(),
		hardTimeout: cfg.HardTimeout(),
		now:         time.Now,
	}
}

// Update feeds one frame's RMS into the controller and returns the keyup
// state to stamp on that frame.
func (v *VOX) Update(rms float64) bool {
	now := v.now()
	active := rms >= v.threshold

	if !active {
		v.lockedOut = false
	}

	if active && !v.lockedOut {
		v.lastActive = now
		if !v.keyed {
			v.keyed = true
			v.keyedSince = now
		}
	}

	if v.keyed {
		if now.Sub(v.keyedSince) >= v.hardTimeout {
			v.keyed = false
			v.lockedOut = true
		} else if now.Sub(v.lastActive) >= v.hangtime {
			v.keyed = false
		}
	}

	return v.keyed
}

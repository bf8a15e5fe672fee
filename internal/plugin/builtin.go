package plugin

import (
	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/pkg/audio"
)

// Passthrough returns its input unchanged. Useful as a chain placeholder and
// in tests.
type Passthrough struct{}

func (Passthrough) Name() string                     { return "passthrough" }
func (Passthrough) Apply(pcm []byte) ([]byte, error) { return pcm, nil }

// DCBlock removes DC offset with a first-order high-pass filter
// (y[n] = x[n] - x[n-1] + r*y[n-1]). Sound cards and cheap gateways commonly
// introduce an offset that wastes headroom ahead of the gain stage.
type DCBlock struct {
	r       float64
	prevIn  float64
	prevOut float64
}

// NewDCBlock returns a DC blocker with the conventional pole at 0.995,
// a cutoff of a few hertz at narrowband sample rates.
func NewDCBlock() *DCBlock {
	return &DCBlock{r: 0.995}
}

func (d *DCBlock) Name() string { return "dcblock" }

func (d *DCBlock) Apply(pcm []byte) ([]byte, error) {
	if len(pcm) < 2 {
		return pcm, nil
	}
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		in := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		y := in - d.prevIn + d.r*d.prevOut
		d.prevIn = in
		d.prevOut = y

		v := audio.Clamp(y, -32768, 32767)
		s := int16(v)
		out[i] = byte(s)
		out[i+1] = byte(s >> 8)
	}
	if len(pcm)%2 != 0 {
		out[len(pcm)-1] = pcm[len(pcm)-1]
	}
	return out, nil
}

// FromConfig builds the chain entries declared in cfg using reg, in list
// order. Unknown names are a configuration error, caught at startup.
func FromConfig(cfgs []config.PluginConfig, reg *Registry) (*Chain, error) {
	entries := make([]Entry, 0, len(cfgs))
	for _, pc := range cfgs {
		t, err := reg.Create(pc.Name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Transform: t, Enabled: pc.Enabled})
	}
	return NewChain(entries...), nil
}

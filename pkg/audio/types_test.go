package audio

import "testing"

func TestWithPCMPreservesMetadata(t *testing.T) {
	f := Frame{Seq: 9, Keyup: true, Gain: 1.5, PCM: []byte{1, 2}}
	g := f.WithPCM([]byte{3, 4, 5})

	if g.Seq != f.Seq || g.Keyup != f.Keyup || g.Gain != f.Gain {
		t.Errorf("metadata changed: got %+v, want metadata of %+v", g, f)
	}
	if len(g.PCM) != 3 {
		t.Errorf("PCM length = %d, want 3", len(g.PCM))
	}
	if len(f.PCM) != 2 {
		t.Error("WithPCM mutated the original frame")
	}
}

func TestEdge(t *testing.T) {
	tests := []struct {
		prev, cur bool
		want      KeyupEdge
	}{
		{false, false, EdgeNone},
		{true, true, EdgeNone},
		{false, true, EdgeRise},
		{true, false, EdgeFall},
	}
	for _, tt := range tests {
		if got := Edge(tt.prev, tt.cur); got != tt.want {
			t.Errorf("Edge(%v, %v) = %v, want %v", tt.prev, tt.cur, got, tt.want)
		}
	}
}

func TestDrain(t *testing.T) {
	ch := make(chan Frame, 4)
	ch <- Frame{}
	ch <- Frame{}
	ch <- Frame{}
	close(ch)

	if got := Drain(ch); got != 3 {
		t.Errorf("Drain() = %d, want 3", got)
	}
}

func TestDrainEmpty(t *testing.T) {
	ch := make(chan Frame)
	close(ch)
	if got := Drain(ch); got != 0 {
		t.Errorf("Drain() = %d, want 0", got)
	}
}

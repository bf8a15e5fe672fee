package audio

// Drain reads from ch until the channel is closed, discarding all values and
// returning how many were discarded. The orchestrator uses it to empty the
// stage channels when the drain timeout fires, so blocked producers can exit.
func Drain[T any](ch <-chan T) int {
	n := 0
	for range ch {
		n++
	}
	return n
}

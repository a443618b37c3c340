package rates

// Window admits at most Max events per fixed window of Length ticks. The
// zero value admits everything.
type Window struct {
	Length uint64
	Max    int

	start uint64
	count int
}

// Allow records one event at nowTick. When the window is full it reports
// false and the ticks left until the next window opens.
func (w *Window) Allow(nowTick uint64) (ok bool, cooldownTicks uint64) {
	if w.Length == 0 || w.Max <= 0 {
		return true, 0
	}
	if w.count == 0 || nowTick-w.start >= w.Length {
		w.start = nowTick
		w.count = 0
	}
	w.count++
	if w.count <= w.Max {
		return true, 0
	}
	return false, (w.start + w.Length) - nowTick
}

package world

type Stats struct {
	Tick          uint64
	Regions       int
	LiveChunks    int
	OnlineActors  int
	Timers        int
	ActorTasks    int
	DropsTotal    uint64
	UnloadedTotal uint64
	PanicsTotal   uint64
}

func (w *World) Stats() Stats {
	st := Stats{
		Tick:          w.tick.Load(),
		Regions:       w.RegionCount(),
		DropsTotal:    w.dropsTotal.Load(),
		UnloadedTotal: w.unloadedTotal.Load(),
		PanicsTotal:   w.panicsTotal.Load(),
	}
	for _, s := range w.stores {
		st.LiveChunks += s.LiveCount()
	}
	w.actors.Range(func(_, _ any) bool {
		st.OnlineActors++
		return true
	})
	st.Timers, st.ActorTasks = w.taskCounts()
	return st
}

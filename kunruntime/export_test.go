package kunruntime

// Tracked returns how many open streams and buffer maps r holds.
func (r *Runtime) Tracked() (streams, maps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams, r.maps = pruneClosed(r.streams), pruneClosed(r.maps)
	return len(r.streams), len(r.maps)
}

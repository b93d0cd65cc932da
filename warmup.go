package tandem

// WarmUp makes the runtime create its workers and get them scheduled once,
// so that the first real workload is not charged for it. Call it at startup.
func (r *Runtime) WarmUp() {
	if _, err := r.pool(); err != nil {
		r.logger.Error("warm-up failed", "err", err)
		return
	}
	if r.warmUpTasks == 0 {
		return
	}

	tasks := make([]Task[struct{}], r.warmUpTasks)
	for i := range tasks {
		tasks[i] = func() struct{} {
			return struct{}{}
		}
	}

	Race(r, tasks)

	r.logger.Debug("warm-up complete", "workers", r.size, "workBin", r.WorkBin())
}

package stage

// Health reports whether a stage has everything it needs to run, with
// Detail explaining the failure when it does not.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage as not ready, with detail on what is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

package health

// Checker is implemented by anything whose readiness should be reported on /health.
type Checker interface {
	Check() error
}

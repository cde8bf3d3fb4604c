package sampler

import "errors"

var (
	// ErrSweepAlreadyRunning is returned when Run is called while another
	// sweep against the same service is still in progress.
	ErrSweepAlreadyRunning = errors.New("a sampler sweep is already in progress")

	// ErrRunNotFound is returned when a sweep run id has no recorded history.
	ErrRunNotFound = errors.New("sampler run not found")

	// ErrNoDomainsConfigured is returned when a RunConfig names no domains
	// to resample.
	ErrNoDomainsConfigured = errors.New("sampler: run config names no domains")
)

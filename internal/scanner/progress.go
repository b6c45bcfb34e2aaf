package scanner

import "time"

// Progress reports scanning progress.
type Progress struct {
	// CurrentPath is the directory most recently claimed by a worker.
	CurrentPath string
	// FilesScanned is the total non-directory entries seen so far.
	FilesScanned int64
	// DirsScanned is the total directories listed so far.
	DirsScanned int64
	// BytesFound is the apparent size of all files seen so far.
	BytesFound int64
	// SharedBytes is the allocated size of repeat hard-link sightings.
	SharedBytes int64
	// Errors is the count of errors encountered.
	Errors int64
	// Workers is the pool size, Active how many are listing right now.
	Workers int
	Active  int
	// Queued is the number of directories waiting for a worker.
	Queued int
	// Done indicates the scan root reached a terminal state.
	Done bool
	// StartTime is when the current scan began.
	StartTime time.Time
	// Duration is elapsed time, frozen once Done.
	Duration time.Duration
}

// ItemsPerSecond returns the scan rate.
func (p Progress) ItemsPerSecond() float64 {
	if p.Duration.Seconds() == 0 {
		return 0
	}
	return float64(p.FilesScanned+p.DirsScanned) / p.Duration.Seconds()
}

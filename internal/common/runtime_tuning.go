package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Every quote clones the pool snapshot, so the heap churns in short bursts.
// A higher GOGC trades memory for fewer collections during those bursts.
const (
	smallHostGOGC     = 200
	smallHostMemLimit = 2 * 1024 * 1024 * 1024
	largeHostGOGC     = 400
	largeHostMemLimit = 8 * 1024 * 1024 * 1024
)

func hostProfile() (gogc int, memLimit int64) {
	if runtime.NumCPU() <= 2 {
		return smallHostGOGC, smallHostMemLimit
	}
	return largeHostGOGC, largeHostMemLimit
}

// InitRuntime applies GC settings for the quoting workload unless GOGC or
// GOMEMLIMIT are already set in the environment.
func InitRuntime() {
	gogc, memLimit := hostProfile()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(gogc)
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(memLimit)
	}

	log.Info().
		Int("default_gogc", gogc).
		Int64("default_mem_limit", memLimit).
		Int("cpus", runtime.NumCPU()).
		Msg("[runtime] configured")
}

package memory

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// loadAverage1m reads the 1-minute load average from /proc/loadavg. ok
// is false if the file can't be read or parsed (non-Linux hosts,
// sandboxed containers without /proc), in which case the idle gate
// treats load as passing rather than blocking consolidation forever.
func loadAverage1m() (float64, bool) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// cpuLoadPercent converts a 1-minute load average into a percentage of
// logical CPU capacity, the unit the idle gate's threshold is expressed
// in.
func cpuLoadPercent() (float64, bool) {
	load, ok := loadAverage1m()
	if !ok {
		return 0, false
	}
	cpus := runtime.NumCPU()
	if cpus <= 0 {
		cpus = 1
	}
	return (load / float64(cpus)) * 100, true
}

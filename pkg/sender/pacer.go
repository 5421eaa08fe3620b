package sender

import (
	"time"

	"github.com/oguerrier/loopcast"
)

// PacerInterval returns the per-packet delay that caps outgoing throughput
// at bwlimitKiBps KiB/s. loopsend.c computes this as an integer microsecond
// count, sleep = 10000000L/((10240*bwlimit)/sizeof(message_t)); this does
// the equivalent division directly in time.Duration arithmetic, rounding
// the same way down to zero when bwlimitKiBps is large enough that no
// per-packet delay is needed.
func PacerInterval(bwlimitKiBps int) time.Duration {
	if bwlimitKiBps <= 0 {
		return 0
	}
	bytesPerSecond := float64(bwlimitKiBps) * 1024
	interval := time.Duration(float64(loopcast.WireSize) / bytesPerSecond * float64(time.Second))
	return interval.Truncate(time.Microsecond)
}

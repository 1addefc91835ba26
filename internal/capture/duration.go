package capture

import (
	"fmt"
	"time"
)

// FormatDuration renders elapsed seconds as MM:SS for the recording
// indicator.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// MaxDuration is the longest recording in f that enc can fit into
// maxBytes, truncated to whole seconds.
func MaxDuration(enc Encoder, f Format, maxBytes int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	pcm := enc.MaxPCM(maxBytes, f)
	return (time.Duration(pcm) * time.Second / time.Duration(bps)).Truncate(time.Second)
}

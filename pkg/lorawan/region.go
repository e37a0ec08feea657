package lorawan

import (
	"fmt"
	"strconv"
)

// UplinkFrequencies and DownlinkFrequencies are the US915-style 8-channel
// plan this bridge operates against, rendered as 1-decimal MHz strings so
// matching never depends on float equality.
var (
	UplinkFrequencies   = buildFreqPlan(915.2, 0.2, 8)
	DownlinkFrequencies = buildFreqPlan(923.3, 0.6, 8)
)

func buildFreqPlan(base, step float64, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = formatFreq(base + step*float64(i))
	}
	return out
}

// formatFreq renders a frequency to 1 decimal place, matching the plan's
// string-keyed lookup convention.
func formatFreq(mhz float64) string {
	return fmt.Sprintf("%.1f", mhz)
}

// DownlinkFor maps an uplink frequency (MHz) to its paired RX1 downlink
// frequency, matching by 1-decimal string against UplinkFrequencies. It
// fails explicitly for any frequency outside the plan.
func DownlinkFor(uplinkMHz float64) (float64, error) {
	key := formatFreq(uplinkMHz)
	for i, f := range UplinkFrequencies {
		if f == key {
			return strconv.ParseFloat(DownlinkFrequencies[i], 64)
		}
	}
	return 0, fmt.Errorf("lorawan: %.1f MHz is not on the US915 uplink plan", uplinkMHz)
}

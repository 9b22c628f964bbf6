// SPDX-License-Identifier: MIT
package audio

import "ledspectrum/internal/config"

// Downmix writes one analysis sample per interleaved frame of in to dst and
// zeroes whatever dst has left over. It returns the number of frames used.
// mix selects the first channel or the mean of all channels.
func Downmix(dst []float64, in []float32, channels int, mix string) int {
	if channels < 1 {
		channels = 1
	}
	frames := min(len(in)/channels, len(dst))
	for i := range frames {
		dst[i] = mixFrame(in[i*channels:(i+1)*channels], mix)
	}
	clear(dst[frames:])
	return frames
}

func mixFrame(frame []float32, mix string) float64 {
	if mix != config.MixMean || len(frame) == 1 {
		return float64(frame[0])
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s)
	}
	return sum / float64(len(frame))
}

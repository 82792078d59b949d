package swing

// FrameRate is the video frame rate behind preset notation like "21/7"
const FrameRate = 30.0

// MsToBPM converts the duration of one beat to beats per minute
func MsToBPM(ms float64) float64 {
	return 60000 / ms
}

// BPMToMs converts beats per minute to the duration of one beat
func BPMToMs(bpm float64) float64 {
	return 60000 / bpm
}

// FrameNotationToMs converts a frame count at 30 Hz to milliseconds
func FrameNotationToMs(frames float64) float64 {
	return frames * 1000 / FrameRate
}

// MsToFrames converts milliseconds to a (fractional) frame count at 30 Hz
func MsToFrames(ms float64) float64 {
	return ms * FrameRate / 1000
}

// BackswingMs is the backswing duration for a downswing at the given ratio
func BackswingMs(downswingMs float64, r Ratio) float64 {
	return downswingMs * float64(r)
}

package indicators

// VolumeSMA computes the simple moving average of volume, reusing the same
// windowed-mean implementation as the price SMA.
func VolumeSMA(volume []float64, period int) (Series, error) {
	return SMA(volume, period)
}

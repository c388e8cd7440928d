package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/volatility"
)

// Bollinger computes upper, middle, and lower Bollinger Bands. cinar's
// implementation is fixed at a 2-standard-deviation band, matching the
// teacher's own note that it "ignores the custom std_dev parameter"; for any
// other multiplier this falls back to a manual SMA + population standard
// deviation computation so the parameter is actually honored.
func Bollinger(closePrices []float64, period int, numStdDev float64) (upper, middle, lower Series, err error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, nil, nil, err
	}
	if numStdDev <= 0 {
		return nil, nil, nil, ErrParameterInvalid
	}

	if numStdDev == 2.0 {
		in := make(chan float64, len(closePrices))
		for _, p := range closePrices {
			in <- p
		}
		close(in)

		bb := volatility.NewBollingerBandsWithPeriod[float64](period)
		lowerChan, middleChan, upperChan := bb.Compute(in)

		var lowers, middles, uppers []float64
		for {
			l, lok := <-lowerChan
			m, mok := <-middleChan
			u, uok := <-upperChan
			if !lok || !mok || !uok {
				break
			}
			lowers = append(lowers, l)
			middles = append(middles, m)
			uppers = append(uppers, u)
		}

		n := len(closePrices)
		offset := n - len(middles)
		upper, middle, lower = newSeries(n), newSeries(n), newSeries(n)
		for i := range middles {
			upper[offset+i] = uppers[i]
			middle[offset+i] = middles[i]
			lower[offset+i] = lowers[i]
		}
		return upper, middle, lower, nil
	}

	return manualBollinger(closePrices, period, numStdDev)
}

func manualBollinger(closePrices []float64, period int, numStdDev float64) (upper, middle, lower Series, err error) {
	sma, serr := SMA(closePrices, period)
	if serr != nil {
		return nil, nil, nil, serr
	}

	n := len(closePrices)
	upper, middle, lower = newSeries(n), newSeries(n), newSeries(n)
	for i := period - 1; i < n; i++ {
		var sumSq float64
		mean := sma[i]
		for j := i - period + 1; j <= i; j++ {
			d := closePrices[j] - mean
			sumSq += d * d
		}
		stdDev := math.Sqrt(sumSq / float64(period))
		middle[i] = mean
		upper[i] = mean + numStdDev*stdDev
		lower[i] = mean - numStdDev*stdDev
	}
	return upper, middle, lower, nil
}

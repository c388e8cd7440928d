package indicators

import "github.com/cinar/indicator/v2/trend"

// MACD computes the MACD line, its signal line, and the histogram
// (line - signal), one Series each, aligned to the input length.
func MACD(closePrices []float64, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram Series, err error) {
	if fastPeriod < 1 || slowPeriod < 1 || signalPeriod < 1 {
		return nil, nil, nil, ErrParameterInvalid
	}
	if fastPeriod >= slowPeriod {
		return nil, nil, nil, ErrParameterInvalid
	}

	in := make(chan float64, len(closePrices))
	for _, p := range closePrices {
		in <- p
	}
	close(in)

	macdIndicator := trend.NewMacdWithPeriod[float64](fastPeriod, slowPeriod, signalPeriod)
	macdChan, signalChan := macdIndicator.Compute(in)

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		sg, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, sg)
	}
	if len(macdValues) == 0 {
		return nil, nil, nil, ErrParameterInvalid
	}

	n := len(closePrices)
	offset := n - len(macdValues)

	line = newSeries(n)
	signal = newSeries(n)
	histogram = newSeries(n)
	for i := range macdValues {
		line[offset+i] = macdValues[i]
		signal[offset+i] = signalValues[i]
		histogram[offset+i] = macdValues[i] - signalValues[i]
	}
	return line, signal, histogram, nil
}

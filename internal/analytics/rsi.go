package analytics

import "github.com/guregu/null/v6"

// flatEpsilon absorbs the residue left by subtracting long prefix sums.
const flatEpsilon = 1e-9

// RSI computes the relative strength index over period close-to-close
// changes using simple means of gains and losses. Values are null until
// period changes exist.
func RSI(closes []float64, period int) []null.Float {
	out := make([]null.Float, len(closes))
	if len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if d := closes[i] - closes[i-1]; d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	pg, pl := prefixSums(gains), prefixSums(losses)
	for i := period; i < len(closes); i++ {
		avgGain := (pg[i+1] - pg[i+1-period]) / float64(period)
		avgLoss := (pl[i+1] - pl[i+1-period]) / float64(period)

		switch {
		case avgLoss < flatEpsilon && avgGain < flatEpsilon:
			out[i] = null.FloatFrom(50)
		case avgLoss < flatEpsilon:
			out[i] = null.FloatFrom(100)
		default:
			rs := avgGain / avgLoss
			out[i] = null.FloatFrom(100 - 100/(1+rs))
		}
	}
	return out
}

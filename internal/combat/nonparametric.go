package combat

import "math"

// shrinkNonparametric replaces each feature's batch location and scale
// with averages of the other features' estimates, weighted by the
// likelihood of this feature's data under each of them. Weights are
// computed in log space.
func shrinkNonparametric(data [][]float64, gammaHat, deltaHat []float64) (gamma, delta []float64) {
	m := len(data)
	gamma = make([]float64, m)
	delta = make([]float64, m)
	logLH := make([]float64, m)
	for i, row := range data {
		n := float64(len(row))
		maxLog := math.Inf(-1)
		for k := 0; k < m; k++ {
			logLH[k] = math.Inf(-1)
			if k == i || !(deltaHat[k] > 0) {
				continue
			}
			var sum2 float64
			for _, v := range row {
				sum2 += (v - gammaHat[k]) * (v - gammaHat[k])
			}
			logLH[k] = -n/2*math.Log(2*math.Pi*deltaHat[k]) - sum2/(2*deltaHat[k])
			maxLog = math.Max(maxLog, logLH[k])
		}
		if math.IsInf(maxLog, -1) {
			gamma[i], delta[i] = gammaHat[i], deltaHat[i]
			continue
		}
		var wsum, gsum, dsum float64
		for k := 0; k < m; k++ {
			if math.IsInf(logLH[k], -1) {
				continue
			}
			w := math.Exp(logLH[k] - maxLog)
			wsum += w
			gsum += w * gammaHat[k]
			dsum += w * deltaHat[k]
		}
		gamma[i], delta[i] = gsum/wsum, dsum/wsum
	}
	return gamma, delta
}

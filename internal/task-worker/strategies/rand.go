package strategies

import "math/rand"

// randFloat returns a uniform value in [min, max).
func randFloat(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rand.Float64()*(max-min)
}

// randInt returns a uniform integer in [min, max].
func randInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.Intn(max-min+1)
}

// tradeWeights converts a bias in [-1, 1] into buy and sell weights that sum
// to one. Bias 1 is all buys, -1 all sells, 0 an even split.
func tradeWeights(bias float64) (buyWeight, sellWeight float64) {
	buyWeight = (1 + bias) / 2
	sellWeight = (1 - bias) / 2
	return buyWeight, sellWeight
}

// splitVolumeIntoAmounts breaks volume into exactly count trade amounts. Each
// amount is the even share jittered by +/-20%, capped at the remaining
// volume, so late entries can come out zero once the volume is spent.
// Non-positive volume yields no trades.
func splitVolumeIntoAmounts(volume float64, count int) []float64 {
	if volume <= 0 || count < 1 {
		return nil
	}
	share := volume / float64(count)
	amounts := make([]float64, 0, count)
	remaining := volume
	for i := 0; i < count; i++ {
		amount := share * randFloat(0.8, 1.2)
		if amount > remaining {
			amount = remaining
		}
		amounts = append(amounts, amount)
		remaining -= amount
	}
	return amounts
}

// shuffleTrades randomizes trade order in place.
func shuffleTrades[T any](trades []T) {
	rand.Shuffle(len(trades), func(i, j int) {
		trades[i], trades[j] = trades[j], trades[i]
	})
}

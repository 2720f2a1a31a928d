// Package fees implements the exchange's taker/maker fee schedule (§4.1).
package fees

import "math"

// DefaultSafetyMultiplier is the default margin required above the raw
// fee cost before a violation counts as profitable.
const DefaultSafetyMultiplier = 2.0

// TakerFee returns the taker fee in dollars for count contracts at price
// (dollars, in (0, 1)). Degenerate inputs return zero. The ceiling is
// applied on cent-scale value after rounding to 8 decimal places to
// suppress float drift.
func TakerFee(count int, price float64) float64 {
	return fee(count, price, 7)
}

// MakerFee returns the maker (resting) fee in dollars, using factor 1.75
// in place of the taker schedule's 7.
func MakerFee(count int, price float64) float64 {
	return fee(count, price, 1.75)
}

func fee(count int, price float64, factor float64) float64 {
	if count <= 0 || price <= 0 || price >= 1 {
		return 0
	}
	rawCents := factor * float64(count) * price * (1 - price)
	rounded := math.Round(rawCents*1e8) / 1e8
	return math.Ceil(rounded) / 100
}

// MaxFeePerContract is the taker fee for a single contract at price.
func MaxFeePerContract(price float64) float64 {
	return TakerFee(1, price)
}

// EstimateRoundTripFees estimates total taker fees for a buy+sell round
// trip of count contracts.
func EstimateRoundTripFees(count int, buyPrice, sellPrice float64) float64 {
	return TakerFee(count, buyPrice) + TakerFee(count, sellPrice)
}

// IsProfitable reports whether magnitude (the raw mispricing spread in
// dollars per contract) clears the safety-multiplied average taker fee
// across legPrices. safety defaults to DefaultSafetyMultiplier when <= 0.
func IsProfitable(magnitude float64, count int, legPrices []float64, safety float64) bool {
	if safety <= 0 {
		safety = DefaultSafetyMultiplier
	}
	if count <= 0 {
		return false
	}
	var total float64
	for _, p := range legPrices {
		total += TakerFee(count, p)
	}
	feePerContract := total / float64(count)
	return magnitude > feePerContract*safety
}

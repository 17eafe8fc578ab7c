package service

import "github.com/noah-isme/green-campus-api/internal/models"

type levelThreshold struct {
	min   float64
	level models.WalletLevel
}

// Ordered from the highest tier down; lower bounds are inclusive.
var levelThresholds = []levelThreshold{
	{min: 200, level: models.LevelForest},
	{min: 120, level: models.LevelGrove},
	{min: 60, level: models.LevelSapling},
}

func levelFor(total float64) models.WalletLevel {
	for _, threshold := range levelThresholds {
		if total >= threshold.min {
			return threshold.level
		}
	}
	return models.LevelSeed
}

// applyWalletDelta is the only place wallet totals change. It keeps
// total = earned - spent and derives the level from the new total.
func applyWalletDelta(wallet *models.CreditWallet, earned, spent float64) {
	wallet.CreditsEarned = models.RoundCredits(wallet.CreditsEarned + earned)
	wallet.CreditsSpent = models.RoundCredits(wallet.CreditsSpent + spent)
	wallet.TotalCredits = models.RoundCredits(wallet.CreditsEarned - wallet.CreditsSpent)
	wallet.Level = levelFor(wallet.TotalCredits)
}

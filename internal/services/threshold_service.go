package services

import (
	"sort"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// tierRank orders approval tiers lowest-first; sequential tiers require
// every lower tier to be approved before they can be granted.
var tierRank = map[string]int{
	models.TierDfo: 1,
	models.TierHo:  2,
}

// RequiredTier is one approval tier a monetary amount resolves to.
type RequiredTier struct {
	Tier               string `json:"tier"`
	RequiresSequential bool   `json:"requiresSequential"`
}

// ResolveTiers returns the ordered set of approval tiers whose band contains
// amount. An amount below every band resolves to the empty set.
func ResolveTiers(db *gorm.DB, amount float64) ([]RequiredTier, error) {
	var thresholds []models.ApprovalThreshold
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Where("is_active = ?", true).
		Find(&thresholds).Error
	if err != nil {
		return nil, types.NewUnavailableError(err.Error(), "approval.thresholds.load")
	}

	return MatchThresholds(thresholds, amount), nil
}

// MatchThresholds is the pure band-matching function behind ResolveTiers.
// A band matches when minAmount <= amount < maxAmount (nil maxAmount is
// unbounded). Overlapping bands for the same tier collapse into one required
// tier; the tier is sequential if any matching band says so. Results are
// ordered lowest tier first, deterministically for a given configuration.
func MatchThresholds(thresholds []models.ApprovalThreshold, amount float64) []RequiredTier {
	matched := make(map[string]bool)
	for _, th := range thresholds {
		if !th.IsActive {
			continue
		}
		if amount < th.MinAmount {
			continue
		}
		if th.MaxAmount != nil && amount >= *th.MaxAmount {
			continue
		}
		matched[th.Tier] = matched[th.Tier] || th.RequiresSequential
	}

	tiers := make([]RequiredTier, 0, len(matched))
	for tier, sequential := range matched {
		tiers = append(tiers, RequiredTier{Tier: tier, RequiresSequential: sequential})
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tierRank[tiers[i].Tier] < tierRank[tiers[j].Tier]
	})

	return tiers
}

// ListActiveThresholds returns the active threshold bands ordered by tier
// and lower bound.
func ListActiveThresholds(db *gorm.DB) ([]models.ApprovalThreshold, error) {
	var thresholds []models.ApprovalThreshold
	err := db.Where("is_active = ?", true).
		Order("tier asc, min_amount asc").
		Find(&thresholds).Error
	if err != nil {
		return nil, types.NewUnavailableError(err.Error(), "approval.thresholds.list")
	}
	return thresholds, nil
}

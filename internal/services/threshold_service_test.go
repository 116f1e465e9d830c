package services_test

import (
	"testing"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/services"
)

func defaultBands() []models.ApprovalThreshold {
	max := 10000.0
	return []models.ApprovalThreshold{
		{Name: "DFO", MinAmount: 3000, MaxAmount: &max, Tier: models.TierDfo, IsActive: true},
		{Name: "DFO large", MinAmount: 10000, Tier: models.TierDfo, IsActive: true},
		{Name: "HO", MinAmount: 10000, Tier: models.TierHo, RequiresSequential: true, IsActive: true},
	}
}

// TestMatchThresholdsBelowAllBands verifies that a small amount needs no
// approval at all
func TestMatchThresholdsBelowAllBands(t *testing.T) {
	tiers := services.MatchThresholds(defaultBands(), 500)
	if len(tiers) != 0 {
		t.Errorf("Expected no tiers for 500, got %v", tiers)
	}
}

// TestMatchThresholdsMidBand verifies single-tier resolution
func TestMatchThresholdsMidBand(t *testing.T) {
	tiers := services.MatchThresholds(defaultBands(), 5000)
	if len(tiers) != 1 {
		t.Fatalf("Expected 1 tier for 5000, got %v", tiers)
	}
	if tiers[0].Tier != models.TierDfo || tiers[0].RequiresSequential {
		t.Errorf("Expected non-sequential dfo, got %+v", tiers[0])
	}
}

// TestMatchThresholdsHighAmount verifies both tiers resolve, ordered lowest
// first, with the home-office tier sequential
func TestMatchThresholdsHighAmount(t *testing.T) {
	tiers := services.MatchThresholds(defaultBands(), 12000)
	if len(tiers) != 2 {
		t.Fatalf("Expected 2 tiers for 12000, got %v", tiers)
	}
	if tiers[0].Tier != models.TierDfo {
		t.Errorf("Expected dfo first, got %s", tiers[0].Tier)
	}
	if tiers[1].Tier != models.TierHo || !tiers[1].RequiresSequential {
		t.Errorf("Expected sequential ho second, got %+v", tiers[1])
	}
}

// TestMatchThresholdsBoundaries verifies inclusive lower and exclusive upper
// bounds
func TestMatchThresholdsBoundaries(t *testing.T) {
	// Exactly at the lower bound: included
	tiers := services.MatchThresholds(defaultBands(), 3000)
	if len(tiers) != 1 || tiers[0].Tier != models.TierDfo {
		t.Errorf("Expected dfo at 3000, got %v", tiers)
	}

	// Just below the lower bound: excluded
	tiers = services.MatchThresholds(defaultBands(), 2999.99)
	if len(tiers) != 0 {
		t.Errorf("Expected no tiers at 2999.99, got %v", tiers)
	}

	// Exactly at the upper bound of the capped band: the capped band is
	// excluded, the unbounded bands take over
	tiers = services.MatchThresholds(defaultBands(), 10000)
	if len(tiers) != 2 {
		t.Errorf("Expected 2 tiers at 10000, got %v", tiers)
	}
}

// TestMatchThresholdsOverlapCollapses verifies that overlapping bands for the
// same tier collapse into a single required tier
func TestMatchThresholdsOverlapCollapses(t *testing.T) {
	bands := append(defaultBands(), models.ApprovalThreshold{
		Name: "DFO duplicate", MinAmount: 4000, Tier: models.TierDfo, IsActive: true,
	})
	tiers := services.MatchThresholds(bands, 5000)
	if len(tiers) != 1 {
		t.Errorf("Expected overlapping dfo bands to collapse, got %v", tiers)
	}
}

// TestMatchThresholdsSequentialWinsOnOverlap verifies that if any matching
// band marks a tier sequential, the collapsed tier is sequential
func TestMatchThresholdsSequentialWinsOnOverlap(t *testing.T) {
	bands := append(defaultBands(), models.ApprovalThreshold{
		Name: "HO early", MinAmount: 4000, Tier: models.TierHo, IsActive: true,
	})
	bands = append(bands, models.ApprovalThreshold{
		Name: "HO early seq", MinAmount: 4500, Tier: models.TierHo, RequiresSequential: true, IsActive: true,
	})
	tiers := services.MatchThresholds(bands, 5000)
	if len(tiers) != 2 {
		t.Fatalf("Expected 2 tiers, got %v", tiers)
	}
	if !tiers[1].RequiresSequential {
		t.Error("Expected collapsed ho tier to be sequential")
	}
}

// TestMatchThresholdsInactiveIgnored verifies inactive bands never match
func TestMatchThresholdsInactiveIgnored(t *testing.T) {
	bands := []models.ApprovalThreshold{
		{Name: "disabled", MinAmount: 0, Tier: models.TierDfo, IsActive: false},
	}
	tiers := services.MatchThresholds(bands, 99999)
	if len(tiers) != 0 {
		t.Errorf("Expected inactive band to be ignored, got %v", tiers)
	}
}

// TestResolveTiersFromDatabase verifies resolution against the seeded bands
func TestResolveTiersFromDatabase(t *testing.T) {
	db := setupTestDB(t)

	tiers, err := services.ResolveTiers(db, 7500)
	if err != nil {
		t.Fatalf("ResolveTiers failed: %v", err)
	}
	if len(tiers) != 1 || tiers[0].Tier != models.TierDfo {
		t.Errorf("Expected seeded dfo band to match 7500, got %v", tiers)
	}
}

package pet

import (
	"testing"
	"time"

	"github.com/walmagochi/gateway/pkg/chain"
	"github.com/walmagochi/gateway/pkg/database"
)

func freshPet() *database.PetState {
	now := time.Now()
	return &database.PetState{
		DeviceID:   "device-1",
		Name:       "pet-device-1",
		Happiness:  50,
		Hunger:     50,
		Health:     100,
		Food:       5,
		Energy:     5,
		LastFed:    now,
		LastPlayed: now,
	}
}

func TestApplyDecay_NoElapsedTime(t *testing.T) {
	p := freshPet()
	applyDecay(p)
	if p.Hunger != 50 || p.Happiness != 50 || p.Health != 100 {
		t.Fatalf("decay applied with no elapsed time: hunger=%d happiness=%d health=%d", p.Hunger, p.Happiness, p.Health)
	}
}

func TestApplyDecay_HungerDropsPerWholeHour(t *testing.T) {
	p := freshPet()
	p.LastFed = time.Now().Add(-3*time.Hour - 10*time.Minute)
	applyDecay(p)
	if p.Hunger != 47 {
		t.Fatalf("expected hunger 47 after 3 whole hours, got %d", p.Hunger)
	}
}

func TestApplyDecay_HappinessDropsPerTwoHours(t *testing.T) {
	p := freshPet()
	p.LastPlayed = time.Now().Add(-5 * time.Hour)
	applyDecay(p)
	if p.Happiness != 48 {
		t.Fatalf("expected happiness 48 after 5 hours (2 whole 2h ticks), got %d", p.Happiness)
	}
}

func TestApplyDecay_HungerFloorsAtZero(t *testing.T) {
	p := freshPet()
	p.Hunger = 2
	p.LastFed = time.Now().Add(-100 * time.Hour)
	applyDecay(p)
	if p.Hunger != 0 {
		t.Fatalf("expected hunger floored at 0, got %d", p.Hunger)
	}
}

func TestApplyDecay_HealthDropsWhenHungerOrHappinessLow(t *testing.T) {
	p := freshPet()
	p.Hunger = 10
	p.Happiness = 90
	applyDecay(p)
	if p.Health != 99 {
		t.Fatalf("expected health to drop by 1 when hunger < 20, got %d", p.Health)
	}
}

func TestApplyDecay_HealthRisesWhenBothHigh(t *testing.T) {
	p := freshPet()
	p.Health = 50
	p.Hunger = 90
	p.Happiness = 90
	applyDecay(p)
	if p.Health != 51 {
		t.Fatalf("expected health to rise by 1 when hunger>80 and happiness>80, got %d", p.Health)
	}
}

func TestApplyDecay_HealthUnchangedInNeutralBand(t *testing.T) {
	p := freshPet()
	p.Health = 50
	p.Hunger = 50
	p.Happiness = 50
	applyDecay(p)
	if p.Health != 50 {
		t.Fatalf("expected health unchanged in neutral band, got %d", p.Health)
	}
}

func TestApplySnapshot_OverridesBoundedFields(t *testing.T) {
	p := freshPet()
	snap := &chain.PetSnapshot{
		Level:      3,
		Experience: 700,
		Happiness:  10,
		Hunger:     10,
		Health:     10,
		Food:       2,
		Energy:     2,
	}

	applySnapshot(p, snap)

	if p.Level != 3 || p.Experience != 700 || p.Happiness != 10 || p.Hunger != 10 ||
		p.Health != 10 || p.Food != 2 || p.Energy != 2 {
		t.Fatalf("applySnapshot did not fully override local state: %+v", p)
	}
}

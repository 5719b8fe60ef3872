// Package pet implements the per-device pet state machine: local-first
// writes with a chain-snapshot override applied whenever the matching
// chain mirror call succeeds.
package pet

import (
	"context"
	"log"
	"time"

	"github.com/walmagochi/gateway/pkg/apperr"
	"github.com/walmagochi/gateway/pkg/chain"
	"github.com/walmagochi/gateway/pkg/database"
)

// chainCallDeadline bounds every chain-mirroring attempt made inline
// during a pet operation, so a slow or unavailable chain adapter never
// blocks the local write.
const chainCallDeadline = 10 * time.Second

// Orchestrator applies the deterministic pet rules to the local store
// and mirrors bounded fields to the chain when a handle exists.
type Orchestrator struct {
	pets   *database.PetRepository
	chain  chain.Gateway
	logger *log.Logger
}

// NewOrchestrator builds an Orchestrator over repo and gw. Pass
// chain.NullGateway{} when chain mirroring is disabled.
func NewOrchestrator(repo *database.PetRepository, gw chain.Gateway, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[pet] ", log.LstdFlags)
	}
	return &Orchestrator{pets: repo, chain: gw, logger: logger}
}

// GetPet returns the device's current pet state, creating it with
// default stats if absent and attempting a bounded createPet call if
// chain mirroring is configured and no chain handle is on file yet.
// Decay is applied before the state is returned.
func (o *Orchestrator) GetPet(ctx context.Context, deviceID string) (*database.PetState, error) {
	p, err := o.pets.Get(ctx, deviceID)
	if err == database.ErrPetNotFound {
		p, err = o.pets.Create(ctx, deviceID, defaultPetName(deviceID))
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "create default pet", err)
		}
	} else if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load pet", err)
	}

	if !p.ChainPetHandle.Valid {
		o.tryCreateOnChain(ctx, p)
	}

	applyDecay(p)
	p.Clamp()
	if err := o.pets.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist decayed pet state", err)
	}
	return p, nil
}

func (o *Orchestrator) tryCreateOnChain(ctx context.Context, p *database.PetState) {
	cctx, cancel := context.WithTimeout(ctx, chainCallDeadline)
	defer cancel()

	handle, _, err := o.chain.CreatePet(cctx, p.Name, p.DeviceID, "")
	if err != nil {
		o.logger.Printf("chain createPet failed for device %s: %v", p.DeviceID, err)
		return
	}
	if err := o.pets.SetChainHandle(ctx, p.DeviceID, handle); err != nil {
		o.logger.Printf("persist chain pet handle failed for device %s: %v", p.DeviceID, err)
		return
	}
	p.ChainPetHandle.String = handle
	p.ChainPetHandle.Valid = true
}

// applyDecay applies the time-based decay rule: hunger drops 1 per
// whole hour since last_fed, happiness drops 1 per whole 2 hours since
// last_played, and health follows the combined thresholds. All floors
// at 0.
func applyDecay(p *database.PetState) {
	now := time.Now()

	hungerTicks := int(now.Sub(p.LastFed) / time.Hour)
	if hungerTicks > 0 {
		p.Hunger -= hungerTicks
		if p.Hunger < 0 {
			p.Hunger = 0
		}
	}

	happinessTicks := int(now.Sub(p.LastPlayed) / (2 * time.Hour))
	if happinessTicks > 0 {
		p.Happiness -= happinessTicks
		if p.Happiness < 0 {
			p.Happiness = 0
		}
	}

	if p.Hunger < 20 || p.Happiness < 20 {
		p.Health--
		if p.Health < 0 {
			p.Health = 0
		}
	}
	if p.Hunger > 80 && p.Happiness > 80 {
		p.Health++
		if p.Health > 100 {
			p.Health = 100
		}
	}
}

// ClaimResources computes foodGained/energyGained from steps and adds
// them to the device's pet resources. steps must be >= 100.
func (o *Orchestrator) ClaimResources(ctx context.Context, deviceID string, steps int64) (*database.PetState, error) {
	if steps < 100 {
		return nil, apperr.New(apperr.Validation, "claimResources requires steps >= 100")
	}

	p, err := o.loadForWrite(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	foodGained := steps / 100
	energyGained := 2 * (steps / 150)
	p.Food += foodGained
	p.Energy += energyGained
	p.Clamp()

	if err := o.pets.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist claimed resources", err)
	}

	if p.ChainPetHandle.Valid {
		o.mirrorClaim(ctx, p, steps)
	}
	return p, nil
}

func (o *Orchestrator) mirrorClaim(ctx context.Context, p *database.PetState, steps int64) {
	cctx, cancel := context.WithTimeout(ctx, chainCallDeadline)
	defer cancel()

	result, err := o.chain.ClaimResources(cctx, p.ChainPetHandle.String, steps)
	if err != nil {
		o.logger.Printf("chain claimResources failed for device %s: %v", p.DeviceID, err)
		return
	}
	p.Food = result.NewFood
	p.Energy = result.NewEnergy
	p.Clamp()
	if err := o.pets.Update(ctx, p); err != nil {
		o.logger.Printf("persist chain-mirrored resources failed for device %s: %v", p.DeviceID, err)
	}
}

// FeedPet requires food >= 1, applies the feed transition, and
// re-evaluates level.
func (o *Orchestrator) FeedPet(ctx context.Context, deviceID string) (*database.PetState, error) {
	p, err := o.loadForWrite(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if p.Food < 1 {
		return nil, apperr.New(apperr.State, "feedPet requires food >= 1")
	}

	p.Food--
	p.Hunger += 25
	p.Happiness += 5
	p.Experience += 10
	p.LastFed = time.Now()
	p.Clamp()

	if err := o.pets.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist fed pet", err)
	}

	if p.ChainPetHandle.Valid {
		o.mirrorFeed(ctx, p)
	}
	return p, nil
}

func (o *Orchestrator) mirrorFeed(ctx context.Context, p *database.PetState) {
	cctx, cancel := context.WithTimeout(ctx, chainCallDeadline)
	defer cancel()

	if _, err := o.chain.FeedPet(cctx, p.ChainPetHandle.String); err != nil {
		o.logger.Printf("chain feedPet failed for device %s: %v", p.DeviceID, err)
		return
	}
	snap, err := o.chain.GetPet(cctx, p.ChainPetHandle.String)
	if err != nil || snap == nil {
		o.logger.Printf("chain getPet after feed failed for device %s: %v", p.DeviceID, err)
		return
	}
	applySnapshot(p, snap)
	if err := o.pets.Update(ctx, p); err != nil {
		o.logger.Printf("persist chain-mirrored feed failed for device %s: %v", p.DeviceID, err)
	}
}

// PlayWithPet requires energy >= 1 and applies the play transition.
func (o *Orchestrator) PlayWithPet(ctx context.Context, deviceID string) (*database.PetState, error) {
	p, err := o.loadForWrite(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if p.Energy < 1 {
		return nil, apperr.New(apperr.State, "playWithPet requires energy >= 1")
	}

	p.Energy--
	p.Happiness += 15
	p.Health += 3
	p.Experience += 5
	p.LastPlayed = time.Now()
	p.Clamp()

	if err := o.pets.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist played pet", err)
	}

	if p.ChainPetHandle.Valid {
		o.mirrorPlay(ctx, p)
	}
	return p, nil
}

func (o *Orchestrator) mirrorPlay(ctx context.Context, p *database.PetState) {
	cctx, cancel := context.WithTimeout(ctx, chainCallDeadline)
	defer cancel()

	if _, err := o.chain.PlayWithPet(cctx, p.ChainPetHandle.String); err != nil {
		o.logger.Printf("chain playWithPet failed for device %s: %v", p.DeviceID, err)
		return
	}
	snap, err := o.chain.GetPet(cctx, p.ChainPetHandle.String)
	if err != nil || snap == nil {
		o.logger.Printf("chain getPet after play failed for device %s: %v", p.DeviceID, err)
		return
	}
	applySnapshot(p, snap)
	if err := o.pets.Update(ctx, p); err != nil {
		o.logger.Printf("persist chain-mirrored play failed for device %s: %v", p.DeviceID, err)
	}
}

// UpdatePet applies an arbitrary field patch (e.g. cosmetic choice)
// and persists it, re-clamping bounded stats.
func (o *Orchestrator) UpdatePet(ctx context.Context, deviceID string, mutate func(*database.PetState)) (*database.PetState, error) {
	p, err := o.loadForWrite(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	mutate(p)
	p.Clamp()
	if err := o.pets.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist pet update", err)
	}
	return p, nil
}

// loadForWrite loads current state and applies decay before a
// transition rule is evaluated, so every write observes fresh decay.
func (o *Orchestrator) loadForWrite(ctx context.Context, deviceID string) (*database.PetState, error) {
	p, err := o.pets.Get(ctx, deviceID)
	if err == database.ErrPetNotFound {
		return nil, apperr.New(apperr.State, "no pet exists for this device; call getPet first")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load pet", err)
	}
	applyDecay(p)
	return p, nil
}

// applySnapshot overwrites the local bounded fields with the chain's
// authoritative values after a successful mirror call.
func applySnapshot(p *database.PetState, snap *chain.PetSnapshot) {
	p.Level = snap.Level
	p.Experience = snap.Experience
	p.Happiness = snap.Happiness
	p.Hunger = snap.Hunger
	p.Health = snap.Health
	p.Food = snap.Food
	p.Energy = snap.Energy
	p.Clamp()
}

func defaultPetName(deviceID string) string {
	return "pet-" + deviceID
}

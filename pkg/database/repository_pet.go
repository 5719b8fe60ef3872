package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PetRepository implements the derived pet-state CRUD. The decay and
// transition rules themselves live in the pet orchestrator package;
// this repository only persists whatever state it is handed.
type PetRepository struct {
	client *Client
}

// NewPetRepository creates a PetRepository over client.
func NewPetRepository(client *Client) *PetRepository {
	return &PetRepository{client: client}
}

const petColumns = `device_id, pet_name, level, experience, total_steps_fed, happiness,
	       hunger, health, food, energy, created_at, last_fed, last_played,
	       cosmetic, chain_pet_handle`

func scanPet(row interface{ Scan(...interface{}) error }) (*PetState, error) {
	p := &PetState{}
	err := row.Scan(
		&p.DeviceID, &p.Name, &p.Level, &p.Experience, &p.TotalStepsFed, &p.Happiness,
		&p.Hunger, &p.Health, &p.Food, &p.Energy, &p.CreatedAt, &p.LastFed, &p.LastPlayed,
		&p.Cosmetic, &p.ChainPetHandle,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pet: %w", err)
	}
	return p, nil
}

// Get returns the device's pet state, or ErrPetNotFound if none exists.
func (r *PetRepository) Get(ctx context.Context, deviceID string) (*PetState, error) {
	q := `SELECT ` + petColumns + ` FROM pets WHERE device_id = $1`
	return scanPet(r.client.DB().QueryRowContext(ctx, q, deviceID))
}

// Create inserts a new pet row with its starting stat values
// (happiness=50, hunger=50, health=100, food=5, energy=5, level=0).
func (r *PetRepository) Create(ctx context.Context, deviceID, name string) (*PetState, error) {
	const q = `
		INSERT INTO pets
			(device_id, pet_name, level, experience, total_steps_fed, happiness,
			 hunger, health, food, energy, created_at, last_fed, last_played)
		VALUES ($1, $2, 0, 0, 0, 50, 50, 100, 5, 5, now(), now(), now())
		RETURNING ` + petColumns

	return scanPet(r.client.DB().QueryRowContext(ctx, q, deviceID, name))
}

// Update persists the full pet state. Callers are expected to have
// already applied decay, transition rules, and Clamp().
func (r *PetRepository) Update(ctx context.Context, p *PetState) error {
	const q = `
		UPDATE pets SET
			pet_name = $2, level = $3, experience = $4, total_steps_fed = $5,
			happiness = $6, hunger = $7, health = $8, food = $9, energy = $10,
			last_fed = $11, last_played = $12, cosmetic = $13, chain_pet_handle = $14
		WHERE device_id = $1`

	res, err := r.client.DB().ExecContext(ctx, q,
		p.DeviceID, p.Name, p.Level, p.Experience, p.TotalStepsFed,
		p.Happiness, p.Hunger, p.Health, p.Food, p.Energy,
		p.LastFed, p.LastPlayed, p.Cosmetic, p.ChainPetHandle,
	)
	if err != nil {
		return fmt.Errorf("update pet: %w", err)
	}
	return checkRowsAffected(res, ErrPetNotFound)
}

// SetChainHandle stores the chain pet handle obtained after a
// successful createPet call.
func (r *PetRepository) SetChainHandle(ctx context.Context, deviceID, handle string) error {
	const q = `UPDATE pets SET chain_pet_handle = $2 WHERE device_id = $1`
	res, err := r.client.DB().ExecContext(ctx, q, deviceID, handle)
	if err != nil {
		return fmt.Errorf("set chain pet handle: %w", err)
	}
	return checkRowsAffected(res, ErrPetNotFound)
}

// Package database implements durable storage for the gateway: the
// device registry, submission records, and derived pet states, backed
// by PostgreSQL via database/sql + lib/pq, organized one repository per
// entity.
package database

import (
	"database/sql"
	"time"
)

// DeviceStatus is the lifecycle status of a registered device.
type DeviceStatus string

const (
	DeviceStatusActive    DeviceStatus = "active"
	DeviceStatusSuspended DeviceStatus = "suspended"
)

// Device is a registered hardware witness.
type Device struct {
	DeviceID           string         `db:"device_id" json:"device_id"`
	PublicKey          []byte         `db:"public_key" json:"public_key"` // 32-byte Ed25519 public key
	RegisteredAt       time.Time      `db:"registered_at" json:"registered_at"`
	LastSeen           time.Time      `db:"last_seen" json:"last_seen"`
	CumulativeSteps    int64          `db:"cumulative_steps" json:"cumulative_steps"`
	TotalSubmissions   int64          `db:"total_submissions" json:"total_submissions"`
	Status             DeviceStatus   `db:"status" json:"status"`
	ChainDeviceHandle  sql.NullString `db:"chain_device_handle" json:"chain_device_handle,omitempty"`
}

// AccSample is one 3-axis accelerometer reading.
type AccSample [3]float64

// SubmissionRecord is a verified activity batch reported by a device.
type SubmissionRecord struct {
	ID              int64          `db:"id" json:"id"`
	DeviceID        string         `db:"device_id" json:"device_id"`
	StepCount       int            `db:"step_count" json:"step_count"`
	Timestamp       int64          `db:"device_timestamp_ms" json:"timestamp"` // device-supplied ms timestamp
	FirmwareVersion int            `db:"firmware_version" json:"firmware_version"`
	BatteryPercent  int            `db:"battery_percent" json:"battery_percent"`
	RawAccSamples   []AccSample    `db:"-" json:"raw_acc_samples"`
	Signature       []byte         `db:"signature" json:"-"`
	Verified        bool           `db:"verified" json:"verified"`
	ReceivedAt      time.Time      `db:"received_at" json:"received_at"`
	Submitted       bool           `db:"submitted" json:"submitted"`
	ChainTxHandle   sql.NullString `db:"chain_tx_handle" json:"chain_tx_handle,omitempty"`
}

// NewSubmission carries the fields needed to insert a SubmissionRecord.
type NewSubmission struct {
	DeviceID        string
	StepCount       int
	Timestamp       int64
	FirmwareVersion int
	BatteryPercent  int
	RawAccSamples   []AccSample
	Signature       []byte
}

// PetState is the derived gamification state, one per device.
type PetState struct {
	DeviceID        string         `db:"device_id" json:"device_id"`
	Name            string         `db:"pet_name" json:"pet_name"`
	Level           int            `db:"level" json:"level"`
	Experience      int64          `db:"experience" json:"experience"`
	TotalStepsFed   int64          `db:"total_steps_fed" json:"total_steps_fed"`
	Happiness       int            `db:"happiness" json:"happiness"`
	Hunger          int            `db:"hunger" json:"hunger"`
	Health          int            `db:"health" json:"health"`
	Food            int64          `db:"food" json:"food"`
	Energy          int64          `db:"energy" json:"energy"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	LastFed         time.Time      `db:"last_fed" json:"last_fed"`
	LastPlayed      time.Time      `db:"last_played" json:"last_played"`
	Cosmetic        sql.NullString `db:"cosmetic" json:"cosmetic,omitempty"`
	ChainPetHandle  sql.NullString `db:"chain_pet_handle" json:"chain_pet_handle,omitempty"`
}

// LevelThresholds are the cumulative experience totals required to
// reach each level.
var LevelThresholds = []int64{100, 500, 2000, 5000}

// LevelForExperience computes the monotonic level implied by xp.
func LevelForExperience(xp int64) int {
	level := 0
	for _, threshold := range LevelThresholds {
		if xp >= threshold {
			level++
		}
	}
	return level
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp bounds the pet's 0-100 statuses in place and recomputes level
// from experience. Call after every mutation before persisting.
func (p *PetState) Clamp() {
	p.Happiness = clamp(p.Happiness, 0, 100)
	p.Hunger = clamp(p.Hunger, 0, 100)
	p.Health = clamp(p.Health, 0, 100)
	if p.Food < 0 {
		p.Food = 0
	}
	if p.Energy < 0 {
		p.Energy = 0
	}
	p.Level = LevelForExperience(p.Experience)
}

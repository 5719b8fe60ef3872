package database

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
)

// DeviceRepository implements the device-registry operations:
// registering new hardware witnesses and looking them up by id.
type DeviceRepository struct {
	client *Client
}

// NewDeviceRepository creates a DeviceRepository over client.
func NewDeviceRepository(client *Client) *DeviceRepository {
	return &DeviceRepository{client: client}
}

// Register is idempotent on re-registration: if deviceID already
// exists it refreshes last_seen and returns the existing record.
// Registering the same deviceID under a different public key than the
// one on file is rejected with ErrDeviceKeyMismatch, since accepting a
// new key for an existing device id would let an attacker hijack its
// identity.
func (r *DeviceRepository) Register(ctx context.Context, deviceID string, publicKey []byte) (*Device, error) {
	existing, err := r.Get(ctx, deviceID)
	if err == nil {
		if !bytes.Equal(existing.PublicKey, publicKey) {
			return nil, ErrDeviceKeyMismatch
		}
		const q = `UPDATE devices SET last_seen = now() WHERE device_id = $1 RETURNING last_seen`
		if err := r.client.DB().QueryRowContext(ctx, q, deviceID).Scan(&existing.LastSeen); err != nil {
			return nil, fmt.Errorf("refresh last_seen: %w", err)
		}
		return existing, nil
	}
	if err != ErrDeviceNotFound {
		return nil, err
	}

	const insert = `
		INSERT INTO devices (device_id, public_key, registered_at, last_seen, status)
		VALUES ($1, $2, now(), now(), $3)
		RETURNING registered_at, last_seen`

	d := &Device{
		DeviceID:  deviceID,
		PublicKey: publicKey,
		Status:    DeviceStatusActive,
	}
	if err := r.client.DB().QueryRowContext(ctx, insert, deviceID, publicKey, DeviceStatusActive).
		Scan(&d.RegisteredAt, &d.LastSeen); err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return d, nil
}

// Get looks up a device by id (read-only hot path).
func (r *DeviceRepository) Get(ctx context.Context, deviceID string) (*Device, error) {
	const q = `
		SELECT device_id, public_key, registered_at, last_seen, cumulative_steps,
		       total_submissions, status, chain_device_handle
		FROM devices WHERE device_id = $1`

	d := &Device{}
	err := r.client.DB().QueryRowContext(ctx, q, deviceID).Scan(
		&d.DeviceID, &d.PublicKey, &d.RegisteredAt, &d.LastSeen, &d.CumulativeSteps,
		&d.TotalSubmissions, &d.Status, &d.ChainDeviceHandle,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// SetChainHandle stores the opaque on-chain handle assigned after the
// device's first successful on-chain registration.
func (r *DeviceRepository) SetChainHandle(ctx context.Context, deviceID, handle string) error {
	const q = `UPDATE devices SET chain_device_handle = $2 WHERE device_id = $1`
	res, err := r.client.DB().ExecContext(ctx, q, deviceID, handle)
	if err != nil {
		return fmt.Errorf("set chain handle: %w", err)
	}
	return checkRowsAffected(res, ErrDeviceNotFound)
}

// incrementStepsAndTouch is used inside a submission-insert transaction
// to atomically bump the device's cumulative step count and last_seen.
func incrementStepsAndTouch(ctx context.Context, tx *sql.Tx, deviceID string, steps int) error {
	const q = `
		UPDATE devices
		SET cumulative_steps = cumulative_steps + $2, last_seen = now()
		WHERE device_id = $1`
	res, err := tx.ExecContext(ctx, q, deviceID, steps)
	if err != nil {
		return fmt.Errorf("increment cumulative steps: %w", err)
	}
	return checkRowsAffected(res, ErrDeviceNotFound)
}

// incrementSubmissionsOnce bumps total_submissions by exactly one, used
// once per device per markSubmitted call regardless of how many of that
// device's records were marked in the same call.
func incrementSubmissionsOnce(ctx context.Context, tx *sql.Tx, deviceID string) error {
	const q = `UPDATE devices SET total_submissions = total_submissions + 1 WHERE device_id = $1`
	res, err := tx.ExecContext(ctx, q, deviceID)
	if err != nil {
		return fmt.Errorf("increment total_submissions: %w", err)
	}
	return checkRowsAffected(res, ErrDeviceNotFound)
}

func checkRowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

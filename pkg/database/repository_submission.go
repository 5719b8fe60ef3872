package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// SubmissionRepository implements storage, pending-listing, and
// batch-marking of step submissions.
type SubmissionRepository struct {
	client *Client
}

// NewSubmissionRepository creates a SubmissionRepository over client.
func NewSubmissionRepository(client *Client) *SubmissionRepository {
	return &SubmissionRepository{client: client}
}

// Store atomically inserts a verified submission, increments the
// owning device's cumulative step count, and touches last_seen. The
// whole operation is one transaction: either the insert and the device
// update both land, or neither does. Returns ErrDuplicateSubmission if
// (device_id, device_timestamp_ms) already exists, and ErrDeviceNotFound
// if no such device is registered.
func (r *SubmissionRepository) Store(ctx context.Context, in NewSubmission) (*SubmissionRecord, error) {
	samples, err := json.Marshal(in.RawAccSamples)
	if err != nil {
		return nil, fmt.Errorf("marshal raw_acc_samples: %w", err)
	}

	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO submissions
			(device_id, step_count, device_timestamp_ms, firmware_version,
			 battery_percent, raw_acc_samples, signature, verified, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, now())
		RETURNING id, received_at`

	rec := &SubmissionRecord{
		DeviceID:        in.DeviceID,
		StepCount:       in.StepCount,
		Timestamp:       in.Timestamp,
		FirmwareVersion: in.FirmwareVersion,
		BatteryPercent:  in.BatteryPercent,
		RawAccSamples:   in.RawAccSamples,
		Signature:       in.Signature,
		Verified:        true,
	}

	err = tx.QueryRowContext(ctx, insert,
		in.DeviceID, in.StepCount, in.Timestamp, in.FirmwareVersion,
		in.BatteryPercent, samples, in.Signature,
	).Scan(&rec.ID, &rec.ReceivedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSubmission
		}
		if isForeignKeyViolation(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	if err := incrementStepsAndTouch(ctx, tx, in.DeviceID, in.StepCount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submission: %w", err)
	}
	return rec, nil
}

// ListPending returns verified, not-yet-submitted records ordered by
// receive time ascending. When deviceID is non-empty, results are
// restricted to that device.
func (r *SubmissionRepository) ListPending(ctx context.Context, deviceID string) ([]*SubmissionRecord, error) {
	var rows *sql.Rows
	var err error

	if deviceID == "" {
		const q = `
			SELECT id, device_id, step_count, device_timestamp_ms, firmware_version,
			       battery_percent, raw_acc_samples, signature, verified, received_at,
			       submitted, chain_tx_handle
			FROM submissions
			WHERE verified = true AND submitted = false
			ORDER BY received_at ASC`
		rows, err = r.client.DB().QueryContext(ctx, q)
	} else {
		const q = `
			SELECT id, device_id, step_count, device_timestamp_ms, firmware_version,
			       battery_percent, raw_acc_samples, signature, verified, received_at,
			       submitted, chain_tx_handle
			FROM submissions
			WHERE verified = true AND submitted = false AND device_id = $1
			ORDER BY received_at ASC`
		rows, err = r.client.DB().QueryContext(ctx, q, deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	var out []*SubmissionRecord
	for rows.Next() {
		rec := &SubmissionRecord{}
		var samples []byte
		if err := rows.Scan(
			&rec.ID, &rec.DeviceID, &rec.StepCount, &rec.Timestamp, &rec.FirmwareVersion,
			&rec.BatteryPercent, &samples, &rec.Signature, &rec.Verified, &rec.ReceivedAt,
			&rec.Submitted, &rec.ChainTxHandle,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(samples, &rec.RawAccSamples); err != nil {
			return nil, fmt.Errorf("unmarshal raw_acc_samples: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSubmitted flips submitted=true and stores chainHandle on every
// id in ids, and increments total_submissions on each distinct owning
// device exactly once. This is a single commit: either every listed id
// flips, or none does.
func (r *SubmissionRepository) MarkSubmitted(ctx context.Context, ids []int64, chainHandle string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const selectDevices = `
		SELECT DISTINCT device_id FROM submissions WHERE id = ANY($1)`
	rows, err := tx.QueryContext(ctx, selectDevices, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("select owning devices: %w", err)
	}
	var deviceIDs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return fmt.Errorf("scan owning device: %w", err)
		}
		deviceIDs = append(deviceIDs, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	const update = `
		UPDATE submissions
		SET submitted = true, chain_tx_handle = $2
		WHERE id = ANY($1) AND submitted = false`
	res, err := tx.ExecContext(ctx, update, pq.Array(ids), chainHandle)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if int(n) != len(ids) {
		return fmt.Errorf("mark submitted: expected %d rows, affected %d (some ids already submitted or missing)", len(ids), n)
	}

	for _, d := range deviceIDs {
		if err := incrementSubmissionsOnce(ctx, tx, d); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23503"
	}
	return false
}

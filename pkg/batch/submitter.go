// Package batch implements the daily pending-submission drain: it
// aggregates verified step data per device and hands each aggregate to
// the chain gateway.
package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/walmagochi/gateway/pkg/chain"
	"github.com/walmagochi/gateway/pkg/database"
)

// chainSubmitDeadline bounds each per-device submitStepData call.
const chainSubmitDeadline = 30 * time.Second

// DeviceResult is the per-device outcome of one batch run.
type DeviceResult struct {
	DeviceID   string  `json:"device_id"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	TotalSteps int     `json:"total_steps"`
	RecordIDs  []int64 `json:"record_ids"`
	TxHandle   string  `json:"tx_handle,omitempty"`
}

// Summary is the return value of one full batch run: a per-device
// success flag, totals, and transaction handle.
type Summary struct {
	RunAt     time.Time      `json:"run_at"`
	Devices   []DeviceResult `json:"devices"`
	Submitted int            `json:"submitted_records"`
	Failed    int            `json:"failed_devices"`
	Skipped   int            `json:"skipped_devices"`
}

// Submitter runs the pending-submission drain algorithm.
type Submitter struct {
	submissions *database.SubmissionRepository
	devices     *database.DeviceRepository
	chain       chain.Gateway
	logger      *log.Logger
}

// NewSubmitter builds a Submitter over the given repositories and
// chain gateway.
func NewSubmitter(repos *database.Repositories, gw chain.Gateway, logger *log.Logger) *Submitter {
	if logger == nil {
		logger = log.New(log.Writer(), "[batch] ", log.LstdFlags)
	}
	return &Submitter{
		submissions: repos.Submissions,
		devices:     repos.Devices,
		chain:       gw,
		logger:      logger,
	}
}

// RunOnce executes the drain exactly once: list pending, group by
// device, submit each device's aggregate to the chain, and mark
// success. One failing device never prevents others from succeeding.
func (s *Submitter) RunOnce(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunAt: time.Now()}

	pending, err := s.submissions.ListPending(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	if len(pending) == 0 {
		return summary, nil
	}

	byDevice := groupByDevice(pending)

	for deviceID, records := range byDevice {
		result := s.submitDevice(ctx, deviceID, records)
		summary.Devices = append(summary.Devices, result)
		if !result.Success {
			summary.Failed++
			if result.Error == "" {
				summary.Skipped++
			}
			continue
		}
		summary.Submitted += len(result.RecordIDs)
	}

	return summary, nil
}

func (s *Submitter) submitDevice(ctx context.Context, deviceID string, records []*database.SubmissionRecord) DeviceResult {
	result := DeviceResult{DeviceID: deviceID}

	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		s.logger.Printf("batch: skipping device %s, lookup failed: %v", deviceID, err)
		return result
	}
	if !device.ChainDeviceHandle.Valid || device.ChainDeviceHandle.String == "" {
		s.logger.Printf("batch: skipping device %s, no chain handle on file", deviceID)
		return result
	}

	totalSteps := 0
	timestamps := make([]int64, 0, len(records))
	signatures := make([][]byte, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		totalSteps += rec.StepCount
		timestamps = append(timestamps, rec.Timestamp)
		signatures = append(signatures, rec.Signature)
		ids = append(ids, rec.ID)
	}
	result.TotalSteps = totalSteps
	result.RecordIDs = ids

	cctx, cancel := context.WithTimeout(ctx, chainSubmitDeadline)
	defer cancel()

	txHandle, err := s.chain.SubmitStepData(cctx, device.ChainDeviceHandle.String, totalSteps, timestamps, signatures)
	if err != nil {
		result.Error = err.Error()
		s.logger.Printf("batch: device %s submit failed: %v", deviceID, err)
		return result
	}

	if err := s.submissions.MarkSubmitted(ctx, ids, txHandle); err != nil {
		result.Error = fmt.Sprintf("chain submit succeeded but marking failed: %v", err)
		s.logger.Printf("batch: device %s mark-submitted failed after successful chain call: %v", deviceID, err)
		return result
	}

	result.Success = true
	result.TxHandle = txHandle
	return result
}

// groupByDevice buckets pending records by device, preserving
// receive-time order within each bucket since ListPending already
// returns records ordered by received_at ascending.
func groupByDevice(records []*database.SubmissionRecord) map[string][]*database.SubmissionRecord {
	byDevice := make(map[string][]*database.SubmissionRecord)
	for _, rec := range records {
		byDevice[rec.DeviceID] = append(byDevice[rec.DeviceID], rec)
	}
	return byDevice
}

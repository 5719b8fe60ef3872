package session

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/walmagochi/gateway/pkg/apperr"
	"github.com/walmagochi/gateway/pkg/chain"
	"github.com/walmagochi/gateway/pkg/database"
	"github.com/walmagochi/gateway/pkg/pet"
	"github.com/walmagochi/gateway/pkg/signature"
)

// registrationChainDeadline bounds the best-effort chain registration
// attempted inline during the register handler.
const registrationChainDeadline = 10 * time.Second

// maxTimestampSkewFuture and maxTimestampAge bound an accepted step
// submission's device-supplied timestamp: reject anything more than 5
// minutes in the future or older than 7 days.
const (
	maxTimestampSkewFuture = 5 * time.Minute
	maxTimestampAge        = 7 * 24 * time.Hour
)

// minStepCount, maxStepCount, and maxRawAccSamples bound a step_data
// payload's size before it ever reaches the store.
const (
	minStepCount     = 1
	maxStepCount     = 100000
	maxRawAccSamples = 30
)

// Handlers wires the session dispatch table to the rest of the
// system: the durable store, the chain gateway, and the pet
// orchestrator.
type Handlers struct {
	Repos   *database.Repositories
	Chain   chain.Gateway
	Pets    *pet.Orchestrator
	Manager *Manager
	Logger  *log.Logger
}

// Dispatch routes one inbound frame to its handler. It matches the
// signature expected by Session.ReadLoop.
func (h *Handlers) Dispatch(sess *Session, msgType string, raw json.RawMessage) {
	ctx := context.Background()

	switch msgType {
	case "register":
		h.handleRegister(ctx, sess, raw)
	case "authenticate":
		h.handleAuthenticate(ctx, sess, raw)
	case "ping":
		h.handlePing(sess, raw)
	case "step_data":
		h.handleStepData(ctx, sess, raw)
	case "getPet":
		h.handleGetPet(ctx, sess)
	case "updatePet":
		h.handleUpdatePet(ctx, sess, raw)
	case "claimResources":
		h.handleClaimResources(ctx, sess, raw)
	case "feedPet":
		h.handleFeedPet(ctx, sess)
	case "playWithPet":
		h.handlePlayWithPet(ctx, sess)
	default:
		sess.Send(map[string]interface{}{"type": "error", "success": false, "error": "unrecognized message type"})
	}
}

// Welcome pushes the welcome frame sent on every new connection.
func Welcome(sess *Session) {
	sess.Send(map[string]interface{}{"type": "welcome"})
}

func decodeHex(prefixed string, wantLen int) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToLower(prefixed), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex encoding")
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}

func errFrame(outType string, err error) map[string]interface{} {
	return map[string]interface{}{
		"type":    outType,
		"success": false,
		"error":   apperr.Message(err),
	}
}

func (h *Handlers) handleRegister(ctx context.Context, sess *Session, raw json.RawMessage) {
	var in struct {
		DeviceID  string `json:"deviceId"`
		PublicKey string `json:"publicKey"`
	}
	if err := json.Unmarshal(raw, &in); err != nil || in.DeviceID == "" {
		sess.Send(errFrame("register_response", apperr.New(apperr.Validation, "deviceId is required")))
		return
	}
	pubKey, err := decodeHex(in.PublicKey, 32)
	if err != nil {
		sess.Send(errFrame("register_response", apperr.New(apperr.Validation, "publicKey must be 0x-prefixed 32-byte hex")))
		return
	}

	device, err := h.Repos.Devices.Register(ctx, in.DeviceID, pubKey)
	if err != nil {
		if err == database.ErrDeviceKeyMismatch {
			sess.Send(errFrame("register_response", apperr.New(apperr.Validation, "device already registered with a different public key")))
			return
		}
		sess.Send(errFrame("register_response", apperr.Wrap(apperr.Internal, "register device", err)))
		return
	}

	resp := map[string]interface{}{
		"type":     "register_response",
		"success":  true,
		"deviceId": device.DeviceID,
	}

	if !device.ChainDeviceHandle.Valid {
		cctx, cancel := context.WithTimeout(ctx, registrationChainDeadline)
		chainHandle, txHandle, err := h.Chain.RegisterDevice(cctx, device.DeviceID, pubKey)
		cancel()
		if err != nil {
			resp["chain"] = map[string]interface{}{"success": false, "error": err.Error()}
		} else {
			if err := h.Repos.Devices.SetChainHandle(ctx, device.DeviceID, chainHandle); err != nil {
				h.Logger.Printf("persist chain device handle failed for %s: %v", device.DeviceID, err)
			}
			resp["chain"] = map[string]interface{}{"success": true, "chainDeviceHandle": chainHandle, "txHandle": txHandle}
		}
	}

	sess.transition(StateRegistered, device.DeviceID)
	sess.Send(resp)
}

func (h *Handlers) handleAuthenticate(ctx context.Context, sess *Session, raw json.RawMessage) {
	var in struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(raw, &in); err != nil || in.DeviceID == "" {
		sess.Send(errFrame("auth_response", apperr.New(apperr.Validation, "deviceId is required")))
		return
	}

	if _, err := h.Repos.Devices.Get(ctx, in.DeviceID); err != nil {
		sess.Send(errFrame("auth_response", apperr.New(apperr.Unknown, "device not registered")))
		return
	}

	sess.transition(StateAuthenticated, in.DeviceID)
	h.Manager.Bind(in.DeviceID, sess)

	sess.Send(map[string]interface{}{"type": "auth_response", "success": true, "deviceId": in.DeviceID})
}

func (h *Handlers) handlePing(sess *Session, raw json.RawMessage) {
	sess.Send(map[string]interface{}{"type": "pong", "time": time.Now().UTC()})
}

func (h *Handlers) handleStepData(ctx context.Context, sess *Session, raw json.RawMessage) {
	var in struct {
		DeviceID        string               `json:"deviceId"`
		StepCount       int                  `json:"stepCount"`
		Timestamp       int64                `json:"timestamp"`
		FirmwareVersion int                  `json:"firmwareVersion"`
		BatteryPercent  int                  `json:"batteryPercent"`
		RawAccSamples   []database.AccSample `json:"rawAccSamples"`
		Signature       string               `json:"signature"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "malformed step_data payload")))
		return
	}
	if in.DeviceID != sess.DeviceID() {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "deviceId must match the authenticated session")))
		return
	}
	if in.StepCount < minStepCount || in.StepCount > maxStepCount {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "stepCount must be between 1 and 100000")))
		return
	}
	if in.BatteryPercent < 0 || in.BatteryPercent > 100 {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "batteryPercent out of range")))
		return
	}
	if len(in.RawAccSamples) > maxRawAccSamples {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "rawAccSamples exceeds the 30-sample limit")))
		return
	}

	age := time.Since(time.UnixMilli(in.Timestamp))
	if age > maxTimestampAge {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Temporal, "timestamp is older than 7 days")))
		return
	}
	if age < -maxTimestampSkewFuture {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Temporal, "timestamp is more than 5 minutes in the future")))
		return
	}

	sigBytes, err := decodeHex(in.Signature, 64)
	if err != nil {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Validation, "signature must be 0x-prefixed 64-byte hex")))
		return
	}

	device, err := h.Repos.Devices.Get(ctx, in.DeviceID)
	if err != nil {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Unknown, "device not registered")))
		return
	}

	if !signature.Verify(raw, sigBytes, device.PublicKey) {
		sess.Send(errFrame("step_data_response", apperr.New(apperr.Signature, "signature verification failed")))
		return
	}

	rec, err := h.Repos.Submissions.Store(ctx, database.NewSubmission{
		DeviceID:        in.DeviceID,
		StepCount:       in.StepCount,
		Timestamp:       in.Timestamp,
		FirmwareVersion: in.FirmwareVersion,
		BatteryPercent:  in.BatteryPercent,
		RawAccSamples:   in.RawAccSamples,
		Signature:       sigBytes,
	})
	if err != nil {
		if err == database.ErrDuplicateSubmission {
			sess.Send(errFrame("step_data_response", apperr.New(apperr.Duplicate, "submission already recorded for this timestamp")))
			return
		}
		sess.Send(errFrame("step_data_response", apperr.Wrap(apperr.Internal, "store submission", err)))
		return
	}

	sess.Send(map[string]interface{}{
		"type":      "step_data_response",
		"success":   true,
		"dataId":    rec.ID,
		"stepCount": rec.StepCount,
		"verified":  rec.Verified,
	})
}

func (h *Handlers) handleGetPet(ctx context.Context, sess *Session) {
	p, err := h.Pets.GetPet(ctx, sess.DeviceID())
	if err != nil {
		sess.Send(errFrame("pet_error", err))
		return
	}
	sess.Send(map[string]interface{}{"type": "pet_data", "success": true, "pet": petPayload(p)})
}

func (h *Handlers) handleUpdatePet(ctx context.Context, sess *Session, raw json.RawMessage) {
	var in struct {
		Cosmetic *string `json:"cosmetic"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		sess.Send(errFrame("pet_error", apperr.New(apperr.Validation, "malformed updatePet payload")))
		return
	}
	p, err := h.Pets.UpdatePet(ctx, sess.DeviceID(), func(p *database.PetState) {
		if in.Cosmetic != nil {
			p.Cosmetic.String = *in.Cosmetic
			p.Cosmetic.Valid = true
		}
	})
	if err != nil {
		sess.Send(errFrame("pet_error", err))
		return
	}
	sess.Send(map[string]interface{}{"type": "pet_updated", "success": true, "pet": petPayload(p)})
}

func (h *Handlers) handleClaimResources(ctx context.Context, sess *Session, raw json.RawMessage) {
	var in struct {
		Steps int64 `json:"steps"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		sess.Send(errFrame("pet_error", apperr.New(apperr.Validation, "malformed claimResources payload")))
		return
	}
	p, err := h.Pets.ClaimResources(ctx, sess.DeviceID(), in.Steps)
	if err != nil {
		sess.Send(errFrame("pet_error", err))
		return
	}
	sess.Send(map[string]interface{}{"type": "resources_claimed", "success": true, "pet": petPayload(p)})
}

func (h *Handlers) handleFeedPet(ctx context.Context, sess *Session) {
	p, err := h.Pets.FeedPet(ctx, sess.DeviceID())
	if err != nil {
		sess.Send(errFrame("pet_error", err))
		return
	}
	sess.Send(map[string]interface{}{"type": "pet_fed", "success": true, "pet": petPayload(p)})
}

func (h *Handlers) handlePlayWithPet(ctx context.Context, sess *Session) {
	p, err := h.Pets.PlayWithPet(ctx, sess.DeviceID())
	if err != nil {
		sess.Send(errFrame("pet_error", err))
		return
	}
	sess.Send(map[string]interface{}{"type": "pet_played", "success": true, "pet": petPayload(p)})
}

// petPayload shapes a PetState into the wire object sent back on
// pet_data, pet_updated, pet_fed, and similar responses.
func petPayload(p *database.PetState) map[string]interface{} {
	return map[string]interface{}{
		"pet_name":        p.Name,
		"device_id":       p.DeviceID,
		"level":           p.Level,
		"experience":      p.Experience,
		"total_steps_fed": p.TotalStepsFed,
		"happiness":       p.Happiness,
		"hunger":          p.Hunger,
		"health":          p.Health,
		"food":            p.Food,
		"energy":          p.Energy,
		"pet_object_id":   nullStringOrNil(p.ChainPetHandle),
		"on_chain":        p.ChainPetHandle.Valid,
	}
}

func nullStringOrNil(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}

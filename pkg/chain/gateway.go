// Package chain implements a narrow adapter exposing opaque on-chain
// operations over HTTP, with a no-op implementation for running in
// local-only mode when no chain adapter is configured.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/walmagochi/gateway/pkg/config"
)

// ErrChainDisabled is returned by every NullGateway method when no
// chain URL is configured.
var ErrChainDisabled = errors.New("chain gateway disabled: no chain URL configured")

// PetSnapshot is the authoritative chain-side pet state returned by
// getPet, used to override local bounded fields on success.
type PetSnapshot struct {
	ChainPetHandle string `json:"chain_pet_handle"`
	Level          int    `json:"level"`
	Experience     int64  `json:"experience"`
	Happiness      int    `json:"happiness"`
	Hunger         int    `json:"hunger"`
	Health         int    `json:"health"`
	Food           int64  `json:"food"`
	Energy         int64  `json:"energy"`
}

// ClaimResult is the response to claimResources.
type ClaimResult struct {
	FoodGained   int64  `json:"food_gained"`
	EnergyGained int64  `json:"energy_gained"`
	NewFood      int64  `json:"new_food"`
	NewEnergy    int64  `json:"new_energy"`
	TxHandle     string `json:"tx_handle"`
}

// FeedResult is the response to feedPet.
type FeedResult struct {
	Evolved  bool   `json:"evolved,omitempty"`
	NewLevel int    `json:"new_level,omitempty"`
	TxHandle string `json:"tx_handle"`
}

// Gateway is the narrow chain adapter the rest of the system depends
// on. Every method blocks on network I/O and must be called with a
// bounded context.
type Gateway interface {
	RegisterDevice(ctx context.Context, deviceID string, publicKey []byte) (chainDeviceHandle, txHandle string, err error)
	SubmitStepData(ctx context.Context, chainDeviceHandle string, totalSteps int, timestamps []int64, signatures [][]byte) (txHandle string, err error)
	CreatePet(ctx context.Context, name, deviceID, color string) (chainPetHandle, txHandle string, err error)
	ClaimResources(ctx context.Context, chainPetHandle string, steps int64) (*ClaimResult, error)
	FeedPet(ctx context.Context, chainPetHandle string) (*FeedResult, error)
	PlayWithPet(ctx context.Context, chainPetHandle string) (txHandle string, err error)
	GetPet(ctx context.Context, chainPetHandle string) (*PetSnapshot, error)
	GetBalance(ctx context.Context) (string, error)
}

// IsRetryable classifies a chain-gateway error as worth a caller
// retry: network-level and 5xx failures are; validation-shaped
// failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}
	return false
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chain adapter returned status %d: %s", e.status, e.body)
}

// HTTPGateway talks to a single chain-adapter HTTP endpoint, posting a
// JSON request body and decoding a JSON response body per operation.
type HTTPGateway struct {
	baseURL    string
	signingKey string
	httpClient *http.Client
}

// NewHTTPGateway builds a gateway against cfg's chain settings. The
// gateway owns cfg.ChainSigningKey and never exposes it to callers.
func NewHTTPGateway(cfg *config.Config) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    cfg.ChainURL,
		signingKey: cfg.ChainSigningKey,
		httpClient: &http.Client{Timeout: cfg.ChainCallTimeout},
	}
}

func (g *HTTPGateway) call(ctx context.Context, path string, in, out interface{}) error {
	reqBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal chain request: %w", err)
	}

	url := g.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build chain request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signing-Key", g.signingKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chain request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read chain response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse chain response: %w", err)
	}
	return nil
}

func (g *HTTPGateway) RegisterDevice(ctx context.Context, deviceID string, publicKey []byte) (string, string, error) {
	var out struct {
		ChainDeviceHandle string `json:"chain_device_handle"`
		TxHandle          string `json:"tx_handle"`
	}
	in := struct {
		DeviceID  string `json:"device_id"`
		PublicKey []byte `json:"public_key"`
	}{deviceID, publicKey}
	if err := g.call(ctx, "/chain/devices/register", in, &out); err != nil {
		return "", "", err
	}
	return out.ChainDeviceHandle, out.TxHandle, nil
}

func (g *HTTPGateway) SubmitStepData(ctx context.Context, chainDeviceHandle string, totalSteps int, timestamps []int64, signatures [][]byte) (string, error) {
	var out struct {
		TxHandle string `json:"tx_handle"`
	}
	in := struct {
		ChainDeviceHandle string   `json:"chain_device_handle"`
		TotalSteps        int      `json:"total_steps"`
		Timestamps        []int64  `json:"timestamps"`
		Signatures        [][]byte `json:"signatures"`
	}{chainDeviceHandle, totalSteps, timestamps, signatures}
	if err := g.call(ctx, "/chain/devices/submit-steps", in, &out); err != nil {
		return "", err
	}
	return out.TxHandle, nil
}

func (g *HTTPGateway) CreatePet(ctx context.Context, name, deviceID, color string) (string, string, error) {
	var out struct {
		ChainPetHandle string `json:"chain_pet_handle"`
		TxHandle       string `json:"tx_handle"`
	}
	in := struct {
		Name     string `json:"name"`
		DeviceID string `json:"device_id"`
		Color    string `json:"color"`
	}{name, deviceID, color}
	if err := g.call(ctx, "/chain/pets/create", in, &out); err != nil {
		return "", "", err
	}
	return out.ChainPetHandle, out.TxHandle, nil
}

func (g *HTTPGateway) ClaimResources(ctx context.Context, chainPetHandle string, steps int64) (*ClaimResult, error) {
	out := &ClaimResult{}
	in := struct {
		ChainPetHandle string `json:"chain_pet_handle"`
		Steps          int64  `json:"steps"`
	}{chainPetHandle, steps}
	if err := g.call(ctx, "/chain/pets/claim-resources", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) FeedPet(ctx context.Context, chainPetHandle string) (*FeedResult, error) {
	out := &FeedResult{}
	in := struct {
		ChainPetHandle string `json:"chain_pet_handle"`
	}{chainPetHandle}
	if err := g.call(ctx, "/chain/pets/feed", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) PlayWithPet(ctx context.Context, chainPetHandle string) (string, error) {
	var out struct {
		TxHandle string `json:"tx_handle"`
	}
	in := struct {
		ChainPetHandle string `json:"chain_pet_handle"`
	}{chainPetHandle}
	if err := g.call(ctx, "/chain/pets/play", in, &out); err != nil {
		return "", err
	}
	return out.TxHandle, nil
}

func (g *HTTPGateway) GetPet(ctx context.Context, chainPetHandle string) (*PetSnapshot, error) {
	out := &PetSnapshot{}
	in := struct {
		ChainPetHandle string `json:"chain_pet_handle"`
	}{chainPetHandle}
	if err := g.call(ctx, "/chain/pets/get", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) GetBalance(ctx context.Context) (string, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	if err := g.call(ctx, "/chain/balance", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Balance, nil
}

// NullGateway is used when no chain URL is configured. Every method
// returns ErrChainDisabled so callers fall back to local-only mode
// without special-casing a nil gateway.
type NullGateway struct{}

func (NullGateway) RegisterDevice(context.Context, string, []byte) (string, string, error) {
	return "", "", ErrChainDisabled
}
func (NullGateway) SubmitStepData(context.Context, string, int, []int64, [][]byte) (string, error) {
	return "", ErrChainDisabled
}
func (NullGateway) CreatePet(context.Context, string, string, string) (string, string, error) {
	return "", "", ErrChainDisabled
}
func (NullGateway) ClaimResources(context.Context, string, int64) (*ClaimResult, error) {
	return nil, ErrChainDisabled
}
func (NullGateway) FeedPet(context.Context, string) (*FeedResult, error) {
	return nil, ErrChainDisabled
}
func (NullGateway) PlayWithPet(context.Context, string) (string, error) {
	return "", ErrChainDisabled
}
func (NullGateway) GetPet(context.Context, string) (*PetSnapshot, error) {
	return nil, ErrChainDisabled
}
func (NullGateway) GetBalance(context.Context) (string, error) {
	return "", ErrChainDisabled
}

var (
	_ Gateway = (*HTTPGateway)(nil)
	_ Gateway = NullGateway{}
)

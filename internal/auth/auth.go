// Package auth decides which ledger account a connection acts for.
package auth

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidCredentials indicates the credentials are definitively invalid.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUnavailable indicates the auth service is unreachable or unavailable.
	// Callers may choose to fail open (allow) or fail closed (reject).
	ErrUnavailable = errors.New("auth: unavailable")
)

// Credentials are presented by a client in its auth message. Which fields
// are required depends on the validator.
type Credentials struct {
	Address   common.Address `json:"address"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Signature hexutil.Bytes  `json:"signature,omitempty"`
	Token     string         `json:"token,omitempty"`
}

// Identity is the account an authenticated connection acts for.
type Identity struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
}

// Validator validates credentials.
type Validator interface {
	// Validate returns the identity the credentials prove, ErrInvalidCredentials
	// when they prove nothing, or ErrUnavailable when no decision could be made.
	Validate(ctx context.Context, creds Credentials) (*Identity, error)
}

// Message is the text a client signs to prove control of address at ts to
// the pool whose escrow account is pool.
func Message(pool, address common.Address, ts int64) []byte {
	return []byte(fmt.Sprintf("poollottery-auth:%s:%s:%d", pool.Hex(), address.Hex(), ts))
}

// Sign produces signature credentials for key at the clock's current time,
// valid only for pool.
func Sign(key *ecdsa.PrivateKey, pool common.Address, clock quartz.Clock) (Credentials, error) {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	ts := clock.Now("auth", "sign").Unix()
	sig, err := crypto.Sign(crypto.Keccak256(Message(pool, addr, ts)), key)
	if err != nil {
		return Credentials{}, fmt.Errorf("sign auth message: %w", err)
	}
	return Credentials{Address: addr, Timestamp: ts, Signature: sig}, nil
}

// SignatureValidator accepts credentials signed for its pool by the key
// behind the claimed address within maxSkew of the current time. Each
// signed message is accepted once.
type SignatureValidator struct {
	clock   quartz.Clock
	maxSkew time.Duration
	pool    common.Address

	mu   sync.Mutex
	seen map[common.Hash]time.Time // message hash -> expiry
}

// NewSignatureValidator creates a validator that recovers the signer of the
// auth message for pool.
func NewSignatureValidator(clock quartz.Clock, maxSkew time.Duration, pool common.Address) *SignatureValidator {
	return &SignatureValidator{
		clock:   clock,
		maxSkew: maxSkew,
		pool:    pool,
		seen:    make(map[common.Hash]time.Time),
	}
}

func (v *SignatureValidator) Validate(ctx context.Context, creds Credentials) (*Identity, error) {
	if len(creds.Signature) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes", ErrInvalidCredentials, crypto.SignatureLength)
	}

	now := v.clock.Now("auth", "validate")
	signedAt := time.Unix(creds.Timestamp, 0)
	if skew := now.Sub(signedAt).Abs(); skew > v.maxSkew {
		return nil, fmt.Errorf("%w: signature is %s old", ErrInvalidCredentials, skew)
	}

	hash := crypto.Keccak256(Message(v.pool, creds.Address, creds.Timestamp))
	pub, err := crypto.SigToPub(hash, creds.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != creds.Address {
		return nil, fmt.Errorf("%w: signed by %s", ErrInvalidCredentials, signer.Hex())
	}
	if !v.claim(common.BytesToHash(hash), now, signedAt.Add(v.maxSkew)) {
		return nil, fmt.Errorf("%w: signature already used", ErrInvalidCredentials)
	}
	return &Identity{Address: creds.Address}, nil
}

// claim records msg until expiry and reports whether it was unused.
func (v *SignatureValidator) claim(msg common.Hash, now, expiry time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for h, exp := range v.seen {
		if now.After(exp) {
			delete(v.seen, h)
		}
	}
	if _, ok := v.seen[msg]; ok {
		return false
	}
	v.seen[msg] = expiry
	return true
}

// HTTPValidator validates tokens via HTTP callback to external service.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
}

// NewHTTPValidator creates a validator that calls an external HTTP endpoint.
func NewHTTPValidator(url string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		client: &http.Client{
			Timeout: 500 * time.Millisecond,
		},
	}
}

type validateRequest struct {
	Token   string         `json:"token"`
	Address common.Address `json:"address"`
}

type validateResponse struct {
	Valid   bool           `json:"valid"`
	Address common.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.Token == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(validateRequest{Token: creds.Token, Address: creds.Address})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	limitedReader := io.LimitReader(resp.Body, 1<<20)

	var authResp validateResponse
	if err := json.NewDecoder(limitedReader).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}

	if !authResp.Valid || authResp.Address == (common.Address{}) {
		return nil, ErrInvalidCredentials
	}
	if creds.Address != (common.Address{}) && creds.Address != authResp.Address {
		return nil, fmt.Errorf("%w: token belongs to %s", ErrInvalidCredentials, authResp.Address.Hex())
	}

	return &Identity{Address: authResp.Address, Name: authResp.Name}, nil
}

// NoopValidator trusts the claimed address (dev mode).
type NoopValidator struct{}

// NewNoopValidator creates a validator that trusts every claimed address.
func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(ctx context.Context, creds Credentials) (*Identity, error) {
	if creds.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: address required", ErrInvalidCredentials)
	}
	return &Identity{Address: creds.Address}, nil
}

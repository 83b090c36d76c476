package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	redisclient "github.com/angelmondragon/residency-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSessionNotFound is returned when a payment session expired or never existed.
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrSessionConflict is returned when the session changed after it was loaded.
	ErrSessionConflict = errors.New("payment session changed concurrently")
)

// Lease is the slice of the accepted agreement a payment is charged against.
type Lease struct {
	AgreementID  uuid.UUID       `json:"agreement_id"`
	ApartmentID  uuid.UUID       `json:"apartment_id"`
	BuildingName string          `json:"building_name"`
	ApartmentNo  string          `json:"apartment_no"`
	FloorNo      int             `json:"floor_no"`
	BlockName    string          `json:"block_name"`
	Rent         decimal.Decimal `json:"rent"`
}

// Session is the server-side state of one payment flow. Coupon holds the
// at-most-once discount state.
type Session struct {
	ID          string          `json:"id"`
	TenantEmail string          `json:"tenant_email"`
	Month       string          `json:"month"`
	Lease       Lease           `json:"lease"`
	Coupon      coupons.Session `json:"coupon"`
	IntentID    string          `json:"intent_id,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`

	stored string
}

// Amount is the amount the tenant will be charged.
func (s *Session) Amount() decimal.Decimal {
	return s.Coupon.Discounted
}

type sessionKeyer interface {
	PaymentSessionKey(sessionID string) string
}

// SessionStore keeps payment sessions in Redis as JSON with a TTL. Writes are
// optimistic: a save only lands over the exact value its session was loaded
// from.
type SessionStore struct {
	kv    redisclient.VersionedKV
	keyer sessionKeyer
	ttl   time.Duration
}

func NewSessionStore(client *redisclient.Client, ttl time.Duration) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newSessionStore(client, client, ttl)
}

func newSessionStore(kv redisclient.VersionedKV, keyer sessionKeyer, ttl time.Duration) (*SessionStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("payment session ttl must be positive")
	}
	return &SessionStore{kv: kv, keyer: keyer, ttl: ttl}, nil
}

// Save creates a new session or replaces the version it was loaded at.
// ErrSessionConflict means another writer got there first.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	session.Version++
	raw, err := json.Marshal(session)
	if err != nil {
		session.Version--
		return fmt.Errorf("encode payment session: %w", err)
	}
	key := s.keyer.PaymentSessionKey(session.ID)

	var written bool
	if session.stored == "" {
		written, err = s.kv.SetNX(ctx, key, string(raw), s.ttl)
	} else {
		written, err = s.kv.CompareAndSet(ctx, key, session.stored, string(raw), s.ttl)
	}
	switch {
	case redisclient.IsNil(err):
		session.Version--
		return ErrSessionNotFound
	case err != nil:
		session.Version--
		return err
	case !written:
		session.Version--
		return ErrSessionConflict
	}
	session.stored = string(raw)
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.keyer.PaymentSessionKey(id))
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode payment session: %w", err)
	}
	session.stored = raw
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.kv.Del(ctx, s.keyer.PaymentSessionKey(id))
}

// Package service contains the email-action token service: opaque
// single-use credentials that let approvers act straight from a mail
// client without a session.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

// TokenBytes is the entropy of a minted token. 32 random bytes, hex
// encoded; well above the 128-bit floor for unguessable credentials.
const TokenBytes = 32

// ActionTokenService mints and consumes email-action tokens. Individual
// tokens are stored by the atomic transition writer; bulk tokens are
// written directly (the digest job has no surrounding transaction).
type ActionTokenService struct {
	tokens  TokenStore
	ttl     time.Duration
	bulkTTL time.Duration
}

// TokenStore is the persistence the service needs.
type TokenStore interface {
	InsertAction(ctx context.Context, t domain.ActionToken) error
	ConsumeAction(ctx context.Context, token string) (*domain.ActionToken, error)
	InsertBulk(ctx context.Context, t domain.BulkActionToken) error
	GetBulk(ctx context.Context, token string) (*domain.BulkActionToken, error)
}

// NewActionTokenService creates the token service. Non-positive TTLs
// disable expiry for the respective token class.
func NewActionTokenService(tokens TokenStore, ttl, bulkTTL time.Duration) *ActionTokenService {
	return &ActionTokenService{tokens: tokens, ttl: ttl, bulkTTL: bulkTTL}
}

// NewToken generates an opaque token value from crypto/rand.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Mint builds an individual token bound to one order, one recipient and
// one action. The caller persists it, typically inside the transition
// transaction that triggers the email.
func (s *ActionTokenService) Mint(orderID int64, userID, action string) (domain.ActionToken, error) {
	value, err := NewToken()
	if err != nil {
		return domain.ActionToken{}, err
	}
	t := domain.ActionToken{
		Token:   value,
		OrderID: orderID,
		UserID:  userID,
		Action:  action,
	}
	if s.ttl > 0 {
		exp := time.Now().UTC().Add(s.ttl)
		t.ExpiresAt = &exp
	}
	return t, nil
}

// Consume atomically spends a token and returns its binding. Wrong,
// replayed and expired tokens all yield ErrTokenInvalid; the distinction
// is logged server-side, never surfaced. When orderID is non-zero it must
// match the token's order — a mismatch still spends the token.
func (s *ActionTokenService) Consume(ctx context.Context, token string, orderID int64) (*domain.ActionToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, perrors.ErrTokenInvalid
	}
	t, err := s.tokens.ConsumeAction(ctx, token)
	if err != nil {
		return nil, err
	}
	if orderID != 0 && t.OrderID != orderID {
		return nil, perrors.ErrTokenInvalid
	}
	return t, nil
}

// MintBulk creates and stores a bulk token covering orderIDs for userID.
func (s *ActionTokenService) MintBulk(ctx context.Context, userID string, orderIDs []int64, action string) (domain.BulkActionToken, error) {
	if len(orderIDs) == 0 {
		return domain.BulkActionToken{}, fmt.Errorf("bulk token requires at least one order")
	}
	value, err := NewToken()
	if err != nil {
		return domain.BulkActionToken{}, err
	}
	t := domain.BulkActionToken{
		Token:    value,
		UserID:   userID,
		OrderIDs: slices.Clone(orderIDs),
		Action:   action,
	}
	if s.bulkTTL > 0 {
		exp := time.Now().UTC().Add(s.bulkTTL)
		t.ExpiresAt = &exp
	}
	if err := s.tokens.InsertBulk(ctx, t); err != nil {
		return domain.BulkActionToken{}, err
	}
	return t, nil
}

// ResolveBulk validates a bulk token and returns the orders it covers.
// A non-zero specificOrderID narrows the result to that single order; the
// token itself stays valid for the remaining orders either way.
func (s *ActionTokenService) ResolveBulk(ctx context.Context, token string, specificOrderID int64) (*domain.BulkActionToken, []int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, perrors.ErrTokenInvalid
	}
	t, err := s.tokens.GetBulk(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if specificOrderID == 0 {
		return t, slices.Clone(t.OrderIDs), nil
	}
	if !slices.Contains(t.OrderIDs, specificOrderID) {
		return nil, nil, perrors.ErrTokenInvalid
	}
	return t, []int64{specificOrderID}, nil
}

package service

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

type fakeTokenStore struct {
	actions map[string]*domain.ActionToken
	bulk    map[string]*domain.BulkActionToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		actions: make(map[string]*domain.ActionToken),
		bulk:    make(map[string]*domain.BulkActionToken),
	}
}

func (f *fakeTokenStore) InsertAction(_ context.Context, t domain.ActionToken) error {
	f.actions[t.Token] = &t
	return nil
}

func (f *fakeTokenStore) ConsumeAction(_ context.Context, token string) (*domain.ActionToken, error) {
	t, ok := f.actions[token]
	if !ok || t.IsUsed {
		return nil, perrors.ErrTokenInvalid
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, perrors.ErrTokenInvalid
	}
	t.IsUsed = true
	return t, nil
}

func (f *fakeTokenStore) InsertBulk(_ context.Context, t domain.BulkActionToken) error {
	f.bulk[t.Token] = &t
	return nil
}

func (f *fakeTokenStore) GetBulk(_ context.Context, token string) (*domain.BulkActionToken, error) {
	t, ok := f.bulk[token]
	if !ok {
		return nil, perrors.ErrTokenInvalid
	}
	return t, nil
}

func TestNewToken_LengthAndUniqueness(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(a) != TokenBytes*2 {
		t.Fatalf("token length = %d, want %d", len(a), TokenBytes*2)
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}

	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if a == b {
		t.Fatal("two minted tokens are identical")
	}
}

func TestMint_AppliesTTL(t *testing.T) {
	svc := NewActionTokenService(newFakeTokenStore(), time.Hour, 0)
	tok, err := svc.Mint(42, "appr1", "approve")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if tok.OrderID != 42 || tok.UserID != "appr1" || tok.Action != "approve" {
		t.Fatalf("unexpected binding: %+v", tok)
	}
	if tok.ExpiresAt == nil || time.Until(*tok.ExpiresAt) > time.Hour {
		t.Fatalf("expiry not applied: %v", tok.ExpiresAt)
	}

	noTTL := NewActionTokenService(newFakeTokenStore(), 0, 0)
	tok, err = noTTL.Mint(42, "appr1", "approve")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if tok.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", tok.ExpiresAt)
	}
}

func TestConsume_SingleUse(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewActionTokenService(store, time.Hour, 0)

	tok, err := svc.Mint(7, "appr1", "reject")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := store.InsertAction(context.Background(), tok); err != nil {
		t.Fatalf("InsertAction: %v", err)
	}

	got, err := svc.Consume(context.Background(), tok.Token, 0)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.OrderID != 7 || got.Action != "reject" {
		t.Fatalf("unexpected token binding: %+v", got)
	}

	if _, err := svc.Consume(context.Background(), tok.Token, 0); !errors.Is(err, perrors.ErrTokenInvalid) {
		t.Fatalf("replay error = %v, want ErrTokenInvalid", err)
	}
}

func TestConsume_OrderMismatchStillSpendsToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewActionTokenService(store, time.Hour, 0)

	tok, _ := svc.Mint(7, "appr1", "approve")
	_ = store.InsertAction(context.Background(), tok)

	if _, err := svc.Consume(context.Background(), tok.Token, 999); !errors.Is(err, perrors.ErrTokenInvalid) {
		t.Fatalf("mismatch error = %v, want ErrTokenInvalid", err)
	}
	// The token is spent even though the binding check failed.
	if _, err := svc.Consume(context.Background(), tok.Token, 7); !errors.Is(err, perrors.ErrTokenInvalid) {
		t.Fatalf("second consume error = %v, want ErrTokenInvalid", err)
	}
}

func TestConsume_EmptyTokenRejectedWithoutStoreHit(t *testing.T) {
	svc := NewActionTokenService(newFakeTokenStore(), time.Hour, 0)
	if _, err := svc.Consume(context.Background(), "  ", 0); !errors.Is(err, perrors.ErrTokenInvalid) {
		t.Fatalf("error = %v, want ErrTokenInvalid", err)
	}
}

func TestResolveBulk_SpecificOrderKeepsTokenValid(t *testing.T) {
	store := newFakeTokenStore()
	svc := NewActionTokenService(store, 0, time.Hour)

	minted, err := svc.MintBulk(context.Background(), "appr1", []int64{1, 2, 3}, "approve")
	if err != nil {
		t.Fatalf("MintBulk: %v", err)
	}

	_, ids, err := svc.ResolveBulk(context.Background(), minted.Token, 2)
	if err != nil {
		t.Fatalf("ResolveBulk: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("ids = %v, want [2]", ids)
	}

	// The full set remains resolvable afterwards.
	_, ids, err = svc.ResolveBulk(context.Background(), minted.Token, 0)
	if err != nil {
		t.Fatalf("ResolveBulk full set: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want all three", ids)
	}

	if _, _, err := svc.ResolveBulk(context.Background(), minted.Token, 42); !errors.Is(err, perrors.ErrTokenInvalid) {
		t.Fatalf("out-of-set order error = %v, want ErrTokenInvalid", err)
	}
}

func TestMintBulk_RequiresOrders(t *testing.T) {
	svc := NewActionTokenService(newFakeTokenStore(), 0, time.Hour)
	if _, err := svc.MintBulk(context.Background(), "appr1", nil, "approve"); err == nil {
		t.Fatal("expected error for empty order set")
	}
}

package authz

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	used map[string]struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{used: make(map[string]struct{})}
}

func (s *fakeStore) IsSignatureUsed(_ context.Context, signature []byte) (bool, error) {
	_, ok := s.used[string(signature)]
	return ok, nil
}

func (s *fakeStore) MarkSignatureUsed(_ context.Context, signature []byte) error {
	s.used[string(signature)] = struct{}{}
	return nil
}

func newTestKey(t *testing.T) (*btcec.PrivateKey, string) {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key, hex.EncodeToString(key.PubKey().SerializeCompressed())
}

func TestVerifyAcceptsAuthorizerSignature(t *testing.T) {
	ctx := context.Background()
	key, pubKey := newTestKey(t)
	store := newFakeStore()

	message := EncodeSaleResolution(7, []string{"buyer"}, []uint64{500})
	signature := Sign(key, message)

	require.NoError(t, Verify(ctx, store, message, signature, pubKey))
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	ctx := context.Background()
	key, _ := newTestKey(t)
	_, otherPubKey := newTestKey(t)
	store := newFakeStore()

	message := EncodeSaleResolution(7, []string{"buyer"}, []uint64{500})
	signature := Sign(key, message)

	err := Verify(ctx, store, message, signature, otherPubKey)
	require.ErrorIs(t, err, errs.InvalidSignature)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	ctx := context.Background()
	key, pubKey := newTestKey(t)
	store := newFakeStore()

	message := EncodeSaleResolution(7, []string{"buyer"}, []uint64{500})
	signature := Sign(key, message)

	tampered := EncodeSaleResolution(7, []string{"buyer"}, []uint64{1})
	err := Verify(ctx, store, tampered, signature, pubKey)
	require.ErrorIs(t, err, errs.InvalidSignature)
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	ctx := context.Background()
	_, pubKey := newTestKey(t)
	store := newFakeStore()

	err := Verify(ctx, store, []byte("message"), []byte{0xde, 0xad, 0xbe, 0xef}, pubKey)
	require.ErrorIs(t, err, errs.InvalidSignature)
}

func TestVerifyRejectsConsumedSignature(t *testing.T) {
	ctx := context.Background()
	key, pubKey := newTestKey(t)
	store := newFakeStore()

	message := EncodeAuctionResolution(3, "winner", 900)
	signature := Sign(key, message)

	require.NoError(t, Verify(ctx, store, message, signature, pubKey))
	require.NoError(t, Consume(ctx, store, signature))

	err := Verify(ctx, store, message, signature, pubKey)
	require.ErrorIs(t, err, errs.NotUnique)
}

func TestDomainTagsSeparateSaleAndAuctionMessages(t *testing.T) {
	ctx := context.Background()
	key, pubKey := newTestKey(t)
	store := newFakeStore()

	// identical fields under both domains must not produce interchangeable
	// messages
	saleMessage := EncodeSaleResolution(7, []string{"party"}, []uint64{500})
	auctionMessage := EncodeAuctionResolution(7, "party", 500)
	require.NotEqual(t, saleMessage, auctionMessage)

	signature := Sign(key, saleMessage)
	err := Verify(ctx, store, auctionMessage, signature, pubKey)
	require.ErrorIs(t, err, errs.InvalidSignature)
}

func TestEncodingIsDeterministic(t *testing.T) {
	first := EncodeSaleResolution(42, []string{"a", "b"}, []uint64{1, 2})
	second := EncodeSaleResolution(42, []string{"a", "b"}, []uint64{1, 2})
	require.Equal(t, first, second)

	// order of the approved pairs is part of the message
	reordered := EncodeSaleResolution(42, []string{"b", "a"}, []uint64{2, 1})
	require.NotEqual(t, first, reordered)
}

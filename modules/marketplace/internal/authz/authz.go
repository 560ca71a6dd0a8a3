// Package authz validates authorizer-signed resolution messages and enforces
// at-most-once use per signature.
//
// Messages are a deterministic binary encoding of the operation payload
// prefixed with a one-byte domain tag, so a sale-resolution message can never
// be replayed as an auction resolution. The consumed set is keyed on the raw
// signature bytes.
package authz

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/stkolmagorov/marketplace/common/errs"
)

const (
	domainSale    byte = 0x01
	domainAuction byte = 0x02
)

// SignatureStore is the slice of the ledger the verifier needs.
type SignatureStore interface {
	IsSignatureUsed(ctx context.Context, signature []byte) (bool, error)
	MarkSignatureUsed(ctx context.Context, signature []byte) error
}

// EncodeSaleResolution builds the signed message for a sale resolution:
// sale domain tag, sale id, then (buyer, price) pairs in array order.
func EncodeSaleResolution(saleID uint64, approvedBuyers []string, approvedPrices []uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(domainSale)
	_ = binary.Write(&buf, binary.BigEndian, saleID)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(approvedBuyers)))
	for i, buyer := range approvedBuyers {
		writeString(&buf, buyer)
		_ = binary.Write(&buf, binary.BigEndian, approvedPrices[i])
	}
	return buf.Bytes()
}

// EncodeAuctionResolution builds the signed message for one auction
// resolution item: auction domain tag, auction id, winner, winning bid.
func EncodeAuctionResolution(auctionID uint64, winner string, winningBid uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(domainAuction)
	_ = binary.Write(&buf, binary.BigEndian, auctionID)
	writeString(&buf, winner)
	_ = binary.Write(&buf, binary.BigEndian, winningBid)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// Verify checks that the signature bytes have not been consumed yet and that
// they verify over the double-SHA256 hash of message against the authorizer
// public key (hex-encoded compressed secp256k1). It does not consume the
// signature; call Consume after all other validation for the item succeeds.
func Verify(ctx context.Context, store SignatureStore, message, signature []byte, authorizerPubKey string) error {
	used, err := store.IsSignatureUsed(ctx, signature)
	if err != nil {
		return errors.Wrap(err, "failed to check signature usage")
	}
	if used {
		return errors.WithStack(errs.NotUnique)
	}

	sig, err := ecdsa.ParseSignature(signature)
	if err != nil {
		return errors.Wrap(errs.InvalidSignature, "cannot parse signature")
	}

	pubKeyBytes, err := hex.DecodeString(authorizerPubKey)
	if err != nil {
		return errors.Wrap(err, "cannot decode authorizer public key")
	}
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return errors.Wrap(err, "cannot parse authorizer public key")
	}

	hash := chainhash.DoubleHashB(message)
	if !sig.Verify(hash, pubKey) {
		return errors.WithStack(errs.InvalidSignature)
	}
	return nil
}

// Consume marks the signature bytes as used. It must be called after all
// other validation for the item succeeds and before any external fund
// movement tied to it.
func Consume(ctx context.Context, store SignatureStore, signature []byte) error {
	if err := store.MarkSignatureUsed(ctx, signature); err != nil {
		return errors.Wrap(err, "failed to mark signature used")
	}
	return nil
}

// Sign produces the signature the authorizer would issue over message.
func Sign(privateKey *btcec.PrivateKey, message []byte) []byte {
	hash := chainhash.DoubleHashB(message)
	return ecdsa.Sign(privateKey, hash).Serialize()
}

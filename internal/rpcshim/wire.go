package rpcshim

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/credible-commitment/ccm-core/internal/ccmerr"
	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

// wireAssetIdentifier is the JSON-over-the-wire shape of ccmtype.AssetIdentifier:
// hex-string addresses, decimal-string token IDs.
type wireAssetIdentifier struct {
	ChainID  uint64 `json:"chainId"`
	Kind     string `json:"kind"`
	Contract string `json:"contract,omitempty"`
	TokenID  string `json:"tokenId,omitempty"`
}

type wireFulfillmentCondition struct {
	TargetChainID uint64              `json:"targetChainId"`
	TargetAsset   wireAssetIdentifier `json:"targetAsset"`
	TargetAmount  string              `json:"targetAmount"`
	Recipient     string              `json:"recipient"`
	ExecutionData string              `json:"executionData,omitempty"`
}

type createLockParams struct {
	Owner       string                   `json:"owner"`
	Asset       wireAssetIdentifier      `json:"asset"`
	Amount      string                   `json:"amount"`
	ExpiresIn   uint64                   `json:"expiresIn"`
	Fulfillment wireFulfillmentCondition `json:"fulfillment"`
	SessionKey  string                   `json:"sessionKey,omitempty"`
}

type signLockParams struct {
	LockID    string `json:"lockId"`
	Signature string `json:"signature"`
}

type verifyFulfillmentParams struct {
	LockID          string `json:"lockId"`
	TransactionHash string `json:"transactionHash"`
	BlockHash       string `json:"blockHash"`
	BlockNumber     int64  `json:"blockNumber"`
}

type cancelLockParams struct {
	LockID    string `json:"lockId"`
	Signature string `json:"signature"`
}

type lockIDParams struct {
	LockID string `json:"lockId"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func parseAddress(s string) (ccmtype.Address, error) {
	b, err := parseHex(s)
	if err != nil || len(b) != 20 {
		return ccmtype.Address{}, ccmerr.New(ccmerr.InvalidParams, "invalid address %q", s)
	}
	var out ccmtype.Address
	copy(out[:], b)
	return out, nil
}

func parseHash(s string) (ccmtype.Hash, error) {
	b, err := parseHex(s)
	if err != nil || len(b) != 32 {
		return ccmtype.Hash{}, ccmerr.New(ccmerr.InvalidParams, "invalid 32-byte hex value %q", s)
	}
	var out ccmtype.Hash
	copy(out[:], b)
	return out, nil
}

func parseSignature(s string) (ccmtype.Signature, error) {
	b, err := parseHex(s)
	if err != nil || len(b) != 65 {
		return ccmtype.Signature{}, ccmerr.New(ccmerr.InvalidParams, "invalid 65-byte signature %q", s)
	}
	var out ccmtype.Signature
	copy(out[:], b)
	return out, nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// parseAmount parses a decimal-string amount into a *big.Int of base units,
// via shopspring/decimal so fractional or malformed input is rejected at
// the RPC boundary rather than silently truncated by big.Int.SetString.
func parseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, ccmerr.New(ccmerr.InvalidParams, "invalid amount %q: %v", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, ccmerr.New(ccmerr.InvalidParams, "amount %q must be an integer number of base units", s)
	}
	return d.BigInt(), nil
}

func parseAssetKind(s string) (ccmtype.AssetKind, error) {
	switch s {
	case "native":
		return ccmtype.AssetNative, nil
	case "erc20":
		return ccmtype.AssetErc20, nil
	case "erc721":
		return ccmtype.AssetErc721, nil
	case "erc1155":
		return ccmtype.AssetErc1155, nil
	default:
		return 0, ccmerr.New(ccmerr.InvalidParams, "unknown asset kind %q", s)
	}
}

func parseAsset(w wireAssetIdentifier) (ccmtype.AssetIdentifier, error) {
	kind, err := parseAssetKind(w.Kind)
	if err != nil {
		return ccmtype.AssetIdentifier{}, err
	}
	out := ccmtype.AssetIdentifier{ChainID: w.ChainID, Kind: kind}
	if w.Contract != "" {
		addr, err := parseAddress(w.Contract)
		if err != nil {
			return ccmtype.AssetIdentifier{}, err
		}
		out.Contract = &addr
	}
	if w.TokenID != "" {
		id, ok := new(big.Int).SetString(w.TokenID, 10)
		if !ok {
			return ccmtype.AssetIdentifier{}, ccmerr.New(ccmerr.InvalidParams, "invalid tokenId %q", w.TokenID)
		}
		out.TokenID = id
	}
	return out, nil
}

func parseFulfillment(w wireFulfillmentCondition) (ccmtype.FulfillmentCondition, error) {
	asset, err := parseAsset(w.TargetAsset)
	if err != nil {
		return ccmtype.FulfillmentCondition{}, err
	}
	amount, err := parseAmount(w.TargetAmount)
	if err != nil {
		return ccmtype.FulfillmentCondition{}, err
	}
	recipient, err := parseAddress(w.Recipient)
	if err != nil {
		return ccmtype.FulfillmentCondition{}, err
	}
	var execData []byte
	if w.ExecutionData != "" {
		execData, err = parseHex(w.ExecutionData)
		if err != nil {
			return ccmtype.FulfillmentCondition{}, ccmerr.New(ccmerr.InvalidParams, "invalid executionData %q", w.ExecutionData)
		}
	}
	return ccmtype.FulfillmentCondition{
		TargetChainID: w.TargetChainID,
		TargetAsset:   asset,
		TargetAmount:  amount,
		Recipient:     recipient,
		ExecutionData: execData,
	}, nil
}

func toHex(b []byte) string { return "0x" + hex.EncodeToString(b) }

func addressHex(a ccmtype.Address) string { return toHex(a[:]) }
func hashHex(h ccmtype.Hash) string       { return toHex(h[:]) }
func sigHex(s ccmtype.Signature) string   { return toHex(s[:]) }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type wireLock struct {
	LockID      string                   `json:"lockId"`
	Owner       string                   `json:"owner"`
	Asset       wireAssetIdentifier      `json:"asset"`
	Amount      string                   `json:"amount"`
	LockedAt    uint64                   `json:"lockedAt"`
	ExpiresAt   uint64                   `json:"expiresAt"`
	Nonce       string                   `json:"nonce"`
	Fulfillment wireFulfillmentCondition `json:"fulfillment"`
	Status      string                   `json:"status"`
}

func toWireAsset(a ccmtype.AssetIdentifier) wireAssetIdentifier {
	w := wireAssetIdentifier{ChainID: a.ChainID, Kind: a.Kind.String()}
	if a.Contract != nil {
		w.Contract = addressHex(*a.Contract)
	}
	if a.TokenID != nil {
		w.TokenID = a.TokenID.String()
	}
	return w
}

func toWireFulfillment(f ccmtype.FulfillmentCondition) wireFulfillmentCondition {
	return wireFulfillmentCondition{
		TargetChainID: f.TargetChainID,
		TargetAsset:   toWireAsset(f.TargetAsset),
		TargetAmount:  amountString(f.TargetAmount),
		Recipient:     addressHex(f.Recipient),
		ExecutionData: toHex(f.ExecutionData),
	}
}

type wireBootAttestation struct {
	EnclaveID           string `json:"enclaveId"`
	PublicKey           string `json:"publicKey"`
	BootTime            uint64 `json:"bootTime"`
	CodeHash            string `json:"codeHash"`
	AttestationDocument string `json:"attestationDocument,omitempty"`
	IsRealAttestation   bool   `json:"isRealAttestation"`
	Signature           string `json:"signature"`
}

func toWireBootAttestation(a ccmtype.BootAttestation) wireBootAttestation {
	return wireBootAttestation{
		EnclaveID:           hashHex(a.EnclaveID),
		PublicKey:           toHex(a.PublicKey),
		BootTime:            a.BootTime,
		CodeHash:            hashHex(a.CodeHash),
		AttestationDocument: toHex(a.AttestationDocument),
		IsRealAttestation:   a.IsRealAttestation,
		Signature:           sigHex(a.Signature),
	}
}

func toWireLock(l ccmtype.ResourceLock) wireLock {
	return wireLock{
		LockID:      hashHex(l.ID),
		Owner:       addressHex(l.Owner),
		Asset:       toWireAsset(l.Asset),
		Amount:      amountString(l.Amount),
		LockedAt:    l.LockedAt,
		ExpiresAt:   l.ExpiresAt,
		Nonce:       amountString(l.Nonce),
		Fulfillment: toWireFulfillment(l.Fulfillment),
		Status:      l.Status.String(),
	}
}

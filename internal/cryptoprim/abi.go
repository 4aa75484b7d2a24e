// Package cryptoprim implements the core's cryptographic primitives:
// keccak256, the fixed-width subset of Solidity abi.encode, secp256k1
// ECDSA sign/recover, and EIP-712 domain/struct hashing.
//
// Hand-builds EIP-712 domain and struct hashes with
// common.LeftPadBytes + crypto.Keccak256Hash, generalized from a
// one-struct-type approach into reusable word-encoding helpers.
package cryptoprim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Keccak256 hashes the concatenation of data and returns the 32-byte digest.
func Keccak256(data ...[]byte) [32]byte {
	return crypto.Keccak256Hash(data...)
}

// EncodeUint256 left-pads v into a single 32-byte abi.encode word. A nil v
// encodes as zero.
func EncodeUint256(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

// EncodeUint64 encodes a uint64 as a single abi.encode word.
func EncodeUint64(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

// EncodeAddress right-aligns a 20-byte address in a single abi.encode word.
func EncodeAddress(a [20]byte) []byte {
	return common.LeftPadBytes(a[:], 32)
}

// EncodeUint8 encodes a single byte value as an abi.encode word.
func EncodeUint8(v uint8) []byte {
	return common.LeftPadBytes([]byte{v}, 32)
}

// EncodeBytes32 passes a 32-byte value through unchanged — it already
// occupies exactly one word.
func EncodeBytes32(b [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// EncodeBool encodes a bool as 0 or 1 in a single word.
func EncodeBool(v bool) []byte {
	if v {
		return EncodeUint8(1)
	}
	return EncodeUint8(0)
}

// EncodeBytesTail encodes a dynamic bytes value the way a head-only layout
// requires when it is the terminal field of a tuple: a length word
// followed by the payload right-padded to a 32-byte multiple.
func EncodeBytesTail(data []byte) []byte {
	length := EncodeUint256(new(big.Int).SetUint64(uint64(len(data))))
	padded := make([]byte, ((len(data)+31)/32)*32)
	copy(padded, data)
	out := make([]byte, 0, len(length)+len(padded))
	out = append(out, length...)
	out = append(out, padded...)
	return out
}

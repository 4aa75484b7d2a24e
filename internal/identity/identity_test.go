package identity

import (
	"math/big"
	"testing"

	"github.com/credible-commitment/ccm-core/internal/ccmtype"
)

func TestHashAssetNativeVsErc20Differ(t *testing.T) {
	native := ccmtype.AssetIdentifier{ChainID: 1, Kind: ccmtype.AssetNative}
	contract := ccmtype.Address{1, 2, 3}
	erc20 := ccmtype.AssetIdentifier{ChainID: 1, Kind: ccmtype.AssetErc20, Contract: &contract}

	if HashAsset(native) == HashAsset(erc20) {
		t.Fatal("native and erc20 asset hashes must differ")
	}
}

func TestHashAssetDeterministic(t *testing.T) {
	contract := ccmtype.Address{9, 9}
	a := ccmtype.AssetIdentifier{ChainID: 137, Kind: ccmtype.AssetErc20, Contract: &contract, TokenID: big.NewInt(5)}
	if HashAsset(a) != HashAsset(a) {
		t.Fatal("HashAsset must be deterministic for identical inputs")
	}
}

func TestHashFulfillmentConditionExecutionDataPresence(t *testing.T) {
	base := ccmtype.FulfillmentCondition{
		TargetChainID: 42161,
		TargetAsset:   ccmtype.AssetIdentifier{ChainID: 42161, Kind: ccmtype.AssetNative},
		TargetAmount:  big.NewInt(1000),
		Recipient:     ccmtype.Address{1},
	}
	withData := base
	withData.ExecutionData = []byte("calldata")

	if HashFulfillmentCondition(base) == HashFulfillmentCondition(withData) {
		t.Fatal("presence of executionData must change the hash")
	}
}

func TestDeriveLockIDDeterministicAndNonceSensitive(t *testing.T) {
	owner := ccmtype.Address{1, 2, 3}
	assetHash := ccmtype.Hash{4, 5, 6}
	id1 := DeriveLockID(owner, assetHash, big.NewInt(100), big.NewInt(1), 1000)
	id2 := DeriveLockID(owner, assetHash, big.NewInt(100), big.NewInt(1), 1000)
	if id1 != id2 {
		t.Fatal("DeriveLockID must be deterministic")
	}
	id3 := DeriveLockID(owner, assetHash, big.NewInt(100), big.NewInt(2), 1000)
	if id1 == id3 {
		t.Fatal("different nonce must yield a different lock ID")
	}
}

// internal/math/assets.go
package math

// AssetKind identifies one of the two asset kinds that exist globally. Every
// pool fixes one kind as its deposit/borrow asset and the other as collateral.
type AssetKind int32

const (
	AssetA AssetKind = iota
	AssetB
)

// AssetInfo describes an asset kind's display symbol and unit size.
type AssetInfo struct {
	Symbol   string
	Decimals int
	Scale    int64 // 10^Decimals
}

var assetRegistry = map[AssetKind]AssetInfo{
	AssetA: {Symbol: "LUSD", Decimals: 6, Scale: 1_000_000},
	AssetB: {Symbol: "LBTC", Decimals: 8, Scale: 100_000_000},
}

// GetAssetInfo returns the registered info for a kind.
func GetAssetInfo(kind AssetKind) (AssetInfo, bool) {
	info, ok := assetRegistry[kind]
	return info, ok
}

// AssetScale returns the 10^decimals unit size for a kind, or 1 when unknown.
func AssetScale(kind AssetKind) int64 {
	if info, ok := assetRegistry[kind]; ok {
		return info.Scale
	}
	return 1
}

func (k AssetKind) String() string {
	if info, ok := assetRegistry[k]; ok {
		return info.Symbol
	}
	return "UNKNOWN"
}

// DepositKind returns the deposit/borrow asset kind for an orientation.
func DepositKind(o Orientation) AssetKind {
	if o == AssetAAsCollateral {
		return AssetB
	}
	return AssetA
}

// CollateralKind returns the collateral asset kind for an orientation.
func CollateralKind(o Orientation) AssetKind {
	if o == AssetAAsCollateral {
		return AssetA
	}
	return AssetB
}

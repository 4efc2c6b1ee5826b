package math

import "testing"

func TestToSharesBootstrap(t *testing.T) {
	// First deposit into an empty pool mints 1:1.
	if got := ToShares(1_000, 0, 0); got != 1_000 {
		t.Fatalf("bootstrap mint: got %d, want 1000", got)
	}
	// Zero liquidity with shares outstanding also falls back to 1:1.
	if got := ToShares(500, 100, 0); got != 500 {
		t.Fatalf("zero-liquidity mint: got %d, want 500", got)
	}
}

func TestToSharesFloors(t *testing.T) {
	// 3 shares back a liquidity of 10: depositing 7 is worth 2.1 shares,
	// floored to 2.
	if got := ToShares(7, 3, 10); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestToAmountCeils(t *testing.T) {
	// 3 shares over liquidity 10: one share is worth 3.33, ceiled to 4.
	if got := ToAmount(1, 10, 3); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
	if got := ToAmount(5, 10, 0); got != 0 {
		t.Fatalf("zero total shares: got %d, want 0", got)
	}
}

func TestShareRoundTripExact(t *testing.T) {
	// With liquidity untouched between mint and redeem, a depositor gets
	// back exactly the amount deposited.
	const deposit = 123_456_789
	totalShares := int64(0)
	totalLiquidity := int64(0)

	minted := ToShares(deposit, totalShares, totalLiquidity)
	totalShares += minted
	totalLiquidity += deposit

	if got := ToAmount(minted, totalLiquidity, totalShares); got != deposit {
		t.Fatalf("round trip: got %d, want %d", got, deposit)
	}
}

func TestShareRoundTripWithSecondDepositor(t *testing.T) {
	totalShares := int64(0)
	totalLiquidity := int64(0)

	mintA := ToShares(1_000, totalShares, totalLiquidity)
	totalShares += mintA
	totalLiquidity += 1_000

	mintC := ToShares(1_000, totalShares, totalLiquidity)
	totalShares += mintC
	totalLiquidity += 1_000

	if got := ToAmount(mintA, totalLiquidity, totalShares); got != 1_000 {
		t.Fatalf("first depositor redeem: got %d, want 1000", got)
	}
}

func TestConvertCollateralOrientations(t *testing.T) {
	// Rate 2.0 B-per-A at scale 1e8; equal decimal scales isolate the
	// orientation arithmetic.
	const rate = 2 * 100_000_000

	tests := []struct {
		name        string
		amount      int64
		percent     int64
		orientation Orientation
		want        int64
	}{
		// A as collateral: multiply by the rate. 100 A at 100% = 200 B.
		{"a_collateral_full", 100, 100, AssetAAsCollateral, 200},
		// B as collateral: divide by the rate. 100 B at 100% = 50 A.
		{"b_collateral_full", 100, 100, AssetBAsCollateral, 50},
		// 50% factor halves both.
		{"a_collateral_half", 100, 50, AssetAAsCollateral, 100},
		{"b_collateral_half", 100, 50, AssetBAsCollateral, 25},
		// Sub-unit results floor to zero.
		{"floors_to_zero", 1, 1, AssetBAsCollateral, 0},
		{"zero_amount", 0, 100, AssetAAsCollateral, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ConvertCollateral(tc.amount, tc.percent, rate, tc.orientation, 1, 1)
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestConvertCollateralScaleCorrection(t *testing.T) {
	// 1.00000000 LBTC (scale 1e8) as collateral at rate 2.0 B-per-A is worth
	// 0.5 A; in LUSD units (scale 1e6) that is 500_000.
	const rate = 2 * 100_000_000
	got := ConvertCollateral(100_000_000, 100, rate, AssetBAsCollateral, 100_000_000, 1_000_000)
	if got != 500_000 {
		t.Fatalf("got %d, want 500000", got)
	}

	// The other way: 1.000000 LUSD at rate 2.0 is worth 2.0 B, i.e.
	// 2_00000000 in LBTC units.
	got = ConvertCollateral(1_000_000, 100, rate, AssetAAsCollateral, 1_000_000, 100_000_000)
	if got != 200_000_000 {
		t.Fatalf("got %d, want 200000000", got)
	}
}

func TestBorrowableAmount(t *testing.T) {
	const rate = 1 * 100_000_000 // 1:1
	// 1000 collateral at 75% factor.
	if got := BorrowableAmount(1_000, 75, rate, AssetBAsCollateral, 1, 1); got != 750 {
		t.Fatalf("got %d, want 750", got)
	}
}

func TestPayoffQuoteDiscount(t *testing.T) {
	const rate = 1 * 100_000_000
	// Payoff is always 95% of full collateral value, independent of the
	// pool's collateral factor.
	full := ConvertCollateral(10_000, 100, rate, AssetBAsCollateral, 1, 1)
	quote := PayoffQuote(10_000, rate, AssetBAsCollateral, 1, 1)
	if want := full * 95 / 100; quote != want {
		t.Fatalf("quote %d, want %d (full %d)", quote, want, full)
	}
}

func TestInterestAmountTruncation(t *testing.T) {
	tests := []struct {
		name       string
		borrowable int64
		rate       uint8
		days       int64
		want       int64
	}{
		// 36500 * 10% / 365 = 10 per day exactly.
		{"exact_daily", 36_500, 10, 7, 70},
		// 1000 * 5% = 50; 50/365 floors to 0, so any duration accrues 0.
		{"daily_rate_floors_to_zero", 1_000, 5, 365, 0},
		// 8 borrowed at 2%: 8*2/100 = 0 before the /365 step.
		{"tiny_loan", 8, 2, 30, 0},
		// 1_000_000 * 36% / 365 = 986/day (floored from 986.3).
		{"floored_daily", 1_000_000, 36, 10, 9_860},
		{"zero_rate", 1_000_000, 0, 30, 0},
		{"zero_duration", 1_000_000, 10, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := InterestAmount(tc.borrowable, tc.rate, tc.days)
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestInterestAmountSaturates(t *testing.T) {
	// Large enough that the int128 product no longer fits an int64; the
	// result must pin to the maximum instead of wrapping.
	got := InterestAmount(1<<62, 255, 3_650)
	if got != maxInt64 {
		t.Fatalf("got %d, want maxInt64", got)
	}
}

func TestFeeAmount(t *testing.T) {
	if got := FeeAmount(1_000, 2); got != 20 {
		t.Fatalf("got %d, want 20", got)
	}
	// Floors.
	if got := FeeAmount(99, 2); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := FeeAmount(1_000, 0); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestMulDivRounding(t *testing.T) {
	if got := MulDiv(7, 3, 10, RoundDown); got != 2 {
		t.Fatalf("floor: got %d, want 2", got)
	}
	if got := MulDiv(7, 3, 10, RoundUp); got != 3 {
		t.Fatalf("ceil: got %d, want 3", got)
	}
	// Exact division is unaffected by mode.
	if got := MulDiv(5, 4, 10, RoundUp); got != 2 {
		t.Fatalf("exact ceil: got %d, want 2", got)
	}
}

func TestAssetRegistry(t *testing.T) {
	info, ok := GetAssetInfo(AssetA)
	if !ok || info.Symbol != "LUSD" || info.Scale != 1_000_000 {
		t.Fatalf("asset A: got %+v ok=%v", info, ok)
	}
	info, ok = GetAssetInfo(AssetB)
	if !ok || info.Symbol != "LBTC" || info.Scale != 100_000_000 {
		t.Fatalf("asset B: got %+v ok=%v", info, ok)
	}

	if DepositKind(AssetAAsCollateral) != AssetB || CollateralKind(AssetAAsCollateral) != AssetA {
		t.Fatal("a-as-collateral kind mapping wrong")
	}
	if DepositKind(AssetBAsCollateral) != AssetA || CollateralKind(AssetBAsCollateral) != AssetB {
		t.Fatal("b-as-collateral kind mapping wrong")
	}
}

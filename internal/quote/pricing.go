package quote

import (
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// executionCost computes the execution-chain cost per its configured cost
// model. computeUnits is only consulted for compute-metered chains.
func executionCost(profile domain.ChainProfile, computeUnits int64) (decimal.Decimal, error) {
	switch profile.CostModel {
	case domain.CostModelComputeMetered:
		buffer := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(profile.PriorityBuffer))
		computeCost := decimal.NewFromInt(computeUnits).Mul(decimal.NewFromFloat(profile.UnitPrice)).Mul(buffer)
		return computeCost.Add(decimal.NewFromFloat(profile.FixedOverhead)), nil

	case domain.CostModelFixedFee:
		return decimal.NewFromFloat(profile.BaseFee).Mul(decimal.NewFromFloat(profile.FixedFeeMult)), nil

	case domain.CostModelGasMeter:
		gas := decimal.NewFromFloat(profile.BaseGas).
			Mul(decimal.NewFromInt(int64(profile.ExpectedHops))).
			Mul(decimal.NewFromFloat(profile.GasPrice)).
			Div(decimal.NewFromFloat(profile.GasScale))
		return gas.Mul(decimal.NewFromFloat(profile.GasMeterMult)), nil

	default:
		return decimal.Zero, svcerrors.InvalidCostModel(string(profile.Chain), string(profile.CostModel))
	}
}

// serviceFee applies the configured basis-point rate to the execution cost.
func serviceFee(cost decimal.Decimal, feeRateBps int) decimal.Decimal {
	rate := decimal.NewFromInt(int64(feeRateBps)).Div(decimal.NewFromInt(10000))
	return cost.Mul(rate)
}

// maxFundingAmount converts (cost+fee) from the execution asset into the
// funding asset at `rate`, padded by the configured slippage buffer.
func maxFundingAmount(cost, fee decimal.Decimal, rate, maxSlippagePct float64) decimal.Decimal {
	total := cost.Add(fee)
	converted := total.Div(decimal.NewFromFloat(rate))
	slippage := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(maxSlippagePct))
	return converted.Mul(slippage)
}

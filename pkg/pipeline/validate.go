package pipeline

import (
	"time"

	"github.com/pkg/errors"

	trinary "github.com/iotaledger/iota.go/trinary"

	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
)

// iotaSupply is the fixed total token supply; a transaction's value must
// always fall within [-iotaSupply, iotaSupply].
const iotaSupply = 2_779_530_283_277_761

// Stage 3 rejection reasons.
var (
	ErrValueOutOfRange      = errors.New("pipeline: transaction value out of supply range")
	ErrSpendingAddressTrit  = errors.New("pipeline: spending address has a non-zero last trit")
	ErrWeightBelowMinimum   = errors.New("pipeline: transaction hash weight below configured mwm")
	ErrTimestampOutOfWindow = errors.New("pipeline: transaction timestamp outside the allowed window")
)

// validationParams are the configured thresholds Stage 3 checks a
// transaction against.
type validationParams struct {
	mwm               uint8
	snapshotTimestamp uint32
	allowedDrift      time.Duration
}

// validateTransaction runs §4.D Stage 3 against a parsed transaction and
// its computed hash. requested relaxes the mwm and timestamp checks,
// since an explicitly requested message is trusted to have already
// passed them when it was first gossiped.
func validateTransaction(fields ternary.TransactionFields, hash ternary.Hash, params validationParams, now time.Time, requested bool) error {
	if fields.Value < -iotaSupply || fields.Value > iotaSupply {
		return ErrValueOutOfRange
	}

	if fields.Value != 0 {
		addressTrits, err := trinary.TrytesToTrits(fields.Address)
		if err != nil {
			return errors.Wrap(err, "pipeline: invalid address trytes")
		}

		if len(addressTrits) > 0 && addressTrits[len(addressTrits)-1] != 0 {
			return ErrSpendingAddressTrit
		}
	}

	if !requested && ternary.TrailingZeros(hash) < int(params.mwm) {
		return ErrWeightBelowMinimum
	}

	if !requested {
		upperBound := uint32(now.Add(params.allowedDrift).Unix())
		if fields.Timestamp < params.snapshotTimestamp || fields.Timestamp > upperBound {
			return ErrTimestampOutOfWindow
		}
	}

	return nil
}

package milestone

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/core/logger"

	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

// ErrTooFewSignatures is returned when a milestone carries fewer
// signatures than the configured threshold requires.
var ErrTooFewSignatures = errors.New("milestone: fewer signatures than the configured threshold")

// ErrTooManySignatures is returned when a milestone carries more
// signatures than public keys it declares.
var ErrTooManySignatures = errors.New("milestone: more signatures than public keys")

// ErrUnknownPublicKey is returned when a milestone's declared public key
// is not a member of the configured coordinator key set.
var ErrUnknownPublicKey = errors.New("milestone: public key not in configured coordinator set")

// ErrSignatureVerificationFailed is returned when a signature does not
// verify against its declared public key and the essence digest.
var ErrSignatureVerificationFailed = errors.New("milestone: signature verification failed")

// ValidatorConfig holds the parameters signatures are checked against.
type ValidatorConfig struct {
	// Threshold is the minimum number of valid signatures required.
	Threshold int
	// PublicKeys is the configured coordinator public key set, keyed by
	// their hex encoding.
	PublicKeys map[string]struct{}
	// AllowedFutureDrift bounds how far a milestone's timestamp may sit
	// ahead of validation time.
	AllowedFutureDrift time.Duration
}

// Validator checks a parsed, not-yet-verified milestone essence and
// signature set against ValidatorConfig, then flags the vertex, per
// §4.F. Grounded on coordinator.go's essence construction (adapted away
// from the WOTS-migration-specific fields it validates) and on
// original_source's milestone essence/signature split.
type Validator struct {
	*logger.WrappedLogger

	tangle   *tangle.Tangle
	cfg      ValidatorConfig
	sponge   crypto.Sponge
	verifier crypto.Verifier
	metrics  *metrics.Metrics

	Events *Events
}

// NewValidator creates a Validator bound to tng.
func NewValidator(tng *tangle.Tangle, cfg ValidatorConfig, sponge crypto.Sponge, verifier crypto.Verifier, m *metrics.Metrics, log *logger.Logger) *Validator {
	v := &Validator{
		tangle:   tng,
		cfg:      cfg,
		sponge:   sponge,
		verifier: verifier,
		metrics:  m,
		Events:   newEvents(),
	}
	v.WrappedLogger = logger.NewWrappedLogger(log)

	return v
}

// Validate parses and verifies ms attached to messageID. On success it
// sets the vertex's Milestone flag and milestone_index, records the
// (index, messageID) pair in the tangle's milestones map, and fires
// MilestoneValidated. On failure it increments invalid_messages and
// aborts without mutating the vertex, per §4.F/§7.
func (v *Validator) Validate(messageID hornet.MessageId, ms milestonepkg.Milestone, now time.Time) error {
	if err := v.verify(ms, now); err != nil {
		v.metrics.IncInvalidMessages()
		v.LogWarnf("milestone %s rejected: %s", messageID.Hex(), err)

		return err
	}

	ok := v.tangle.UpdateMetadata(messageID, func(meta *tangle.Metadata) {
		meta.SetMilestone(ms.Essence.Index)
	})
	if !ok {
		return errors.New("milestone: vertex not found in tangle")
	}

	v.tangle.AddMilestone(ms.Essence.Index, messageID)
	v.tangle.UpdateLatestMilestoneIndex(ms.Essence.Index)
	v.Events.MilestoneValidated.Trigger(ms.Essence.Index)

	return nil
}

func (v *Validator) verify(ms milestonepkg.Milestone, now time.Time) error {
	if err := ms.Essence.Validate(now, v.cfg.AllowedFutureDrift); err != nil {
		return err
	}

	if len(ms.Signatures) < v.cfg.Threshold {
		return ErrTooFewSignatures
	}

	if len(ms.Signatures) > len(ms.PublicKeys) {
		return ErrTooManySignatures
	}

	digest := v.sponge.Sum(ms.Essence.Bytes())

	for i, sig := range ms.Signatures {
		pubKey := ms.PublicKeys[i]

		if _, known := v.cfg.PublicKeys[hex.EncodeToString(pubKey)]; !known {
			return ErrUnknownPublicKey
		}

		valid, err := v.verifier.Verify(digest, sig, pubKey)
		if err != nil {
			return errors.Wrap(err, "milestone: verifier error")
		}
		if !valid {
			return ErrSignatureVerificationFailed
		}
	}

	return nil
}

package middleware

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// tierFromDomain maps a stored operator key's tier onto the rate limiter's
// tier enum.
func tierFromDomain(t domain.APIKeyTier) RateLimitTier {
	switch t {
	case domain.APIKeyTierOperator:
		return TierOperator
	case domain.APIKeyTierIntegration:
		return TierIntegration
	case domain.APIKeyTierReadOnly:
		return TierReadOnly
	default:
		return TierAnonymous
	}
}

// NewAPIKeyValidator adapts a domain.APIKeyStore into the APIKeyValidator
// signature Authentication expects, hashing the bearer token before the
// store lookup so raw keys never reach persistence.
func NewAPIKeyValidator(store domain.APIKeyStore) APIKeyValidator {
	return func(ctx context.Context, key string) (*APIKeyInfo, error) {
		sum := sha256.Sum256([]byte(key))
		rec, err := store.GetByHash(ctx, sum[:])
		if err != nil {
			if errors.Is(err, shielderr.ErrNotFound) {
				return nil, domain.ErrUnauthorized
			}
			return nil, err
		}
		if rec.Revoked {
			return &APIKeyInfo{Key: key, KeyID: rec.ID, Tier: tierFromDomain(rec.Tier), Active: false}, nil
		}

		go func() { _ = store.Touch(context.Background(), rec.ID) }()

		return &APIKeyInfo{
			Key:       key,
			KeyID:     rec.ID,
			Tier:      tierFromDomain(rec.Tier),
			Active:    true,
			ExpiresAt: rec.ExpiresAt,
		}, nil
	}
}

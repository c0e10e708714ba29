package domain

import (
	"fmt"
	"strings"
)

// Bucket maps s into [0,100) with a 32-bit h*31+c rolling hash over its
// UTF-16 code units. The same input always lands in the same bucket.
func Bucket(s string) int {
	var h int32
	for _, c := range s {
		if c >= 0x10000 {
			hi, lo := surrogates(c)
			h = h*31 + int32(hi)
			h = h*31 + int32(lo)
			continue
		}
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % 100)
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xD800 + (r>>10)&0x3FF, 0xDC00 + r&0x3FF
}

// BucketKey is the percentage bucket input. key is the stored, slugged flag
// key, so "New Checkout" and "new-checkout" bucket a user identically.
func BucketKey(userID, key string) string {
	return fmt.Sprintf("%s-%s", userID, key)
}

// Evaluate resolves an already loaded flag for the caller. A nil flag is off.
func Evaluate(flag *FeatureFlag, ec EvalContext) bool {
	if flag == nil || !flag.Enabled {
		return false
	}

	switch flag.RolloutStrategy {
	case StrategyBoolean:
		return true
	case StrategyPercentage:
		if flag.Percentage == nil {
			return false
		}
		return Bucket(BucketKey(ec.UserID, flag.Key)) < *flag.Percentage
	case StrategyRole:
		role := strings.TrimSpace(ec.UserRole)
		if role == "" {
			return false
		}
		for _, audience := range flag.AudienceRoles {
			if strings.EqualFold(audience, role) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

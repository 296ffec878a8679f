package domain

import "strings"

// Tier is an ordered subscription level gating feature access.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tierLevels defines the total order over tiers. The gap between pro and
// enterprise is intentional headroom for an unlisted tier, not a defect;
// callers must not assume contiguous levels.
var tierLevels = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 3,
}

// ParseTier normalizes a tier name. ok is false for unknown names.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(s))
	_, ok := tierLevels[t]
	return t, ok
}

// Level returns the tier's position in the order, or -1 for unknown tiers
// so they never grant access.
func (t Tier) Level() int {
	if l, ok := tierLevels[t]; ok {
		return l
	}
	return -1
}

// HasAccess reports whether a holder of t may use a resource gated at
// required: level(t) >= level(required).
func (t Tier) HasAccess(required Tier) bool {
	return t.Level() >= required.Level()
}

// EffectiveTier reduces a user's subscriptions to a single tier for
// gating: the highest tier among active subscriptions, or free when the
// user holds none.
func EffectiveTier(subs []Subscription) Tier {
	tier := TierFree
	for _, s := range subs {
		if s.IsActive && s.Tier.Level() > tier.Level() {
			tier = s.Tier
		}
	}
	return tier
}

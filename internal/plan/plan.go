package plan

import (
	"strings"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/model"
)

type Tier string

const (
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Unlimited marks a resource with no monthly cap. A limit of 0 means the
// plan has no access to the resource at all.
const Unlimited = -1

// Normalize maps a raw plan string to a known tier. Unknown plans fall
// back to the most restrictive tier.
func Normalize(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TierPro):
		return TierPro
	case string(TierEnterprise):
		return TierEnterprise
	default:
		return TierStarter
	}
}

var limits = map[Tier]map[model.Resource]int{
	TierStarter: {
		model.ResourceEmails:      200,
		model.ResourceSMS:         0,
		model.ResourceWhatsApp:    0,
		model.ResourceScans:       10,
		model.ResourceSequences:   3,
		model.ResourceEnrichments: 50,
	},
	TierPro: {
		model.ResourceEmails:      2000,
		model.ResourceSMS:         500,
		model.ResourceWhatsApp:    500,
		model.ResourceScans:       100,
		model.ResourceSequences:   25,
		model.ResourceEnrichments: 500,
	},
	TierEnterprise: {
		model.ResourceEmails:      Unlimited,
		model.ResourceSMS:         Unlimited,
		model.ResourceWhatsApp:    Unlimited,
		model.ResourceScans:       Unlimited,
		model.ResourceSequences:   Unlimited,
		model.ResourceEnrichments: Unlimited,
	},
}

var channels = map[Tier]map[model.Channel]bool{
	TierStarter: {
		model.ChannelEmail: true,
	},
	TierPro: {
		model.ChannelEmail:    true,
		model.ChannelSMS:      true,
		model.ChannelWhatsApp: true,
	},
	TierEnterprise: {
		model.ChannelEmail:    true,
		model.ChannelSMS:      true,
		model.ChannelWhatsApp: true,
	},
}

// Limit resolves the monthly cap for one resource under a tier. Unknown
// resources have no access.
func Limit(tier Tier, r model.Resource) int {
	caps, ok := limits[tier]
	if !ok {
		caps = limits[TierStarter]
	}
	return caps[r]
}

// Limits returns a copy of the full cap table for a tier.
func Limits(tier Tier) map[model.Resource]int {
	caps, ok := limits[tier]
	if !ok {
		caps = limits[TierStarter]
	}
	out := make(map[model.Resource]int, len(caps))
	for r, v := range caps {
		out[r] = v
	}
	return out
}

// ChannelAvailable reports whether a delivery channel is enabled for a
// tier.
func ChannelAvailable(tier Tier, ch model.Channel) bool {
	set, ok := channels[tier]
	if !ok {
		set = channels[TierStarter]
	}
	return set[ch]
}

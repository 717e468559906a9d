// Package domain contains the value objects of the attribution calculation
// engine: touchpoints, journeys, model configurations, and attribution
// results. All types are immutable from the engine's perspective; they are
// supplied by external collaborators and never mutated in place.
package domain

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Channel identifies the categorical marketing medium that produced a
// touchpoint. The set is closed: configurations referencing a channel outside
// this set are rejected during validation.
type Channel string

// The closed set of supported marketing channels.
const (
	ChannelSocialOrganic     Channel = "social-organic"
	ChannelSocialPaid        Channel = "social-paid"
	ChannelEmailMarketing    Channel = "email-marketing"
	ChannelPaidSearch        Channel = "paid-search"
	ChannelOrganicSearch     Channel = "organic-search"
	ChannelDirect            Channel = "direct"
	ChannelReferral          Channel = "referral"
	ChannelDisplay           Channel = "display"
	ChannelVideo             Channel = "video"
	ChannelAffiliate         Channel = "affiliate"
	ChannelContentSyndicated Channel = "content-syndication"
)

// knownChannels indexes the closed channel set for O(1) membership checks.
var knownChannels = map[Channel]struct{}{
	ChannelSocialOrganic:     {},
	ChannelSocialPaid:        {},
	ChannelEmailMarketing:    {},
	ChannelPaidSearch:        {},
	ChannelOrganicSearch:     {},
	ChannelDirect:            {},
	ChannelReferral:          {},
	ChannelDisplay:           {},
	ChannelVideo:             {},
	ChannelAffiliate:         {},
	ChannelContentSyndicated: {},
}

// foldCaser is a package-level Unicode case folder so channel parsing does
// not allocate a new caser per call.
var foldCaser = cases.Fold()

// ParseChannel resolves s to a member of the closed channel set.
// Input is trimmed and case-folded, so "Email-Marketing" and
// "email-marketing" resolve to the same channel.
// The second return value is false when s is not a known channel.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(foldCaser.String(strings.TrimSpace(s)))
	_, ok := knownChannels[c]
	return c, ok
}

// Valid reports whether c is a member of the closed channel set.
func (c Channel) Valid() bool {
	_, ok := knownChannels[c]
	return ok
}

// KnownChannels returns the closed channel set in lexical order.
// Useful for validation messages and introspection.
func KnownChannels() []Channel {
	channels := make([]Channel, 0, len(knownChannels))
	for c := range knownChannels {
		channels = append(channels, c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Metadata keys a touchpoint must carry to earn full completeness credit
// from the confidence scorer.
const (
	// MetaKeySource names the collection source of the touchpoint
	// (e.g. "web", "mobile-sdk", "crm-import"). Must be a string.
	MetaKeySource = "source"

	// MetaKeyPosition is the touchpoint's position as recorded by the
	// upstream collection pipeline. Must be an integer.
	MetaKeyPosition = "position"
)

// Touchpoint represents a single recorded marketing exposure tied to a
// visitor. Touchpoints are supplied by the event collection collaborator
// and are read-only to this engine.
type Touchpoint struct {
	// ID uniquely identifies this touchpoint within its journey.
	ID string `json:"id" yaml:"id"`

	// Channel is the marketing medium that produced this exposure.
	Channel Channel `json:"channel" yaml:"channel"`

	// Timestamp records when the exposure occurred. It must not be in the
	// future relative to the evaluation clock.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Value is an optional non-negative weight or spend associated with
	// the exposure. Nil when the collector recorded no value.
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`

	// Metadata is an open key/value map. The confidence scorer inspects
	// MetaKeySource and MetaKeyPosition; all other keys pass through.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Source returns the metadata source string.
// The second return value is false when the key is absent or mistyped.
func (t Touchpoint) Source() (string, bool) {
	v, ok := t.Metadata[MetaKeySource]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Position returns the metadata position integer.
// JSON decoding produces float64 for numbers, so whole-valued floats are
// accepted alongside native ints. The second return value is false when the
// key is absent or not an integer.
func (t Touchpoint) Position() (int, bool) {
	v, ok := t.Metadata[MetaKeyPosition]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// Journey is the ordered collection of touchpoints leading to one
// conversion. A journey must contain at least one touchpoint for any
// calculation to proceed.
type Journey struct {
	// ConversionID links the journey's touchpoints to a conversion event.
	ConversionID string `json:"conversion_id" yaml:"conversion_id"`

	// ConversionTime records when the conversion occurred. When zero, the
	// latest touchpoint timestamp stands in for it.
	ConversionTime time.Time `json:"conversion_time,omitzero" yaml:"conversion_time,omitempty"`

	// Touchpoints are the exposures attributed to this conversion.
	// They need not arrive pre-sorted; models sort defensively.
	Touchpoints []Touchpoint `json:"touchpoints" yaml:"touchpoints"`
}

// Len returns the number of touchpoints in the journey.
func (j Journey) Len() int { return len(j.Touchpoints) }

// ConversionAt returns the conversion timestamp, falling back to the latest
// touchpoint timestamp when the journey carries no explicit conversion time.
func (j Journey) ConversionAt() time.Time {
	if !j.ConversionTime.IsZero() {
		return j.ConversionTime
	}
	var latest time.Time
	for _, tp := range j.Touchpoints {
		if tp.Timestamp.After(latest) {
			latest = tp.Timestamp
		}
	}
	return latest
}

// SortedByTime returns a defensive copy of the journey's touchpoints ordered
// by ascending timestamp. The sort is stable: touchpoints with identical
// timestamps keep their input order, making tie-breaking deterministic.
func (j Journey) SortedByTime() []Touchpoint {
	sorted := make([]Touchpoint, len(j.Touchpoints))
	copy(sorted, j.Touchpoints)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Timestamp.Before(sorted[b].Timestamp)
	})
	return sorted
}

// IsChronological reports whether touchpoints already arrive in ascending
// timestamp order. Out-of-order journeys are flagged by models, not rejected.
func (j Journey) IsChronological() bool {
	for i := 1; i < len(j.Touchpoints); i++ {
		if j.Touchpoints[i].Timestamp.Before(j.Touchpoints[i-1].Timestamp) {
			return false
		}
	}
	return true
}

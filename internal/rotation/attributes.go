package rotation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/systmms/keyrotator/internal/notify"
)

// Tag keys recognized on principals. Matching is case-insensitive.
const (
	tagChannel     = "notification_channel"
	tagEmail       = "email"
	tagSlackURL    = "slack_url"
	tagRotateAfter = "rotate_after_days"
	tagInstruction = "instruction_"
)

// Attributes are the rotation-relevant settings parsed from a principal's
// directory tags.
type Attributes struct {
	// Channel is the raw notification_channel tag value.
	Channel string

	// Email and SlackURL are the channel endpoints, when tagged.
	Email    string
	SlackURL string

	// RotateAfter is the raw rotation-age override; EffectiveMaxAge
	// decides whether it is usable.
	RotateAfter string

	// Instructions is the joined instruction_<n> fragments, n ascending.
	Instructions string
}

// ParseAttributes extracts recognized attributes from raw tags.
func ParseAttributes(tags map[string]string) Attributes {
	var attrs Attributes
	fragments := make(map[int]string)

	for key, value := range tags {
		switch lower := strings.ToLower(key); {
		case lower == tagChannel:
			attrs.Channel = value
		case lower == tagEmail:
			attrs.Email = value
		case lower == tagSlackURL:
			attrs.SlackURL = value
		case lower == tagRotateAfter:
			attrs.RotateAfter = value
		case strings.HasPrefix(lower, tagInstruction):
			n, err := strconv.Atoi(strings.TrimPrefix(lower, tagInstruction))
			if err == nil {
				fragments[n] = value
			}
		}
	}

	if len(fragments) > 0 {
		order := make([]int, 0, len(fragments))
		for n := range fragments {
			order = append(order, n)
		}
		sort.Ints(order)

		parts := make([]string, 0, len(order))
		for _, n := range order {
			parts = append(parts, fragments[n])
		}
		attrs.Instructions = strings.Join(parts, " ")
	}

	return attrs
}

// Endpoint returns the delivery endpoint for the principal's channel.
// ok is false when the channel is unrecognized or the endpoint tag for it
// is missing — either way there is no one to safely notify, so the
// principal is not eligible for rotation.
func (a Attributes) Endpoint() (channel notify.Channel, endpoint string, ok bool) {
	channel, recognized := notify.RecognizedChannel(a.Channel)
	if !recognized {
		return "", "", false
	}

	switch channel {
	case notify.ChannelEmail:
		endpoint = a.Email
	case notify.ChannelSlack:
		endpoint = a.SlackURL
	}

	if endpoint == "" {
		return channel, "", false
	}
	return channel, endpoint, true
}

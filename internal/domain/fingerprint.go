package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Fingerprint hashes the stable fields of a TrackerPayload so repeated
// deliveries of the same logical payload collapse to the same value.
// events and metadata are excluded since they vary on every retry/resend
// even when the payload is "the same".
func Fingerprint(p *TrackerPayload) string {
	var b strings.Builder
	b.WriteString("source:")
	b.WriteString(p.Source.ID())
	b.WriteString("|session:")
	if p.Session != nil {
		b.WriteString(p.Session.ID)
	}
	b.WriteString("|profile:")
	if p.Profile != nil {
		b.WriteString(p.Profile.ID)
	}
	b.WriteString("|profile_less:")
	b.WriteString(strconv.FormatBool(p.ProfileLess))
	b.WriteString("|context:")
	writeStableValue(&b, p.Context)
	b.WriteString("|properties:")
	writeStableValue(&b, p.Properties)
	b.WriteString("|request:")
	writeStableValue(&b, p.Request)
	b.WriteString("|options:")
	writeStableValue(&b, p.Options)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeStableValue serializes v deterministically: map keys sorted
// lexicographically, floats via strconv.FormatFloat(v, 'g', -1, 64),
// strings written as raw UTF-8 bytes (not unicode-escaped).
func writeStableValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeStableValue(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStableValue(b, e)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(val)
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 64))
	default:
		b.WriteString(strconv.Quote(toString(val)))
	}
}

func toString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

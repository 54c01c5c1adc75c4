package status

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// maxComponentDepth bounds the extra/with recursion so a malicious peer
// can't force unbounded work by nesting components.
const maxComponentDepth = 10

var namedLegacyColors = map[string]byte{
	"black":        '0',
	"dark_blue":    '1',
	"dark_green":   '2',
	"dark_aqua":    '3',
	"dark_red":     '4',
	"dark_purple":  '5',
	"gold":         '6',
	"gray":         '7',
	"dark_gray":    '8',
	"blue":         '9',
	"green":        'a',
	"aqua":         'b',
	"red":          'c',
	"light_purple": 'd',
	"yellow":       'e',
	"white":        'f',
}

// textComponent is the tagged-variant shape of `description`: it may
// arrive as a bare string, a rich-text object, or a list of either.
type textComponent struct {
	Text          string          `json:"text"`
	Color         string          `json:"color"`
	Bold          bool            `json:"bold"`
	Italic        bool            `json:"italic"`
	Underlined    bool            `json:"underlined"`
	Strikethrough bool            `json:"strikethrough"`
	Obfuscated    bool            `json:"obfuscated"`
	Extra         []json.RawMessage `json:"extra"`
	With          []json.RawMessage `json:"with"`
}

// normalizeMOTD produces (motd_raw, motd_clean, motd_formatted) from the
// raw `description` field, which may be a JSON string, object, or array.
// motd_formatted re-renders the description with legacy §-codes standing
// in for the component tree's color/style, matching the original
// implementation's _build_formatted_text: a bare-string description has
// no component colors to recover, so its formatted form is the same
// stripped text as motd_clean; only an object/array description carries
// color and style through into motd_formatted.
func normalizeMOTD(raw json.RawMessage) (string, string, string) {
	if len(raw) == 0 {
		return "", "", ""
	}

	// Plain JSON string: motd_raw is the string verbatim (not
	// re-serialized), motd_clean and motd_formatted both strip its own
	// embedded codes.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		clean := cleanLegacyAndAmpersand(asString)
		return asString, clean, clean
	}

	// Object or array: motd_raw is the compact JSON serialization.
	compact := compactJSON(raw)
	var clean strings.Builder
	walkComponent(raw, 0, &clean)
	var formatted strings.Builder
	walkComponentFormatted(raw, 0, &formatted)
	return compact, collapseWhitespace(clean.String()), collapseWhitespace(formatted.String())
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return trimmedFallback(raw)
	}
	return buf.String()
}

func trimmedFallback(raw json.RawMessage) string {
	return strings.TrimSpace(string(raw))
}

// walkComponent recursively renders a description node (object, array, or
// leaf string) into plain text with every legacy and '&' code stripped,
// since motd_clean has no formatting codes left in it at all.
func walkComponent(raw json.RawMessage, depth int, out *strings.Builder) {
	if depth > maxComponentDepth || len(raw) == 0 {
		return
	}

	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return
	}

	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out.WriteString(cleanLegacyAndAmpersand(s))
		}
		return
	case '[':
		var arr []json.RawMessage
		if json.Unmarshal(raw, &arr) == nil {
			for _, item := range arr {
				walkComponent(item, depth+1, out)
			}
		}
		return
	case '{':
		var c textComponent
		if json.Unmarshal(raw, &c) != nil {
			return
		}
		if c.Text != "" {
			out.WriteString(cleanLegacyAndAmpersand(c.Text))
		}
		for _, w := range c.With {
			walkComponent(w, depth+1, out)
		}
		for _, e := range c.Extra {
			walkComponent(e, depth+1, out)
		}
		return
	}
}

// legacyFormatCodes maps a textComponent's boolean style flags to their
// legacy §-code character, checked in this fixed order to match the
// original implementation's formatting-code table.
var legacyFormatCodes = []struct {
	code byte
	get  func(*textComponent) bool
}{
	{'l', func(c *textComponent) bool { return c.Bold }},
	{'o', func(c *textComponent) bool { return c.Italic }},
	{'n', func(c *textComponent) bool { return c.Underlined }},
	{'m', func(c *textComponent) bool { return c.Strikethrough }},
	{'k', func(c *textComponent) bool { return c.Obfuscated }},
}

// walkComponentFormatted recursively renders a description node into
// text carrying legacy §-codes for color and style, the formatted
// counterpart to walkComponent's plain-text rendering.
func walkComponentFormatted(raw json.RawMessage, depth int, out *strings.Builder) {
	if depth > maxComponentDepth || len(raw) == 0 {
		return
	}

	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return
	}

	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out.WriteString(s)
		}
		return
	case '[':
		var arr []json.RawMessage
		if json.Unmarshal(raw, &arr) == nil {
			for _, item := range arr {
				walkComponentFormatted(item, depth+1, out)
			}
		}
		return
	case '{':
		var c textComponent
		if json.Unmarshal(raw, &c) != nil {
			return
		}
		for _, f := range legacyFormatCodes {
			if f.get(&c) {
				out.WriteRune('§')
				out.WriteByte(f.code)
			}
		}
		if c.Color != "" {
			if code, ok := legacyColorCode(c.Color); ok {
				out.WriteRune('§')
				out.WriteByte(code)
			}
		}
		if c.Text != "" {
			out.WriteString(c.Text)
		}
		for _, e := range c.Extra {
			walkComponentFormatted(e, depth+1, out)
		}
		for _, w := range c.With {
			walkComponentFormatted(w, depth+1, out)
		}
		return
	}
}

var legacyCodePattern = regexp.MustCompile("(?i)§[0-9a-fk-or]")
var ampersandCodePattern = regexp.MustCompile("(?i)&[0-9a-fk-or]")
var whitespacePattern = regexp.MustCompile(`\s+`)

func cleanLegacyAndAmpersand(s string) string {
	s = legacyCodePattern.ReplaceAllString(s, "")
	s = ampersandCodePattern.ReplaceAllString(s, "")
	return s
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// legacyColorCode maps a named or hex color to its single legacy code
// character, per spec.md's table and hex-dominance rule. Used by
// walkComponentFormatted to build motd_formatted; motd_clean carries no
// codes at all and never calls this.
func legacyColorCode(color string) (byte, bool) {
	if code, ok := namedLegacyColors[strings.ToLower(color)]; ok {
		return code, true
	}
	if strings.HasPrefix(color, "#") && len(color) == 7 {
		return hexDominanceCode(color)
	}
	return 0, false
}

func hexDominanceCode(hex string) (byte, bool) {
	r, okR := parseHexByte(hex[1:3])
	g, okG := parseHexByte(hex[3:5])
	b, okB := parseHexByte(hex[5:7])
	if !okR || !okG || !okB {
		return 0, false
	}

	if r > 200 && g > 200 && b > 200 {
		return 'f', true // white
	}
	if r < 50 && g < 50 && b < 50 {
		return '0', true // black
	}

	const brightThreshold = 150
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}

	switch {
	case r == max && r > g && r > b:
		if r >= brightThreshold {
			return 'c', true // red
		}
		return '4', true // dark_red
	case g == max && g > r && g > b:
		if g >= brightThreshold {
			return 'a', true // green
		}
		return '2', true // dark_green
	case b == max && b > r && b > g:
		if b >= brightThreshold {
			return '9', true // blue
		}
		return '1', true // dark_blue
	default:
		// No channel clearly dominates (a tie, or all channels close).
		return '7', true // gray
	}
}

func parseHexByte(s string) (int, bool) {
	n, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

package shape

import (
	"fmt"
	"regexp"
	"strings"
)

// Color is always stored normalized: either the 7-character "#rrggbb" form
// or the Transparent sentinel. Name presentation is a codec-layer concern;
// the internal model never carries a color name.
type Color string

// Transparent is the sentinel accepted only for fill colors.
const Transparent Color = "transparent"

var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate reports whether the color is a normalized hex triplet or, when
// fill is true, the transparent sentinel. A stroke color (fill == false)
// never accepts Transparent.
func (c Color) Validate(fill bool) error {
	if c == Transparent {
		if fill {
			return nil
		}
		return fmt.Errorf("color %q is only valid for a fill color", string(c))
	}
	if hexPattern.MatchString(string(c)) {
		return nil
	}
	return fmt.Errorf("color %q is not normalized to #rrggbb or transparent", string(c))
}

// germanNames maps the closed set of German color names to their normalized
// hex form. English aliases map onto the same hex values on ingress but are
// never reproduced on egress: a name is only restored when it has an exact
// German match.
var germanNames = map[string]Color{
	"rot":    "#ff0000",
	"grün":   "#00ff00",
	"gelb":   "#ffff00",
	"blau":   "#0000ff",
	"schwarz": "#000000",
	"weiß":   "#ffffff",
}

var englishAliases = map[string]Color{
	"red":    "#ff0000",
	"green":  "#00ff00",
	"yellow": "#ffff00",
	"blue":   "#0000ff",
	"black":  "#000000",
	"white":  "#ffffff",
}

var hexToGerman = func() map[Color]string {
	out := make(map[Color]string, len(germanNames))
	for name, hex := range germanNames {
		out[hex] = name
	}
	return out
}()

// NormalizeColorValue converts a wire color value (German name, English
// alias, hex triplet, or the literal "transparent") into its normalized
// internal form. An empty value (which is what a JSON null decodes to) and
// an unrecognized value are both rejected via the returned error.
func NormalizeColorValue(raw string) (Color, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("color value must not be empty")
	}
	lower := strings.ToLower(trimmed)
	if lower == string(Transparent) {
		return Transparent, nil
	}
	if hex, ok := germanNames[lower]; ok {
		return hex, nil
	}
	if hex, ok := englishAliases[lower]; ok {
		return hex, nil
	}
	if hexPattern.MatchString(trimmed) {
		return Color(strings.ToLower(trimmed)), nil
	}
	return "", fmt.Errorf("unrecognized color value %q", raw)
}

// PreferredName returns the German name for a color if one exists exactly,
// otherwise the hex form unchanged. Used only when presenting to a client
// that has opted into named colors.
func PreferredName(c Color) string {
	if name, ok := hexToGerman[c]; ok {
		return name
	}
	return string(c)
}

package theme

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToCSSValue converts oklch() colors to "H S% L%" triplets and returns any
// other value unchanged.
func ToCSSValue(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(strings.ToLower(v), "oklch(") {
		return v
	}
	if hsl, ok := oklchToHSL(v); ok {
		return hsl
	}
	return v
}

func oklchToHSL(in string) (string, bool) {
	body := strings.TrimSuffix(strings.TrimSpace(in[len("oklch("):]), ")")
	parts := strings.FieldsFunc(body, func(r rune) bool { return r == ' ' || r == '/' || r == '\t' })
	if len(parts) < 3 {
		return "", false
	}
	var vals [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSuffix(parts[i], "%"), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		vals[i] = f
	}
	r, g, b := oklchToSRGB(vals[0], vals[1], vals[2])
	h, s, l := rgbToHSL(r, g, b)
	return fmt.Sprintf("%s %s%% %s%%", trimFloat(h), trimFloat(s*100), trimFloat(l*100)), true
}

func oklchToSRGB(L, C, hDeg float64) (float64, float64, float64) {
	h := hDeg * math.Pi / 180
	a, b := C*math.Cos(h), C*math.Sin(h)
	l := cube(L + 0.3963377774*a + 0.2158037573*b)
	m := cube(L - 0.1055613458*a - 0.0638541728*b)
	s := cube(L - 0.0894841775*a - 1.291485548*b)
	r := 4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g := -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	b2 := -0.0041960863*l - 0.7034186147*m + 1.707614701*s
	return clamp01(linearToSRGB(r)), clamp01(linearToSRGB(g)), clamp01(linearToSRGB(b2))
}

func rgbToHSL(r, g, b float64) (h, s, l float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2
	if max == min {
		return 0, 0, l
	}
	d := max - min
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h * 60, s, l
}

func cube(x float64) float64 { return x * x * x }

func linearToSRGB(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	case x <= 0.0031308:
		return 12.92 * x
	}
	return 1.055*math.Pow(x, 1/2.4) - 0.055
}

func clamp01(x float64) float64 { return math.Min(1, math.Max(0, x)) }

func trimFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

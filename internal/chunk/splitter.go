package chunk

import (
	"manifold/internal/textsplitters"
)

// NewSplitTextFunc adapts textsplitters into the signature the sandbox's
// splitText builtin calls: a strategy name plus a loosely-typed options map
// (as would arrive from a JS object), returning plain chunk strings.
//
// Supported strategy names match textsplitters.Kind. Unknown or empty
// strategies fall back to "fixed". Recognized opts keys: "size" and
// "overlap" (both measured in characters).
func NewSplitTextFunc() func(text, strategy string, opts map[string]any) []string {
	return func(text, strategy string, opts map[string]any) []string {
		kind := textsplitters.Kind(strategy)
		if kind == "" {
			kind = textsplitters.KindFixed
		}

		size := intOpt(opts, "size", 2000)
		overlap := intOpt(opts, "overlap", 0)

		cfg := textsplitters.Config{
			Kind: kind,
			Fixed: textsplitters.FixedConfig{
				Unit: textsplitters.UnitChars, Size: size, Overlap: overlap,
			},
			Boundary: textsplitters.BoundaryConfig{
				Unit: textsplitters.UnitChars, Size: size, Overlap: overlap,
			},
		}

		splitter, err := textsplitters.NewFromConfig(cfg)
		if err != nil {
			splitter, err = textsplitters.NewFromConfig(textsplitters.Config{
				Kind:  textsplitters.KindFixed,
				Fixed: textsplitters.FixedConfig{Unit: textsplitters.UnitChars, Size: size, Overlap: overlap},
			})
			if err != nil {
				return []string{text}
			}
		}
		return splitter.Split(text)
	}
}

func intOpt(opts map[string]any, key string, fallback int) int {
	v, ok := opts[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

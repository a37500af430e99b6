// Package bench implements the needle-in-haystack benchmark harness named
// in spec.md §1 as explicitly out-of-core: a fixture generator, a
// multi-run driver over rlm.Engine, result aggregation, and an HTML report.
package bench

import (
	"fmt"
	"math/rand"
	"strings"
)

// NeedleConfig configures one generated fixture.
type NeedleConfig struct {
	// HaystackSize is the target rendered character length of the filler text.
	HaystackSize int
	// NeedleOffset is the character offset at which the needle line is
	// inserted. Clamped to [0, HaystackSize].
	NeedleOffset int
	// NeedleValue is embedded in the needle line as NEEDLE=<value>.
	NeedleValue string
	// Rand sources the filler text; a fixed *rand.Rand makes fixtures
	// reproducible across runs sharing the same seed.
	Rand *rand.Rand
}

// Fixture is one generated benchmark case.
type Fixture struct {
	Context     string
	NeedleValue string
	Prompt      string
}

const fillerAlphabet = "abcdefghijklmnopqrstuvwxyz ABCDEFGHIJKLMNOPQRSTUVWXYZ .,\n"

// NeedleGenerator builds Fixtures implementing spec.md §8 scenario 2: a
// single-line needle inserted at a configurable offset inside a filler
// haystack, paired with a prompt asking for the needle's value.
type NeedleGenerator struct{}

// NewNeedleGenerator constructs a NeedleGenerator.
func NewNeedleGenerator() *NeedleGenerator { return &NeedleGenerator{} }

// Generate builds one Fixture from cfg.
func (g *NeedleGenerator) Generate(cfg NeedleConfig) Fixture {
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	offset := cfg.NeedleOffset
	if offset < 0 {
		offset = 0
	}
	if offset > cfg.HaystackSize {
		offset = cfg.HaystackSize
	}

	needleLine := fmt.Sprintf("NEEDLE=%s\n", cfg.NeedleValue)

	var sb strings.Builder
	sb.Grow(cfg.HaystackSize + len(needleLine))
	sb.WriteString(fillerText(r, offset))
	sb.WriteString(needleLine)
	sb.WriteString(fillerText(r, cfg.HaystackSize-offset))

	return Fixture{
		Context:     sb.String(),
		NeedleValue: cfg.NeedleValue,
		Prompt:      "What is the value of NEEDLE?",
	}
}

func fillerText(r *rand.Rand, n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = fillerAlphabet[r.Intn(len(fillerAlphabet))]
	}
	return string(b)
}

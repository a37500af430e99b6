package bench

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/rlm"
)

func TestNeedleGeneratorEmbedsNeedleAtOffset(t *testing.T) {
	g := NewNeedleGenerator()
	fixture := g.Generate(NeedleConfig{
		HaystackSize: 200,
		NeedleOffset: 80,
		NeedleValue:  "ABCDEF",
		Rand:         rand.New(rand.NewSource(42)),
	})

	assert.Contains(t, fixture.Context, "NEEDLE=ABCDEF")
	assert.Equal(t, "ABCDEF", fixture.NeedleValue)
	assert.NotEmpty(t, fixture.Prompt)

	idx := strings.Index(fixture.Context, "NEEDLE=ABCDEF")
	require.GreaterOrEqual(t, idx, 0)
	assert.InDelta(t, 80, idx, 10)
}

func TestNeedleGeneratorClampsOffset(t *testing.T) {
	g := NewNeedleGenerator()
	fixture := g.Generate(NeedleConfig{
		HaystackSize: 50,
		NeedleOffset: 9999,
		NeedleValue:  "X",
		Rand:         rand.New(rand.NewSource(1)),
	})
	assert.Contains(t, fixture.Context, "NEEDLE=X")
}

func TestAggregatorSummarizeComputesPassRateAndPercentiles(t *testing.T) {
	results := []RunResult{
		{Passed: true, Duration: 10 * time.Millisecond, TokenUsage: rlm.Usage{TotalTokens: 100}, SubCalls: 2},
		{Passed: true, Duration: 20 * time.Millisecond, TokenUsage: rlm.Usage{TotalTokens: 200}, SubCalls: 3},
		{Passed: false, Duration: 30 * time.Millisecond, TokenUsage: rlm.Usage{TotalTokens: 300}, SubCalls: 1},
		{Err: errors.New("boom")},
	}

	summary := NewAggregator().Summarize(results)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Errored)
	assert.InDelta(t, 2.0/3.0, summary.PassRate, 0.001)
	assert.Equal(t, 20*time.Millisecond, summary.MeanLatency)
	assert.Equal(t, 200.0, summary.MeanTokens)
	assert.Greater(t, summary.P95Latency, time.Duration(0))
}

func TestAggregatorSummarizeEmpty(t *testing.T) {
	summary := NewAggregator().Summarize(nil)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, time.Duration(0), summary.P50Latency)
}

func TestReportWriteProducesHTML(t *testing.T) {
	report, err := NewReport()
	require.NoError(t, err)

	results := []RunResult{
		{Passed: true, Duration: 5 * time.Millisecond, TokenUsage: rlm.Usage{TotalTokens: 42}},
		{Err: errors.New("timeout")},
	}

	var sb strings.Builder
	require.NoError(t, report.Write(&sb, "needle benchmark", results))

	out := sb.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "needle benchmark")
	assert.Contains(t, out, "timeout")
}

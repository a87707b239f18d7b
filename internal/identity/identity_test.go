package identity

import (
	"encoding/json"
	"fmt"
	"testing"

	"alcyxob/climb-sim/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() domain.PlannedWorkout {
	return domain.PlannedWorkout{
		Version:     domain.DocumentVersion,
		SessionType: domain.SessionStrength,
		TimeCapMin:  domain.FloatPtr(90),
		Blocks: []domain.Block{
			{Type: domain.BlockWarmup, Items: []domain.Item{
				{Exercise: "easy traverse", Dose: domain.Dose{Minutes: domain.FloatPtr(15)}},
			}},
			{Type: domain.BlockMain, Items: []domain.Item{
				{
					Exercise:  "max hangs",
					Dose:      domain.Dose{Sets: domain.IntPtr(6), Reps: domain.IntPtr(1), RestSec: domain.IntPtr(180)},
					Intensity: &domain.Intensity{Intensity: domain.FloatPtr(0.9), RPETarget: domain.FloatPtr(9)},
				},
			}},
		},
	}
}

func mustID(t *testing.T, v any) string {
	t.Helper()
	id, err := Of(v)
	require.NoError(t, err)
	return id
}

func TestCompute_IgnoresAnnotations(t *testing.T) {
	plain := samplePlan()
	annotated := samplePlan()
	annotated.Notes = "focus on open hand"
	annotated.CoachNotes = "athlete mentioned sore finger"
	annotated.UI = map[string]string{"color": "red"}
	annotated.Blocks[0].Notes = "keep it light"
	annotated.Blocks[1].Items[0].Notes = "20mm edge"

	assert.Equal(t, mustID(t, plain), mustID(t, annotated))
}

func TestCompute_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	a := []byte(`{"version":"1.0","blocks":[{"type":"main","items":[]}],"debug":{"x":1}}`)
	b := []byte("{\n  \"blocks\": [ {\"items\": [], \"type\": \"main\"} ],\n  \"version\": \"1.0\"\n}")
	assert.Equal(t, Compute(a), Compute(b))
}

func TestCompute_SemanticChangesDiffer(t *testing.T) {
	base := mustID(t, samplePlan())

	moreSets := samplePlan()
	moreSets.Blocks[1].Items[0].Dose.Sets = domain.IntPtr(7)
	assert.NotEqual(t, base, mustID(t, moreSets))

	harder := samplePlan()
	harder.Blocks[1].Items[0].Intensity.Intensity = domain.FloatPtr(0.95)
	assert.NotEqual(t, base, mustID(t, harder))

	swapped := samplePlan()
	swapped.Blocks[0], swapped.Blocks[1] = swapped.Blocks[1], swapped.Blocks[0]
	assert.NotEqual(t, base, mustID(t, swapped))
}

func TestCompute_MalformedIsEmptyDocument(t *testing.T) {
	empty := Compute([]byte(`{}`))
	assert.Equal(t, empty, Compute([]byte(`{not json`)))
	assert.Equal(t, empty, Compute(nil))
	assert.Equal(t, empty, Compute([]byte(`"just a string"`)))
	assert.Len(t, empty, 64)
}

func TestCanonicalize_StripsNestedKeys(t *testing.T) {
	raw := []byte(`{"b":[{"notes":"x","ui":{"y":1},"k":2}],"a":{"debug":true,"coach_notes":"z","v":1}}`)
	assert.Equal(t, `{"a":{"v":1},"b":[{"k":2}]}`, string(Canonicalize(raw)))
}

func TestCompute_NoCollisionsAcrossCorpus(t *testing.T) {
	seen := make(map[string]string, 10000)
	for i := 0; i < 10000; i++ {
		p := samplePlan()
		p.Blocks[1].Items[0].Dose.Sets = domain.IntPtr(i % 50)
		p.Blocks[1].Items[0].Dose.RestSec = domain.IntPtr(i / 50)
		p.Blocks[0].Items[0].Exercise = fmt.Sprintf("traverse-%d", i%7)
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		id := Compute(raw)
		key := fmt.Sprintf("%d/%d/%d", i%50, i/50, i%7)
		if prev, dup := seen[id]; dup {
			t.Fatalf("collision between %s and %s", prev, key)
		}
		seen[id] = key
	}
	assert.Len(t, seen, 10000)
}

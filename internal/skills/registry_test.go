package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/vibe/internal/guard"
	"github.com/bartekus/vibe/internal/skillspec"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"fix-ci", "ship-demo"}, IDs())
	for _, s := range Registry {
		assert.NoError(t, skillspec.Validate(s), s.ID)
		assert.Empty(t, guard.Check(s), s.ID)
		require.NotNil(t, s.FallbackPlan, s.ID)
		assert.Equal(t, s.ID, s.FallbackPlan.GoldenPathID)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s, ok := Get("fix-ci")
	require.True(t, ok)
	assert.Len(t, s.Steps, 5)
	assert.Equal(t, "apply-patch", s.StepsRequiringConfirmation()[0].ID)

	s.Steps = nil
	again, ok := Get("fix-ci")
	require.True(t, ok)
	assert.Len(t, again.Steps, 5)

	_, ok = Get("nope")
	assert.False(t, ok)
}

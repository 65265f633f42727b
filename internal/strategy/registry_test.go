package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTemplates = `
bracket_templates:
  conservative:
    description: "atr target, percentage stop"
    take_profit:
      type: atr
      value: 2.0
    stop_loss:
      enabled: true
      type: percentage
      value: 1.0
    price_precision: 2
  symmetric:
    take_profit:
      type: percentage
      value: 3.0
    stop_loss:
      enabled: true
      type: risk_reward
`

func writeTemplates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bracket_templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsTemplates(t *testing.T) {
	reg, err := NewRegistry(writeTemplates(t, validTemplates))
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Templates, 2)

	tpl, ok := reg.Template("conservative")
	require.True(t, ok)
	assert.Equal(t, "conservative", tpl.ID)
	assert.Equal(t, PolicyATR, tpl.Policy.TakeProfit.Type)
	assert.InDelta(t, 2.0, tpl.Policy.TakeProfit.Value, 1e-9)
	assert.True(t, tpl.Policy.StopLoss.Enabled)
	assert.Equal(t, int32(2), tpl.Policy.PricePrecision)

	sym, ok := reg.Template("symmetric")
	require.True(t, ok)
	assert.Equal(t, PolicyRiskReward, sym.Policy.StopLoss.Type)

	_, ok = reg.Template("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsSchemaViolations(t *testing.T) {
	bad := `
bracket_templates:
  broken:
    take_profit:
      type: fibonacci
      value: 2.0
`
	_, err := NewRegistry(writeTemplates(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRegistryRejectsNonPositiveTarget(t *testing.T) {
	bad := `
bracket_templates:
  broken:
    take_profit:
      type: atr
      value: 0
`
	_, err := NewRegistry(writeTemplates(t, bad))
	assert.Error(t, err)
}

func TestRegistryRejectsMissingTakeProfit(t *testing.T) {
	bad := `
bracket_templates:
  broken:
    stop_loss:
      enabled: false
`
	_, err := NewRegistry(writeTemplates(t, bad))
	assert.Error(t, err)
}

func TestRegistryMissingFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

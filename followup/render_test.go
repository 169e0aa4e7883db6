package followup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coralcommerce/dispatcher/models"
)

func TestRenderSubstitutesLastProduct(t *testing.T) {
	snap := models.FollowUpSnapshot{
		RecentProducts: []models.ProductMention{{Name: "Widget A"}, {Name: "Widget B"}},
	}
	got := render(1, snap)
	assert.Contains(t, got, "Widget B")
	assert.NotContains(t, got, "{{")
}

func TestRenderUnknownStageFallsBackToMaintenance(t *testing.T) {
	got := render(12345, models.FollowUpSnapshot{})
	want := render(models.MaintenanceStage, models.FollowUpSnapshot{})
	assert.Equal(t, want, got)
}

func TestRenderUsesProfileTypeVariant(t *testing.T) {
	snap := models.FollowUpSnapshot{
		Profile:        models.Profile{Type: "reseller"},
		RecentProducts: []models.ProductMention{{Name: "Widget A"}},
	}
	got := render(0, snap)
	assert.Contains(t, got, "wholesale pricing")
}

func TestRenderUnsetVariableSubstitutesEmpty(t *testing.T) {
	got := render(0, models.FollowUpSnapshot{})
	assert.NotContains(t, got, "{{lastProduct}}")
}

func TestSubstituteHandlesMultipleVars(t *testing.T) {
	got := substitute("hi {{a}} and {{b}}", map[string]string{"a": "x", "b": "y"})
	assert.Equal(t, "hi x and y", got)
}

func TestSubstituteUnterminatedPlaceholderLeftVerbatim(t *testing.T) {
	got := substitute("hi {{unterminated", map[string]string{})
	assert.Equal(t, "hi {{unterminated", got)
}

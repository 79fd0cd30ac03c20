package model_test

import (
	"testing"

	"github.com/dexter-labs/tokentracker/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMultiplier(t *testing.T) {
	tok := &model.Token{SpottedMC: 1000, CurrentMC: 2500}
	assert.Equal(t, 2.5, tok.Multiplier())

	unset := &model.Token{CurrentMC: 500}
	assert.Equal(t, 0.0, unset.Multiplier())
}

func TestHolderMultiplier(t *testing.T) {
	tok := &model.Token{HolderSpottedMC: 4200, CurrentMC: 8400}
	assert.Equal(t, 2.0, tok.HolderMultiplier())

	unset := &model.Token{CurrentMC: 100}
	assert.Equal(t, 0.0, unset.HolderMultiplier())
}

func TestIsHolder(t *testing.T) {
	assert.True(t, (&model.Token{Source: model.SourceHolder}).IsHolder())
	assert.True(t, (&model.Token{Source: model.SourceExHolder}).IsHolder())
	assert.False(t, (&model.Token{Source: model.SourceDegen}).IsHolder())
}

func TestViewModeWindow(t *testing.T) {
	cases := []struct {
		view    model.ViewMode
		bounded bool
	}{
		{model.ViewMode5m, true},
		{model.ViewMode30m, true},
		{model.ViewMode1h, true},
		{model.ViewMode4h, true},
		{model.ViewModeAllTime, false},
	}
	for _, c := range cases {
		_, bounded := c.view.Window()
		assert.Equal(t, c.bounded, bounded, "view=%s", c.view)
	}
}

func TestDefaultAlertTiers(t *testing.T) {
	tiers := model.DefaultAlertTiers()
	assert.Equal(t, 1.1, tiers.Tier1)
	assert.Equal(t, 1.2, tiers.Tier2)
	assert.Equal(t, 1.3, tiers.Tier3)
}

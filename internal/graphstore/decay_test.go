package graphstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayedImportance_HalfLifeHalves(t *testing.T) {
	now := time.Now()
	lastAccessed := now.Add(-24 * time.Hour)

	got := decayedImportance(1.0, lastAccessed, now, 24*time.Hour)
	assert.InDelta(t, 0.5, got, 0.0001)
}

func TestDecayedImportance_ZeroElapsedIsUnchanged(t *testing.T) {
	now := time.Now()
	got := decayedImportance(0.8, now, now, time.Hour)
	assert.Equal(t, 0.8, got)
}

func TestDecayedImportance_NeverIncreases(t *testing.T) {
	now := time.Now()
	lastAccessed := now.Add(-time.Minute)
	got := decayedImportance(0.5, lastAccessed, now, time.Hour)
	assert.LessOrEqual(t, got, 0.5)
}

func TestDecayedImportance_ZeroHalfLifeIsNoop(t *testing.T) {
	now := time.Now()
	lastAccessed := now.Add(-1000 * time.Hour)
	got := decayedImportance(0.9, lastAccessed, now, 0)
	assert.Equal(t, 0.9, got)
}

package epi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Variant
	}{
		{"si", SI},
		{"SIR", SIR},
		{"sei", SEI},
		{"seir", SEIR},
	} {
		got, err := ParseVariant(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseVariant("sis")
	assert.Error(t, err)
}

func TestVariantKinds(t *testing.T) {
	assert.Equal(t, []EventKind{Infection}, SI.Kinds())
	assert.Equal(t, []EventKind{Infection, Removal}, SIR.Kinds())
	assert.Equal(t, []EventKind{Exposure, Infection}, SEI.Kinds())
	assert.Equal(t, []EventKind{Exposure, Infection, Removal}, SEIR.Kinds())
}

func TestVariantTransmissionKind(t *testing.T) {
	assert.Equal(t, Infection, SI.TransmissionKind())
	assert.Equal(t, Infection, SIR.TransmissionKind())
	assert.Equal(t, Exposure, SEI.TransmissionKind())
	assert.Equal(t, Exposure, SEIR.TransmissionKind())
}

func TestVariantValidStart(t *testing.T) {
	assert.True(t, SI.ValidStart(Susceptible))
	assert.True(t, SI.ValidStart(Infectious))
	assert.False(t, SI.ValidStart(Exposed))
	assert.False(t, SI.ValidStart(Removed))
	assert.True(t, SEIR.ValidStart(Exposed))
	assert.True(t, SEIR.ValidStart(Removed))
}

package epi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransmissionNetwork_ExactlyOneCause(t *testing.T) {
	h, err := NewEventHistory(SI, []Compartment{Infectious, Susceptible})
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 1, 2))

	tn := NewTransmissionNetwork(2)
	assert.ErrorContains(t, tn.Validate(h), "0 transmission causes", "infected individual with no cause")

	tn.SetSource(0, 1)
	assert.NoError(t, tn.Validate(h))

	// SetExternal replaces, never stacks.
	tn.SetExternal(1)
	assert.NoError(t, tn.Validate(h))
	assert.True(t, tn.External(1))
	if _, ok := tn.Source(1); ok {
		t.Fatal("external infection must not retain an internal source")
	}
}

func TestTransmissionNetwork_CauseWithoutInfection(t *testing.T) {
	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)

	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)
	assert.ErrorContains(t, tn.Validate(h), "no infection event")
}

func TestTransmissionNetwork_InfectorMustPrecede(t *testing.T) {
	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)
	require.NoError(t, h.SetTime(Infection, 0, 3))
	require.NoError(t, h.SetTime(Infection, 1, 2))

	tn := NewTransmissionNetwork(2)
	tn.SetExternal(1)
	tn.SetSource(1, 0)
	assert.NoError(t, tn.Validate(h), "1 became infectious at 2, before 0's infection at 3")

	tn.SetSource(0, 1)
	tn.SetExternal(0)
	assert.ErrorContains(t, tn.Validate(h), "not infectious before", "0 only became infectious after 1's infection")
}

func TestTransmissionNetwork_SizeMismatch(t *testing.T) {
	h, err := NewEventHistory(SI, AllSusceptible(2))
	require.NoError(t, err)
	assert.ErrorContains(t, NewTransmissionNetwork(3).Validate(h), "does not match")
}

func TestTransmissionNetwork_Copy(t *testing.T) {
	tn := NewTransmissionNetwork(2)
	tn.SetExternal(0)

	dup := tn.Copy()
	dup.SetSource(0, 1)

	assert.True(t, tn.External(0))
	if _, ok := tn.Source(1); ok {
		t.Fatal("copy must not alias the original")
	}
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservationStartsPending(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, 15*time.Minute)

	assert.Equal(t, StatePending, res.State)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, res.IsOpen())
}

func TestNewReservationWithoutTTLNeverExpires(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, 0)

	assert.Nil(t, res.ExpiresAt)
	assert.False(t, res.IsExpiredAt(time.Now().Add(24*time.Hour)))
}

func TestConfirmIsIdempotent(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)

	require.NoError(t, res.Confirm())
	require.NoError(t, res.Confirm())

	assert.Equal(t, StateConfirmed, res.State)
}

func TestConfirmRejectsTerminalStates(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)
	require.NoError(t, res.Release())

	assert.ErrorIs(t, res.Confirm(), ErrInvalidState)
}

func TestReleaseFromPendingAndConfirmed(t *testing.T) {
	pending := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)
	require.NoError(t, pending.Release())
	assert.Equal(t, StateReleased, pending.State)

	confirmed := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)
	require.NoError(t, confirmed.Confirm())
	require.NoError(t, confirmed.Release())
	assert.Equal(t, StateReleased, confirmed.State)
}

func TestReleaseIsNotRepeatable(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)
	require.NoError(t, res.Release())

	assert.ErrorIs(t, res.Release(), ErrInvalidState)
}

func TestExpireOnlyFromPending(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)
	require.NoError(t, res.Confirm())

	assert.ErrorIs(t, res.Expire(), ErrInvalidState)
}

func TestIsExpiredAt(t *testing.T) {
	res := NewReservation("item-1", "profile-1", "cust-1", 2, time.Minute)

	assert.False(t, res.IsExpiredAt(time.Now()))
	assert.True(t, res.IsExpiredAt(time.Now().Add(2*time.Minute)))

	// 已确认的预订不会过期
	require.NoError(t, res.Confirm())
	assert.False(t, res.IsExpiredAt(time.Now().Add(2*time.Minute)))
}

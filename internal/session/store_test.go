package session

import (
	"testing"
	"time"

	"energy-net/internal/controller"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newStore(ttl time.Duration) (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(ttl, nil)
	s.now = clk.now
	return s, clk
}

func TestCreateGetDelete(t *testing.T) {
	s, _ := newStore(time.Minute)
	ctrl := &controller.Controller{}
	sess := s.Create(ctrl)

	_, err := uuid.Parse(sess.ID)
	require.NoError(t, err)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, ctrl, got.Controller)
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Delete(sess.ID))
	assert.False(t, s.Delete(sess.ID))
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryIsSliding(t *testing.T) {
	s, clk := newStore(time.Minute)
	sess := s.Create(&controller.Controller{})

	clk.t = clk.t.Add(50 * time.Second)
	_, err := s.Get(sess.ID)
	require.NoError(t, err)

	clk.t = clk.t.Add(50 * time.Second)
	_, err = s.Get(sess.ID)
	require.NoError(t, err)

	clk.t = clk.t.Add(61 * time.Second)
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestSweep(t *testing.T) {
	s, clk := newStore(time.Minute)
	s.Create(&controller.Controller{})
	s.Create(&controller.Controller{})

	assert.Equal(t, 0, s.Sweep())
	clk.t = clk.t.Add(2 * time.Minute)
	assert.Equal(t, 2, s.Sweep())

	s.Create(&controller.Controller{})
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

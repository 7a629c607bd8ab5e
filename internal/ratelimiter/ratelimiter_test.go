package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		burst   int
		wantNil bool
	}{
		{name: "standard rate", rate: 100, burst: 200},
		{name: "low rate", rate: 1, burst: 2},
		{name: "zero burst raised", rate: 5, burst: 0},
		{name: "unlimited", rate: 0, burst: 0, wantNil: true},
		{name: "negative is unlimited", rate: -3, burst: 10, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rate, tt.burst)
			if tt.wantNil {
				assert.Nil(t, l)
				return
			}
			require.NotNil(t, l)
			assert.GreaterOrEqual(t, l.limiter.Burst(), 1)
		})
	}
}

func TestAllow_EnforcesBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "admission %d should be within burst", i)
	}
	assert.False(t, l.Allow())
}

func TestNilLimiter_AdmitsEverything(t *testing.T) {
	var l *Limiter

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
	assert.NoError(t, l.Wait(context.Background()))
	l.SetLimit(10)
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestSetLimit_RemovesThrottle(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow())

	l.SetLimit(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Wait(ctx))
}

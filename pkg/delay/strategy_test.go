package delay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstant(t *testing.T) {
	s := Constant(3 * time.Second)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 3*time.Second, s.Next())
	}
}

func TestConstantNeverNegative(t *testing.T) {
	assert.Zero(t, Constant(-time.Second).Next())
}

func TestUniformRandomBounds(t *testing.T) {
	s, err := UniformRandom(time.Second, 5*time.Second)
	require.NoError(t, err)

	var total time.Duration
	const n = 10000
	for i := 0; i < n; i++ {
		d := s.Next()
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 5*time.Second)
		total += d
	}

	mean := total / n
	assert.InDelta(t, float64(3*time.Second), float64(mean), float64(100*time.Millisecond))
}

func TestUniformRandomDegenerateRange(t *testing.T) {
	s, err := UniformRandom(2*time.Second, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, s.Next())
}

func TestUniformRandomInvalid(t *testing.T) {
	_, err := UniformRandom(5*time.Second, time.Second)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = UniformRandom(-time.Second, time.Second)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"constant", Options{Kind: KindConstant, Constant: time.Second}, nil},
		{"negative constant", Options{Kind: KindConstant, Constant: -time.Second}, ErrInvalidRange},
		{"uniform", Options{Kind: KindUniform, Min: time.Second, Max: 2 * time.Second}, nil},
		{"inverted uniform", Options{Kind: KindUniform, Min: 2 * time.Second, Max: time.Second}, ErrInvalidRange},
		{"unknown", Options{Kind: Kind(42)}, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Constant")
	require.NoError(t, err)
	assert.Equal(t, KindConstant, k)

	k, err = ParseKind("uniform")
	require.NoError(t, err)
	assert.Equal(t, KindUniform, k)

	_, err = ParseKind("exponential")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

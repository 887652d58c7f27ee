package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGain(t *testing.T) {
	t.Parallel()

	s := []float32{0.25, -0.5, 0.9}
	ApplyGain(s, 2)
	assert.Equal(t, []float32{0.5, -1, 1}, s)

	unity := []float32{0.3, -0.7}
	ApplyGain(unity, 1)
	assert.Equal(t, []float32{0.3, -0.7}, unity)
}

package units_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/repolens/repolens/pkg/units"
)

func TestBinarySizeConstants(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 1024, units.KiB)
	assert.EqualValues(t, 1024*units.KiB, units.MiB)
	assert.EqualValues(t, 1024*units.MiB, units.GiB)
	assert.EqualValues(t, 1024*units.GiB, units.TiB)
}

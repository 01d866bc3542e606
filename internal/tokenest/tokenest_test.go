package tokenest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateString_Monotone(t *testing.T) {
	short := EstimateString("hello")
	long := EstimateString(strings.Repeat("hello world ", 50))
	assert.Less(t, short, long)
}

func TestEstimateString_EmptyIsOne(t *testing.T) {
	assert.Equal(t, 1, EstimateString(""))
}

func TestEstimateString_Formula(t *testing.T) {
	// 35 runes / 3.5 = 10 exactly.
	s := strings.Repeat("a", 35)
	assert.Equal(t, 10, EstimateString(s))
}

func TestEstimateFields_IncludesOverheadPerField(t *testing.T) {
	one := EstimateFields("abc")
	two := EstimateFields("abc", "abc")
	assert.Equal(t, one*2, two)
}

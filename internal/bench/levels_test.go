package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevels(t *testing.T) {
	tests := map[string]struct {
		raw      string
		expected []int
	}{
		"empty picks defaults":      {raw: "", expected: DefaultLevels},
		"whitespace picks defaults": {raw: "   ", expected: DefaultLevels},
		"sorted ascending":          {raw: "20,5,10", expected: []int{5, 10, 20}},
		"spaces tolerated":          {raw: " 1, 2 ,3 ", expected: []int{1, 2, 3}},
		"garbage picks defaults":    {raw: "5,abc", expected: DefaultLevels},
		"zero picks defaults":       {raw: "0", expected: DefaultLevels},
		"negative picks defaults":   {raw: "-3,4", expected: DefaultLevels},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevels(tc.raw))
		})
	}
}

func TestParseLevelsDoesNotAliasDefaults(t *testing.T) {
	levels := ParseLevels("")
	levels[0] = 999
	assert.Equal(t, 1, DefaultLevels[0])
}

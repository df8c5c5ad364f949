package deployment

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servebench/servebench/internal/common/bencherrors"
)

func catalog() []Config {
	return []Config{
		{Name: "vllm-agg", Path: "configs/agg.yaml"},
		{Name: "vllm-agg-router", Path: "configs/agg_router.yaml"},
		{Name: "vllm-disagg", Path: "configs/disagg.yaml"},
	}
}

func TestSelectByIndex(t *testing.T) {
	configs := catalog()
	for i, expected := range configs {
		config, err := Select(configs, strconv.Itoa(i+1))
		require.NoError(t, err)
		assert.Equal(t, expected, config)
	}
}

func TestSelectTrimsWhitespace(t *testing.T) {
	config, err := Select(catalog(), " 2 ")
	require.NoError(t, err)
	assert.Equal(t, "vllm-agg-router", config.Name)
}

func TestSelectByName(t *testing.T) {
	config, err := Select(catalog(), "vllm-disagg")
	require.NoError(t, err)
	assert.Equal(t, "configs/disagg.yaml", config.Path)
}

func TestSelectInvalid(t *testing.T) {
	tests := map[string]string{
		"non-numeric garbage": "wibble",
		"zero index":          "0",
		"negative index":      "-3",
		"index past end":      "4",
		"empty input":         "",
		"unknown name":        "vllm-agg-kvbm",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Select(catalog(), input)
			var invalidSelection *bencherrors.ErrInvalidSelection
			require.ErrorAs(t, err, &invalidSelection)
			assert.Equal(t, 3, invalidSelection.NumConfigs)
		})
	}
}

func TestSelectEmptyCatalog(t *testing.T) {
	_, err := Select(nil, "1")
	var invalidSelection *bencherrors.ErrInvalidSelection
	require.ErrorAs(t, err, &invalidSelection)
	assert.Equal(t, 0, invalidSelection.NumConfigs)
}

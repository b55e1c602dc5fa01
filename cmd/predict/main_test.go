package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsShorthands(t *testing.T) {
	o, err := parseArgs([]string{"-t", "25", "-a"})
	require.NoError(t, err)
	assert.Equal(t, 25, o.top)
	assert.True(t, o.all)
	assert.Empty(t, o.symbols)

	o, err = parseArgs([]string{"--top", "10", "--all"})
	require.NoError(t, err)
	assert.Equal(t, 10, o.top)
	assert.True(t, o.all)
}

func TestParseArgsSymbols(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []string
	}{
		{"comma list", []string{"--symbol", "AAPL,MSFT"}, []string{"AAPL", "MSFT"}},
		{"positional", []string{"--symbol", "AAPL", "MSFT", "NVDA"}, []string{"AAPL", "MSFT", "NVDA"}},
		{"short flag", []string{"-s", "TSLA,", "AMD"}, []string{"TSLA", "AMD"}},
		{"flags first", []string{"--json", "--workers", "4", "-s", "IBM"}, []string{"IBM"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, err := parseArgs(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, o.symbols)
		})
	}
}

func TestParseArgsIgnoresStrayArgsWithoutSymbol(t *testing.T) {
	o, err := parseArgs([]string{"--json", "AAPL"})
	require.NoError(t, err)
	assert.True(t, o.asJSON)
	assert.Nil(t, o.symbols)
	assert.Equal(t, "config/config.yaml", o.configPath)
}

func TestParseArgsRejectsUnknownFlag(t *testing.T) {
	_, err := parseArgs([]string{"--symbols", "AAPL"})
	assert.Error(t, err)
}

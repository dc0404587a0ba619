package wildcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsMeta(t *testing.T) {
	assert.True(t, ContainsMeta("Test*"))
	assert.True(t, ContainsMeta("Fe?ture"))
	assert.True(t, ContainsMeta("[A-Z]*"))
	assert.False(t, ContainsMeta("Property"))
	assert.False(t, ContainsMeta(`Literal\*`))
	assert.False(t, ContainsMeta("{braces}"))
}

func TestCompile(t *testing.T) {
	tests := []struct {
		pattern       string
		caseSensitive bool
		input         string
		want          bool
	}{
		{"_Validation", true, "_Validation", true},
		{"_validation", true, "_Validation", false},
		{"_validation", false, "_Validation", true},
		{"Cust*", true, "CustomAction", true},
		{"?ile", true, "File", true},
		{"[FR]*", true, "Registry", true},
		{"[FR]*", true, "Shortcut", false},
		{"Test*", false, "test product 1.0", true},
		{"App {x64}", false, "App {x64}", true},
		{"App {x64}", false, "App x64", false},
		{`Star\*`, true, "Star*", true},
		{`Star\*`, true, "Starry", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			m, err := Compile(tt.pattern, tt.caseSensitive)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.input))
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	name := "Odd [Name] * v1.0?"
	m, err := Compile(Escape(name), false)
	require.NoError(t, err)
	assert.True(t, m.Match(name))
	assert.True(t, m.Match("odd [name] * V1.0?"))
	assert.False(t, m.Match("Odd N * v1.0x"))
	assert.False(t, ContainsMeta(Escape(name)))
}

func TestAny(t *testing.T) {
	m, err := Any([]string{"Registry", "Cust*"}, true)
	require.NoError(t, err)
	assert.True(t, m.Match("Registry"))
	assert.True(t, m.Match("CustomAction"))
	assert.False(t, m.Match("File"))

	none, err := Any(nil, true)
	require.NoError(t, err)
	assert.False(t, none.Match("Property"))
}

package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestParseHeaders(t *testing.T) {
	headers, err := ParseHeaders([]string{"Authorization=Bearer abc", " X-Trace = 1 ", "Empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc", "X-Trace": "1", "Empty": ""}, headers)

	_, err = ParseHeaders([]string{"missing-separator"})
	assert.Error(t, err)
	_, err = ParseHeaders([]string{"=value"})
	assert.Error(t, err)
}

func TestGetClientConfigFromEnv(t *testing.T) {
	t.Setenv("ORBITAPI_BASE_URL", "http://gateway:3000/")
	t.Setenv("ORBITAPI_TIMEOUT", "7")
	t.Setenv("ORBITAPI_NO_DB_CACHE", "true")
	viper.Reset()
	InitClientConfig()
	defer viper.Reset()

	config, err := GetClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://gateway:3000", config.BaseURL)
	assert.Equal(t, 7, config.TimeoutSecond)
	assert.False(t, config.UseDBCache)
}

func TestGetSerializer(t *testing.T) {
	defer viper.Reset()

	viper.Set("serializer", "jsoniter")
	s, err := GetSerializer()
	require.NoError(t, err)
	assert.Equal(t, "jsoniter", s.Name())

	viper.Set("serializer", "gob")
	_, err = GetSerializer()
	assert.Error(t, err)
}

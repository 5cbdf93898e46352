package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters_Defaults(t *testing.T) {
	t.Setenv("CHATBOT_TEST_EMPTY", "   ")

	assert.Equal(t, "fallback", GetEnvStringOrDefault("CHATBOT_TEST_EMPTY", "fallback"))
	assert.Equal(t, 7, GetEnvIntOrDefault("CHATBOT_TEST_MISSING", 7))
	assert.True(t, GetEnvBoolOrDefault("CHATBOT_TEST_MISSING", true))
	assert.Equal(t, 3*time.Second, GetEnvDurationOrDefault("CHATBOT_TEST_MISSING", 3*time.Second))
	assert.Equal(t, []string{"a"}, GetEnvListOrDefault("CHATBOT_TEST_MISSING", []string{"a"}))
}

func TestGetters_Values(t *testing.T) {
	t.Setenv("CHATBOT_TEST_INT", "0x10")
	t.Setenv("CHATBOT_TEST_BOOL", "false")
	t.Setenv("CHATBOT_TEST_DURATION", "150ms")
	t.Setenv("CHATBOT_TEST_BAD_DURATION", "soon")
	t.Setenv("CHATBOT_TEST_LIST", " 123@s.whatsapp.net, ,456 ")
	t.Setenv("CHATBOT_TEST_SIZE", "2m")
	t.Setenv("CHATBOT_TEST_RATE", "2.5")

	assert.Equal(t, 16, GetEnvIntOrDefault("CHATBOT_TEST_INT", 0))
	assert.False(t, GetEnvBoolOrDefault("CHATBOT_TEST_BOOL", true))
	assert.Equal(t, 150*time.Millisecond, GetEnvDurationOrDefault("CHATBOT_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetEnvDurationOrDefault("CHATBOT_TEST_BAD_DURATION", time.Second))
	assert.Equal(t, []string{"123@s.whatsapp.net", "456"}, GetEnvListOrDefault("CHATBOT_TEST_LIST", nil))
	assert.Equal(t, 2*1024*1024, GetEnvSizeOrDefault("CHATBOT_TEST_SIZE", 0))
	assert.Equal(t, 2.5, GetEnvFloat64OrDefault("CHATBOT_TEST_RATE", 0))
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("512k")
	require.NoError(t, err)
	assert.Equal(t, 512*1024, n)

	_, err = ParseSize("-1M")
	assert.Error(t, err)

	_, err = ParseSize("lots")
	assert.Error(t, err)
}

func TestMustGetEnvString_Panics(t *testing.T) {
	assert.Panics(t, func() { MustGetEnvString("CHATBOT_TEST_REQUIRED_MISSING") })
}

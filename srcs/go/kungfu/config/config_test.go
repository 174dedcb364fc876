package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(kvs map[string]string) func(string) string {
	return func(k string) string { return kvs[k] }
}

func Test_FromEnv_Defaults(t *testing.T) {
	c, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, Default, *c)
}

func Test_FromEnv(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		TreeDegreeEnvKey:           "3",
		KnomialRadixEnvKey:         "8",
		LogLevelEnvKey:             "debug",
		EnableStallDetectionEnvKey: "true",
		StallPeriodEnvKey:          "500ms",
		WaitBackoffEnvKey:          "EXP",
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, c.TreeDegree)
	assert.Equal(t, 8, c.KnomialRadix)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.True(t, c.EnableStallDetection)
	assert.Equal(t, 500*time.Millisecond, c.StallPeriod)
	assert.Equal(t, "exp", c.WaitBackoff)
}

func Test_FromEnv_Invalid(t *testing.T) {
	for _, kvs := range []map[string]string{
		{TreeDegreeEnvKey: "0"},
		{TreeDegreeEnvKey: "two"},
		{KnomialRadixEnvKey: "1"},
		{LogLevelEnvKey: "loud"},
		{StallPeriodEnvKey: "soon"},
		{WaitBackoffEnvKey: "sleep"},
	} {
		_, err := FromEnv(envOf(kvs))
		assert.Error(t, err, "%v", kvs)
	}
}

func Test_ParseYAML(t *testing.T) {
	e, err := ParseYAML([]byte("BARRIER_ALGO: dissemination\nTREE_DEGREE: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "dissemination", e.Getenv(BarrierAlgoEnvKey))
	assert.Equal(t, "4", e.Getenv(TreeDegreeEnvKey))
	c, err := FromEnv(e.Getenv)
	require.NoError(t, err)
	assert.Equal(t, 4, c.TreeDegree)

	_, err = ParseYAML([]byte("BARRIER_ALGO: [a, b]\n"))
	assert.Error(t, err)
}

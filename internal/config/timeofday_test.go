package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("14:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(14, 30), tod)
	assert.Equal(t, "14:30", tod.String())
	assert.Equal(t, 14*time.Hour+30*time.Minute, tod.Offset())

	for _, bad := range []string{"", "24:00", "9", "ab:cd", "12:60"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimeOfDay_YAMLRoundTrip(t *testing.T) {
	var v struct {
		At TimeOfDay `yaml:"at"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("at: \"09:05\"\n"), &v))
	assert.Equal(t, NewTimeOfDay(9, 5), v.At)

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(out), "09:05")

	v.At = 0
	require.NoError(t, yaml.Unmarshal(out, &v))
	assert.Equal(t, NewTimeOfDay(9, 5), v.At)
}

func TestOf(t *testing.T) {
	ts := time.Date(2024, 3, 4, 20, 59, 59, 0, time.UTC)
	assert.Equal(t, NewTimeOfDay(20, 59), Of(ts))
}

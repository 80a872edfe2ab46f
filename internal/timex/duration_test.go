package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_Unmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{`"90s"`, 90 * time.Second},
		{`"24h"`, 24 * time.Hour},
		{`1000000000`, time.Second},
		{`null`, 0},
	}
	for _, tc := range cases {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(tc.in), &d), tc.in)
		assert.Equal(t, tc.want, d.Duration, tc.in)
	}
}

func TestDuration_UnmarshalErrors(t *testing.T) {
	for _, in := range []string{`"soon"`, `true`, `{}`, `[`} {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(in), &d), in)
	}
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	in := struct {
		TTL Duration `json:"ttl"`
	}{TTL: Duration{15 * time.Minute}}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ttl":"15m0s"}`, string(b))
}

package rtcchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := configFromLookup(lookupFrom(nil))
	require.NoError(t, err)
	compare(t, config.Label, DefaultLabel)
	compare(t, config.BatchDelay, DefaultBatchDelay)
	check(t, config.Ordered)
	check(t, len(config.ICEServers) == 0)
}

func TestConfigFromEnv(t *testing.T) {
	config, err := configFromLookup(lookupFrom(map[string]string{
		envStunURLs:   " stun:stun.l.google.com:19302 , ,stun:stun1.l.google.com:19302",
		envBatchDelay: "50ms",
		envLabel:      "chat",
	}))
	require.NoError(t, err)
	require.Len(t, config.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}, config.ICEServers[0].URLs)
	compare(t, config.BatchDelay, 50*time.Millisecond)
	compare(t, config.Label, "chat")
}

func TestConfigICEServersJSONWins(t *testing.T) {
	config, err := configFromLookup(lookupFrom(map[string]string{
		envICEServersJSON: `[{"urls":"stun:a.example:3478"},{"urls":["turn:b.example:3478"],"username":"u","credential":"p"}]`,
		envStunURLs:       "stun:ignored.example",
	}))
	require.NoError(t, err)
	require.Len(t, config.ICEServers, 2)
	assert.Equal(t, []string{"stun:a.example:3478"}, config.ICEServers[0].URLs)
	compare(t, config.ICEServers[1].Username, "u")
	assert.Equal(t, "p", config.ICEServers[1].Credential)
}

func TestConfigErrors(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"bad json":       {envICEServersJSON: `[{`},
		"no urls":        {envICEServersJSON: `[{"urls":[]}]`},
		"bad scheme":     {envICEServersJSON: `[{"urls":"http://x"}]`},
		"turn no creds":  {envICEServersJSON: `[{"urls":"turn:x:3478"}]`},
		"bad delay":      {envBatchDelay: "soon"},
		"negative delay": {envBatchDelay: "-1s"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := configFromLookup(lookupFrom(env))
			require.Error(t, err)
		})
	}
}

func TestSplitCommaSeparated(t *testing.T) {
	assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, SplitCommaSeparated("stun:a:3478, stun:b:3478 ,"))
	check(t, len(SplitCommaSeparated(" , ")) == 0)
}

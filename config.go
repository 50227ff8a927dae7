package rtcchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	DefaultLabel      = "data-channel"
	DefaultBatchDelay = 300 * time.Millisecond

	envICEServersJSON = "RTCCHAT_ICE_SERVERS_JSON"
	envStunURLs       = "RTCCHAT_STUN_URLS"
	envBatchDelay     = "RTCCHAT_BATCH_DELAY"
	envLabel          = "RTCCHAT_LABEL"
)

type Config struct {
	ICEServers []webrtc.ICEServer

	// Label used by CreateDataChannel when it is given an empty one
	Label   string
	Ordered bool

	// Quiet period before batched updates are delivered
	BatchDelay time.Duration

	// Restricts gathering to these network types. Empty means pion's default.
	NetworkTypes []webrtc.NetworkType

	// When false, host candidates carry real addresses instead of .local names
	MulticastDNS bool

	// Gather 127.0.0.1 as well, for two peers on one machine without a network
	IncludeLoopback bool
}

func DefaultConfig() Config {
	return Config{
		Label:      DefaultLabel,
		Ordered:    true,
		BatchDelay: DefaultBatchDelay,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies the RTCCHAT_* environment variables.
func ConfigFromEnv() (Config, error) {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	config := DefaultConfig()

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if raw := get(envICEServersJSON); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envICEServersJSON, err)
		}
		config.ICEServers = servers
	} else if raw := get(envStunURLs); raw != "" {
		urls := SplitCommaSeparated(raw)
		if len(urls) > 0 {
			config.ICEServers = []webrtc.ICEServer{{URLs: urls}}
		}
	}

	if raw := get(envBatchDelay); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envBatchDelay, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("%s: must be positive, got %s", envBatchDelay, d)
		}
		config.BatchDelay = d
	}

	if raw := get(envLabel); raw != "" {
		config.Label = raw
	}

	return config, nil
}

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

// The browser accepts both "urls": "stun:..." and "urls": ["stun:..."]
type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseICEServersJSON parses an RTCConfiguration.iceServers style array.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var servers []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, server := range servers {
		urls := make([]string, 0, len(server.URLs))
		for _, url := range server.URLs {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			urls = append(urls, url)
		}

		pcServer := webrtc.ICEServer{
			URLs:     urls,
			Username: strings.TrimSpace(server.Username),
		}
		if server.Credential != "" {
			pcServer.Credential = server.Credential
		}

		if err := validateICEServer(pcServer); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, pcServer)
	}
	return out, nil
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("urls must not be empty")
	}
	for _, url := range server.URLs {
		lower := strings.ToLower(url)
		switch {
		case strings.HasPrefix(lower, "stun:"), strings.HasPrefix(lower, "stuns:"):
		case strings.HasPrefix(lower, "turn:"), strings.HasPrefix(lower, "turns:"):
			if server.Username == "" || server.Credential == nil {
				return fmt.Errorf("turn url %q requires username and credential", url)
			}
		default:
			return fmt.Errorf("unsupported ice url scheme %q", url)
		}
	}
	return nil
}

// SplitCommaSeparated splits a url list like "stun:a, stun:b", dropping blanks and surrounding spaces.
func SplitCommaSeparated(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

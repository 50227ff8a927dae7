package rtcchat

import (
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// getSettingsEngineApi builds the webrtc.API every Session is created from. Default codecs and
// interceptors are registered so AddTracks works without extra setup.
func getSettingsEngineApi(config Config, log zerolog.Logger) (*webrtc.API, error) {
	settingEngine := webrtc.SettingEngine{
		LoggerFactory: newLoggerFactory(log),
	}
	if len(config.NetworkTypes) > 0 {
		settingEngine.SetNetworkTypes(config.NetworkTypes)
	}
	if !config.MulticastDNS {
		settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}
	if config.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}

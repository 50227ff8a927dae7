// Package rtcchat negotiates a WebRTC peer connection by hand. Offers, answers and ICE candidates are
// turned into JSON text that the user copies between two peers, and a single data channel carries chat.
package rtcchat

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// Notes: https://webrtcforthecurious.com/docs/02-signaling/
// Notes: the text formats match what a browser produces with JSON.stringify(RTCSessionDescription) and
// JSON.stringify(RTCIceCandidate[]), so a pion peer can be paired with a browser tab.

var (
	ErrClosed             = errors.New("rtcchat: session is closed")
	ErrNoChannel          = errors.New("rtcchat: no data channel")
	ErrInvalidDescription = errors.New("rtcchat: invalid session description")
	ErrInvalidCandidate   = errors.New("rtcchat: invalid ice candidate")
)

// EventHandlers are the callbacks a view registers on a Session. Any of them may be nil.
// They are called from pion's goroutines, never from the caller's.
type EventHandlers struct {
	OnDataChannelOpened func(*Channel)
	OnDataChannelClosed func()
	OnICECandidate      func(webrtc.ICECandidateInit)
	OnMessageReceived   func(string)
	OnRemoteTrack       func(*webrtc.TrackRemote)

	// Called once the local candidate list is complete
	OnICEGatheringComplete  func()
	OnConnectionStateChange func(webrtc.PeerConnectionState)
}

package rtcchat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Session is one peer connection negotiated by hand. The offering side calls CreateDataChannel and
// CreateAndSetOffer, the answering side SetRemoteDescription and CreateAndSetAnswer, and both paste the
// other's candidate list into AddICECandidates.
type Session struct {
	id       string
	config   Config
	handlers EventHandlers
	peerConn *webrtc.PeerConnection
	log      zerolog.Logger
	closed   atomic.Bool
	done     chan struct{}

	// Closed once the local candidate list is complete, shared by every GatheredDescription caller
	gathered     chan struct{}
	gatheredOnce sync.Once

	mu              sync.Mutex
	channel         *Channel
	localCandidates []webrtc.ICECandidateInit

	// Held across remote description and candidate application so queued candidates keep their order
	candidatesMux     sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit
}

type SessionState struct {
	Signaling    webrtc.SignalingState
	Connection   webrtc.PeerConnectionState
	ICEGathering webrtc.ICEGatheringState
	HasChannel   bool
	Closed       bool
}

func Initialize(config Config, handlers EventHandlers) (*Session, error) {
	id := uuid.NewString()
	log := logger.With().Str("session", id).Logger()

	api, err := getSettingsEngineApi(config, log)
	if err != nil {
		return nil, err
	}

	peerConn, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		log.Error().Err(err).Msg("Initialize: NewPeerConnection")
		return nil, err
	}

	s := &Session{
		id:       id,
		config:   config,
		handlers: handlers,
		peerConn: peerConn,
		log:      log,
		done:     make(chan struct{}),
		gathered: make(chan struct{}),
	}

	// Each candidate gathered after the local description is set must be pasted into the other peer
	peerConn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			s.log.Trace().Msg("ICE gathering complete")
			s.gatheredOnce.Do(func() { close(s.gathered) })
			if s.handlers.OnICEGatheringComplete != nil {
				s.handlers.OnICEGatheringComplete()
			}
			return
		}

		s.log.Trace().
			Str("address", c.Address).
			Str("protocol", c.Protocol.String()).
			Uint16("port", c.Port).
			Str("type", c.Typ.String()).
			Msg("OnICECandidate")

		init := c.ToJSON()
		s.mu.Lock()
		s.localCandidates = append(s.localCandidates, init)
		s.mu.Unlock()

		if s.handlers.OnICECandidate != nil {
			s.handlers.OnICECandidate(init)
		}
	})

	// Called when the other peer created the channel
	peerConn.OnDataChannel(func(d *webrtc.DataChannel) {
		s.log.Trace().Str("label", d.Label()).Msg("OnDataChannel")
		s.setDataChannelHandlers(d)
	})

	peerConn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.log.Trace().
			Str("kind", track.Kind().String()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack")
		if s.handlers.OnRemoteTrack != nil {
			s.handlers.OnRemoteTrack(track)
		}
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Trace().Str("state", state.String()).Msg("Peer Connection State has changed")

		// Failed negotiations are not retried. The user starts over with a new session.
		if state == webrtc.PeerConnectionStateFailed {
			s.log.Warn().Msg("Peer Connection has gone to failed")
		}
		if s.handlers.OnConnectionStateChange != nil {
			s.handlers.OnConnectionStateChange(state)
		}
	})

	s.log.Debug().Int("iceServers", len(config.ICEServers)).Msg("session initialized")
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) setDataChannelHandlers(d *webrtc.DataChannel) {
	d.OnOpen(func() {
		printDataChannel(d)
		ch := newChannel(d)

		// Only one channel is tracked; a newer one replaces the reference
		s.mu.Lock()
		s.channel = ch
		s.mu.Unlock()

		if s.handlers.OnDataChannelOpened != nil {
			s.handlers.OnDataChannelOpened(ch)
		}
	})

	d.OnMessage(func(msg webrtc.DataChannelMessage) {
		if s.handlers.OnMessageReceived != nil {
			s.handlers.OnMessageReceived(string(msg.Data))
		}
	})

	d.OnClose(func() {
		s.log.Trace().Str("label", d.Label()).Msg("data channel closed")
		s.clearChannel(d)
		if s.handlers.OnDataChannelClosed != nil {
			s.handlers.OnDataChannelClosed()
		}
	})
}

func (s *Session) clearChannel(d *webrtc.DataChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil && s.channel.dataChannel == d {
		s.channel = nil
	}
}

// CreateDataChannel creates a channel for the other peer to receive. An empty label uses the configured
// default. The channel is reported through OnDataChannelOpened once negotiation completes.
func (s *Session) CreateDataChannel(label string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if label == "" {
		label = s.config.Label
	}
	if label == "" {
		label = DefaultLabel
	}

	ordered := s.config.Ordered
	d, err := s.peerConn.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("CreateDataChannel")
		return fmt.Errorf("create data channel: %w", err)
	}

	s.setDataChannelHandlers(d)
	return nil
}

func (s *Session) CreateAndSetOffer() (webrtc.SessionDescription, error) {
	if s.closed.Load() {
		return webrtc.SessionDescription{}, ErrClosed
	}

	offer, err := s.peerConn.CreateOffer(nil)
	if err != nil {
		s.log.Error().Err(err).Msg("CreateOffer")
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}

	// Starts the gathering of ICE candidates
	if err := s.peerConn.SetLocalDescription(offer); err != nil {
		s.log.Error().Err(err).Msg("SetLocalDescription")
		return webrtc.SessionDescription{}, fmt.Errorf("set local offer: %w", err)
	}

	s.log.Debug().Str("media", describeSDP(offer.SDP)).Msg("offer created")
	return offer, nil
}

func (s *Session) CreateAndSetAnswer() (webrtc.SessionDescription, error) {
	if s.closed.Load() {
		return webrtc.SessionDescription{}, ErrClosed
	}

	answer, err := s.peerConn.CreateAnswer(nil)
	if err != nil {
		s.log.Error().Err(err).Msg("CreateAnswer")
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}

	if err := s.peerConn.SetLocalDescription(answer); err != nil {
		s.log.Error().Err(err).Msg("SetLocalDescription")
		return webrtc.SessionDescription{}, fmt.Errorf("set local answer: %w", err)
	}

	s.log.Debug().Str("media", describeSDP(answer.SDP)).Msg("answer created")
	return answer, nil
}

// SetRemoteDescription applies a pasted offer or answer, then any candidates that were pasted before it.
func (s *Session) SetRemoteDescription(text string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	desc, err := DecodeDescription(text)
	if err != nil {
		return err
	}

	s.candidatesMux.Lock()
	defer s.candidatesMux.Unlock()

	if err := s.peerConn.SetRemoteDescription(desc); err != nil {
		s.log.Error().Err(err).Msg("SetRemoteDescription")
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}
	s.log.Debug().
		Str("type", desc.Type.String()).
		Str("media", describeSDP(desc.SDP)).
		Msg("remote description set")

	pending := s.pendingCandidates
	s.pendingCandidates = nil
	return s.addCandidates(pending)
}

// AddICECandidates adds a pasted candidate list in order. Before a remote description exists the
// candidates are held and applied by SetRemoteDescription.
func (s *Session) AddICECandidates(text string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	candidates, err := DecodeCandidates(text)
	if err != nil {
		return err
	}

	s.candidatesMux.Lock()
	defer s.candidatesMux.Unlock()

	if s.peerConn.RemoteDescription() == nil {
		trace("AddICECandidates: no remote description yet, queueing")
		s.pendingCandidates = append(s.pendingCandidates, candidates...)
		return nil
	}
	return s.addCandidates(candidates)
}

func (s *Session) addCandidates(candidates []webrtc.ICECandidateInit) error {
	for i, c := range candidates {
		if err := s.peerConn.AddICECandidate(c); err != nil {
			s.log.Error().Err(err).Str("candidate", c.Candidate).Msg("AddICECandidate")
			return fmt.Errorf("add candidate %d: %w", i, err)
		}
	}
	if len(candidates) > 0 {
		s.log.Debug().Int("count", len(candidates)).Msg("remote candidates added")
	}
	return nil
}

func (s *Session) SendMessage(ch *Channel, message string) error {
	if ch == nil {
		return ErrNoChannel
	}
	return ch.Send(message)
}

func (s *Session) CloseDataChannel(ch *Channel) error {
	if ch == nil {
		return ErrNoChannel
	}
	s.clearChannel(ch.dataChannel)
	return ch.Close()
}

// Channel returns the open data channel, or nil.
func (s *Session) Channel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

func (s *Session) LocalCandidates() []webrtc.ICECandidateInit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webrtc.ICECandidateInit, len(s.localCandidates))
	copy(out, s.localCandidates)
	return out
}

// GatheredDescription waits for ICE gathering to finish and returns the local description with every
// candidate embedded, so the other peer needs a single paste.
func (s *Session) GatheredDescription(ctx context.Context) (webrtc.SessionDescription, error) {
	if s.closed.Load() {
		return webrtc.SessionDescription{}, ErrClosed
	}
	if s.peerConn.LocalDescription() == nil {
		return webrtc.SessionDescription{}, errors.New("rtcchat: no local description, create an offer or answer first")
	}

	select {
	case <-s.gathered:
	case <-s.done:
		return webrtc.SessionDescription{}, ErrClosed
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ctx.Err()
	}

	desc := s.peerConn.LocalDescription()
	if desc == nil {
		return webrtc.SessionDescription{}, ErrClosed
	}
	return *desc, nil
}

func (s *Session) State() SessionState {
	return SessionState{
		Signaling:    s.peerConn.SignalingState(),
		Connection:   s.peerConn.ConnectionState(),
		ICEGathering: s.peerConn.ICEGatheringState(),
		HasChannel:   s.Channel() != nil,
		Closed:       s.closed.Load(),
	}
}

func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	s.mu.Lock()
	s.channel = nil
	s.mu.Unlock()

	err := s.peerConn.Close()
	if err != nil {
		s.log.Error().Err(err).Msg("Close")
		return fmt.Errorf("close peer connection: %w", err)
	}
	return nil
}

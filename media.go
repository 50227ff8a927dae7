package rtcchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// A deadline in the past makes blocked reads return at once
var pastDeadline = time.Unix(1, 0)

// AddTracks adds local media to the connection. Tracks added after the offer need a new offer/answer round.
func (s *Session) AddTracks(tracks ...webrtc.TrackLocal) ([]*webrtc.RTPSender, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	senders := make([]*webrtc.RTPSender, 0, len(tracks))
	for _, track := range tracks {
		sender, err := s.peerConn.AddTrack(track)
		if err != nil {
			s.log.Error().Err(err).Str("track", track.ID()).Msg("AddTrack")
			return senders, fmt.Errorf("add track %q: %w", track.ID(), err)
		}
		senders = append(senders, sender)

		// RTCP has to be read for the interceptors (NACK, reports) to run
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return senders, nil
}

// NewSampleTrack creates a local track that media samples can be written to. kind is "video" (VP8) or
// "audio" (Opus).
func NewSampleTrack(kind, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	var capability webrtc.RTPCodecCapability
	switch kind {
	case "video":
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	case "audio":
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	default:
		return nil, fmt.Errorf("unsupported track kind %q", kind)
	}
	return webrtc.NewTrackLocalStaticSample(capability, kind, streamID)
}

// FeedTrack writes the frames returned by next to track, one per frame duration, until ctx is cancelled or
// next fails. io.EOF from next ends the feed without error. Cancelling ctx is how a local stream is stopped.
func FeedTrack(ctx context.Context, track *webrtc.TrackLocalStaticSample, next func() ([]byte, time.Duration, error)) error {
	for {
		frame, duration, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := track.WriteSample(media.Sample{Data: frame, Duration: duration}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(duration):
		}
	}
}

// ReadTrack hands every RTP packet of a remote track to fn until the track ends or ctx is cancelled.
// Cancelling ctx is how a remote stream is stopped.
func ReadTrack(ctx context.Context, track *webrtc.TrackRemote, fn func(*rtp.Packet)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks ReadRTP
			_ = track.SetReadDeadline(pastDeadline)
		case <-done:
		}
	}()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if fn != nil {
			fn(pkt)
		}
	}
}

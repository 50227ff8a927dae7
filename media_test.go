package rtcchat

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFrame = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}

func TestRemoteVideoTrack(t *testing.T) {
	offerer := newTestPeer(t)
	answerer := newTestPeer(t)

	track, err := NewSampleTrack("video", "test")
	require.NoError(t, err)
	_, err = offerer.session.AddTracks(track)
	require.NoError(t, err)

	negotiate(t, offerer, answerer)
	receive(t, offerer.opened, negotiationTimeout)

	// Same path as the example's video command: a fed track is what makes the remote OnTrack fire
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go func() {
		_ = FeedTrack(feedCtx, track, func() ([]byte, time.Duration, error) {
			return testFrame, 20 * time.Millisecond, nil
		})
	}()

	remote := receive(t, answerer.tracks, negotiationTimeout)
	compare(t, remote.Kind(), webrtc.RTPCodecTypeVideo)
	compare(t, remote.Codec().MimeType, webrtc.MimeTypeVP8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var packets atomic.Int32
	result := make(chan error, 1)
	go func() {
		result <- ReadTrack(ctx, remote, func(pkt *rtp.Packet) {
			if packets.Add(1) == 5 {
				cancel()
			}
		})
	}()

	err = receive(t, result, negotiationTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	check(t, packets.Load() >= 5)
}

func TestFeedTrackEndsAtEOF(t *testing.T) {
	track, err := NewSampleTrack("video", "test")
	require.NoError(t, err)

	frames := 3
	err = FeedTrack(context.Background(), track, func() ([]byte, time.Duration, error) {
		if frames == 0 {
			return nil, 0, io.EOF
		}
		frames--
		return testFrame, time.Millisecond, nil
	})
	require.NoError(t, err)
	compare(t, frames, 0)
}

func TestFeedTrackStopsOnCancel(t *testing.T) {
	track, err := NewSampleTrack("video", "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- FeedTrack(ctx, track, func() ([]byte, time.Duration, error) {
			return testFrame, 10 * time.Millisecond, nil
		})
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, receive(t, result, time.Second), context.Canceled)

	boom := errors.New("boom")
	err = FeedTrack(context.Background(), track, func() ([]byte, time.Duration, error) {
		return nil, 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

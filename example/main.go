package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unitoftime/rtcchat"
)

// Run two copies of this program and paste the printed JSON from one into the other:
//
//	A: init, channel, offer            -> paste A's offer into B with "remote"
//	B: init, remote <offer>, answer    -> paste B's answer into A with "remote"
//	both: candidates <the other's list>
//	send hello
const usage = `commands:
  init                 create the peer connection
  channel [label]      create the data channel (offering side)
  video                add a local VP8 track and start sending it
  stopvideo            stop sending local video
  offer | answer       create and set the local description
  full                 print the local description after gathering, with candidates embedded
  remote <json>        set the remote description
  candidates <json>    add the remote ICE candidates
  send <text>          send a chat message
  closechannel         close the data channel
  state                print connection state
  close                close the connection
  reset                close and forget everything
  quit`

type app struct {
	config     rtcchat.Config
	base64     bool
	ivfPath    string
	session    *rtcchat.Session
	candidates *rtcchat.TimerUpdate[webrtc.ICECandidateInit]
	transcript *rtcchat.Transcript

	mu         sync.Mutex
	stopTracks context.CancelFunc
	trackCtx   context.Context
	stopVideo  context.CancelFunc
}

func main() {
	config, err := rtcchat.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	stun := flag.String("stun", "", "comma separated STUN urls, e.g. stun:stun.l.google.com:19302")
	delay := flag.Duration("delay", config.BatchDelay, "quiet period before candidates and messages are printed")
	label := flag.String("label", config.Label, "data channel label")
	useBase64 := flag.Bool("base64", false, "print descriptions and candidates as base64")
	loopback := flag.Bool("loopback", false, "also gather 127.0.0.1, for two peers on one machine")
	ivf := flag.String("ivf", "", "VP8 .ivf file for the video command; a synthetic frame is sent when empty")
	verbose := flag.Bool("v", false, "trace logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.TraceLevel
	}
	rtcchat.SetLogger(log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level))

	if urls := rtcchat.SplitCommaSeparated(*stun); len(urls) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: urls}}
	}
	config.BatchDelay = *delay
	config.Label = *label
	config.IncludeLoopback = *loopback

	a := &app{config: config, base64: *useBase64, ivfPath: *ivf}
	a.resetBatches()

	fmt.Println(usage)
	scanner := bufio.NewScanner(os.Stdin)
	// Descriptions are long single lines
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if cmd == "quit" {
			break
		}
		if err := a.run(cmd, strings.TrimSpace(arg)); err != nil {
			fmt.Println("error:", err)
		}
	}

	a.reset()
}

func (a *app) run(cmd, arg string) error {
	if cmd != "init" && cmd != "reset" && a.session == nil {
		return fmt.Errorf("no connection, run init first")
	}

	switch cmd {
	case "init":
		if a.session != nil {
			return fmt.Errorf("already initialized, run reset first")
		}
		session, err := rtcchat.Initialize(a.config, a.handlers())
		if err != nil {
			return err
		}
		a.session = session
		fmt.Println("initialized", session.ID())

	case "channel":
		return a.session.CreateDataChannel(arg)

	case "video":
		track, err := rtcchat.NewSampleTrack("video", "rtcchat")
		if err != nil {
			return err
		}
		if _, err := a.session.AddTracks(track); err != nil {
			return err
		}
		next, closeSource, err := a.videoSource()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		a.mu.Lock()
		if a.stopVideo != nil {
			a.stopVideo()
		}
		a.stopVideo = cancel
		a.mu.Unlock()

		go func() {
			defer closeSource()
			err := rtcchat.FeedTrack(ctx, track, next)
			fmt.Println("local video stopped:", err)
		}()
		fmt.Println("video track added, create a new offer to send it")

	case "stopvideo":
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.stopVideo == nil {
			return fmt.Errorf("no local video")
		}
		a.stopVideo()
		a.stopVideo = nil

	case "offer":
		desc, err := a.session.CreateAndSetOffer()
		if err != nil {
			return err
		}
		return a.printDescription("Local session", desc)

	case "answer":
		desc, err := a.session.CreateAndSetAnswer()
		if err != nil {
			return err
		}
		return a.printDescription("Local session", desc)

	case "full":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		desc, err := a.session.GatheredDescription(ctx)
		if err != nil {
			return err
		}
		return a.printDescription("Local session (with candidates)", desc)

	case "remote":
		return a.session.SetRemoteDescription(arg)

	case "candidates":
		return a.session.AddICECandidates(arg)

	case "send":
		return a.session.SendChat(a.transcript, arg)

	case "closechannel":
		return a.session.CloseDataChannel(a.session.Channel())

	case "state":
		st := a.session.State()
		fmt.Printf("signaling=%s connection=%s gathering=%s channel=%v closed=%v\n",
			st.Signaling, st.Connection, st.ICEGathering, st.HasChannel, st.Closed)

	case "close":
		return a.session.Close()

	case "reset":
		a.reset()
		fmt.Println("reset")

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

func (a *app) handlers() rtcchat.EventHandlers {
	return rtcchat.EventHandlers{
		OnDataChannelOpened: func(ch *rtcchat.Channel) {
			fmt.Printf("data channel %q open\n", ch.Label())
		},
		OnDataChannelClosed: func() {
			fmt.Println("data channel closed")
		},
		OnICECandidate: a.candidates.Update,
		OnICEGatheringComplete: func() {
			a.candidates.Flush()
		},
		OnMessageReceived: a.transcript.Received,
		OnRemoteTrack: func(track *webrtc.TrackRemote) {
			go a.playTrack(track)
		},
		OnConnectionStateChange: func(state webrtc.PeerConnectionState) {
			fmt.Println("connection", state)
		},
	}
}

func (a *app) playTrack(track *webrtc.TrackRemote) {
	a.mu.Lock()
	ctx := a.trackCtx
	a.mu.Unlock()

	fmt.Printf("receiving remote %s track (%s)\n", track.Kind(), track.Codec().MimeType)
	var packets, bytes int
	err := rtcchat.ReadTrack(ctx, track, func(pkt *rtp.Packet) {
		packets++
		bytes += len(pkt.Payload)
	})
	fmt.Printf("remote %s track stopped after %d packets (%d bytes): %v\n", track.Kind(), packets, bytes, err)
}

// A VP8 keyframe header with no picture; enough for the remote side to see a live track
var syntheticFrame = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00}

// videoSource returns the frame supplier for the video command and a func releasing it.
func (a *app) videoSource() (func() ([]byte, time.Duration, error), func(), error) {
	if a.ivfPath == "" {
		return func() ([]byte, time.Duration, error) {
			return syntheticFrame, time.Second / 30, nil
		}, func() {}, nil
	}

	file, err := os.Open(a.ivfPath)
	if err != nil {
		return nil, nil, err
	}
	ivf, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	frameDuration := time.Millisecond * time.Duration((float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)

	next := func() ([]byte, time.Duration, error) {
		frame, _, err := ivf.ParseNextFrame()
		if err != nil {
			return nil, 0, err
		}
		return frame, frameDuration, nil
	}
	return next, func() { file.Close() }, nil
}

func (a *app) printDescription(title string, desc webrtc.SessionDescription) error {
	text, err := rtcchat.EncodeDescription(desc)
	if err != nil {
		return err
	}
	a.printCopyable(title, text)
	return nil
}

func (a *app) printCopyable(title, text string) {
	if a.base64 {
		text = rtcchat.EncodeBase64(text)
	}
	fmt.Printf("%s:\n%s\n", title, text)
}

func (a *app) resetBatches() {
	a.candidates = rtcchat.NewTimerUpdate(a.config.BatchDelay, func(candidates []webrtc.ICECandidateInit) {
		text, err := rtcchat.EncodeCandidates(candidates)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		a.printCopyable("Local ICE Candidates", text)
	})
	a.transcript = rtcchat.NewTranscript(a.config.BatchDelay, func(messages []rtcchat.Message) {
		fmt.Println("Messages")
		for _, m := range messages {
			fmt.Println(" ", m)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.trackCtx, a.stopTracks = ctx, cancel
	a.mu.Unlock()
}

func (a *app) reset() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			fmt.Println("error:", err)
		}
		a.session = nil
	}
	a.candidates.Stop()
	a.transcript.Stop()
	a.mu.Lock()
	a.stopTracks()
	if a.stopVideo != nil {
		a.stopVideo()
		a.stopVideo = nil
	}
	a.mu.Unlock()
	a.resetBatches()
}

package rtcchat

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Text formats for manual exchange. A description is {"type":"offer","sdp":"..."} and a candidate list is
// a JSON array of {"candidate","sdpMid","sdpMLineIndex","usernameFragment"} objects. Decoders also accept
// the base64 of either form.

type sdpMsg struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type candidateMsg struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func candidateFromPion(init webrtc.ICECandidateInit) candidateMsg {
	return candidateMsg{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c candidateMsg) toPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func EncodeDescription(desc webrtc.SessionDescription) (string, error) {
	dat, err := json.Marshal(sdpMsg{Type: desc.Type.String(), SDP: desc.SDP})
	if err != nil {
		return "", err
	}
	return string(dat), nil
}

// DecodeDescription parses a pasted offer or answer and checks that its SDP body parses.
func DecodeDescription(text string) (webrtc.SessionDescription, error) {
	dat, err := pastedJSON(text)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}

	var msg sdpMsg
	if err := json.Unmarshal(dat, &msg); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}

	var t webrtc.SDPType
	switch msg.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: unsupported sdp type %q", ErrInvalidDescription, msg.Type)
	}

	if !strings.HasPrefix(msg.SDP, "v=") {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: sdp must start with v=", ErrInvalidDescription)
	}
	if _, err := parseSDP(msg.SDP); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}

	return webrtc.SessionDescription{Type: t, SDP: msg.SDP}, nil
}

func EncodeCandidates(candidates []webrtc.ICECandidateInit) (string, error) {
	msgs := make([]candidateMsg, 0, len(candidates))
	for _, c := range candidates {
		msgs = append(msgs, candidateFromPion(c))
	}
	dat, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(dat), nil
}

// DecodeCandidates parses a pasted candidate list. Every non-empty candidate line must parse; an empty
// one is the end-of-candidates marker and is kept as is.
func DecodeCandidates(text string) ([]webrtc.ICECandidateInit, error) {
	dat, err := pastedJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}

	var msgs []candidateMsg
	if err := json.Unmarshal(dat, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}

	out := make([]webrtc.ICECandidateInit, 0, len(msgs))
	for i, msg := range msgs {
		if msg.Candidate != "" {
			if _, err := parseCandidate(msg.Candidate); err != nil {
				return nil, fmt.Errorf("%w: candidates[%d]: %w", ErrInvalidCandidate, i, err)
			}
		}
		out = append(out, msg.toPion())
	}
	return out, nil
}

// pastedJSON returns the JSON payload of a paste, undoing base64 when the text isn't JSON already.
func pastedJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty input")
	}
	if text[0] == '{' || text[0] == '[' {
		return []byte(text), nil
	}

	dat, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("neither json nor base64: %w", err)
	}
	return dat, nil
}

// EncodeBase64 wraps encoded text for terminals that mangle long JSON lines.
func EncodeBase64(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func parseSDP(raw string) (*sdp.SessionDescription, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(raw)); err != nil {
		return nil, err
	}
	return parsed, nil
}

func parseCandidate(raw string) (ice.Candidate, error) {
	return ice.UnmarshalCandidate(strings.TrimPrefix(raw, "candidate:"))
}

// describeSDP lists the media sections of a description for logging, e.g. "application,video".
func describeSDP(raw string) string {
	parsed, err := parseSDP(raw)
	if err != nil {
		return "unparsed"
	}
	kinds := make([]string, 0, len(parsed.MediaDescriptions))
	for _, m := range parsed.MediaDescriptions {
		kinds = append(kinds, m.MediaName.Media)
	}
	if len(kinds) == 0 {
		return "none"
	}
	return strings.Join(kinds, ",")
}

package rtcchat

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n"

func TestDescriptionRoundTrip(t *testing.T) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testSDP}

	text, err := EncodeDescription(desc)
	require.NoError(t, err)
	check(t, strings.HasPrefix(text, `{"type":"offer","sdp":"v=0`))

	got, err := DecodeDescription(text)
	require.NoError(t, err)
	compare(t, got.Type, webrtc.SDPTypeOffer)
	compare(t, got.SDP, testSDP)

	// Pasted base64 and stray whitespace from a terminal
	got, err = DecodeDescription("  " + EncodeBase64(text) + "\n")
	require.NoError(t, err)
	compare(t, got.SDP, testSDP)

	compare(t, describeSDP(testSDP), "application")
}

func TestDecodeDescriptionErrors(t *testing.T) {
	for name, text := range map[string]string{
		"empty":       "   ",
		"not base64":  "%%%",
		"bad json":    `{"type":`,
		"rollback":    `{"type":"rollback","sdp":""}`,
		"missing sdp": `{"type":"answer"}`,
		"garbage sdp": `{"type":"answer","sdp":"hello"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDescription(text)
			assert.ErrorIs(t, err, ErrInvalidDescription)
		})
	}
}

func TestCandidatesRoundTrip(t *testing.T) {
	mid := "0"
	index := uint16(0)
	ufrag := "abcd"
	candidates := []webrtc.ICECandidateInit{
		{
			Candidate:        "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host",
			SDPMid:           &mid,
			SDPMLineIndex:    &index,
			UsernameFragment: &ufrag,
		},
		{Candidate: "candidate:2 1 udp 1694498815 203.0.113.7 6000 typ srflx raddr 10.0.0.1 rport 5000"},
		// End of candidates
		{Candidate: ""},
	}

	text, err := EncodeCandidates(candidates)
	require.NoError(t, err)
	check(t, strings.Contains(text, `"sdpMLineIndex":0`))

	got, err := DecodeCandidates(text)
	require.NoError(t, err)
	require.Len(t, got, 3)
	compare(t, got[0].Candidate, candidates[0].Candidate)
	compare(t, *got[0].SDPMid, "0")
	compare(t, *got[0].SDPMLineIndex, uint16(0))
	compare(t, *got[0].UsernameFragment, "abcd")
	check(t, got[1].SDPMid == nil)
	compare(t, got[2].Candidate, "")

	got, err = DecodeCandidates(EncodeBase64(text))
	require.NoError(t, err)
	require.Len(t, got, 3)

	empty, err := EncodeCandidates(nil)
	require.NoError(t, err)
	compare(t, empty, "[]")
}

func TestDecodeCandidatesBrowserFormat(t *testing.T) {
	// As printed by JSON.stringify on a browser's RTCIceCandidate list
	text := `[{"candidate":"candidate:842163049 1 udp 1677729535 198.51.100.4 46154 typ srflx raddr 0.0.0.0 rport 0 generation 0 ufrag sK8L network-cost 999","sdpMid":"0","sdpMLineIndex":0,"usernameFragment":"sK8L"}]`

	got, err := DecodeCandidates(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	compare(t, *got[0].UsernameFragment, "sK8L")
}

func TestDecodeCandidatesErrors(t *testing.T) {
	_, err := DecodeCandidates(`[{"candidate":"not a candidate"}]`)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = DecodeCandidates(`{"candidate":""}`)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = DecodeCandidates("")
	assert.ErrorIs(t, err, ErrInvalidCandidate)
}

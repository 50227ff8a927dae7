package rtcchat

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Channel is the one data channel of a Session, handed to OnDataChannelOpened once it can carry text.
type Channel struct {
	dataChannel *webrtc.DataChannel
}

func newChannel(d *webrtc.DataChannel) *Channel {
	return &Channel{dataChannel: d}
}

func (c *Channel) Label() string {
	return c.dataChannel.Label()
}

func (c *Channel) Open() bool {
	return c.dataChannel.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *Channel) Send(message string) error {
	err := c.dataChannel.SendText(message)
	if err != nil {
		return fmt.Errorf("send on %q: %w", c.Label(), err)
	}
	return nil
}

func (c *Channel) Close() error {
	return c.dataChannel.Close()
}

func printDataChannel(d *webrtc.DataChannel) {
	var id uint16
	if d.ID() != nil {
		id = *d.ID()
	}
	logger.Trace().
		Str("label", d.Label()).
		Uint16("id", id).
		Bool("negotiated", d.Negotiated()).
		Bool("ordered", d.Ordered()).
		Str("protocol", d.Protocol()).
		Str("state", d.ReadyState().String()).
		Msg("data channel")
}

package rtcchat

import (
	"fmt"
	"time"
)

type Sender string

const (
	SenderYou  Sender = "You"
	SenderThey Sender = "They"
)

type Message struct {
	Sender Sender
	Text   string
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Text)
}

// Transcript is the chat history of a session. refresh receives the full history after each burst.
type Transcript struct {
	messages *TimerUpdate[Message]
}

func NewTranscript(delay time.Duration, refresh func([]Message)) *Transcript {
	return &Transcript{
		messages: NewTimerUpdate(delay, refresh),
	}
}

func (t *Transcript) Sent(text string) {
	t.messages.Update(Message{Sender: SenderYou, Text: text})
}

func (t *Transcript) Received(text string) {
	t.messages.Update(Message{Sender: SenderThey, Text: text})
}

func (t *Transcript) Messages() []Message {
	return t.messages.Data()
}

func (t *Transcript) Flush() {
	t.messages.Flush()
}

func (t *Transcript) Reset() {
	t.messages.Reset()
}

func (t *Transcript) Stop() {
	t.messages.Stop()
}

// SendChat sends text on the session's current channel and records it as sent.
func (s *Session) SendChat(t *Transcript, text string) error {
	if err := s.SendMessage(s.Channel(), text); err != nil {
		return err
	}
	t.Sent(text)
	return nil
}

package mailer

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Message is one outbound email. Text is required; HTML is optional and
// sent as an alternative part when present.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages. The engine calls Send once per email and does
// not retry; implementations own their transport and timeouts.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// WriterMailer writes rendered messages to an io.Writer instead of sending
// them. Useful for development and tests.
type WriterMailer struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterMailer creates a WriterMailer targeting w.
func NewWriterMailer(w io.Writer) *WriterMailer {
	return &WriterMailer{writer: w}
}

func (m *WriterMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := fmt.Fprintf(m.writer, "To: %s\nSubject: %s\n\n%s\n", msg.To, msg.Subject, msg.Text)
	return err
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"whatsapp-bot/internal/models"
	"whatsapp-bot/internal/whatsapp"
)

type sentText struct {
	Instance whatsapp.Instance
	Phone    string
	Text     string
}

// fakeSender records sends. Phones listed in failFor get an error.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentText
	failFor map[string]bool
	result  *whatsapp.SendResult
}

func (f *fakeSender) SendText(_ context.Context, inst whatsapp.Instance, phone, text string) (*whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[phone] {
		return nil, errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, sentText{Instance: inst, Phone: phone, Text: text})
	if f.result != nil {
		return f.result, nil
	}
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("out-%d", len(f.sent))}, nil
}

func (f *fakeSender) Sent() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (n *recordingNotifier) NotifyMessage(msg models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

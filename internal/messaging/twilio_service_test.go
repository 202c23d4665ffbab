package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/postforge/postforge/internal/twilio"
)

type fakePublisher struct {
	url string
	err error
}

func (f *fakePublisher) Publish(data []byte, mimeType string) (string, error) {
	return f.url, f.err
}

func TestTwilioServiceSendMessageCanonicalizes(t *testing.T) {
	mock := twilio.NewMockClient()
	svc := NewTwilioService(mock, nil)

	if err := svc.SendMessage(context.Background(), "+1 (555) 123-4567", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "15551234567" {
		t.Fatalf("unexpected sends: %+v", mock.SentMessages)
	}
}

func TestTwilioServiceSendImageViaPublisher(t *testing.T) {
	mock := twilio.NewMockClient()
	svc := NewTwilioService(mock, &fakePublisher{url: "https://example.org/media/abc"})

	if err := svc.SendImage(context.Background(), "15551234567", "poster", []byte{1}); err != nil {
		t.Fatalf("SendImage returned error: %v", err)
	}
	if len(mock.MediaMessages) != 1 {
		t.Fatalf("expected one media message, got %+v", mock.MediaMessages)
	}
	m := mock.MediaMessages[0]
	if m.MediaURL != "https://example.org/media/abc" || m.Caption != "poster" {
		t.Errorf("unexpected media message %+v", m)
	}
}

func TestTwilioServiceSendImageWithoutPublisher(t *testing.T) {
	svc := NewTwilioService(twilio.NewMockClient(), nil)
	if err := svc.SendImage(context.Background(), "15551234567", "poster", []byte{1}); err == nil {
		t.Error("expected error without a media publisher")
	}
}

func TestTwilioServiceSendImagePublishError(t *testing.T) {
	svc := NewTwilioService(twilio.NewMockClient(), &fakePublisher{err: errors.New("disk full")})
	if err := svc.SendImage(context.Background(), "15551234567", "poster", []byte{1}); err == nil {
		t.Error("expected publish error to propagate")
	}
}

func TestTwilioServiceStoppedRejectsSends(t *testing.T) {
	svc := NewTwilioService(twilio.NewMockClient(), nil)
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "x"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
}

package twilio

import (
	"context"
	"os"
	"testing"
)

func clearTwilioEnv() {
	os.Unsetenv("TWILIO_ACCOUNT_SID")
	os.Unsetenv("TWILIO_AUTH_TOKEN")
	os.Unsetenv("TWILIO_FROM_NUMBER")
}

func TestNewClientMissingCredentials(t *testing.T) {
	clearTwilioEnv()

	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when credentials are missing")
	}
}

func TestNewClientMissingFromNumber(t *testing.T) {
	clearTwilioEnv()

	_, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"))
	if err == nil {
		t.Fatal("expected error when from number is missing")
	}
}

func TestNewClientFromOptions(t *testing.T) {
	clearTwilioEnv()

	client, err := NewClient(
		WithAccountSID("AC123"),
		WithAuthToken("token"),
		WithFromWhats("whatsapp:+15551234567"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.fromWhats != "whatsapp:+15551234567" {
		t.Errorf("expected fromWhats %q, got %q", "whatsapp:+15551234567", client.fromWhats)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	clearTwilioEnv()
	os.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	os.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	os.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+15557654321")
	defer clearTwilioEnv()

	client, err := NewClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.fromWhats != "whatsapp:+15557654321" {
		t.Errorf("expected fromWhats from env, got %q", client.fromWhats)
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "12345", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}

	if mock.SentMessages[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", mock.SentMessages[0].Body)
	}
}

func TestMockClient_SendMediaURL(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMediaURL(ctx, "12345", "an image", "https://example.org/media/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.MediaMessages) != 1 {
		t.Fatalf("expected 1 media message, got %d", len(mock.MediaMessages))
	}

	if mock.MediaMessages[0].MediaURL != "https://example.org/media/abc" {
		t.Errorf("expected media URL to be recorded, got %q", mock.MediaMessages[0].MediaURL)
	}
}

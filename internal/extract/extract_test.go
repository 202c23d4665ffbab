package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/postforge/postforge/internal/models"
)

func TestExtractText_PlainTextPassthrough(t *testing.T) {
	e := NewExtractor()
	att := models.AttachmentRef{MimeType: "text/plain", FileName: "notes.txt", Data: []byte("post draft")}
	got, err := e.ExtractText(context.Background(), att)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "post draft" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestExtractText_TextTruncated(t *testing.T) {
	e := NewExtractor()
	long := strings.Repeat("a", MaxExtractedChars+500)
	got, err := e.ExtractText(context.Background(), models.AttachmentRef{MimeType: "text/plain", Data: []byte(long)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != MaxExtractedChars {
		t.Errorf("expected %d chars, got %d", MaxExtractedChars, len(got))
	}
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	e := NewExtractor(WithToken("tok"))
	_, err := e.ExtractText(context.Background(), models.AttachmentRef{MimeType: "application/zip", FileName: "a.zip"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractText_ImageWithoutTokenUnsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractText(context.Background(), models.AttachmentRef{MimeType: "image/png", FileName: "a.png"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat without OCR token, got %v", err)
	}
}

func TestExtractText_ImageOCR(t *testing.T) {
	payload := []byte("fake-png-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("x-folder-id"); got != "folder1" {
			t.Errorf("unexpected folder header %q", got)
		}
		var req ocrRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.MimeType != "PNG" || req.Model != "page" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Content != base64.StdEncoding.EncodeToString(payload) {
			t.Error("content is not the base64 attachment bytes")
		}
		var resp ocrResponse
		resp.Result.TextAnnotation.FullText = "  recognized text \n"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewExtractor(WithEndpoint(srv.URL), WithToken("secret"), WithFolderID("folder1"))
	got, err := e.ExtractText(context.Background(), models.AttachmentRef{
		MimeType: "image/png",
		FileName: "photo.png",
		Data:     payload,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "recognized text" {
		t.Errorf("expected trimmed OCR text, got %q", got)
	}
}

func TestExtractText_OCRServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewExtractor(WithEndpoint(srv.URL), WithToken("secret"))
	_, err := e.ExtractText(context.Background(), models.AttachmentRef{MimeType: "image/jpeg", FileName: "a.jpg"})
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("a", MaxExtractedChars-1) + "日本語"
	got := truncate(s)
	if len(got) > MaxExtractedChars {
		t.Fatalf("truncated text too long: %d", len(got))
	}
	for i := 0; i < len(got); {
		r := got[i]
		if !isRuneStart(r) {
			t.Fatalf("byte %d is a continuation byte at a rune start position", i)
		}
		i++
		for i < len(got) && !isRuneStart(got[i]) {
			i++
		}
	}
}

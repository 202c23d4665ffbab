// Package extract pulls text out of message attachments so it can be fed
// into the editing and drafting flows. Images go through a cloud OCR
// endpoint; plain text files are passed through directly.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/postforge/postforge/internal/models"
)

// ErrUnsupportedFormat reports an attachment type no extractor handles.
// Callers turn it into a user-facing hint naming the supported formats.
var ErrUnsupportedFormat = errors.New("unsupported attachment format")

// Defaults for the OCR client.
const (
	DefaultOCREndpoint = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
	DefaultOCRTimeout  = 30 * time.Second

	// MaxExtractedChars bounds extracted text so one document cannot
	// flood a generation prompt.
	MaxExtractedChars = 4000
)

// Opts holds configuration for the attachment extractor.
type Opts struct {
	Endpoint string
	Token    string
	FolderID string
	Timeout  time.Duration
	Client   *http.Client
}

// Option configures the attachment extractor.
type Option func(*Opts)

// WithEndpoint overrides the OCR endpoint URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithToken sets the OCR API bearer token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithFolderID sets the cloud folder passed with each OCR request.
func WithFolderID(id string) Option {
	return func(o *Opts) { o.FolderID = id }
}

// WithTimeout sets the OCR request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient overrides the HTTP client used for OCR requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// Extractor turns attachments into text.
type Extractor struct {
	endpoint string
	token    string
	folderID string
	client   *http.Client
}

// NewExtractor creates an attachment extractor. Without a token, image OCR
// is disabled and image attachments report ErrUnsupportedFormat.
func NewExtractor(opts ...Option) *Extractor {
	cfg := Opts{
		Endpoint: DefaultOCREndpoint,
		Timeout:  DefaultOCRTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	slog.Debug("NewExtractor invoked", "token_set", cfg.Token != "", "endpoint", cfg.Endpoint)
	return &Extractor{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		folderID: cfg.FolderID,
		client:   client,
	}
}

// imageMimeNames maps attachment extensions to the OCR API's MIME names.
var imageMimeNames = map[string]string{
	".jpg":  "JPEG",
	".jpeg": "JPEG",
	".png":  "PNG",
	".webp": "WEBP",
}

// ExtractText extracts text from the attachment. Text files pass through
// truncated; images are sent to OCR; everything else reports
// ErrUnsupportedFormat.
func (e *Extractor) ExtractText(ctx context.Context, att models.AttachmentRef) (string, error) {
	ext := strings.ToLower(filepath.Ext(att.FileName))
	mime := strings.ToLower(att.MimeType)
	slog.Debug("ExtractText invoked", "mime", mime, "ext", ext, "size", len(att.Data))

	switch {
	case strings.HasPrefix(mime, "text/") || ext == ".txt":
		return truncate(string(att.Data)), nil
	case strings.HasPrefix(mime, "image/") || imageMimeNames[ext] != "":
		if e.token == "" {
			return "", fmt.Errorf("image OCR not configured: %w", ErrUnsupportedFormat)
		}
		return e.recognizeImage(ctx, att, ext)
	default:
		return "", ErrUnsupportedFormat
	}
}

// ocrRequest is the recognizeText request body.
type ocrRequest struct {
	MimeType      string   `json:"mimeType"`
	LanguageCodes []string `json:"languageCodes"`
	Model         string   `json:"model"`
	Content       string   `json:"content"`
}

// ocrResponse is the subset of the recognizeText response we read.
type ocrResponse struct {
	Result struct {
		TextAnnotation struct {
			FullText string `json:"fullText"`
		} `json:"textAnnotation"`
	} `json:"result"`
}

func (e *Extractor) recognizeImage(ctx context.Context, att models.AttachmentRef, ext string) (string, error) {
	mimeName, ok := imageMimeNames[ext]
	if !ok {
		mimeName = "JPEG"
	}
	body, err := json.Marshal(ocrRequest{
		MimeType:      mimeName,
		LanguageCodes: []string{"*"},
		Model:         "page",
		Content:       base64.StdEncoding.EncodeToString(att.Data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	if e.folderID != "" {
		req.Header.Set("x-folder-id", e.folderID)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		slog.Error("OCR request failed", "error", err)
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		slog.Error("OCR returned non-200 status", "status", resp.StatusCode, "body", string(snippet))
		return "", fmt.Errorf("OCR returned status %d", resp.StatusCode)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	return truncate(strings.TrimSpace(parsed.Result.TextAnnotation.FullText)), nil
}

// truncate bounds text to MaxExtractedChars without splitting a UTF-8 rune.
func truncate(s string) string {
	if len(s) <= MaxExtractedChars {
		return s
	}
	cut := MaxExtractedChars
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

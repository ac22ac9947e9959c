package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Client abstracts the generative provider so it can be swapped or mocked.
type Client interface {
	// GenerateStructured returns the raw JSON produced for p.Schema.
	GenerateStructured(ctx context.Context, p Prompt) (json.RawMessage, error)
	GenerateText(ctx context.Context, p Prompt) (string, error)
	GenerateImage(ctx context.Context, description string, aspect AspectRatio) (Image, error)
}

// LLMSettings configures a concrete provider.
type LLMSettings struct {
	Provider   string
	Model      string
	ImageModel string
	APIKey     string
	BaseURL    string
	// Timeout bounds each provider call; zero leaves only the caller's deadline.
	Timeout time.Duration
}

type AspectRatio string

const (
	AspectSquare AspectRatio = "1:1"
	AspectTall   AspectRatio = "9:16"
)

// Attachment is binary input sent alongside a prompt.
type Attachment struct {
	MimeType string
	Data     []byte
}

// DataURI re-encodes the attachment for providers that take inline URLs.
func (a Attachment) DataURI() string {
	return "data:" + a.MimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Image is a generated raster.
type Image struct {
	Bytes    []byte
	MimeType string
}

func (i Image) DataURI() string {
	mt := i.MimeType
	if mt == "" {
		mt = "image/png"
	}
	return Attachment{MimeType: mt, Data: i.Bytes}.DataURI()
}

// ParseDataURI decodes a base64 data: URI such as "data:image/png;base64,....".
func ParseDataURI(uri string) (Attachment, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return Attachment{}, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Attachment{}, fmt.Errorf("data URI without payload")
	}
	meta, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return Attachment{}, fmt.Errorf("data URI is not base64 encoded")
	}
	mediaType := "application/octet-stream"
	if meta != "" {
		// Parameters such as name= or charset= are not part of the type.
		mt, _, err := mime.ParseMediaType(meta)
		if err != nil {
			return Attachment{}, fmt.Errorf("data URI media type: %w", err)
		}
		mediaType = mt
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Attachment{}, fmt.Errorf("decode data URI: %w", err)
	}
	return Attachment{MimeType: mediaType, Data: raw}, nil
}

// Structured calls the client and decodes the validated response into T.
func Structured[T any](ctx context.Context, c Client, p Prompt) (T, error) {
	var out T
	if p.Schema == nil {
		return out, fmt.Errorf("%w: prompt has no schema", ErrSchemaMismatch)
	}
	raw, err := c.GenerateStructured(ctx, p)
	if err != nil {
		return out, err
	}
	if err := p.Schema.Validate(raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, p.Schema.Name, err)
	}
	return out, nil
}

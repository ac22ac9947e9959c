package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatCompleter for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

// mockImageService implements imageGenerator for testing.
type mockImageService struct {
	resp   *openai.ImagesResponse
	err    error
	calls  int
	params openai.ImageGenerateParams
}

func (m *mockImageService) Generate(_ context.Context, params openai.ImageGenerateParams, _ ...option.RequestOption) (*openai.ImagesResponse, error) {
	m.calls++
	m.params = params
	return m.resp, m.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestOpenAI(chat *mockChatService, images *mockImageService, imageModel string) *OpenAILLM {
	return newOpenAILLM(chat, images, &LLMSettings{Model: "gpt-4o-mini", ImageModel: imageModel})
}

func TestOpenAI_GenerateStructured(t *testing.T) {
	chat := &mockChatService{resp: completion(postJSON)}
	llm := newTestOpenAI(chat, &mockImageService{}, "")

	raw, err := llm.GenerateStructured(context.Background(), BuildPostPrompt(testPersona(), postReq))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(string(raw), "Joelho Sob Controle") {
		t.Errorf("unexpected payload %s", raw)
	}
	rf := chat.params.ResponseFormat.OfJSONSchema
	if rf == nil {
		t.Fatal("expected json_schema response format")
	}
	if rf.JSONSchema.Name != "post_content" {
		t.Errorf("unexpected schema name %q", rf.JSONSchema.Name)
	}
	if chat.params.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model %q", chat.params.Model)
	}
	if len(chat.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(chat.params.Messages))
	}
}

func TestOpenAI_AttachmentsBecomeContentParts(t *testing.T) {
	chat := &mockChatService{resp: completion(postJSON)}
	llm := newTestOpenAI(chat, &mockImageService{}, "")

	req := postReq
	req.UploadedImage = Attachment{MimeType: "image/png", Data: []byte("png")}.DataURI()
	if _, err := llm.GenerateStructured(context.Background(), BuildPostPrompt(testPersona(), req)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	user := chat.params.Messages[len(chat.params.Messages)-1].OfUser
	if user == nil {
		t.Fatal("expected a user message last")
	}
	if n := len(user.Content.OfArrayOfContentParts); n != 2 {
		t.Errorf("expected text and image parts, got %d", n)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	cases := []struct {
		name string
		chat *mockChatService
		want error
	}{
		{"transport", &mockChatService{err: errors.New("connection reset")}, ErrProviderError},
		{"no choices", &mockChatService{resp: &openai.ChatCompletion{}}, ErrEmptyResponse},
		{"blank content", &mockChatService{resp: completion("  ")}, ErrEmptyResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := newTestOpenAI(tc.chat, &mockImageService{}, "")
			if _, err := llm.GenerateText(context.Background(), BuildRefinePrompt("a", "b")); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOpenAI_StructuredThroughBoundary(t *testing.T) {
	llm := newTestOpenAI(&mockChatService{resp: completion(`{"headline":"x"}`)}, &mockImageService{}, "")
	if _, err := Structured[PostContent](context.Background(), llm, BuildPostPrompt(testPersona(), postReq)); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestOpenAI_GenerateImage(t *testing.T) {
	payload := []byte("\x89PNG fake")
	images := &mockImageService{resp: &openai.ImagesResponse{
		Data: []openai.Image{{B64JSON: base64.StdEncoding.EncodeToString(payload)}},
	}}
	llm := newTestOpenAI(&mockChatService{}, images, "dall-e-3")

	img, err := llm.GenerateImage(context.Background(), "clinical knee illustration", AspectTall)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(img.Bytes) != string(payload) || img.MimeType != "image/png" {
		t.Errorf("unexpected image %+v", img)
	}
	if images.params.Size != openai.ImageGenerateParamsSize1024x1792 {
		t.Errorf("expected tall size, got %q", images.params.Size)
	}
	if images.params.ResponseFormat != openai.ImageGenerateParamsResponseFormatB64JSON {
		t.Errorf("expected b64_json response format, got %q", images.params.ResponseFormat)
	}
	if !strings.Contains(images.params.Prompt, "clinical knee illustration") {
		t.Errorf("prompt lost the description: %q", images.params.Prompt)
	}
}

func TestOpenAI_GenerateImageErrors(t *testing.T) {
	t.Run("empty prompt", func(t *testing.T) {
		images := &mockImageService{}
		llm := newTestOpenAI(&mockChatService{}, images, "")
		if _, err := llm.GenerateImage(context.Background(), " ", AspectSquare); !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("expected ErrEmptyPrompt, got %v", err)
		}
		if images.calls != 0 {
			t.Error("provider must not be called for a blank prompt")
		}
	})
	t.Run("no payload", func(t *testing.T) {
		images := &mockImageService{resp: &openai.ImagesResponse{}}
		llm := newTestOpenAI(&mockChatService{}, images, "")
		if _, err := llm.GenerateImage(context.Background(), "knee", AspectSquare); !errors.Is(err, ErrNoImageReturned) {
			t.Errorf("expected ErrNoImageReturned, got %v", err)
		}
	})
	t.Run("provider", func(t *testing.T) {
		images := &mockImageService{err: errors.New("quota exceeded")}
		llm := newTestOpenAI(&mockChatService{}, images, "")
		_, err := llm.GenerateImage(context.Background(), "knee", AspectSquare)
		if !errors.Is(err, ErrProviderError) || !strings.Contains(err.Error(), "quota") {
			t.Errorf("expected wrapped provider error, got %v", err)
		}
	})
}

func TestImageSize(t *testing.T) {
	if got := imageSize("gpt-image-1", AspectTall); got != openai.ImageGenerateParamsSize1024x1536 {
		t.Errorf("unexpected gpt-image tall size %q", got)
	}
	if got := imageSize("dall-e-3", AspectSquare); got != openai.ImageGenerateParamsSize1024x1024 {
		t.Errorf("unexpected square size %q", got)
	}
}

func TestNewOpenAILLMFromConfig(t *testing.T) {
	if _, err := NewOpenAILLMFromConfig(&LLMSettings{Model: "gpt-4o-mini"}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
	llm, err := NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if llm.ImageModel != "dall-e-3" {
		t.Errorf("expected default image model, got %q", llm.ImageModel)
	}
}

func TestMockLLM_OutputsPassValidation(t *testing.T) {
	prompts := []Prompt{
		BuildPostPrompt(testPersona(), postReq),
		BuildArticlePrompt(ArticleRequest{Topic: "x"}),
		BuildInfographicPrompt(infographicReq),
		BuildConversionPrompt(testPersona(), ConversionRequest{Format: ConversionReels}),
		BuildConversionPrompt(testPersona(), ConversionRequest{Format: ConversionDeepArticle}),
	}
	for _, p := range prompts {
		raw, err := MockLLM{}.GenerateStructured(context.Background(), p)
		if err != nil {
			t.Fatalf("%s: %v", p.Schema.Name, err)
		}
		if err := p.Schema.Validate(raw); err != nil {
			t.Errorf("%s: %v", p.Schema.Name, err)
		}
	}
	if _, err := (MockLLM{}).GenerateImage(context.Background(), "", AspectSquare); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}

package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type imageGenerator interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// OpenAILLM implements Client with the official openai-go SDK: chat completions
// for text and structured output, the Images API for illustrations.
type OpenAILLM struct {
	Model      string
	ImageModel string
	Timeout    time.Duration

	chat   chatCompleter
	images imageGenerator
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key or OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newOpenAILLM(&client.Chat.Completions, &client.Images, cfg), nil
}

func newOpenAILLM(chat chatCompleter, images imageGenerator, cfg *LLMSettings) *OpenAILLM {
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = string(openai.ImageModelDallE3)
	}
	return &OpenAILLM{
		Model:      cfg.Model,
		ImageModel: imageModel,
		Timeout:    cfg.Timeout,
		chat:       chat,
		images:     images,
	}
}

func (o *OpenAILLM) GenerateStructured(ctx context.Context, p Prompt) (json.RawMessage, error) {
	if p.Schema == nil {
		return nil, fmt.Errorf("%w: prompt has no schema", ErrSchemaMismatch)
	}
	params := o.chatParams(p)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   p.Schema.Name,
				Schema: p.Schema.Definition,
				Strict: openai.Bool(true),
			},
		},
	}
	text, err := o.complete(ctx, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(text), nil
}

func (o *OpenAILLM) GenerateText(ctx context.Context, p Prompt) (string, error) {
	return o.complete(ctx, o.chatParams(p))
}

func (o *OpenAILLM) GenerateImage(ctx context.Context, description string, aspect AspectRatio) (Image, error) {
	if strings.TrimSpace(description) == "" {
		return Image{}, ErrEmptyPrompt
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	params := openai.ImageGenerateParams{
		Prompt: BuildImagePrompt(description),
		Model:  openai.ImageModel(o.ImageModel),
		N:      openai.Int(1),
		Size:   imageSize(o.ImageModel, aspect),
	}
	// gpt-image models always answer in base64 and reject the parameter.
	if !strings.HasPrefix(o.ImageModel, "gpt-image") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	resp, err := o.images.Generate(ctx, params)
	if err != nil {
		return Image{}, providerError(err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, ErrNoImageReturned
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil || len(raw) == 0 {
		return Image{}, fmt.Errorf("%w: undecodable payload", ErrNoImageReturned)
	}
	return Image{Bytes: raw, MimeType: "image/png"}, nil
}

func (o *OpenAILLM) chatParams(p Prompt) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	if len(p.Attachments) == 0 {
		msgs = append(msgs, openai.UserMessage(p.User))
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(p.User)}
		for _, a := range p.Attachments {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: a.DataURI(),
			}))
		}
		msgs = append(msgs, openai.UserMessage(parts))
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	}
}

func (o *OpenAILLM) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	resp, err := o.chat.New(ctx, params)
	if err != nil {
		return "", providerError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (o *OpenAILLM) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func imageSize(model string, aspect AspectRatio) openai.ImageGenerateParamsSize {
	if aspect != AspectTall {
		return openai.ImageGenerateParamsSize1024x1024
	}
	if strings.HasPrefix(model, "gpt-image") {
		return openai.ImageGenerateParamsSize1024x1536
	}
	return openai.ImageGenerateParamsSize1024x1792
}

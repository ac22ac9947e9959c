package generator

import (
	"context"
	"errors"
	"strings"
)

// Agent runs single stages: it builds the prompt, calls the client and
// post-processes the decoded output. It holds no tool state.
type Agent struct {
	llm     Client
	persona Persona
}

func NewAgent(llm Client, persona Persona) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm, persona: persona}, nil
}

func (a *Agent) prompt(req Request) (Prompt, error) {
	return BuildPrompt(a.persona, req)
}

// PostText runs the post text stage.
func (a *Agent) PostText(ctx context.Context, req PostRequest) (PostContent, error) {
	p, err := a.prompt(req)
	if err != nil {
		return PostContent{}, err
	}
	content, err := Structured[PostContent](ctx, a.llm, p)
	if err != nil {
		return PostContent{}, err
	}
	normalizePost(&content, req.UploadedImage != "")
	return content, nil
}

// Image renders one illustration from a visual description.
func (a *Agent) Image(ctx context.Context, description string, aspect AspectRatio) (Image, error) {
	if strings.TrimSpace(description) == "" {
		return Image{}, ErrEmptyPrompt
	}
	return a.llm.GenerateImage(ctx, description, aspect)
}

func (a *Agent) Article(ctx context.Context, req ArticleRequest) (Article, error) {
	p, err := a.prompt(req)
	if err != nil {
		return Article{}, err
	}
	article, err := Structured[Article](ctx, a.llm, p)
	if err != nil {
		return Article{}, err
	}
	normalizeArticle(&article)
	return article, nil
}

func (a *Agent) Infographic(ctx context.Context, req InfographicRequest) (Infographic, error) {
	p, err := a.prompt(req)
	if err != nil {
		return Infographic{}, err
	}
	return Structured[Infographic](ctx, a.llm, p)
}

func (a *Agent) Conversion(ctx context.Context, req ConversionRequest) (ConversionResult, error) {
	p, err := a.prompt(req)
	if err != nil {
		return ConversionResult{}, err
	}
	res, err := Structured[ConversionResult](ctx, a.llm, p)
	if err != nil {
		return ConversionResult{}, err
	}
	normalizeConversion(&res, req.Format)
	return res, nil
}

// AppointmentMessage falls back to a signed default when the model returns nothing.
func (a *Agent) AppointmentMessage(ctx context.Context, req AppointmentMessageRequest) (string, error) {
	p, err := a.prompt(req)
	if err != nil {
		return "", err
	}
	text, err := a.llm.GenerateText(ctx, p)
	if errors.Is(err, ErrEmptyResponse) || (err == nil && strings.TrimSpace(text) == "") {
		return DefaultAppointmentMessage(a.persona, req.Appointment), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// RefineCaption keeps the current caption when the model returns nothing.
func (a *Agent) RefineCaption(ctx context.Context, caption, instruction string) (string, error) {
	text, err := a.llm.GenerateText(ctx, BuildRefinePrompt(caption, instruction))
	if errors.Is(err, ErrEmptyResponse) || (err == nil && strings.TrimSpace(text) == "") {
		return caption, nil
	}
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(text), `"`), nil
}

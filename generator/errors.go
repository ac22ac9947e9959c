package generator

import (
	"errors"
	"fmt"
)

// Failures reported by the Generation Client boundary.
var (
	ErrSchemaMismatch  = errors.New("response does not match schema")
	ErrEmptyResponse   = errors.New("provider returned no text")
	ErrEmptyPrompt     = errors.New("image prompt is empty")
	ErrNoImageReturned = errors.New("provider returned no image")
	ErrProviderError   = errors.New("provider error")
	ErrInvalidUpload   = errors.New("uploaded image is not a base64 data URI")
)

// Orchestrator refusals. They never change tool state.
var (
	ErrNothingToRegenerate = errors.New("no result to regenerate")
	ErrCustomImage         = errors.New("uploaded image cannot be regenerated")
	ErrNoResult            = errors.New("no result to edit")
	ErrUnknownTool         = errors.New("unknown tool")
	ErrUnknownStage        = errors.New("unknown stage")
)

func providerError(err error) error {
	return fmt.Errorf("%w: %w", ErrProviderError, err)
}

type ErrorKind string

const (
	KindGenerationFailure ErrorKind = "generation_failure"
	// KindPartialFailure means an earlier stage succeeded and its fields stay visible.
	KindPartialFailure ErrorKind = "partial_failure"
)

// ToolError is the tool-scoped error surfaced in a Snapshot.
type ToolError struct {
	Tool    Tool      `json:"tool"`
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	cause   error
}

func (e *ToolError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s/%s: %s", e.Tool, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Tool, e.Stage, e.Message, e.cause)
}

func (e *ToolError) Unwrap() error { return e.cause }

// failureMessages are the banner texts per tool and stage.
var failureMessages = map[Tool]map[Stage]string{
	ToolPost: {
		StageText:    "Ocorreu um erro ao gerar o post.",
		StageImage:   "Falha ao gerar a imagem do post.",
		StageCaption: "Falha ao refinar a legenda.",
	},
	ToolArticle:     {StageText: "Ocorreu um erro ao gerar o artigo."},
	ToolConversion:  {StageText: "Erro ao gerar estratégia."},
	ToolAppointment: {StageText: "Erro ao gerar a mensagem para o paciente."},
	ToolInfographic: {
		StageText:         "Ocorreu um erro ao gerar o infográfico.",
		StageHeroImage:    "Falha ao gerar a imagem de capa do infográfico.",
		StageAnatomyImage: "Falha ao gerar a imagem anatômica do infográfico.",
	},
}

func newToolError(tool Tool, stage Stage, kind ErrorKind, cause error) *ToolError {
	msg := failureMessages[tool][stage]
	if msg == "" {
		msg = "Falha na geração de conteúdo."
	}
	return &ToolError{Tool: tool, Stage: stage, Kind: kind, Message: msg, cause: cause}
}

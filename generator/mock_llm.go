package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// onePixelPNG is a transparent 1x1 PNG.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// MockLLM is a placeholder provider for local runs; it never calls a model.
// Structured output is canned per schema and always passes validation.
type MockLLM struct{}

func (MockLLM) GenerateStructured(_ context.Context, p Prompt) (json.RawMessage, error) {
	if p.Schema == nil {
		return nil, fmt.Errorf("%w: prompt has no schema", ErrSchemaMismatch)
	}
	var v any
	switch p.Schema.Name {
	case "post_content":
		desc := "clinical knee illustration, navy blue and gold"
		if len(p.Attachments) > 0 {
			desc = UseUploadedImage
		}
		v = PostContent{
			Headline: "Joelho Sob Controle",
			Caption:  "Dor no joelho ao subir escadas? 🦵\n\nEntenda a causa e quando procurar avaliação.\n\nAgende sua consulta.",
			Hashtags: []string{
				"#joelho", "#ortopedia", "#dornojoelho", "#condromalacia", "#medicinaesportiva",
				"#fisioterapia", "#saude", "#cirurgiadejoelho", "#lca", "#menisco",
				"#corrida", "#reabilitacao", "#qualidadedevida", "#esporte", "#seujoelho",
			},
			ImagePromptDescription: desc,
		}
	case "seo_article":
		v = Article{
			Title:           "Dor no Joelho: Causas Comuns e Como Tratar",
			Slug:            "dor-no-joelho-causas-tratamento",
			MetaDescription: "Entenda as causas mais comuns de dor no joelho e os tratamentos disponíveis.",
			ContentHTML:     "<h2>Introdução</h2><p>A dor no joelho afeta pessoas de todas as idades.</p>",
			WordCount:       12,
			SEOSuggestions:  []string{"Linkar internamente para a página de Cirurgia de Joelho"},
			KeywordsUsed:    []string{"dor no joelho"},
		}
	case "clinical_infographic":
		v = mockInfographic()
	case "conversion_reels":
		v = map[string]any{
			"format": ConversionReels,
			"title":  "Cirurgia não é o fim",
			"script": []ScriptLine{
				{Time: "0-5s", Visual: "Médico em consultório", Audio: "Medo de operar?", TextOverlay: "Medo de operar?"},
				{Time: "5-20s", Visual: "Modelo anatômico", Audio: "Veja como funciona.", TextOverlay: "Cirurgia minimamente invasiva"},
			},
			"caption": "Seu medo é válido. Vamos conversar.",
			"CTA":     "Agende sua avaliação",
		}
	case "conversion_article":
		v = map[string]any{
			"format":         ConversionDeepArticle,
			"title":          "O que ninguém te conta sobre a cirurgia de joelho",
			"articleContent": "<h2>O medo é real</h2><p>Vamos falar sobre ele.</p>",
			"CTA":            "Agende sua consulta",
		}
	default:
		return nil, fmt.Errorf("%w: mock has no canned output for %q", ErrSchemaMismatch, p.Schema.Name)
	}
	return json.Marshal(v)
}

func (MockLLM) GenerateText(_ context.Context, p Prompt) (string, error) {
	if strings.Contains(p.User, "Legenda Atual") {
		return "Legenda refinada: dor no joelho tem tratamento. ✅", nil
	}
	return "Olá! Aqui é do consultório. Sua consulta está confirmada. 📅✅", nil
}

func (MockLLM) GenerateImage(_ context.Context, description string, _ AspectRatio) (Image, error) {
	if strings.TrimSpace(description) == "" {
		return Image{}, ErrEmptyPrompt
	}
	raw, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	return Image{Bytes: raw, MimeType: "image/png"}, nil
}

func mockInfographic() Infographic {
	var g Infographic
	g.Topic = "Lesão do LCA"
	g.HeroTitle = "Entendendo a Lesão do LCA"
	g.HeroSubtitle = "Da lesão ao retorno ao esporte"
	g.HeroImagePrompt = "artistic knee anatomy, navy and gold"
	g.Anatomy.Intro = "O ligamento cruzado anterior estabiliza o joelho."
	g.Anatomy.ImagePrompt = "clean knee bone and ligament illustration"
	g.Anatomy.Points = []Hotspot{
		{Label: "LCA", Text: "Ligamento cruzado anterior", X: 48, Y: 42},
		{Label: "Menisco", Text: "Amortecedor da articulação", X: 35, Y: 60},
	}
	g.Mechanism.Title = "Como acontece"
	g.Mechanism.Intro = "Movimentos de torção com o pé fixo."
	g.Mechanism.Steps = []IconCard{{Title: "Torção", Description: "Giro do corpo com o pé apoiado", IconName: "sync"}}
	g.Symptoms.Intro = "Sinais mais comuns."
	g.Symptoms.Items = []IconCard{{Title: "Instabilidade", Description: "Sensação de falseio", IconName: "warning"}}
	g.Treatment.Intro = "Há dois caminhos."
	g.Treatment.Options = []TreatmentOption{
		{Type: TreatmentConservative, Title: "Fisioterapia", Description: "Fortalecimento", Pros: []string{"Sem cirurgia"}, Cons: []string{"Instabilidade pode persistir"}, Indication: "Baixa demanda"},
		{Type: TreatmentSurgical, Title: "Reconstrução", Description: "Enxerto", Pros: []string{"Estabilidade"}, Cons: []string{"Reabilitação longa"}, Indication: "Atletas"},
	}
	g.Rehab.Intro = "Recuperação em fases."
	g.Rehab.Phases = []RehabPhase{{Phase: "Fase 1", Title: "Proteção", Items: []string{"Controle da dor"}}}
	g.FooterText = "Conteúdo educativo. Não substitui a consulta médica."
	return g
}

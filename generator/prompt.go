package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the provider. A nil Schema asks for plain text.
type Prompt struct {
	System      string
	User        string
	Attachments []Attachment
	Schema      *Schema
}

// Persona is the clinic identity every prompt speaks for.
type Persona struct {
	DoctorName string
	Specialty  string
	Brand      string
	Clinic     string
	Address    string
	Site       string
}

// BuildPrompt dispatches a submitted request to its tool's builder. A post
// whose upload does not decode is rejected with ErrInvalidUpload.
func BuildPrompt(p Persona, req Request) (Prompt, error) {
	switch r := req.(type) {
	case PostRequest:
		if r.UploadedImage != "" {
			if _, err := ParseDataURI(r.UploadedImage); err != nil {
				return Prompt{}, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
			}
		}
		return BuildPostPrompt(p, r), nil
	case ArticleRequest:
		return BuildArticlePrompt(r), nil
	case InfographicRequest:
		return BuildInfographicPrompt(r), nil
	case ConversionRequest:
		return BuildConversionPrompt(p, r), nil
	case AppointmentMessageRequest:
		return BuildAppointmentPrompt(p, r), nil
	default:
		return Prompt{}, fmt.Errorf("%w: request type %T", ErrUnknownTool, req)
	}
}

// BuildPostPrompt asks for caption text. With an uploaded image the model
// describes that image and the image-prompt field is pinned to UseUploadedImage.
// The upload is expected to be validated already; BuildPrompt does that.
func BuildPostPrompt(p Persona, req PostRequest) Prompt {
	var sb strings.Builder
	var attachments []Attachment
	uploaded := req.UploadedImage != ""
	if uploaded {
		if att, err := ParseDataURI(req.UploadedImage); err == nil {
			attachments = append(attachments, att)
		}
		sb.WriteString(fmt.Sprintf("Analise esta imagem médica/clínica. Você é o %s, cirurgião de joelho renomado.\n", p.DoctorName))
		sb.WriteString(fmt.Sprintf("Crie uma legenda para o Instagram baseada EXATAMENTE no que está na imagem e no tópico %q.\n\n", req.Topic))
		sb.WriteString(fmt.Sprintf("Categoria: %s\n", req.Category))
		sb.WriteString(fmt.Sprintf("Tom de voz: %s\n", req.Tone))
		sb.WriteString(fmt.Sprintf("Formato: %s\n\n", req.Format))
		sb.WriteString("A legenda deve explicar a imagem de forma educativa, profissional e conectar com a patologia.\n")
		sb.WriteString("Se for um Raio-X/Ressonância, explique o que estamos vendo de forma simples.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Você é o %s, especialista em %s. Crie um post para o Instagram.\n\n", p.DoctorName, p.Specialty))
		sb.WriteString(fmt.Sprintf("Categoria: %s\n", req.Category))
		sb.WriteString(fmt.Sprintf("Tópico: %s\n", req.Topic))
		sb.WriteString(fmt.Sprintf("Tom de voz: %s\n", req.Tone))
		sb.WriteString(fmt.Sprintf("Formato: %s\n", req.Format))
		sb.WriteString(fmt.Sprintf("Instruções: %s\n\n", orNone(req.CustomInstructions)))
		sb.WriteString(fmt.Sprintf("Estilo %q:\n", p.Brand))
		sb.WriteString("- Autoridade técnica, mas linguagem acessível.\n")
		sb.WriteString("- Foco em qualidade de vida e retorno ao esporte.\n")
		if req.Format == FormatStory {
			sb.WriteString("- STORY: texto curto, direto, enquetes sugeridas.\n")
		} else {
			sb.WriteString("- FEED: legenda estruturada (Gancho -> Conteúdo -> CTA).\n")
		}
	}

	sb.WriteString("\nGere um objeto JSON com:\n")
	sb.WriteString("1. 'headline': Título curto e impactante (máx 6 palavras).\n")
	sb.WriteString("2. 'caption': A legenda do post.\n")
	sb.WriteString("3. 'hashtags': 15 hashtags focadas em ortopedia.\n")
	if uploaded {
		sb.WriteString(fmt.Sprintf("4. 'imagePromptDescription': %q\n", UseUploadedImage))
	} else {
		sb.WriteString("4. 'imagePromptDescription': Descrição visual detalhada para gerar imagem (Blue & Gold style, medical high-end).\n")
	}

	return Prompt{
		System:      "Responda apenas com JSON válido no formato solicitado.",
		User:        sb.String(),
		Attachments: attachments,
		Schema:      postSchema(uploaded),
	}
}

func BuildArticlePrompt(req ArticleRequest) Prompt {
	keywords := req.Keywords
	if strings.TrimSpace(keywords) == "" {
		keywords = "Sugira as melhores para este tópico"
	}
	var sb strings.Builder
	sb.WriteString("Você é um redator médico especialista em SEO (Search Engine Optimization) para Ortopedia.\n")
	sb.WriteString("Escreva um artigo completo para o blog de um cirurgião.\n\n")
	sb.WriteString(fmt.Sprintf("Tópico: %s\n", req.Topic))
	sb.WriteString(fmt.Sprintf("Palavras-chave alvo: %s\n", keywords))
	sb.WriteString(fmt.Sprintf("Público-alvo: %s\n", req.Audience))
	sb.WriteString(fmt.Sprintf("Extensão aproximada: %s\n", req.Length))
	sb.WriteString(fmt.Sprintf("Tom de voz: %s\n\n", req.Tone))
	sb.WriteString("Diretrizes de SEO e Estrutura:\n")
	sb.WriteString("1. O conteúdo deve ser original, ético e seguir as normas do CFM (Conselho Federal de Medicina).\n")
	sb.WriteString("2. Use tags HTML para estruturar o texto (<h2>, <h3>, <p>, <ul>, <li>, <strong>). NÃO use tags <html>, <head> ou <body>.\n")
	sb.WriteString("3. Estruture com: Introdução (com a dor do paciente), Causas, Sintomas, Diagnóstico, Tratamentos (Conservador vs Cirúrgico) e Conclusão.\n")
	sb.WriteString("4. Otimize para leitura escaneável (parágrafos curtos, bullet points).\n\n")
	sb.WriteString("Gere um JSON contendo:\n")
	sb.WriteString("- 'title': título H1 otimizado para SEO.\n")
	sb.WriteString("- 'slug': URL amigável sugerida.\n")
	sb.WriteString("- 'metaDescription': descrição para o Google (máx 160 caracteres).\n")
	sb.WriteString("- 'contentHtml': o corpo do artigo em HTML.\n")
	sb.WriteString("- 'seoSuggestions': dicas de SEO para o médico.\n")
	sb.WriteString("- 'keywordsUsed': palavras-chave inseridas no texto.\n")
	sb.WriteString("- 'wordCount': estimativa do número de palavras.\n")

	return Prompt{
		System: "Responda apenas com JSON válido no formato solicitado.",
		User:   sb.String(),
		Schema: articleSchema(),
	}
}

func BuildInfographicPrompt(req InfographicRequest) Prompt {
	var sb strings.Builder
	sb.WriteString("Crie o conteúdo completo para uma LANDING PAGE / INFOGRÁFICO INTERATIVO médico sobre o diagnóstico abaixo.\n")
	sb.WriteString("O conteúdo deve ser rico, educativo e visualmente estruturado.\n\n")
	sb.WriteString(fmt.Sprintf("Diagnóstico: %s\n", req.Diagnosis))
	sb.WriteString(fmt.Sprintf("Perfil do Paciente: %s\n", req.PatientProfile))
	sb.WriteString(fmt.Sprintf("Tom: %s\n", req.Tone))
	sb.WriteString(fmt.Sprintf("Notas: %s\n\n", orNone(req.Notes)))
	sb.WriteString("Estrutura exigida (JSON):\n")
	sb.WriteString("1. Hero: título impactante e subtítulo explicativo. Prompt para imagem de capa (anatomia artística).\n")
	sb.WriteString("2. Anatomy: explicação breve da anatomia afetada. Prompt para imagem \"clean\" de osso/músculo. 3 a 4 pontos anatômicos com coordenadas X/Y (0-100%) para hotspots.\n")
	sb.WriteString("3. Mechanism: 3 passos de como a lesão ocorre. Ícones sugeridos (nomes do Google Material Symbols).\n")
	sb.WriteString("4. Symptoms: 4 principais sintomas (cards). Ícones sugeridos.\n")
	sb.WriteString("5. Treatment: comparação entre tratamento conservador e cirúrgico ('conservador' | 'cirurgico'), com prós e contras de cada.\n")
	sb.WriteString("6. Rehab: 4 fases da recuperação com metas claras.\n\n")
	sb.WriteString("Idioma: Português do Brasil.\n")

	return Prompt{
		System: "Responda apenas com JSON válido no formato solicitado.",
		User:   sb.String(),
		Schema: infographicSchema(),
	}
}

func BuildConversionPrompt(p Persona, req ConversionRequest) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Atue como o %s (%s e Especialista em Marketing Médico).\n", p.DoctorName, p.Specialty))
	sb.WriteString(fmt.Sprintf("Crie conteúdo para \"QUEBRAR OBJEÇÕES\" de pacientes com %s.\n\n", req.Pathology))
	sb.WriteString(fmt.Sprintf("Patologia: %s\n", req.Pathology))
	sb.WriteString(fmt.Sprintf("Objeção do Paciente: %s\n", req.Objection))
	if req.Format == ConversionDeepArticle {
		sb.WriteString("Formato desejado: Artigo de Blog Profundo (Fundo de Funil)\n\n")
	} else {
		sb.WriteString("Formato desejado: Roteiro de Reels (Vídeo Curto)\n\n")
	}
	sb.WriteString("ESTRATÉGIA PSICOLÓGICA:\n")
	sb.WriteString("1. Validar a dor (Empatia).\n")
	sb.WriteString("2. Reenquadrar (Autoridade).\n")
	sb.WriteString("3. Prova/Lógica (Ciência/Tecnologia).\n")
	sb.WriteString("4. Chamada para Ação (CTA).\n\n")
	sb.WriteString("Gere um JSON com:\n")
	if req.Format == ConversionDeepArticle {
		sb.WriteString("- 'title': título altamente persuasivo.\n")
		sb.WriteString("- 'articleContent': texto completo em HTML (h2, p, ul, strong). Deve ser denso e tratar de medos profundos.\n")
		sb.WriteString("- 'CTA': chamada para agendamento.\n")
	} else {
		sb.WriteString("- 'title': título do vídeo.\n")
		sb.WriteString("- 'script': lista de cenas { time: '0-5s', visual, audio, textOverlay }. O roteiro deve ser dinâmico.\n")
		sb.WriteString("- 'caption': legenda curta para o Instagram.\n")
		sb.WriteString("- 'CTA': frase final de impacto.\n")
	}

	return Prompt{
		System: "Responda apenas com JSON válido no formato solicitado.",
		User:   sb.String(),
		Schema: conversionSchema(req.Format),
	}
}

// BuildAppointmentPrompt asks for a plain WhatsApp message from the clinic secretary.
func BuildAppointmentPrompt(p Persona, req AppointmentMessageRequest) Prompt {
	a := req.Appointment
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Atue como a Secretária Virtual do %s (%s).\n", p.DoctorName, p.Brand))
	sb.WriteString("Escreva uma mensagem de confirmação/aviso para enviar via WhatsApp ao paciente.\n\n")
	sb.WriteString(fmt.Sprintf("Paciente: %s\n", a.PatientName))
	sb.WriteString(fmt.Sprintf("Tipo de Consulta: %s\n", a.Type.Label()))
	sb.WriteString(fmt.Sprintf("Data: %s às %s\n", a.Date, a.Time))
	sb.WriteString(fmt.Sprintf("Tom de voz: %s\n", req.Tone))
	sb.WriteString(fmt.Sprintf("Nota Extra: %s\n\n", orNone(req.CustomNote)))
	sb.WriteString("INFORMAÇÕES REAIS DO CONSULTÓRIO (use sempre que for confirmar local):\n")
	sb.WriteString(fmt.Sprintf("Local: %s\n", p.Clinic))
	sb.WriteString(fmt.Sprintf("Endereço: %s.\n", p.Address))
	sb.WriteString(fmt.Sprintf("Site: %s\n\n", p.Site))
	sb.WriteString("Diretrizes:\n")
	sb.WriteString("1. Se for 'Primeira Consulta', envie o endereço completo e peça para chegar 15min antes.\n")
	sb.WriteString("2. Se for 'Retorno', seja mais breve.\n")
	sb.WriteString("3. Use emojis moderados (🏥, 📅, ✅).\n")
	sb.WriteString(fmt.Sprintf("4. Finalize com \"Equipe %s\".\n\n", p.DoctorName))
	sb.WriteString("Retorne APENAS o texto da mensagem.\n")

	return Prompt{User: sb.String()}
}

// BuildRefinePrompt rewrites one caption according to a short instruction.
func BuildRefinePrompt(caption, instruction string) Prompt {
	var sb strings.Builder
	sb.WriteString("Refine a seguinte legenda de post médico de acordo com a instrução.\n")
	sb.WriteString("Mantenha a formatação.\n\n")
	sb.WriteString(fmt.Sprintf("Legenda Atual: %q\n\n", caption))
	sb.WriteString(fmt.Sprintf("Instrução de Refinamento: %q (Ex: Mais curto, Mais empático, Adicionar emojis, Traduzir termos técnicos).\n\n", instruction))
	sb.WriteString("Retorne APENAS o novo texto da legenda, sem JSON.\n")
	return Prompt{User: sb.String()}
}

// BuildImagePrompt wraps a visual description in the house illustration style.
// Providers call it; the orchestrator always passes the raw description.
func BuildImagePrompt(description string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Professional Medical illustration: %s.\n", strings.TrimSpace(description)))
	sb.WriteString("Style: Premium, High quality, photorealistic, clinical, orthopedics.\n")
	sb.WriteString("Colors: Navy Blue, Gold/Bronze, White. High contrast.\n")
	sb.WriteString("No text, no labels, no gore, no blood.\n")
	sb.WriteString("Lighting: Studio lighting, clean shadows.\n")
	return sb.String()
}

// DefaultAppointmentMessage is used when the provider returns no text.
func DefaultAppointmentMessage(p Persona, a Appointment) string {
	return fmt.Sprintf("Olá, %s! Aqui é do consultório do %s. Gostaria de confirmar sua consulta (%s) no dia %s às %s, no %s.\n\nEquipe %s",
		firstName(a.PatientName), p.DoctorName, a.Type.Label(), a.Date, a.Time, p.Clinic, p.DoctorName)
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return full
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Nenhuma"
	}
	return s
}

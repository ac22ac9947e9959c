package generator

import "time"

// Tool identifies one of the content workflows.
type Tool string

const (
	ToolPost        Tool = "post"
	ToolArticle     Tool = "article"
	ToolInfographic Tool = "infographic"
	ToolConversion  Tool = "conversion"
	ToolAppointment Tool = "appointment"
)

type Tone string

const (
	ToneProfessional Tone = "Profissional/Cirúrgico"
	ToneEmpathetic   Tone = "Empático/Acolhedor"
	ToneEducational  Tone = "Didático/Anatômico"
	ToneMotivational Tone = "Motivacional/Recuperação"
	ToneDirect       Tone = "Direto/Objetivo"
)

type PostCategory string

const (
	CategoryPathology PostCategory = "Doenças e Dores"
	CategorySurgery   PostCategory = "Cirurgias e Procedimentos"
	CategorySports    PostCategory = "Esporte e Prevenção"
	CategoryRehab     PostCategory = "Reabilitação e Pós-Op"
	CategoryLifestyle PostCategory = "Qualidade de Vida"
	CategoryMyths     PostCategory = "Mitos da Ortopedia"
)

type PostFormat string

const (
	FormatFeed  PostFormat = "Feed (Quadrado/Retrato)"
	FormatStory PostFormat = "Story (Vertical 9:16)"
)

// AspectRatio of the generated image for this format.
func (f PostFormat) AspectRatio() AspectRatio {
	if f == FormatStory {
		return AspectTall
	}
	return AspectSquare
}

type ArticleLength string

const (
	LengthShort  ArticleLength = "Curto (500-800 palavras)"
	LengthMedium ArticleLength = "Médio (800-1200 palavras)"
	LengthLong   ArticleLength = "Longo/Completo (1500+ palavras)"
)

type TargetAudience string

const (
	AudiencePatient TargetAudience = "Paciente Leigo"
	AudienceAthlete TargetAudience = "Atleta/Esportista"
	AudienceElderly TargetAudience = "Idosos/Terceira Idade"
	AudienceParents TargetAudience = "Pais (Ortopedia Pediátrica)"
)

type PatientProfile string

const (
	ProfileChild     PatientProfile = "Criança (Pediátrico)"
	ProfileAdult     PatientProfile = "Adulto"
	ProfileElderly   PatientProfile = "Idoso"
	ProfileAthlete   PatientProfile = "Atleta de Alta Performance"
	ProfileSedentary PatientProfile = "Sedentário"
)

type ConversionFormat string

const (
	ConversionReels       ConversionFormat = "REELS"
	ConversionDeepArticle ConversionFormat = "DEEP_ARTICLE"
)

type AppointmentType string

const (
	AppointmentFirstVisit   AppointmentType = "first_visit"
	AppointmentReturn       AppointmentType = "return"
	AppointmentPostOp       AppointmentType = "post_op"
	AppointmentInfiltration AppointmentType = "infiltration"
)

// Label is the Portuguese name used in prompts and the agenda.
func (t AppointmentType) Label() string {
	switch t {
	case AppointmentFirstVisit:
		return "Primeira Consulta"
	case AppointmentReturn:
		return "Retorno"
	case AppointmentPostOp:
		return "Avaliação Pós-Operatória"
	case AppointmentInfiltration:
		return "Infiltração / Viscossuplementação"
	default:
		return string(t)
	}
}

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusPending   AppointmentStatus = "pending"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Appointment is one entry of the clinic agenda.
type Appointment struct {
	ID          string            `json:"id"`
	PatientName string            `json:"patientName"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Type        AppointmentType   `json:"type"`
	Status      AppointmentStatus `json:"status"`
	Phone       string            `json:"phone"`
	Notes       string            `json:"notes,omitempty"`
}

// Request is one submitted wizard form. Implementations are value types.
type Request interface {
	Tool() Tool
}

type PostRequest struct {
	Topic              string       `json:"topic"`
	Category           PostCategory `json:"category"`
	Tone               Tone         `json:"tone"`
	Format             PostFormat   `json:"format"`
	CustomInstructions string       `json:"customInstructions,omitempty"`
	// UploadedImage is a data: URI; empty when the image is to be generated.
	UploadedImage string `json:"uploadedImage,omitempty"`
}

type ArticleRequest struct {
	Topic    string         `json:"topic"`
	Keywords string         `json:"keywords,omitempty"`
	Length   ArticleLength  `json:"length"`
	Audience TargetAudience `json:"audience"`
	Tone     Tone           `json:"tone"`
}

type InfographicRequest struct {
	Diagnosis      string         `json:"diagnosis"`
	PatientProfile PatientProfile `json:"patientProfile"`
	Tone           Tone           `json:"tone"`
	Notes          string         `json:"notes,omitempty"`
}

type ConversionRequest struct {
	Pathology string           `json:"pathology"`
	Objection string           `json:"objection"`
	Format    ConversionFormat `json:"format"`
}

type AppointmentMessageRequest struct {
	Appointment Appointment `json:"appointment"`
	Tone        Tone        `json:"tone"`
	CustomNote  string      `json:"customNote,omitempty"`
}

func (PostRequest) Tool() Tool               { return ToolPost }
func (ArticleRequest) Tool() Tool            { return ToolArticle }
func (InfographicRequest) Tool() Tool        { return ToolInfographic }
func (ConversionRequest) Tool() Tool         { return ToolConversion }
func (AppointmentMessageRequest) Tool() Tool { return ToolAppointment }

// PostContent is the text stage output of the post tool.
type PostContent struct {
	Headline               string   `json:"headline"`
	Caption                string   `json:"caption"`
	Hashtags               []string `json:"hashtags"`
	ImagePromptDescription string   `json:"imagePromptDescription"`
}

// PostResult is the record shown in the post preview and persisted as the draft.
type PostResult struct {
	ID            string       `json:"id"`
	Date          time.Time    `json:"date"`
	Content       *PostContent `json:"content"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	IsCustomImage bool         `json:"isCustomImage"`
}

type Article struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	MetaDescription string   `json:"metaDescription"`
	ContentHTML     string   `json:"contentHtml"`
	WordCount       int      `json:"wordCount"`
	SEOSuggestions  []string `json:"seoSuggestions"`
	KeywordsUsed    []string `json:"keywordsUsed"`
}

type ArticleResult struct {
	ID      string    `json:"id"`
	Date    time.Time `json:"date"`
	Article Article   `json:"article"`
}

// Hotspot annotates the anatomy image; X and Y are percentages.
type Hotspot struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type IconCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IconName    string `json:"iconName"`
}

type TreatmentKind string

const (
	TreatmentConservative TreatmentKind = "conservador"
	TreatmentSurgical     TreatmentKind = "cirurgico"
)

type TreatmentOption struct {
	Type        TreatmentKind `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Pros        []string      `json:"pros"`
	Cons        []string      `json:"cons"`
	Indication  string        `json:"indication"`
}

type RehabPhase struct {
	Phase string   `json:"phase"`
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type Infographic struct {
	Topic           string `json:"topic"`
	HeroTitle       string `json:"heroTitle"`
	HeroSubtitle    string `json:"heroSubtitle"`
	HeroImagePrompt string `json:"heroImagePrompt"`
	Anatomy         struct {
		Intro       string    `json:"intro"`
		ImagePrompt string    `json:"imagePrompt"`
		Points      []Hotspot `json:"points"`
	} `json:"anatomy"`
	Mechanism struct {
		Title string     `json:"title"`
		Intro string     `json:"intro"`
		Steps []IconCard `json:"steps"`
	} `json:"mechanism"`
	Symptoms struct {
		Intro string     `json:"intro"`
		Items []IconCard `json:"items"`
	} `json:"symptoms"`
	Treatment struct {
		Intro   string            `json:"intro"`
		Options []TreatmentOption `json:"options"`
	} `json:"treatment"`
	Rehab struct {
		Intro  string       `json:"intro"`
		Phases []RehabPhase `json:"phases"`
	} `json:"rehab"`
	FooterText string `json:"footerText"`
}

// InfographicResult image fields stay empty until their fan-out call lands.
type InfographicResult struct {
	ID              string      `json:"id"`
	Date            time.Time   `json:"date"`
	Data            Infographic `json:"data"`
	HeroImageURL    string      `json:"heroImageUrl,omitempty"`
	AnatomyImageURL string      `json:"anatomyImageUrl,omitempty"`
}

type ScriptLine struct {
	Time        string `json:"time"`
	Visual      string `json:"visual"`
	Audio       string `json:"audio"`
	TextOverlay string `json:"textOverlay"`
}

// ConversionResult holds Script for REELS and ArticleContent for DEEP_ARTICLE, never both.
type ConversionResult struct {
	ID             string           `json:"id"`
	Date           time.Time        `json:"date"`
	Format         ConversionFormat `json:"format"`
	Title          string           `json:"title"`
	ArticleContent string           `json:"articleContent,omitempty"`
	Script         []ScriptLine     `json:"script,omitempty"`
	Caption        string           `json:"caption,omitempty"`
	CTA            string           `json:"CTA"`
}

type AppointmentMessage struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	AppointmentID string    `json:"appointmentId"`
	Text          string    `json:"text"`
}

package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

type imageCall struct {
	description string
	aspect      AspectRatio
}

// fakeClient answers structured prompts by schema name and records every call.
type fakeClient struct {
	mu         sync.Mutex
	structured map[string]string
	structErr  error
	text       string
	textErr    error
	imageErr   error
	// imageErrs fails image calls for one description only.
	imageErrs map[string]error
	// gates block image calls for a description until closed.
	gates map[string]chan struct{}

	calls   []string
	prompts []Prompt
	images  []imageCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		structured: map[string]string{},
		imageErrs:  map[string]error{},
		gates:      map[string]chan struct{}{},
	}
}

func (f *fakeClient) GenerateStructured(_ context.Context, p Prompt) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "structured:"+p.Schema.Name)
	f.prompts = append(f.prompts, p)
	if f.structErr != nil {
		return nil, f.structErr
	}
	raw, ok := f.structured[p.Schema.Name]
	if !ok {
		return nil, fmt.Errorf("no canned output for %s", p.Schema.Name)
	}
	return json.RawMessage(raw), nil
}

func (f *fakeClient) GenerateText(_ context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "text")
	f.prompts = append(f.prompts, p)
	return f.text, f.textErr
}

func (f *fakeClient) GenerateImage(ctx context.Context, description string, aspect AspectRatio) (Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "image:"+description)
	f.images = append(f.images, imageCall{description: description, aspect: aspect})
	gate := f.gates[description]
	err := f.imageErr
	if e, ok := f.imageErrs[description]; ok {
		err = e
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Image{}, ErrProviderError
		}
	}
	if err != nil {
		return Image{}, err
	}
	return Image{Bytes: []byte(description), MimeType: "image/png"}, nil
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) imageCalls() []imageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageCall(nil), f.images...)
}

// memDraft is an in-memory DraftSlot.
type memDraft struct {
	mu    sync.Mutex
	data  []byte
	ok    bool
	err   error
	saves int
}

func (m *memDraft) Load(context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	return append([]byte(nil), m.data...), m.ok, nil
}

func (m *memDraft) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.ok = true
	m.saves++
	return nil
}

var errBoom = errors.New("boom")

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testPersona() Persona {
	return Persona{
		DoctorName: "Dr. Teste",
		Specialty:  "Cirurgia de Joelho",
		Brand:      "Seu Joelho",
		Clinic:     "Hospital Central",
		Address:    "Rua A, 1",
		Site:       "exemplo.com",
	}
}

func newTestOrchestrator(c Client, opts ...Option) *Orchestrator {
	agent, err := NewAgent(c, testPersona())
	if err != nil {
		panic(err)
	}
	return NewOrchestrator(agent, append([]Option{WithClock(fixedClock())}, opts...)...)
}

const postJSON = `{
	"headline": "Joelho Sob Controle",
	"caption": "Dor ao subir escadas? Entenda a condromalácia.",
	"hashtags": ["#joelho","#ortopedia","#condromalacia","#dor","#saude","#fisioterapia","#esporte","#corrida","#medicina","#lca","#menisco","#reabilitacao","#cirurgia","#bemestar","#seujoelho"],
	"imagePromptDescription": "clinical knee illustration"
}`

const infographicJSON = `{
	"topic": "LCA",
	"heroTitle": "Lesão do LCA",
	"heroSubtitle": "Do diagnóstico ao retorno",
	"heroImagePrompt": "hero knee art",
	"anatomy": {"intro": "i", "imagePrompt": "anatomy knee clean", "points": [{"label": "LCA", "text": "t", "x": 40, "y": 55}]},
	"mechanism": {"title": "m", "intro": "i", "steps": [{"title": "Torção", "description": "d", "iconName": "sync"}]},
	"symptoms": {"intro": "i", "items": [{"title": "Dor", "description": "d", "iconName": "warning"}]},
	"treatment": {"intro": "i", "options": [
		{"type": "conservador", "title": "Fisio", "description": "d", "pros": ["a"], "cons": ["b"], "indication": "x"},
		{"type": "cirurgico", "title": "Cirurgia", "description": "d", "pros": ["a"], "cons": ["b"], "indication": "y"}
	]},
	"rehab": {"intro": "i", "phases": [{"phase": "1", "title": "Proteção", "items": ["gelo"]}]},
	"footerText": "f"
}`

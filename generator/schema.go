package generator

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// UseUploadedImage is the image-prompt sentinel for posts that bring their own image.
const UseUploadedImage = "USE_UPLOADED_IMAGE"

// Schema is the expected output shape of a structured prompt.
type Schema struct {
	Name string
	// Definition is the JSON Schema handed to the provider.
	Definition map[string]any
	// Required are gjson paths that must exist in the response.
	Required []string
	// Check holds structural rules that a JSON Schema cannot express to every provider.
	Check func(root gjson.Result) error
}

// Validate parses raw against the schema.
func (s *Schema) Validate(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrEmptyResponse
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: %s: invalid JSON", ErrSchemaMismatch, s.Name)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return fmt.Errorf("%w: %s: top level is not an object", ErrSchemaMismatch, s.Name)
	}
	var missing []string
	for _, path := range s.Required {
		if !root.Get(path).Exists() {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", ErrSchemaMismatch, s.Name, strings.Join(missing, ", "))
	}
	if s.Check != nil {
		if err := s.Check(root); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.Name, err)
		}
	}
	return nil
}

func str() map[string]any { return map[string]any{"type": "string"} }

func num() map[string]any { return map[string]any{"type": "number"} }

func integer() map[string]any { return map[string]any{"type": "integer"} }

func enum(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func arr(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

// obj declares a closed object whose properties are all required, the form
// strict structured output expects.
func obj(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	slices.Sort(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func postSchema(uploaded bool) *Schema {
	desc := str()
	if uploaded {
		desc = enum(UseUploadedImage)
	}
	return &Schema{
		Name: "post_content",
		Definition: obj(map[string]any{
			"headline":               str(),
			"caption":                str(),
			"hashtags":               arr(str()),
			"imagePromptDescription": desc,
		}),
		Required: []string{"headline", "caption", "hashtags", "imagePromptDescription"},
		Check: func(root gjson.Result) error {
			if !root.Get("hashtags").IsArray() {
				return errors.New("hashtags is not a list")
			}
			return nil
		},
	}
}

func articleSchema() *Schema {
	return &Schema{
		Name: "seo_article",
		Definition: obj(map[string]any{
			"title":           str(),
			"slug":            str(),
			"metaDescription": str(),
			"contentHtml":     str(),
			"seoSuggestions":  arr(str()),
			"keywordsUsed":    arr(str()),
			"wordCount":       integer(),
		}),
		Required: []string{"title", "slug", "metaDescription", "contentHtml", "seoSuggestions", "keywordsUsed", "wordCount"},
	}
}

func infographicSchema() *Schema {
	card := obj(map[string]any{"title": str(), "description": str(), "iconName": str()})
	return &Schema{
		Name: "clinical_infographic",
		Definition: obj(map[string]any{
			"topic":           str(),
			"heroTitle":       str(),
			"heroSubtitle":    str(),
			"heroImagePrompt": str(),
			"anatomy": obj(map[string]any{
				"intro":       str(),
				"imagePrompt": str(),
				"points": arr(obj(map[string]any{
					"label": str(), "text": str(), "x": num(), "y": num(),
				})),
			}),
			"mechanism": obj(map[string]any{"title": str(), "intro": str(), "steps": arr(card)}),
			"symptoms":  obj(map[string]any{"intro": str(), "items": arr(card)}),
			"treatment": obj(map[string]any{
				"intro": str(),
				"options": arr(obj(map[string]any{
					"type":        enum(string(TreatmentConservative), string(TreatmentSurgical)),
					"title":       str(),
					"description": str(),
					"pros":        arr(str()),
					"cons":        arr(str()),
					"indication":  str(),
				})),
			}),
			"rehab": obj(map[string]any{
				"intro":  str(),
				"phases": arr(obj(map[string]any{"phase": str(), "title": str(), "items": arr(str())})),
			}),
			"footerText": str(),
		}),
		Required: []string{
			"topic", "heroTitle", "heroSubtitle", "heroImagePrompt",
			"anatomy", "anatomy.points", "mechanism", "mechanism.steps",
			"symptoms", "symptoms.items", "treatment", "treatment.options",
			"rehab", "rehab.phases", "footerText",
		},
		Check: checkInfographic,
	}
}

func checkInfographic(root gjson.Result) error {
	for _, path := range []string{"anatomy.points", "mechanism.steps", "symptoms.items", "treatment.options", "rehab.phases"} {
		if !root.Get(path).IsArray() {
			return fmt.Errorf("%s is not a list", path)
		}
	}
	for i, p := range root.Get("anatomy.points").Array() {
		for _, axis := range []string{"x", "y"} {
			v := p.Get(axis)
			if v.Type != gjson.Number {
				return fmt.Errorf("hotspot %d: %s is not a number", i, axis)
			}
			if f := v.Float(); f < 0 || f > 100 {
				return fmt.Errorf("hotspot %d: %s=%g outside 0-100", i, axis, f)
			}
		}
	}
	for i, o := range root.Get("treatment.options").Array() {
		switch TreatmentKind(o.Get("type").String()) {
		case TreatmentConservative, TreatmentSurgical:
		default:
			return fmt.Errorf("treatment option %d: unknown type %q", i, o.Get("type").String())
		}
	}
	return nil
}

func conversionSchema(format ConversionFormat) *Schema {
	if format == ConversionDeepArticle {
		return &Schema{
			Name: "conversion_article",
			Definition: obj(map[string]any{
				"format":         enum(string(ConversionDeepArticle)),
				"title":          str(),
				"articleContent": str(),
				"CTA":            str(),
			}),
			Required: []string{"title", "articleContent", "CTA"},
			Check: func(root gjson.Result) error {
				if strings.TrimSpace(root.Get("articleContent").String()) == "" {
					return errors.New("articleContent is empty")
				}
				return nil
			},
		}
	}
	return &Schema{
		Name: "conversion_reels",
		Definition: obj(map[string]any{
			"format": enum(string(ConversionReels)),
			"title":  str(),
			"script": arr(obj(map[string]any{
				"time": str(), "visual": str(), "audio": str(), "textOverlay": str(),
			})),
			"caption": str(),
			"CTA":     str(),
		}),
		Required: []string{"title", "script", "caption", "CTA"},
		Check: func(root gjson.Result) error {
			script := root.Get("script")
			if !script.IsArray() || len(script.Array()) == 0 {
				return errors.New("script is empty")
			}
			return nil
		},
	}
}

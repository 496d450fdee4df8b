// Package estimate turns finished requirements into a sitemap and the
// sitemap into per-screen generation prompts. Model output is repaired for
// the common shape slips before validation.
package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reqgather/internal/llm"
	"reqgather/internal/output"
)

const (
	DefaultBusinessType = "Standard Web Application"

	sitemapTemperature = 0.2
	promptsTemperature = 0.5
)

var validate = validator.New()

type Estimator struct {
	client        llm.Client
	sitemapPrompt string
	uiPrompt      string
	log           *zap.Logger
}

func New(client llm.Client, sitemapPrompt, uiPrompt string, log *zap.Logger) *Estimator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Estimator{client: client, sitemapPrompt: sitemapPrompt, uiPrompt: uiPrompt, log: log}
}

// Sitemap asks for the pages the requirements imply. branding may be nil.
func (e *Estimator) Sitemap(ctx context.Context, requirements, branding map[string]any) (SiteMap, error) {
	brandingText := "No Branding Data Available"
	if branding != nil {
		raw, err := json.MarshalIndent(branding, "", "  ")
		if err != nil {
			return SiteMap{}, err
		}
		brandingText = string(raw)
	}
	srs, err := json.MarshalIndent(requirements, "", "  ")
	if err != nil {
		return SiteMap{}, err
	}
	user := fmt.Sprintf("=== INPUT 1: BRANDING PROFILE ===\n%s\n\n=== INPUT 2: SRS REQUIREMENTS ===\n%s", brandingText, srs)

	raw, err := e.call(ctx, e.sitemapPrompt, user, sitemapTemperature)
	if err != nil {
		return SiteMap{}, err
	}
	var sm SiteMap
	if err := decode(raw, repairSitemap, &sm); err != nil {
		e.log.Error("❌ malformed sitemap", zap.Error(err), zap.String("raw", raw))
		return SiteMap{}, err
	}
	e.log.Info("🗺️ sitemap estimated", zap.String("business_type", sm.BusinessType), zap.Int("pages", len(sm.Pages)))
	return sm, nil
}

// Prompts expands every page of sm into developer, designer and copywriter
// prompts.
func (e *Estimator) Prompts(ctx context.Context, sm SiteMap) (PromptSet, error) {
	in, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return PromptSet{}, err
	}
	raw, err := e.call(ctx, e.uiPrompt, "SITEMAP DATA:\n"+string(in), promptsTemperature)
	if err != nil {
		return PromptSet{}, err
	}
	var ps PromptSet
	repair := func(v any) any { return repairPrompts(v, sm.BusinessType) }
	if err := decode(raw, repair, &ps); err != nil {
		e.log.Error("❌ malformed prompt set", zap.Error(err), zap.String("raw", raw))
		return PromptSet{}, err
	}
	return ps, nil
}

func (e *Estimator) call(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := e.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, llm.Options{Temperature: temperature, JSON: true})
	if err != nil {
		return "", fmt.Errorf("estimate: %w", err)
	}
	return resp.Content, nil
}

// decode cleans raw, applies repair to the generic document, then decodes
// and validates it into dst.
func decode(raw string, repair func(any) any, dst any) error {
	var doc any
	if err := json.Unmarshal([]byte(output.Clean(raw)), &doc); err != nil {
		return &output.ParseError{Raw: raw, Reason: "invalid json", Err: err}
	}
	fixed, err := json.Marshal(repair(doc))
	if err != nil {
		return &output.ParseError{Raw: raw, Reason: "repair failed", Err: err}
	}
	if err := json.Unmarshal(fixed, dst); err != nil {
		return &output.ParseError{Raw: raw, Reason: "unexpected shape", Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		return &output.ParseError{Raw: raw, Reason: "validation failed", Err: err}
	}
	return nil
}

func repairSitemap(doc any) any {
	if pages, ok := doc.([]any); ok {
		return map[string]any{"business_type": "inferred", "pages": pages}
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	if pages, ok := m["sitemap"].([]any); ok {
		if _, has := m["pages"]; !has {
			m["pages"] = pages
			delete(m, "sitemap")
		}
	}
	if bt, _ := m["business_type"].(string); strings.TrimSpace(bt) == "" {
		m["business_type"] = DefaultBusinessType
	}
	return m
}

func repairPrompts(doc any, businessType string) any {
	m, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	if _, has := m["screens"]; !has {
		if pages, ok := m["pages"]; ok {
			m["screens"] = pages
			delete(m, "pages")
		}
	}
	if pn, _ := m["project_name"].(string); strings.TrimSpace(pn) == "" {
		if businessType == "" {
			businessType = "Project"
		}
		m["project_name"] = businessType
	}
	if screens, ok := m["screens"].([]any); ok {
		for _, s := range screens {
			sc, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if _, has := sc["screen_name"]; !has {
				if name, ok := sc["name"]; ok {
					sc["screen_name"] = name
					delete(sc, "name")
				}
			}
		}
	}
	return m
}

// Package prompts holds the system prompts sent to the model. The catalogue
// is embedded and may be overridden key by key from a YAML file.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var embedded []byte

type Catalogue struct {
	Interview string `yaml:"interview"`
	Branding  string `yaml:"branding"`
	Sitemap   string `yaml:"sitemap"`
	UIPrompts string `yaml:"ui_prompts"`
}

// Default returns the embedded catalogue.
func Default() Catalogue {
	var c Catalogue
	if err := yaml.Unmarshal(embedded, &c); err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return c
}

// Load returns the embedded catalogue with every non-empty key from path
// applied on top. An empty path returns Default.
func Load(path string) (Catalogue, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("read prompts: %w", err)
	}
	var o Catalogue
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return Catalogue{}, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	c.merge(o)
	return c, nil
}

func (c *Catalogue) merge(o Catalogue) {
	pick := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	pick(&c.Interview, o.Interview)
	pick(&c.Branding, o.Branding)
	pick(&c.Sitemap, o.Sitemap)
	pick(&c.UIPrompts, o.UIPrompts)
}

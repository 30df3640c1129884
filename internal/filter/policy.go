package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy configures which catalog records are ever shown to the user.
// Zero values fall back to the defaults in DefaultPolicy during validation,
// so a partial YAML file only overrides what it names.
type Policy struct {
	SentinelGenre       string   `yaml:"sentinel_genre"`
	AllowedFormats      []string `yaml:"allowed_formats"`
	AllowUnknownFormat  bool     `yaml:"allow_unknown_format"`
	RequiredCountry     string   `yaml:"required_country"`
	AllowUnknownCountry bool     `yaml:"allow_unknown_country"`
	ExtraPromoKeywords  []string `yaml:"extra_promo_keywords"`
	ExtraAncillaryWords []string `yaml:"extra_ancillary_keywords"`

	allowedFormatSet map[string]struct{}
}

func DefaultPolicy() Policy {
	policy := Policy{
		SentinelGenre:       "Hentai",
		AllowedFormats:      []string{"TV", "TV_SHORT", "MOVIE", "OVA", "ONA", "SPECIAL"},
		AllowUnknownFormat:  true,
		RequiredCountry:     "JP",
		AllowUnknownCountry: true,
	}
	if err := policy.normalizeAndValidate(); err != nil {
		panic(err)
	}
	return policy
}

// LoadPolicy reads a YAML policy file. A missing path or missing file yields
// the defaults without error; a present but invalid file is an error.
func LoadPolicy(path string) (Policy, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultPolicy(), nil
	}

	content, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return Policy{}, fmt.Errorf("read eligibility policy: %w", err)
	}

	policy := Policy{AllowUnknownFormat: true, AllowUnknownCountry: true}
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse eligibility policy: %w", err)
	}
	if err := policy.normalizeAndValidate(); err != nil {
		return Policy{}, fmt.Errorf("invalid eligibility policy: %w", err)
	}

	return policy, nil
}

func (p *Policy) normalizeAndValidate() error {
	p.SentinelGenre = strings.TrimSpace(p.SentinelGenre)
	if p.SentinelGenre == "" {
		p.SentinelGenre = "Hentai"
	}

	p.RequiredCountry = strings.ToUpper(strings.TrimSpace(p.RequiredCountry))
	if p.RequiredCountry == "" {
		p.RequiredCountry = "JP"
	}

	if len(p.AllowedFormats) == 0 {
		p.AllowedFormats = []string{"TV", "TV_SHORT", "MOVIE", "OVA", "ONA", "SPECIAL"}
	}

	p.allowedFormatSet = make(map[string]struct{}, len(p.AllowedFormats))
	for _, format := range p.AllowedFormats {
		normalized := normalizeFormat(format)
		if normalized == "" {
			return fmt.Errorf("allowed_formats contains an empty entry")
		}
		p.allowedFormatSet[normalized] = struct{}{}
	}

	return nil
}

func (p *Policy) formatAllowed(format string) bool {
	if p.allowedFormatSet == nil {
		// Policy built without validation (zero value); rebuild lazily.
		if err := p.normalizeAndValidate(); err != nil {
			return false
		}
	}
	_, ok := p.allowedFormatSet[normalizeFormat(format)]
	return ok
}

func normalizeFormat(format string) string {
	normalized := strings.ToUpper(strings.TrimSpace(format))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}

package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"safety-planner/internal/planner/models"
)

// ============================================================
// Rules
// ============================================================

// AnyType: правило-подстановка для типов без собственного правила.
const AnyType = "any"

// TableSize: длина таблиц множителей (значения 1–5).
const TableSize = 5

// Rule задает вклад одного замечания: base * severity[s-1] * frequency[f-1].
type Rule struct {
	FindingType         string    `json:"findingType" yaml:"findingType" toml:"findingType" validate:"required,oneof=any obstruction signage_missing ppe_missing fall_risk electrical_risk fire_risk chemical_risk other"`
	Base                float64   `json:"base" yaml:"base" toml:"base" validate:"gte=0"`
	SeverityMultiplier  []float64 `json:"severityMultiplier" yaml:"severityMultiplier" toml:"severityMultiplier" validate:"len=5,dive,gte=0"`
	FrequencyMultiplier []float64 `json:"frequencyMultiplier" yaml:"frequencyMultiplier" toml:"frequencyMultiplier" validate:"len=5,dive,gte=0"`
}

type Propagation struct {
	Factor float64 `json:"factor" yaml:"factor" toml:"factor" validate:"gte=0"`
}

// RulesConfig: конфигурация движка: список правил и коэффициент
// распространения на связанные зоны.
type RulesConfig struct {
	Rules       []Rule      `json:"rules" yaml:"rules" toml:"rules" validate:"dive"`
	Propagation Propagation `json:"propagation" yaml:"propagation" toml:"propagation"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет поля правил и уникальность типов.
func (c RulesConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &models.ValidationError{Entity: "rules", Reason: err.Error()}
	}
	seen := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if seen[r.FindingType] {
			return &models.ValidationError{Entity: "rules", ID: r.FindingType, Field: "findingType", Reason: "duplicate rule"}
		}
		seen[r.FindingType] = true
	}
	return nil
}

func (c RulesConfig) Clone() RulesConfig {
	out := RulesConfig{Propagation: c.Propagation}
	for _, r := range c.Rules {
		r.SeverityMultiplier = append([]float64(nil), r.SeverityMultiplier...)
		r.FrequencyMultiplier = append([]float64(nil), r.FrequencyMultiplier...)
		out.Rules = append(out.Rules, r)
	}
	return out
}

// ============================================================
// Defaults
// ============================================================

var (
	defaultSeverity  = []float64{1.0, 1.4, 1.8, 2.4, 3.0}
	defaultFrequency = []float64{1.0, 1.2, 1.5, 1.8, 2.2}
)

// DefaultPropagationFactor: доля базового индекса связанной зоны.
const DefaultPropagationFactor = 0.25

// DefaultRules: встроенный набор правил.
func DefaultRules() RulesConfig {
	bases := []struct {
		typ  string
		base float64
	}{
		{string(models.FindingObstruction), 4},
		{string(models.FindingSignageMissing), 3},
		{string(models.FindingPPEMissing), 6},
		{string(models.FindingFallRisk), 8},
		{string(models.FindingElectricalRisk), 9},
		{string(models.FindingFireRisk), 10},
		{string(models.FindingChemicalRisk), 9},
		{string(models.FindingOther), 3},
		{AnyType, 2},
	}
	cfg := RulesConfig{Propagation: Propagation{Factor: DefaultPropagationFactor}}
	for _, b := range bases {
		cfg.Rules = append(cfg.Rules, Rule{
			FindingType:         b.typ,
			Base:                b.base,
			SeverityMultiplier:  append([]float64(nil), defaultSeverity...),
			FrequencyMultiplier: append([]float64(nil), defaultFrequency...),
		})
	}
	return cfg
}

// ============================================================
// Loading
// ============================================================

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor определяет формат по расширению файла.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported rules file extension %q", filepath.Ext(path))
	}
}

// LoadRules читает и проверяет файл правил.
func LoadRules(path string) (RulesConfig, error) {
	format, err := FormatFor(path)
	if err != nil {
		return RulesConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RulesConfig{}, fmt.Errorf("read rules: %w", err)
	}
	cfg, err := ParseRules(data, format)
	if err != nil {
		return RulesConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseRules разбирает правила в указанном формате. Неизвестные поля
// отклоняются.
func ParseRules(data []byte, format Format) (RulesConfig, error) {
	var cfg RulesConfig
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return RulesConfig{}, fmt.Errorf("parse json rules: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return RulesConfig{}, fmt.Errorf("parse yaml rules: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return RulesConfig{}, fmt.Errorf("parse toml rules: %w", err)
		}
	default:
		return RulesConfig{}, fmt.Errorf("unsupported rules format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return RulesConfig{}, err
	}
	return cfg, nil
}

// Encode пишет правила в указанном формате.
func (c RulesConfig) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatTOML:
		return toml.Marshal(c)
	default:
		return nil, fmt.Errorf("unsupported rules format %q", format)
	}
}

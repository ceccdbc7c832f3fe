package strategy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
)

// Params overrides a strategy's defaults. Absent fields keep the default;
// an explicit zero is honoured.
type Params struct {
	Timezone      string             `yaml:"timezone"`
	CloseHour     *int               `yaml:"close_hour"`
	CutoffMinutes *float64           `yaml:"cutoff_minutes"`
	Indicators    indicator.Set      `yaml:"indicators"`
	Thresholds    map[string]float64 `yaml:"thresholds"`
}

// session applies the overrides. An unknown Timezone keeps the default
// zone; LoadParams rejects it before it gets here.
func (p Params) session() Session {
	s := DefaultSession
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			s.Location = loc
		}
	}
	if p.CloseHour != nil {
		s.CloseHour = *p.CloseHour
	}
	if p.CutoffMinutes != nil {
		s.CutoffMinutes = *p.CutoffMinutes
	}
	return s
}

func (p Params) threshold(key string, def float64) float64 {
	if v, ok := p.Thresholds[key]; ok {
		return v
	}
	return def
}

func (p Params) indicator(key string, def indicator.Spec) indicator.Spec {
	if spec, ok := p.Indicators[key]; ok {
		if len(spec.Outputs) == 0 {
			spec.Outputs = def.Outputs
		}
		return spec
	}
	return def
}

// ConfigFile is the top-level YAML structure:
//
//	strategies:
//	  CCI:
//	    timezone: America/New_York
//	    close_hour: 16
//	    cutoff_minutes: 15
//	    thresholds: {level: 0}
type ConfigFile struct {
	Strategies map[string]Params `yaml:"strategies"`
}

// LoadParams reads per-strategy overrides from a YAML file, keyed by
// upper-cased strategy name. An empty path yields no overrides.
func LoadParams(path string) (map[string]Params, error) {
	if path == "" {
		return map[string]Params{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse strategy config %s: %w", path, err)
	}

	out := make(map[string]Params, len(file.Strategies))
	for name, p := range file.Strategies {
		if p.Timezone != "" {
			if _, err := time.LoadLocation(p.Timezone); err != nil {
				return nil, fmt.Errorf("strategy %s: timezone %q: %w", name, p.Timezone, err)
			}
		}
		if p.CloseHour != nil && (*p.CloseHour < 0 || *p.CloseHour > 24) {
			return nil, fmt.Errorf("strategy %s: close_hour %d out of range", name, *p.CloseHour)
		}
		out[strings.ToUpper(name)] = p
	}
	return out, nil
}

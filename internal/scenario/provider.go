package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtureFile struct {
	Scenarios []fixture `yaml:"scenarios"`
}

type fixture struct {
	Identifier string                `yaml:"identifier"`
	Result     entity.AnalysisResult `yaml:"result"`
}

// FixtureProvider serves canned results keyed by identifier.
type FixtureProvider struct {
	results map[string]entity.AnalysisResult
}

// NewDefaultProvider loads the fixtures compiled into the binary.
func NewDefaultProvider(heatmapCap int) (*FixtureProvider, error) {
	return Parse(defaultFixtures, heatmapCap)
}

// Load reads fixtures from a YAML file on disk.
func Load(path string, heatmapCap int) (*FixtureProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data, heatmapCap)
}

// Parse decodes YAML fixtures. Heatmaps must be 5x5 and are clamped to
// heatmapCap, the same bound used for synthesized results.
func Parse(data []byte, heatmapCap int) (*FixtureProvider, error) {
	if heatmapCap <= 0 {
		heatmapCap = analysis.DefaultHeatmapCap
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}

	p := &FixtureProvider{results: make(map[string]entity.AnalysisResult, len(file.Scenarios))}
	for i, f := range file.Scenarios {
		if f.Identifier == "" {
			return nil, fmt.Errorf("scenario %d: empty identifier", i)
		}
		if _, dup := p.results[f.Identifier]; dup {
			return nil, fmt.Errorf("scenario %q: duplicate identifier", f.Identifier)
		}
		if err := validate(f.Result); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", f.Identifier, err)
		}
		f.Result.HeatmapData.Clamp(heatmapCap)
		p.results[f.Identifier] = f.Result
	}
	return p, nil
}

func validate(r entity.AnalysisResult) error {
	if r.TotalVisitors < 0 {
		return fmt.Errorf("negative totalVisitors")
	}
	for _, p := range r.FootfallData {
		if p.Count < 0 {
			return fmt.Errorf("negative count at %s", p.Hour)
		}
	}
	for _, b := range r.TimeSpentData {
		if b.Percentage < 0 || b.Percentage > 100 {
			return fmt.Errorf("percentage %d out of range for %q", b.Percentage, b.Category)
		}
	}
	return nil
}

// Lookup returns a copy of the fixture for identifier.
func (p *FixtureProvider) Lookup(identifier string) (entity.AnalysisResult, bool) {
	r, ok := p.results[identifier]
	if !ok {
		return entity.AnalysisResult{}, false
	}
	return r.Clone(), true
}

func (p *FixtureProvider) Len() int {
	return len(p.results)
}

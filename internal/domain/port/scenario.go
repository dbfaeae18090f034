package port

import "github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"

// ScenarioProvider returns canned results for recognized identifiers.
type ScenarioProvider interface {
	Lookup(identifier string) (entity.AnalysisResult, bool)
}

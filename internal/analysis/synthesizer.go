package analysis

import (
	"fmt"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

const (
	// DefaultHeatmapCap bounds every heatmap cell produced from detected positions.
	DefaultHeatmapCap = 20

	firstHour = 8
	lastHour  = 22
	noonHour  = 12
	eveHour   = 18

	hitHeat       = 10
	neighbourHeat = 5
)

// Synthesizer builds an AnalysisResult from detector output alone.
type Synthesizer struct {
	heatmapCap int
}

func NewSynthesizer(heatmapCap int) *Synthesizer {
	if heatmapCap <= 0 {
		heatmapCap = DefaultHeatmapCap
	}
	return &Synthesizer{heatmapCap: heatmapCap}
}

func (s *Synthesizer) HeatmapCap() int {
	return s.heatmapCap
}

// Synthesize maps a visitor count and the positions seen across frames onto
// dashboard series. A zero count with no positions yields an all-zero result.
func (s *Synthesizer) Synthesize(totalVisitors int, positions []entity.Position) entity.AnalysisResult {
	if totalVisitors < 0 {
		totalVisitors = 0
	}
	return entity.AnalysisResult{
		TotalVisitors: totalVisitors,
		FootfallData:  FootfallSeries(totalVisitors),
		TimeSpentData: TimeSpentDistribution(),
		HeatmapData:   HeatmapFromPositions(positions, s.heatmapCap),
		Stats: entity.DashboardStats{
			TotalVisitors:    totalVisitors,
			AverageTimeSpent: 8,
			PeakHour:         HourLabel(noonHour),
			ConversionRate:   50,
		},
	}
}

// Aggregate reduces per-frame detections to the peak count and the positions
// reported by frames that saw anyone.
func Aggregate(detections []entity.Detection) (int, []entity.Position) {
	peak := 0
	var positions []entity.Position
	for _, d := range detections {
		if d.Count <= 0 {
			continue
		}
		if d.Count > peak {
			peak = d.Count
		}
		positions = append(positions, d.Positions...)
	}
	return peak, positions
}

// FootfallSeries spreads total over the noon and 6pm slots of an 8am-10pm day.
// Noon takes the odd visitor.
func FootfallSeries(total int) []entity.FootfallPoint {
	series := make([]entity.FootfallPoint, 0, lastHour-firstHour+1)
	for h := firstHour; h <= lastHour; h++ {
		count := 0
		switch h {
		case noonHour:
			count = total - total/2
		case eveHour:
			count = total / 2
		}
		series = append(series, entity.FootfallPoint{Hour: HourLabel(h), Count: count})
	}
	return series
}

func TimeSpentDistribution() []entity.TimeSpentBucket {
	return []entity.TimeSpentBucket{
		{Category: "< 5 min", Percentage: 25},
		{Category: "5-15 min", Percentage: 50},
		{Category: "15-30 min", Percentage: 25},
		{Category: "> 30 min", Percentage: 0},
	}
}

// HeatmapFromPositions adds heat at each position and half as much around it.
// Off-grid positions are ignored.
func HeatmapFromPositions(positions []entity.Position, maxHeat int) entity.Heatmap {
	var grid entity.Heatmap
	for _, p := range positions {
		if !p.InGrid() {
			continue
		}
		grid[p.Y][p.X] += hitHeat
		for y := max(0, p.Y-1); y <= min(entity.GridSize-1, p.Y+1); y++ {
			for x := max(0, p.X-1); x <= min(entity.GridSize-1, p.X+1); x++ {
				if x == p.X && y == p.Y {
					continue
				}
				grid[y][x] += neighbourHeat
			}
		}
	}
	grid.Clamp(maxHeat)
	return grid
}

// HourLabel renders a 24h hour as "8am", "12pm", "6pm".
func HourLabel(h int) string {
	switch {
	case h == 0:
		return "12am"
	case h < noonHour:
		return fmt.Sprintf("%dam", h)
	case h == noonHour:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", h-noonHour)
	}
}

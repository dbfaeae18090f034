package analysis

import "github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"

// Demo is the dashboard shown before anything has been analyzed: two visitors
// standing left and right of the store centre.
func Demo() entity.AnalysisResult {
	var grid entity.Heatmap
	grid[2][1] = 15
	grid[2][3] = 15
	for y := 1; y <= 3; y++ {
		for x := 0; x < entity.GridSize; x++ {
			if grid[y][x] == 0 {
				grid[y][x] = 5
			}
		}
	}

	return entity.AnalysisResult{
		TotalVisitors: 2,
		FootfallData:  FootfallSeries(2),
		TimeSpentData: TimeSpentDistribution(),
		HeatmapData:   grid,
		Stats: entity.DashboardStats{
			TotalVisitors:    2,
			AverageTimeSpent: 8,
			PeakHour:         HourLabel(noonHour),
			ConversionRate:   50,
		},
	}
}

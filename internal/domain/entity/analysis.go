package entity

// GridSize is the number of rows and columns of the traffic heatmap.
const GridSize = 5

// AnalysisResult is the chart-ready output of one video analysis.
type AnalysisResult struct {
	TotalVisitors int               `json:"totalVisitors" yaml:"totalVisitors"`
	FootfallData  []FootfallPoint   `json:"footfallData" yaml:"footfallData"`
	TimeSpentData []TimeSpentBucket `json:"timeSpentData" yaml:"timeSpentData"`
	HeatmapData   Heatmap           `json:"heatmapData" yaml:"heatmapData"`
	Stats         DashboardStats    `json:"stats" yaml:"stats"`
}

type FootfallPoint struct {
	Hour  string `json:"hour" yaml:"hour"`
	Count int    `json:"count" yaml:"count"`
}

type TimeSpentBucket struct {
	Category   string `json:"category" yaml:"category"`
	Percentage int    `json:"percentage" yaml:"percentage"`
}

type DashboardStats struct {
	TotalVisitors    int    `json:"totalVisitors" yaml:"totalVisitors"`
	AverageTimeSpent int    `json:"averageTimeSpent" yaml:"averageTimeSpent"` // minutes
	PeakHour         string `json:"peakHour" yaml:"peakHour"`
	ConversionRate   int    `json:"conversionRate" yaml:"conversionRate"` // percent
}

// Heatmap is indexed [row][column], i.e. [y][x].
type Heatmap [GridSize][GridSize]int

// Clamp bounds every cell to [0, max].
func (h *Heatmap) Clamp(max int) {
	for y := range h {
		for x := range h[y] {
			switch {
			case h[y][x] < 0:
				h[y][x] = 0
			case h[y][x] > max:
				h[y][x] = max
			}
		}
	}
}

// Position is a cell coordinate on the heatmap grid, 0..GridSize-1 on each axis.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) InGrid() bool {
	return p.X >= 0 && p.X < GridSize && p.Y >= 0 && p.Y < GridSize
}

// Detection is what a frame detector reports for a single frame.
type Detection struct {
	Count     int
	Positions []Position
}

// FootfallTotal sums the hourly counts.
func (r *AnalysisResult) FootfallTotal() int {
	total := 0
	for _, p := range r.FootfallData {
		total += p.Count
	}
	return total
}

// Clone returns a deep copy so callers can't mutate shared fixtures.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.FootfallData = append([]FootfallPoint(nil), r.FootfallData...)
	out.TimeSpentData = append([]TimeSpentBucket(nil), r.TimeSpentData...)
	return out
}

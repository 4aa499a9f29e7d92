package types

// Phase identifies the current stage of an indexing run.
type Phase string

const (
	PhaseScanning   Phase = "scanning"
	PhaseChunking   Phase = "chunking"
	PhaseEmbedding  Phase = "embedding"
	PhaseUpserting  Phase = "upserting"
	PhaseFinalizing Phase = "finalizing"
)

// Progress is a point-in-time report of a run's position.
type Progress struct {
	Phase      Phase
	Completed  int
	Total      int
	Percentage float64 // 0-100
}

// ProgressFunc receives throttled progress reports. The terminal report at
// 100% is always delivered regardless of throttling.
type ProgressFunc func(Progress)

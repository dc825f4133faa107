package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SimulationCompletedData contains data for SimulationCompleted events
type SimulationCompletedData struct {
	RunID         string  `json:"run_id"`
	Seed          uint64  `json:"seed"`
	Trials        int     `json:"trials"`
	Repeaters     int     `json:"repeaters"`
	FinalFidelity float64 `json:"final_fidelity"`
	MeanTime      float64 `json:"mean_time_s"`
}

// EventType returns the event type for SimulationCompletedData
func (d *SimulationCompletedData) EventType() EventType {
	return SimulationCompleted
}

// SweepProgressData contains data for SweepProgress events
type SweepProgressData struct {
	SweepID string  `json:"sweep_id"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Value   float64 `json:"value"`
	Variant string  `json:"variant"`
}

// EventType returns the event type for SweepProgressData
func (d *SweepProgressData) EventType() EventType {
	return SweepProgress
}

// SweepCompletedData contains data for SweepCompleted events
type SweepCompletedData struct {
	SweepID string `json:"sweep_id"`
	Kind    string `json:"kind"`
	Points  int    `json:"points"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// EventType returns the event type for SweepCompletedData
func (d *SweepCompletedData) EventType() EventType {
	return SweepCompleted
}

// ArchiveUploadedData contains data for ArchiveUploaded events
type ArchiveUploadedData struct {
	SweepID string `json:"sweep_id"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Bytes   int64  `json:"bytes"`
}

// EventType returns the event type for ArchiveUploadedData
func (d *ArchiveUploadedData) EventType() EventType {
	return ArchiveUploaded
}

// SystemStatusData contains data for SystemStatus events
type SystemStatusData struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Runs          int     `json:"runs"`
	Sweeps        int     `json:"sweeps"`
	Subscribers   int     `json:"subscribers"`
}

// EventType returns the event type for SystemStatusData
func (d *SystemStatusData) EventType() EventType {
	return SystemStatus
}

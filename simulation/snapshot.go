package simulation

import (
	jsoniter "github.com/json-iterator/go"
)

// StatusSnapshot is the machine-readable state of the simulator at one
// instant, exposed for polling by dashboards and tests. It is a plain value
// copy; reading it never blocks the background loops.
type StatusSnapshot struct {
	CycleNumber      int     `json:"cycle_number"`
	SimDay           int     `json:"sim_day"`
	SimHour          int     `json:"sim_hour"`
	SpeedLevel       int     `json:"speed_level"`
	Running          bool    `json:"running"`
	ActiveIssueCount int     `json:"active_issue_count"`
	QueueDepth       int     `json:"queue_depth"`
	RecentRateMinute int     `json:"recent_rate_minute"`
	RecentRateHour   int     `json:"recent_rate_hour"`
	HealthScore      float64 `json:"health_score"`
}

// ToJSON returns the snapshot as a structured, machine-readable record.
func (s StatusSnapshot) ToJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(s)
}

// StatusSnapshotFromJSON restores a snapshot from its wire form.
func StatusSnapshotFromJSON(data []byte) (StatusSnapshot, error) {
	var s StatusSnapshot
	if err := jsoniter.ConfigFastest.Unmarshal(data, &s); err != nil {
		return StatusSnapshot{}, err
	}

	return s, nil
}

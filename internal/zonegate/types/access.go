package types

type AccessRequest struct {
	DeviceID        string       `json:"device_id"`
	Credential      string       `json:"credential"`
	AccessMethod    AccessMethod `json:"access_method"`
	Direction       Direction    `json:"direction"`
	ConfidenceScore *float64     `json:"confidence_score,omitempty"`
	RequestedAt     string       `json:"requested_at,omitempty"` // optional device timestamp
}

type AccessResponse struct {
	OK         bool         `json:"ok"`
	Granted    bool         `json:"granted"`
	Reason     DenialReason `json:"reason,omitempty"`
	DeviceID   string       `json:"device_id"`
	LogEntryID string       `json:"log_entry_id"`
	ServerTime string       `json:"server_time"`
}

// Decision is the engine's outcome for one access event.  Reason is
// DenialNone when Granted is true.
type Decision struct {
	Granted    bool
	Reason     DenialReason
	LogEntryID string
}

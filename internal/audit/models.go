package audit

import "time"

// Action names the registry change an Event records.
type Action string

const (
	ActionImportCreated  Action = "import_created"
	ActionCitizenPatched Action = "citizen_patched"
	ActionRegistryReset  Action = "registry_reset"
)

// Event is emitted from domain logic to capture registry changes. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	RequestID string    `json:"request_id,omitempty"`
	ImportID  int64     `json:"import_id,omitempty"`
	CitizenID *int64    `json:"citizen_id,omitempty"`
	// Citizens is the import size for import_created.
	Citizens int `json:"citizens,omitempty"`
	// Fields lists the patched field names for citizen_patched.
	Fields []string `json:"fields,omitempty"`
}

// Key partitions events by import so a consumer sees one import's history
// in order.
func (e Event) Key() string {
	if e.ImportID == 0 {
		return string(e.Action)
	}
	return "import:" + itoa(e.ImportID)
}

package domain

// ResultRow is one record returned by a lab endpoint. Field names are kept
// as the backend sent them; the classifier inspects them for cross-table
// leakage.
type ResultRow map[string]any

// ExploitResult is the structured payload of a free-form exploit endpoint.
// Flag, when non-empty, is the backend's own detection of a successful
// exploit and is authoritative classification input.
type ExploitResult struct {
	Success bool        `json:"success"`
	Flag    string      `json:"flag,omitempty"`
	Message string      `json:"message,omitempty"`
	Rows    []ResultRow `json:"rows,omitempty"`
}

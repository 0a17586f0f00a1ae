package v1

// Answer is a reply from the ask endpoint.
type Answer struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"answer"`
}

// Health reports index readiness.
type Health struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Segments int    `json:"segments"`
}

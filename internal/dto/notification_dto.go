package dto

// NotificationJob is the payload enqueued for the notification worker.
// Kind "create" posts a dashboard event to the sidecar; kind "general"
// targets a named recipient (plus email when the recipient is an address).
type NotificationJob struct {
	Kind        string `json:"kind"` // "create" | "general"
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"` // "low" | "normal" | "high"
	Type        string `json:"type,omitempty"`
	SourceID    string `json:"source_id,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Time        string `json:"time"` // ISO 8601
}

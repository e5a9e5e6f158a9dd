// Package chat holds the local chat-history model. The sync engine never
// reconciles chat messages; they exist locally until the one-shot cloud
// migration copies them into a remote conversation.
package chat

// Message is one locally stored chat message, ordered by TimestampMS.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	TimestampMS int64  `json:"timestamp"`
}

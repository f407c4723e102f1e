// Package schema holds the shared contract types exchanged between the
// daemon's subsystems: conversation messages, the LLM provider interface,
// and the coded error taxonomy. Defining them here keeps the domain packages
// free of import cycles.
package schema

import "time"

// Message is one entry in a conversation history.
//
// Role is one of: "system", "user", "assistant", "tool".
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

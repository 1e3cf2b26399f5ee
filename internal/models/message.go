package models

import "time"

// Message is a single entry of the remote channel the target reports into.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

package models

import "time"

// EmailMessage is an immutable snapshot of one fetched mail message.
// Extractors only ever read it; nothing downstream mutates it.
type EmailMessage struct {
	UID     string    `json:"uid"`
	Subject string    `json:"subject"`
	Sender  string    `json:"sender"`
	Date    time.Time `json:"date"`
	Text    string    `json:"text"`
	HTML    string    `json:"html,omitempty"`
	Mailbox string    `json:"mailbox,omitempty"`
}

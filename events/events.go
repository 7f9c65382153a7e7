// Package events publishes identity lifecycle notifications.
package events

import (
	"context"
	"time"
)

const (
	TopicAccountCreated  = "account.created"
	TopicIdentityLinked  = "identity.linked"
	TopicLinkReassigned  = "identity.link_reassigned"
	defaultExchange      = "colabatr.identity"
	defaultPublishWindow = 5 * time.Second
)

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type AccountCreated struct {
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`
}

type IdentityLinked struct {
	AccountID      string `json:"account_id"`
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
}

type LinkReassigned struct {
	Provider          string `json:"provider"`
	ProviderUserID    string `json:"provider_user_id"`
	PreviousAccountID string `json:"previous_account_id"`
	AccountID         string `json:"account_id"`
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

func (Nop) Close() error { return nil }

package events

import (
	"errors"
	"time"
)

// Channel names the fixed set of subscription topics exposed to clients.
type Channel string

const (
	ChannelOrder    Channel = "ORDER"
	ChannelTrade    Channel = "TRADE"
	ChannelTransfer Channel = "TRANSFER"
)

var ErrUnknownChannel = errors.New("unknown channel")

// Valid reports whether the channel is part of the known set.
func (c Channel) Valid() bool {
	switch c {
	case ChannelOrder, ChannelTrade, ChannelTransfer:
		return true
	}
	return false
}

// Type tags the lifecycle transition an event carries.
type Type string

const (
	TypeRequestPending       Type = "request.pending"
	TypeRequestAcknowledged  Type = "request.acknowledged"
	TypeRequestRejected      Type = "request.rejected"
	TypeRequestCancelPending Type = "request.cancel_pending"
	TypeRequestCancelled     Type = "request.cancelled"
	TypeRequestFinalized     Type = "request.finalized"
	TypeTransferTopup        Type = "transfer.topup"
)

// Event is one lifecycle transition pushed to subscribed clients.
type Event struct {
	ID              string    `json:"id"`
	Channel         Channel   `json:"channel"`
	Type            Type      `json:"type"`
	ClientRequestID string    `json:"client_request_id,omitempty"`
	VenueRequestID  string    `json:"venue_request_id,omitempty"`
	Payload         any       `json:"payload,omitempty"`
	At              time.Time `json:"at"`
}

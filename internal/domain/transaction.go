package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction represents a transaction submitted for risk scoring
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AccountID uuid.UUID `json:"account_id"`

	// Transaction details
	Type      string          `json:"type"`      // TRANSFER, DEPOSIT, WITHDRAWAL, PAYMENT
	Direction string          `json:"direction"` // INBOUND, OUTBOUND
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`

	// Parties
	SenderCountry   string `json:"sender_country,omitempty"`
	ReceiverCountry string `json:"receiver_country,omitempty"`

	// Context
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Channel     string `json:"channel"` // MOBILE, WEB, BRANCH, API

	// Device/Session
	IPAddress string `json:"ip_address,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`

	// Timestamps
	InitiatedAt time.Time `json:"initiated_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetCounterpartyCountry returns the country of the counterparty
func (t *Transaction) GetCounterpartyCountry() string {
	if t.Direction == "OUTBOUND" {
		return t.ReceiverCountry
	}
	return t.SenderCountry
}

// IsCrossBorder returns true if the transaction crosses borders
func (t *Transaction) IsCrossBorder() bool {
	return t.SenderCountry != "" && t.ReceiverCountry != "" &&
		t.SenderCountry != t.ReceiverCountry
}

// AmountFloat returns the amount as a float64 for scoring math
func (t *Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}

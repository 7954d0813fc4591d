package domain

import "time"

// ============================================================
// Session-scoped values: pages, confirmations, notifications, events
// ============================================================

// Page identifies a screen of the external navigation surface.
type Page string

const (
	PageDashboard    Page = "dashboard"
	PageTransactions Page = "transactions"
	PageAccounts     Page = "accounts"
	PageSettings     Page = "settings"
)

// Pages in navigation order.
var Pages = []Page{PageDashboard, PageTransactions, PageAccounts, PageSettings}

// ActionKind tags the destructive action held by a pending confirmation.
type ActionKind string

const (
	ActionDeleteAccount     ActionKind = "delete_account"
	ActionDeleteTransaction ActionKind = "delete_transaction"
)

// PendingAction is resolved against the store when the user confirms.
type PendingAction struct {
	Kind ActionKind `json:"kind"`
	ID   string     `json:"id"`
}

// PendingConfirmation is the single open confirm/cancel prompt.
type PendingConfirmation struct {
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Action    PendingAction `json:"action"`
	CreatedAt time.Time     `json:"created_at"`
}

// Severity of a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a short-lived user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind names an applied ledger mutation.
type EventKind string

const (
	EventAccountCreated     EventKind = "account.created"
	EventAccountUpdated     EventKind = "account.updated"
	EventAccountDeleted     EventKind = "account.deleted"
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
)

// LedgerEvent is published after a mutation has been applied.
type LedgerEvent struct {
	Kind     EventKind `json:"kind"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
}

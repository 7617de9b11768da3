package model

import "time"

// Cart holds a customer's reservation intents until checkout.  A cart line
// is advisory: it does not consume capacity.
type Cart struct {
	ID        string     `json:"id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartLine is one reservation intent: a session and a number of persons.
type CartLine struct {
	LineID    string  `json:"lineId"`
	SessionID uint64  `json:"sessionId"`
	ProductID *uint64 `json:"productId,omitempty"`
	Persons   int     `json:"persons"`
}

// HeldFor sums the persons held for sessionID, skipping the line with
// excludeLineID (pass "" to count every line).
func (c *Cart) HeldFor(sessionID uint64, excludeLineID string) int {
	n := 0
	for _, l := range c.Lines {
		if l.SessionID == sessionID && l.LineID != excludeLineID {
			n += l.Persons
		}
	}
	return n
}

// Line returns the line with the given id.
func (c *Cart) Line(lineID string) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].LineID == lineID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// OrderLine is the metadata a cart line carries into an order.  SessionID
// may be zero for orders created by platforms that only know the catalog
// product; ProductID is then used to resolve the session.
type OrderLine struct {
	SessionID uint64  `json:"sessionId,omitempty"`
	ProductID *uint64 `json:"productId,omitempty"`
	Quantity  int     `json:"quantity"`
}

// LineStatus is the ledger outcome for one order line.
type LineStatus string

const (
	LineApplied   LineStatus = "applied"   // capacity decremented
	LineRejected  LineStatus = "rejected"  // decrement refused, order needs attention
	LineDuplicate LineStatus = "duplicate" // already processed by an earlier delivery
)

// LineOutcome reports what the ledger did with one order line.
type LineOutcome struct {
	LineNo    int        `json:"lineNo"`
	SessionID uint64     `json:"sessionId,omitempty"`
	Quantity  int        `json:"quantity"`
	Status    LineStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
}

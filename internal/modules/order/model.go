package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type says whether the dealer bought or sold the watch.
type Type string

const (
	TypePurchase Type = "purchase"
	TypeSale     Type = "sale"
)

func (t Type) Valid() bool { return t == TypePurchase || t == TypeSale }

// PaymentMethod records how the order was settled.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer:
		return true
	}
	return false
}

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is a purchase or sale of one watch. Only Status and Notes change
// after creation.
type Order struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	OrderNumber   string          `json:"order_number"`
	Type          Type            `json:"order_type"`
	CustomerID    string          `json:"customer_id,omitempty"`
	WatchID       string          `json:"watch_id"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        Status          `json:"status"`
	OrderedAt     time.Time       `json:"ordered_at"`
	Notes         string          `json:"notes,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a copy. Orders hold no reference fields.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

// IsCompletedSale reports whether o is the order that marks its watch sold.
func (o *Order) IsCompletedSale() bool {
	return o.Type == TypeSale && o.Status == StatusCompleted
}

// Draft is the input for an order created outside the sale workflow.
type Draft struct {
	Type          Type            `json:"order_type"`
	CustomerID    string          `json:"customer_id,omitempty"`
	WatchID       string          `json:"watch_id"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        Status          `json:"status,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// Build validates the draft and assigns an order number. A completed sale
// cannot be built here; it is only produced by completing a sale.
func (d Draft) Build(now time.Time) (*Order, error) {
	o := &Order{
		Type:          d.Type,
		CustomerID:    strings.TrimSpace(d.CustomerID),
		WatchID:       strings.TrimSpace(d.WatchID),
		SalePrice:     d.SalePrice.Round(2),
		PaymentMethod: d.PaymentMethod,
		Status:        d.Status,
		Notes:         d.Notes,
		OrderedAt:     now.UTC(),
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.IsCompletedSale() {
		return nil, apperr.Validation("a completed sale can only be recorded by completing the sale")
	}
	o.OrderNumber = GenerateNumber(o.Type, now)
	return o, nil
}

func (o *Order) validate() error {
	if !o.Type.Valid() {
		return apperr.Validation("invalid order_type %q", o.Type)
	}
	if o.WatchID == "" {
		return apperr.Validation("watch_id is required")
	}
	if o.Type == TypeSale && o.CustomerID == "" {
		return apperr.Validation("customer_id is required for a sale")
	}
	if !o.PaymentMethod.Valid() {
		return apperr.Validation("invalid payment_method %q", o.PaymentMethod)
	}
	if !o.Status.Valid() {
		return apperr.Validation("invalid status %q", o.Status)
	}
	if o.SalePrice.IsNegative() {
		return apperr.Validation("sale_price cannot be negative")
	}
	return nil
}

// Patch is a partial update. A status change must carry the version the
// caller last saw.
type Patch struct {
	Status          *Status `json:"status,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	ExpectedVersion int     `json:"expected_version,omitempty"`
}

func (p Patch) IsEmpty() bool { return p.Status == nil && p.Notes == nil }

// Validate checks field constraints only.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return apperr.Validation("only status and notes can be updated")
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return apperr.Validation("invalid status %q", *p.Status)
		}
		if p.ExpectedVersion <= 0 {
			return apperr.Validation("expected_version is required for status changes")
		}
	}
	return nil
}

// Apply returns a copy of o with the patch applied.
func (p Patch) Apply(o *Order) *Order {
	out := o.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out
}

// validTransitions defines the allowed status state machine.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CheckStatusChange validates a direct status change on o. Sale orders may
// not enter or leave completed this way, since that would desynchronise the
// watch's sold state.
func CheckStatusChange(o *Order, to Status) error {
	if o.Status == to {
		return nil
	}
	if o.Type == TypeSale && (to == StatusCompleted || o.Status == StatusCompleted) {
		return apperr.Conflict("sale order %s can only be completed or reversed through the sale workflow", o.OrderNumber)
	}
	for _, s := range validTransitions[o.Status] {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("cannot transition order from %s to %s", o.Status, to)
}

// CheckDelete rejects removing a completed order.
func CheckDelete(o *Order) error {
	if o.Status == StatusCompleted {
		return apperr.PermissionDenied("completed order %s cannot be deleted", o.OrderNumber)
	}
	return nil
}

var numberPrefix = map[Type]string{
	TypePurchase: "PUR",
	TypeSale:     "SAL",
}

// GenerateNumber creates a human-readable order number: SAL-YYYYMMDD-XXXXXX
func GenerateNumber(t Type, now time.Time) string {
	prefix, ok := numberPrefix[t]
	if !ok {
		prefix = "ORD"
	}
	date := now.UTC().Format("20060102")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, date, suffix)
}

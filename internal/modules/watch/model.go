package watch

import (
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/shopspring/decimal"
)

// Condition grades a watch's physical state.
type Condition string

const (
	ConditionNew       Condition = "New"
	ConditionExcellent Condition = "Excellent"
	ConditionVeryGood  Condition = "Very Good"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
)

// Valid reports whether c is a known grade.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionExcellent, ConditionVeryGood, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Status is the stock lifecycle state governing sale eligibility.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusConsignment Status = "consignment"
	StatusReserved    Status = "reserved"
	StatusSold        Status = "sold"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusConsignment, StatusReserved, StatusSold:
		return true
	}
	return false
}

// Watch is a stock item. Status is sold if and only if exactly one completed
// sale order references it.
type Watch struct {
	ID                 string          `json:"id"`
	CompanyID          string          `json:"company_id"`
	Brand              string          `json:"brand"`
	Model              string          `json:"model"`
	Reference          string          `json:"reference,omitempty"`
	Serial             string          `json:"serial,omitempty"`
	Material           string          `json:"material,omitempty"`
	Dial               string          `json:"dial,omitempty"`
	Condition          Condition       `json:"condition"`
	ConditionNotes     string          `json:"condition_notes,omitempty"`
	Year               int             `json:"year,omitempty"`
	SetCompleteness    string          `json:"set_completeness,omitempty"`
	CostPrice          decimal.Decimal `json:"cost_price"`
	TradePrice         decimal.Decimal `json:"trade_price"`
	RetailPrice        decimal.Decimal `json:"retail_price"`
	Status             Status          `json:"status"`
	AssignedCustomerID string          `json:"assigned_customer_id,omitempty"`
	Images             []string        `json:"images"`
	Description        string          `json:"description,omitempty"`
	Version            int             `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Clone returns a deep copy.
func (w *Watch) Clone() *Watch {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Images = append([]string{}, w.Images...)
	return &cp
}

// IsSold reports whether the watch reached the terminal sold state.
func (w *Watch) IsSold() bool {
	return w.Status == StatusSold
}

// Draft is the input for a new stock item. Trade and retail prices are optional.
type Draft struct {
	Brand           string           `json:"brand"`
	Model           string           `json:"model"`
	Reference       string           `json:"reference"`
	Serial          string           `json:"serial"`
	Material        string           `json:"material"`
	Dial            string           `json:"dial"`
	Condition       Condition        `json:"condition"`
	ConditionNotes  string           `json:"condition_notes"`
	Year            int              `json:"year"`
	SetCompleteness string           `json:"set_completeness"`
	CostPrice       decimal.Decimal  `json:"cost_price"`
	TradePrice      *decimal.Decimal `json:"trade_price,omitempty"`
	RetailPrice     *decimal.Decimal `json:"retail_price,omitempty"`
	Status          Status           `json:"status,omitempty"`
	Images          []string         `json:"images"`
	Description     string           `json:"description"`
}

// Build validates the draft and returns a watch with derived prices.
func (d Draft) Build() (*Watch, error) {
	w := &Watch{
		Brand:           strings.TrimSpace(d.Brand),
		Model:           strings.TrimSpace(d.Model),
		Reference:       strings.TrimSpace(d.Reference),
		Serial:          strings.TrimSpace(d.Serial),
		Material:        d.Material,
		Dial:            d.Dial,
		Condition:       d.Condition,
		ConditionNotes:  d.ConditionNotes,
		Year:            d.Year,
		SetCompleteness: d.SetCompleteness,
		Status:          d.Status,
		Images:          append([]string{}, d.Images...),
		Description:     d.Description,
	}
	if w.Brand == "" {
		return nil, apperr.Validation("brand is required")
	}
	if w.Model == "" {
		return nil, apperr.Validation("model is required")
	}
	if !w.Condition.Valid() {
		return nil, apperr.Validation("invalid condition %q", d.Condition)
	}
	if d.Year < 0 || d.Year > time.Now().Year()+1 {
		return nil, apperr.Validation("invalid year %d", d.Year)
	}
	if w.Status == "" {
		w.Status = StatusAvailable
	}
	if w.Status == StatusSold {
		return nil, apperr.Validation("a new watch cannot start as sold")
	}
	if !w.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", d.Status)
	}

	cost, trade, retail, err := DerivePrices(d.CostPrice, d.TradePrice, d.RetailPrice)
	if err != nil {
		return nil, err
	}
	w.CostPrice, w.TradePrice, w.RetailPrice = cost, trade, retail
	return w, nil
}

// Patch is a partial update. Changing Status or the assignment is a lifecycle
// change and must carry the version the caller last saw.
type Patch struct {
	Brand           *string          `json:"brand,omitempty"`
	Model           *string          `json:"model,omitempty"`
	Reference       *string          `json:"reference,omitempty"`
	Serial          *string          `json:"serial,omitempty"`
	Material        *string          `json:"material,omitempty"`
	Dial            *string          `json:"dial,omitempty"`
	Condition       *Condition       `json:"condition,omitempty"`
	ConditionNotes  *string          `json:"condition_notes,omitempty"`
	Year            *int             `json:"year,omitempty"`
	SetCompleteness *string          `json:"set_completeness,omitempty"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	TradePrice      *decimal.Decimal `json:"trade_price,omitempty"`
	RetailPrice     *decimal.Decimal `json:"retail_price,omitempty"`
	Images          *[]string        `json:"images,omitempty"`
	Description     *string          `json:"description,omitempty"`

	Status                *Status `json:"status,omitempty"`
	AssignedCustomerID    *string `json:"assigned_customer_id,omitempty"`
	ClearAssignedCustomer bool    `json:"clear_assigned_customer,omitempty"`
	ExpectedVersion       int     `json:"expected_version,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{ExpectedVersion: p.ExpectedVersion}
}

// ChangesLifecycle reports whether the patch touches status or assignment.
func (p Patch) ChangesLifecycle() bool {
	return p.Status != nil || p.AssignedCustomerID != nil || p.ClearAssignedCustomer
}

// Validate checks field constraints. Lifecycle rules that depend on the
// current state are enforced by the workflow.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return apperr.Validation("no fields to update")
	}
	if p.AssignedCustomerID != nil && p.ClearAssignedCustomer {
		return apperr.Validation("cannot set and clear assigned_customer_id together")
	}
	if p.AssignedCustomerID != nil && *p.AssignedCustomerID == "" {
		return apperr.Validation("assigned_customer_id cannot be empty; clear it instead")
	}
	if p.ChangesLifecycle() && p.ExpectedVersion <= 0 {
		return apperr.Validation("expected_version is required for status or assignment changes")
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validation("invalid status %q", *p.Status)
	}
	if p.Condition != nil && !p.Condition.Valid() {
		return apperr.Validation("invalid condition %q", *p.Condition)
	}
	if p.Brand != nil && strings.TrimSpace(*p.Brand) == "" {
		return apperr.Validation("brand cannot be empty")
	}
	if p.Model != nil && strings.TrimSpace(*p.Model) == "" {
		return apperr.Validation("model cannot be empty")
	}
	for _, price := range []*decimal.Decimal{p.CostPrice, p.TradePrice, p.RetailPrice} {
		if price != nil && price.IsNegative() {
			return apperr.Validation("prices cannot be negative")
		}
	}
	return nil
}

// Apply returns a copy of w with the patch applied. Version is not bumped.
func (p Patch) Apply(w *Watch) *Watch {
	out := w.Clone()
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&out.Brand, p.Brand)
	setString(&out.Model, p.Model)
	setString(&out.Reference, p.Reference)
	setString(&out.Serial, p.Serial)
	setString(&out.Material, p.Material)
	setString(&out.Dial, p.Dial)
	setString(&out.ConditionNotes, p.ConditionNotes)
	setString(&out.SetCompleteness, p.SetCompleteness)
	setString(&out.Description, p.Description)
	if p.Condition != nil {
		out.Condition = *p.Condition
	}
	if p.Year != nil {
		out.Year = *p.Year
	}
	if p.CostPrice != nil {
		out.CostPrice = *p.CostPrice
	}
	if p.TradePrice != nil {
		out.TradePrice = *p.TradePrice
	}
	if p.RetailPrice != nil {
		out.RetailPrice = *p.RetailPrice
	}
	if p.Images != nil {
		out.Images = append([]string{}, (*p.Images)...)
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.AssignedCustomerID != nil {
		out.AssignedCustomerID = *p.AssignedCustomerID
	}
	if p.ClearAssignedCustomer {
		out.AssignedCustomerID = ""
	}
	return out
}

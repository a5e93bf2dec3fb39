package customer

import (
	"net/mail"
	"strings"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
)

// Address is a customer's postal address.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// BankingDetails are the payout details held for customers who sell to the dealer.
type BankingDetails struct {
	SortCode      string `json:"sort_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
}

// IsZero reports whether no banking field is set.
func (b BankingDetails) IsZero() bool {
	return b == BankingDetails{}
}

// NormaliseBanking trims every field and returns nil when nothing remains.
func NormaliseBanking(b *BankingDetails) *BankingDetails {
	if b == nil {
		return nil
	}
	n := BankingDetails{
		SortCode:      strings.TrimSpace(b.SortCode),
		AccountNumber: strings.TrimSpace(b.AccountNumber),
		BankName:      strings.TrimSpace(b.BankName),
		IBAN:          strings.ToUpper(strings.ReplaceAll(b.IBAN, " ", "")),
		SWIFT:         strings.ToUpper(strings.TrimSpace(b.SWIFT)),
	}
	if n.IsZero() {
		return nil
	}
	return &n
}

// Customer is a private buyer or seller known to the dealer. Owned by its company;
// watches and orders only reference it.
type Customer struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Email          string          `json:"email"`
	Mobile         string          `json:"mobile,omitempty"`
	Address        Address         `json:"address"`
	Banking        *BankingDetails `json:"banking,omitempty"`
	ProfilePicture string          `json:"profile_picture,omitempty"`
	IDDocuments    []string        `json:"id_documents"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasBankingDetails reports whether banking details are on file. Banking is
// normalised on the way in, so a non-nil value always has content.
func (c *Customer) HasBankingDetails() bool {
	return c.Banking != nil
}

// FullName returns "First Last".
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Clone returns a deep copy.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Banking != nil {
		b := *c.Banking
		cp.Banking = &b
	}
	cp.IDDocuments = append([]string{}, c.IDDocuments...)
	return &cp
}

// Normalise trims names, lower-cases the email and collapses empty banking details.
func (c *Customer) Normalise() {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = NormaliseEmail(c.Email)
	c.Mobile = strings.TrimSpace(c.Mobile)
	c.Banking = NormaliseBanking(c.Banking)
	if c.IDDocuments == nil {
		c.IDDocuments = []string{}
	}
}

// Validate checks the fields required to persist a customer.
func (c *Customer) Validate() error {
	if c.FirstName == "" {
		return apperr.Validation("first_name is required")
	}
	if c.LastName == "" {
		return apperr.Validation("last_name is required")
	}
	return validateEmail(c.Email)
}

// NormaliseEmail is the canonical form used for per-company uniqueness.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation("invalid email %q", email)
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged. A non-nil Banking
// replaces the stored details; an all-empty Banking clears them.
type Patch struct {
	FirstName      *string         `json:"first_name,omitempty"`
	LastName       *string         `json:"last_name,omitempty"`
	Email          *string         `json:"email,omitempty"`
	Mobile         *string         `json:"mobile,omitempty"`
	Line1          *string         `json:"line1,omitempty"`
	Line2          *string         `json:"line2,omitempty"`
	City           *string         `json:"city,omitempty"`
	Postcode       *string         `json:"postcode,omitempty"`
	Country        *string         `json:"country,omitempty"`
	Banking        *BankingDetails `json:"banking,omitempty"`
	ProfilePicture *string         `json:"profile_picture,omitempty"`
	IDDocuments    *[]string       `json:"id_documents,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Validate checks the patched values that have constraints.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return apperr.Validation("no fields to update")
	}
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return apperr.Validation("first_name cannot be empty")
	}
	if p.LastName != nil && strings.TrimSpace(*p.LastName) == "" {
		return apperr.Validation("last_name cannot be empty")
	}
	if p.Email != nil {
		return validateEmail(NormaliseEmail(*p.Email))
	}
	return nil
}

// Apply returns a copy of c with the patch applied.
func (p Patch) Apply(c *Customer) *Customer {
	out := c.Clone()
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&out.FirstName, p.FirstName)
	set(&out.LastName, p.LastName)
	set(&out.Email, p.Email)
	set(&out.Mobile, p.Mobile)
	set(&out.Address.Line1, p.Line1)
	set(&out.Address.Line2, p.Line2)
	set(&out.Address.City, p.City)
	set(&out.Address.Postcode, p.Postcode)
	set(&out.Address.Country, p.Country)
	set(&out.ProfilePicture, p.ProfilePicture)
	if p.Banking != nil {
		out.Banking = p.Banking
	}
	if p.IDDocuments != nil {
		out.IDDocuments = append([]string{}, (*p.IDDocuments)...)
	}
	out.Normalise()
	return out
}

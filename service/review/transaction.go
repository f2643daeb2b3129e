package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of money movement. Values are lowercase on the wire.
type TransactionType string

const (
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDeposit    TransactionType = "deposit"
	TypeTransfer   TransactionType = "transfer"
)

// TransactionTypes lists the types in display order.
var TransactionTypes = []TransactionType{TypeWithdrawal, TypeDeposit, TypeTransfer}

// ParseTransactionType normalizes any casing ("Withdrawal", "DEPOSIT") to the wire form.
// The result may still be invalid; check Valid.
func ParseTransactionType(s string) TransactionType {
	return TransactionType(strings.ToLower(strings.TrimSpace(s)))
}

// UnmarshalText accepts any casing and stores the lowercase form.
func (t *TransactionType) UnmarshalText(text []byte) error {
	*t = ParseTransactionType(string(text))
	return nil
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeWithdrawal, TypeDeposit, TypeTransfer:
		return true
	}
	return false
}

// Currency is an ISO currency code accepted by the ledger.
type Currency string

const (
	CurrencyRON Currency = "RON"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{CurrencyRON, CurrencyEUR}

// ParseCurrency normalizes a code to its uppercase form. Check Valid on the result.
func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

// UnmarshalText stores the uppercase form of the code.
func (c *Currency) UnmarshalText(text []byte) error {
	*c = ParseCurrency(string(text))
	return nil
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyRON || c == CurrencyEUR
}

// RawDate is a transaction date exactly as the server sent it. Servers send either
// a date/timestamp string or a numeric Unix timestamp; both are kept as text.
// Use NormalizeDate to render it for editing.
type RawDate string

// UnmarshalJSON accepts a JSON string, a JSON number, or null.
func (d *RawDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*d = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		*d = RawDate(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid date %s: %w", string(data), err)
	}
	*d = RawDate(n.String())
	return nil
}

// Transaction is a single candidate transaction under review.
type Transaction struct {
	ExternalID          string           `json:"external_id"`
	Description         string           `json:"description"`
	Date                RawDate          `json:"date"`
	SourceAccount       string           `json:"source_account"`
	DestinationAccount  string           `json:"destination_account"`
	Amount              decimal.Decimal  `json:"amount"`
	Type                TransactionType  `json:"type"`
	CategoryName        string           `json:"category_name"`
	CurrencyCode        Currency         `json:"currency_code"`
	ForeignAmount       *decimal.Decimal `json:"foreign_amount,omitempty"`
	ForeignCurrencyCode *Currency        `json:"foreign_currency_code,omitempty"`
	Notes               string           `json:"notes"`
}

// ErrIncomplete is returned when a required field is missing.
var ErrIncomplete = errors.New("transaction is incomplete")

// Validate checks that the required fields are present. It does not judge the values,
// so a zero amount is valid. Whether an amount was sent at all is only visible on the
// wire; see ClientMessage.ValidateTransaction.
func (t Transaction) Validate() error {
	return incomplete(t.missingFields())
}

func (t Transaction) missingFields() []string {
	var missing []string
	if strings.TrimSpace(t.ExternalID) == "" {
		missing = append(missing, "external_id")
	}
	if strings.TrimSpace(t.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(string(t.Date)) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(t.SourceAccount) == "" {
		missing = append(missing, "source_account")
	}
	if strings.TrimSpace(t.DestinationAccount) == "" {
		missing = append(missing, "destination_account")
	}
	if t.Type == "" {
		missing = append(missing, "type")
	}
	if t.CurrencyCode == "" {
		missing = append(missing, "currency_code")
	}
	return missing
}

func incomplete(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
}

// FormValues is the editable, display-ready view of a Transaction. Every field is text;
// the date is normalized to YYYY-MM-DD and amounts carry two fractional digits.
type FormValues struct {
	ExternalID          string
	Description         string
	Date                string
	SourceAccount       string
	DestinationAccount  string
	Amount              string
	Type                string
	CategoryName        string
	CurrencyCode        string
	ForeignAmount       string
	ForeignCurrencyCode string
	Notes               string
}

// DefaultFormValues is what the form shows when no transaction is under review.
func DefaultFormValues() FormValues {
	return FormValues{
		Type:         string(TypeWithdrawal),
		CurrencyCode: string(CurrencyRON),
	}
}

// FormValues renders t for editing. The batch copy is left untouched.
func (t Transaction) FormValues() FormValues {
	v := FormValues{
		ExternalID:         t.ExternalID,
		Description:        t.Description,
		Date:               NormalizeDate(string(t.Date)),
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             t.Amount.StringFixed(2),
		Type:               string(t.Type),
		CategoryName:       t.CategoryName,
		CurrencyCode:       string(t.CurrencyCode),
		Notes:              t.Notes,
	}
	if t.ForeignAmount != nil {
		v.ForeignAmount = t.ForeignAmount.StringFixed(2)
	}
	if t.ForeignCurrencyCode != nil {
		v.ForeignCurrencyCode = string(*t.ForeignCurrencyCode)
	}
	return v
}

// Transaction parses the edited form back into a submission payload.
// Only the presence of required fields is checked.
func (v FormValues) Transaction() (Transaction, error) {
	var missing []string
	require := func(name, value string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	t := Transaction{
		ExternalID:         strings.TrimSpace(v.ExternalID),
		Description:        require("description", v.Description),
		Date:               RawDate(require("date", v.Date)),
		SourceAccount:      require("source_account", v.SourceAccount),
		DestinationAccount: require("destination_account", v.DestinationAccount),
		CategoryName:       strings.TrimSpace(v.CategoryName),
		Notes:              v.Notes,
	}
	amount := require("amount", v.Amount)
	typ := require("type", v.Type)
	currency := require("currency_code", v.CurrencyCode)
	if err := incomplete(missing); err != nil {
		return Transaction{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	t.Amount = parsed.Round(2)
	t.Type = ParseTransactionType(typ)
	t.CurrencyCode = ParseCurrency(currency)

	if fa := strings.TrimSpace(v.ForeignAmount); fa != "" {
		foreign, err := decimal.NewFromString(fa)
		if err != nil {
			return Transaction{}, fmt.Errorf("invalid foreign amount %q: %w", fa, err)
		}
		foreign = foreign.Round(2)
		t.ForeignAmount = &foreign
	}
	if fc := strings.TrimSpace(v.ForeignCurrencyCode); fc != "" {
		c := ParseCurrency(fc)
		t.ForeignCurrencyCode = &c
	}
	return t, nil
}

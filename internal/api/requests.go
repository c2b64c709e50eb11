package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type createAccountBody struct {
	OwnerID        string          `json:"owner_id" validate:"omitempty,uuid"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,alpha"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferBody struct {
	FromAccountID string          `json:"from_account_id" validate:"required,uuid"`
	ToAccountID   string          `json:"to_account_id" validate:"required,uuid,nefield=FromAccountID"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   string          `json:"reference_id" validate:"omitempty,uuid"`
}

// decode reads a JSON body into dst and runs its validation tags. The returned
// message is safe to show to the client.
func decode(w http.ResponseWriter, r *http.Request, dst any) (string, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return "Malformed JSON body", false
	}
	if err := validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Sprintf("Field %s failed on '%s'", fe.Field(), fe.Tag()), false
		}
		return "Invalid request", false
	}
	return "", true
}

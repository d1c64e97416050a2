/**
 * @description
 * This file builds the canonical request bodies for the dLocal operations:
 * KYC verifications (remitter and beneficiary), payments, and payouts. Inputs
 * are typed structs with documented defaults; the composed bodies distinguish
 * "present but empty" fields (always serialized) from the omission-eligible
 * subset (pointer fields with omitempty), because the remote schema treats key
 * presence as meaningful.
 *
 * @dependencies
 * - strings, strconv: Standard Go libraries for card number sanitization and
 *   expiry coercion.
 */
package dlocal

import (
	"strconv"
	"strings"
)

// Client roles accepted by the KYC verification API.
const (
	ClientTypeRemitter    = "REMITTER"
	ClientTypeBeneficiary = "BENEFICIARY"
)

// Payment endpoints. Raw card data must go to the secure endpoint; token and
// stored-card payments use the standard one. The composer decides the route.
const (
	PaymentsPath       = "/payments"
	SecurePaymentsPath = "/secure_payments"
)

// VerificationInput is the caller-supplied field set for creating a KYC
// verification. Field keys mirror the console form names. Unset fields are
// transmitted as empty strings except where a default is documented.
type VerificationInput struct {
	NotificationURL   string `json:"notification_url"`
	ExternalReference string `json:"external_reference"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	DocumentType      string `json:"document_type"` // defaults to TAX_ID
	DocumentNumber    string `json:"document_number"`
	DocumentCountry   string `json:"document_country"`
	DateOfBirth       string `json:"date_of_birth"`
	PlaceOfBirth      string `json:"place_of_birth"`
	Gender            string `json:"gender"` // remitter only; defaults to MALE
	Nationality       string `json:"nationality"`
	MaritalStatus     string `json:"marital_status"` // remitter only
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	IsPEP             bool   `json:"is_pep"` // remitter only
	IsSO              bool   `json:"is_so"`  // remitter only
	Profession        string `json:"profession"`      // remitter only
	SourceOfFunds     string `json:"source_of_funds"` // remitter only
	ConsentAccepted   *bool  `json:"consent_accepted"` // remitter only; defaults to true

	AddressCountry      string `json:"address_country"`
	AddressCity         string `json:"address_city"`
	AddressZipCode      string `json:"address_zip_code"`
	AddressState        string `json:"address_state"`
	AddressStreetName   string `json:"address_street_name"`
	AddressStreetNumber string `json:"address_street_number"`

	// Bank details are used for beneficiary verifications only. The account
	// number is always transmitted; the remaining fields are omitted from the
	// body entirely when empty.
	BankAccountNumber string `json:"bank_account_number"`
	BankCode          string `json:"bank_code"`
	BankBranch        string `json:"bank_branch"`
	BankAccountType   string `json:"bank_account_type"`
}

// addressBody is always present in verification bodies, empty strings and all.
type addressBody struct {
	Country      string `json:"country"`
	City         string `json:"city"`
	ZipCode      string `json:"zip_code"`
	State        string `json:"state"`
	StreetName   string `json:"street_name"`
	StreetNumber string `json:"street_number"`
}

type consentBody struct {
	Type     string `json:"type"`
	Accepted bool   `json:"accepted"`
}

type bankBody struct {
	AccountNumber string  `json:"account_number"`
	Code          *string `json:"code,omitempty"`
	Branch        *string `json:"branch,omitempty"`
	AccountType   *string `json:"account_type,omitempty"`
}

// RemitterVerificationBody is the wire body for a remitter KYC verification.
type RemitterVerificationBody struct {
	Type            string `json:"type"`
	NotificationURL string `json:"notification_url"`
	Attributes      struct {
		ExternalReference string `json:"external_reference"`
		Client            struct {
			Type           string      `json:"type"`
			FirstName      string      `json:"first_name"`
			LastName       string      `json:"last_name"`
			DocumentType   string      `json:"document_type"`
			DocumentNumber string      `json:"document_number"`
			DocumentCountry string     `json:"document_country"`
			DateOfBirth    string      `json:"date_of_birth"`
			PlaceOfBirth   string      `json:"place_of_birth"`
			Gender         string      `json:"gender"`
			Nationality    string      `json:"nationality"`
			MaritalStatus  string      `json:"marital_status"`
			Phone          string      `json:"phone"`
			Email          string      `json:"email"`
			IsPEP          bool        `json:"is_pep"`
			IsSO           bool        `json:"is_so"`
			Profession     string      `json:"profession"`
			SourceOfFunds  string      `json:"source_of_funds"`
			Consent        consentBody `json:"consent"`
			Address        addressBody `json:"address"`
		} `json:"client"`
	} `json:"attributes"`
}

// BeneficiaryVerificationBody is the wire body for a beneficiary KYC
// verification. Unlike the remitter body it carries a bank block and none of
// the remitter-only compliance fields.
type BeneficiaryVerificationBody struct {
	Type            string `json:"type"`
	NotificationURL string `json:"notification_url"`
	Attributes      struct {
		ExternalReference string `json:"external_reference"`
		Client            struct {
			Type            string      `json:"type"`
			FirstName       string      `json:"first_name"`
			LastName        string      `json:"last_name"`
			Nationality     string      `json:"nationality"`
			DocumentType    string      `json:"document_type"`
			DocumentNumber  string      `json:"document_number"`
			DocumentCountry string      `json:"document_country"`
			DateOfBirth     string      `json:"date_of_birth"`
			PlaceOfBirth    string      `json:"place_of_birth"`
			Phone           string      `json:"phone"`
			Email           string      `json:"email"`
			Bank            bankBody    `json:"bank"`
			Address         addressBody `json:"address"`
		} `json:"client"`
	} `json:"attributes"`
}

// ComposeRemitterVerification builds the remitter verification body.
// Defaults: document_type TAX_ID, gender MALE, consent TERMS_AND_CONDITIONS
// accepted unless explicitly declined.
func ComposeRemitterVerification(in VerificationInput) RemitterVerificationBody {
	body := RemitterVerificationBody{
		Type:            "REMITTANCE",
		NotificationURL: in.NotificationURL,
	}
	body.Attributes.ExternalReference = in.ExternalReference

	c := &body.Attributes.Client
	c.Type = ClientTypeRemitter
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.DocumentType = defaultString(in.DocumentType, "TAX_ID")
	c.DocumentNumber = in.DocumentNumber
	c.DocumentCountry = in.DocumentCountry
	c.DateOfBirth = in.DateOfBirth
	c.PlaceOfBirth = in.PlaceOfBirth
	c.Gender = defaultString(in.Gender, "MALE")
	c.Nationality = in.Nationality
	c.MaritalStatus = in.MaritalStatus
	c.Phone = in.Phone
	c.Email = in.Email
	c.IsPEP = in.IsPEP
	c.IsSO = in.IsSO
	c.Profession = in.Profession
	c.SourceOfFunds = in.SourceOfFunds
	c.Consent = consentBody{Type: "TERMS_AND_CONDITIONS", Accepted: in.ConsentAccepted == nil || *in.ConsentAccepted}
	c.Address = composeAddress(in)
	return body
}

// ComposeBeneficiaryVerification builds the beneficiary verification body.
// The bank block always carries the account number; code, branch, and account
// type appear only when supplied.
func ComposeBeneficiaryVerification(in VerificationInput) BeneficiaryVerificationBody {
	body := BeneficiaryVerificationBody{
		Type:            "REMITTANCE",
		NotificationURL: in.NotificationURL,
	}
	body.Attributes.ExternalReference = in.ExternalReference

	c := &body.Attributes.Client
	c.Type = ClientTypeBeneficiary
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Nationality = in.Nationality
	c.DocumentType = defaultString(in.DocumentType, "TAX_ID")
	c.DocumentNumber = in.DocumentNumber
	c.DocumentCountry = in.DocumentCountry
	c.DateOfBirth = in.DateOfBirth
	c.PlaceOfBirth = in.PlaceOfBirth
	c.Phone = in.Phone
	c.Email = in.Email
	c.Bank = bankBody{
		AccountNumber: in.BankAccountNumber,
		Code:          optional(in.BankCode),
		Branch:        optional(in.BankBranch),
		AccountType:   optional(in.BankAccountType),
	}
	c.Address = composeAddress(in)
	return body
}

func composeAddress(in VerificationInput) addressBody {
	return addressBody{
		Country:      in.AddressCountry,
		City:         in.AddressCity,
		ZipCode:      in.AddressZipCode,
		State:        in.AddressState,
		StreetName:   in.AddressStreetName,
		StreetNumber: in.AddressStreetNumber,
	}
}

// CardInput is the card block of a payment request. A non-empty Token selects
// the tokenized path; otherwise the raw card fields are used and the payment
// is routed to the secure endpoint.
type CardInput struct {
	Token           string `json:"token"`
	CardID          string `json:"card_id"`
	HolderName      string `json:"holder_name"`
	Number          string `json:"number"`
	CVV             string `json:"cvv"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	Capture         *bool  `json:"capture"` // defaults to true
}

// PaymentInput is the caller-supplied field set for creating a payment.
type PaymentInput struct {
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"` // defaults to ARS
	Country           string     `json:"country"`  // defaults to AR
	PaymentMethodID   string     `json:"payment_method_id"` // IO, BT, CARD; defaults to IO
	ExternalReference string     `json:"external_reference"`
	PayerName         string     `json:"payer_name"`
	PayerDocument     string     `json:"payer_document"`
	PayerEmail        string     `json:"payer_email"` // omitted from the body when empty
	RemitterUserID    string     `json:"remitter_user_id"`
	BeneficiaryUserID string     `json:"beneficiary_user_id"`
	Subpurpose        string     `json:"subpurpose"`      // defaults to EPREFA
	SourceOfFunds     string     `json:"source_of_funds"` // defaults to SAVINGS
	NotificationURL   string     `json:"notification_url"` // omitted when empty
	Description       string     `json:"description"`      // omitted when empty
	Card              *CardInput `json:"card,omitempty"`
}

type payerBody struct {
	Name     string  `json:"name"`
	Document string  `json:"document"`
	Email    *string `json:"email,omitempty"`
}

type cardBody struct {
	Token           *string `json:"token,omitempty"`
	CardID          *string `json:"card_id,omitempty"`
	HolderName      *string `json:"holder_name,omitempty"`
	Number          *string `json:"number,omitempty"`
	CVV             *string `json:"cvv,omitempty"`
	ExpirationMonth *int    `json:"expiration_month,omitempty"`
	ExpirationYear  *int    `json:"expiration_year,omitempty"`
	Capture         bool    `json:"capture"`
}

// PaymentBody is the wire body for a remittance payment.
type PaymentBody struct {
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Country           string    `json:"country"`
	PaymentMethodID   string    `json:"payment_method_id"`
	PaymentMethodFlow string    `json:"payment_method_flow"`
	Payer             payerBody `json:"payer"`
	OrderID           string    `json:"order_id"`
	RemitterUserID    string    `json:"remitter_user_id"`
	BeneficiaryUserID string    `json:"beneficiary_user_id"`
	Subpurpose        string    `json:"subpurpose"`
	SourceOfFunds     string    `json:"source_of_funds"`
	NotificationURL   *string   `json:"notification_url,omitempty"`
	Card              *cardBody `json:"card,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Signature         bool      `json:"signature"`
}

// ComposePayment builds the payment body and decides the destination path.
// Raw card submissions (a card number without a token or stored card id) must
// route to the secure payments endpoint; everything else uses the standard
// payments endpoint.
func ComposePayment(in PaymentInput) (PaymentBody, string) {
	body := PaymentBody{
		Amount:            in.Amount,
		Currency:          defaultString(in.Currency, "ARS"),
		Country:           defaultString(in.Country, "AR"),
		PaymentMethodID:   defaultString(in.PaymentMethodID, "IO"),
		PaymentMethodFlow: "DIRECT",
		Payer: payerBody{
			Name:     in.PayerName,
			Document: in.PayerDocument,
			Email:    optional(in.PayerEmail),
		},
		OrderID:           in.ExternalReference,
		RemitterUserID:    in.RemitterUserID,
		BeneficiaryUserID: in.BeneficiaryUserID,
		Subpurpose:        defaultString(in.Subpurpose, "EPREFA"),
		SourceOfFunds:     defaultString(in.SourceOfFunds, "SAVINGS"),
		NotificationURL:   optional(in.NotificationURL),
		Description:       optional(in.Description),
		Signature:         true,
	}

	path := PaymentsPath
	if body.PaymentMethodID == "CARD" && in.Card != nil {
		body.Card = composeCard(*in.Card)
		if in.Card.Number != "" && in.Card.Token == "" && in.Card.CardID == "" {
			path = SecurePaymentsPath
		}
	}
	return body, path
}

func composeCard(in CardInput) *cardBody {
	capture := in.Capture == nil || *in.Capture
	if in.Token != "" {
		return &cardBody{Token: optional(in.Token), Capture: capture}
	}
	if in.CardID != "" {
		return &cardBody{CardID: optional(in.CardID), Capture: capture}
	}
	return &cardBody{
		HolderName:      &in.HolderName,
		Number:          stringPtr(SanitizeCardNumber(in.Number)),
		CVV:             &in.CVV,
		ExpirationMonth: optionalInt(in.ExpirationMonth),
		ExpirationYear:  optionalInt(in.ExpirationYear),
		Capture:         capture,
	}
}

// SanitizeCardNumber strips spaces and dashes from a PAN before transmission.
func SanitizeCardNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(number, "-", "")
}

// PayoutInput is the caller-supplied field set for creating a payout. The
// external id is assigned by the caller and is never generated here.
type PayoutInput struct {
	ExternalID              string `json:"external_id"`
	Country                 string `json:"country"`      // defaults to AR
	BankCode                string `json:"bank_code"`    // defaults to "0"
	BankName                string `json:"bank_name"`
	BankProvince            string `json:"bank_province"`
	BankAccount             string `json:"bank_account"`
	AccountType             string `json:"account_type"` // defaults to C
	Amount                  string `json:"amount"`       // decimal string; defaults to "0.00"
	Currency                string `json:"currency"`     // defaults to ARS
	Purpose                 string `json:"purpose"`      // defaults to EPREMT
	RemitterUserID          string `json:"remitter_user_id"`
	BeneficiaryUserID       string `json:"beneficiary_user_id"`
	Subpurpose              string `json:"subpurpose"`      // defaults to EPREFA
	SourceOfFunds           string `json:"source_of_funds"` // defaults to SAVINGS
	NotificationURL         string `json:"notification_url"`          // omitted when empty
	BeneficiaryName         string `json:"beneficiary_name"`          // omitted when empty
	BeneficiaryDocument     string `json:"beneficiary_document"`      // omitted when empty
	BeneficiaryDocumentType string `json:"beneficiary_document_type"` // omitted when empty
}

// PayoutBody is the wire body for the Payouts API. The login and transaction
// key travel in the body in this sub-API, alongside the payload signature
// header computed over the serialized result.
type PayoutBody struct {
	Login             string  `json:"login"`
	Pass              string  `json:"pass"`
	ExternalID        string  `json:"external_id"`
	Country           string  `json:"country"`
	BankCode          string  `json:"bank_code"`
	BankName          string  `json:"bank_name"`
	BankProvince      string  `json:"bank_province"`
	BankAccount       string  `json:"bank_account"`
	AccountType       string  `json:"account_type"`
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	Purpose           string  `json:"purpose"`
	RemitterUserID    string  `json:"remitter_user_id"`
	BeneficiaryUserID string  `json:"beneficiary_user_id"`
	Subpurpose        string  `json:"subpurpose"`
	SourceOfFunds     string  `json:"source_of_funds"`
	Signature         bool    `json:"signature"`
	NotificationURL   *string `json:"notification_url,omitempty"`
	BeneficiaryName   *string `json:"beneficiary_name,omitempty"`
	BeneficiaryDocument     *string `json:"beneficiary_document,omitempty"`
	BeneficiaryDocumentType *string `json:"beneficiary_document_type,omitempty"`
}

// ComposePayout builds the payout body for the given credentials and input.
func ComposePayout(creds Credentials, in PayoutInput) PayoutBody {
	return PayoutBody{
		Login:             creds.Login,
		Pass:              creds.TransactionKey,
		ExternalID:        in.ExternalID,
		Country:           defaultString(in.Country, "AR"),
		BankCode:          defaultString(in.BankCode, "0"),
		BankName:          in.BankName,
		BankProvince:      in.BankProvince,
		BankAccount:       in.BankAccount,
		AccountType:       defaultString(in.AccountType, "C"),
		Amount:            defaultString(in.Amount, "0.00"),
		Currency:          defaultString(in.Currency, "ARS"),
		Purpose:           defaultString(in.Purpose, "EPREMT"),
		RemitterUserID:    in.RemitterUserID,
		BeneficiaryUserID: in.BeneficiaryUserID,
		Subpurpose:        defaultString(in.Subpurpose, "EPREFA"),
		SourceOfFunds:     defaultString(in.SourceOfFunds, "SAVINGS"),
		Signature:         true,
		NotificationURL:   optional(in.NotificationURL),
		BeneficiaryName:   optional(in.BeneficiaryName),
		BeneficiaryDocument:     optional(in.BeneficiaryDocument),
		BeneficiaryDocumentType: optional(in.BeneficiaryDocumentType),
	}
}

// StateUpdateBody is the wire body for the sandbox-only verification state
// transition endpoint.
type StateUpdateBody struct {
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// optional maps the empty string to nil so the key is dropped from the body
// entirely rather than serialized as "".
func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringPtr(value string) *string {
	return &value
}

// optionalInt coerces a non-empty numeric string to an int pointer and drops
// empty or malformed values from the body.
func optionalInt(value string) *int {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &n
}

package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionLine is one resolved per-transaction line item.
type TransactionLine struct {
	Date        time.Time
	Description string
	PaymentIn   float64
	PaymentOut  float64
	Balance     float64
}

// StatementRecord is the standardized record handed to persistence: one
// logical record per (account, statement period).
type StatementRecord struct {
	ID            string
	AccountID     string
	Company       string
	AccountType   string
	AccountName   string
	AccountNumber string
	SortCode      string
	CardNumber    string
	StatementDate time.Time
	Opening       float64
	Closing       float64
	PaymentsIn    float64
	PaymentsOut   float64
	Lines         []TransactionLine
	Status        DocumentStatus
}

// FingerprintID builds a content hash of a document's first-page text,
// providing a stable identity for deduplication across runs.
func FingerprintID(firstPageText string) string {
	sum := sha256.Sum256([]byte(firstPageText))
	return fmt.Sprintf("%x", sum)
}

// BuildAccountID composes the unique account identity from company, account
// type and account number, with whitespace stripped from the number.
func BuildAccountID(company, accountType, accountNumber string) string {
	number := strings.ReplaceAll(accountNumber, " ", "")
	return fmt.Sprintf("%s_%s_%s", company, accountType, number)
}

// ZeroTransaction reports whether the statement is header-only: no money
// moved, so there are no line items to validate.
func (s *StatementRecord) ZeroTransaction() bool {
	return s.PaymentsIn == 0 && s.PaymentsOut == 0
}

// RenamedFile returns the smart-rename filename for the statement,
// {account_id}_{yyyymmdd}{ext}.
func (s *StatementRecord) RenamedFile(ext string) string {
	date := s.StatementDate.Format("20060102")
	return fmt.Sprintf("%s_%s%s", s.AccountID, date, ext)
}

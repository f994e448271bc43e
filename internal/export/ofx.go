package export

import (
	"fmt"
	"os"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/ledgervet/ledgervet/internal/model"
)

// WriteOFX writes statements as one OFX response document with a bank
// statement message per statement. Credit card accounts are emitted as
// credit card statement messages.
func WriteOFX(statements []model.StatementRecord, currency, path string) error {
	if currency == "" {
		currency = "GBP"
	}
	curdef, err := ofxgo.NewCurrSymbol(currency)
	if err != nil {
		return fmt.Errorf("invalid currency %q: %w", currency, err)
	}

	resp := ofxgo.Response{
		Version: ofxgo.OfxVersion203,
		Signon: ofxgo.SignonResponse{
			Status: ofxgo.Status{
				Code:     0,
				Severity: "INFO",
			},
			DtServer: ofxgo.Date{Time: time.Now()},
			Language: "ENG",
			Org:      "LEDGERVET",
		},
	}

	for _, s := range statements {
		uid, err := ofxgo.RandomUID()
		if err != nil {
			return fmt.Errorf("failed to generate transaction uid: %w", err)
		}

		if s.CardNumber != "" {
			resp.CreditCard = append(resp.CreditCard, buildCCStatement(&s, *uid, *curdef))
			continue
		}
		resp.Bank = append(resp.Bank, buildBankStatement(&s, *uid, *curdef))
	}

	buf, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal ofx: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func buildBankStatement(s *model.StatementRecord, uid ofxgo.UID, curdef ofxgo.CurrSymbol) *ofxgo.StatementResponse {
	stmt := &ofxgo.StatementResponse{
		TrnUID: uid,
		Status: ofxgo.Status{Code: 0, Severity: "INFO"},
		CurDef: curdef,
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(s.SortCode),
			AcctID:   ofxgo.String(s.AccountNumber),
			AcctType: ofxgo.AcctTypeChecking,
		},
		BankTranList: buildTransactionList(s),
		DtAsOf:       ofxgo.Date{Time: s.StatementDate},
	}
	stmt.BalAmt.SetFloat64(s.Closing)
	return stmt
}

func buildCCStatement(s *model.StatementRecord, uid ofxgo.UID, curdef ofxgo.CurrSymbol) *ofxgo.CCStatementResponse {
	stmt := &ofxgo.CCStatementResponse{
		TrnUID: uid,
		Status: ofxgo.Status{Code: 0, Severity: "INFO"},
		CurDef: curdef,
		CCAcctFrom: ofxgo.CCAcct{
			AcctID: ofxgo.String(s.CardNumber),
		},
		BankTranList: buildTransactionList(s),
		DtAsOf:       ofxgo.Date{Time: s.StatementDate},
	}
	stmt.BalAmt.SetFloat64(s.Closing)
	return stmt
}

func buildTransactionList(s *model.StatementRecord) *ofxgo.TransactionList {
	if len(s.Lines) == 0 {
		return nil
	}

	list := &ofxgo.TransactionList{
		DtStart: ofxgo.Date{Time: s.Lines[0].Date},
		DtEnd:   ofxgo.Date{Time: s.StatementDate},
	}
	for i, line := range s.Lines {
		txn := ofxgo.Transaction{
			DtPosted: ofxgo.Date{Time: line.Date},
			FiTID:    ofxgo.String(fmt.Sprintf("%s-%d", s.ID, i+1)),
			Name:     ofxgo.String(line.Description),
		}
		if line.PaymentOut > 0 {
			txn.TrnType = ofxgo.TrnTypeDebit
			txn.TrnAmt.SetFloat64(-line.PaymentOut)
		} else {
			txn.TrnType = ofxgo.TrnTypeCredit
			txn.TrnAmt.SetFloat64(line.PaymentIn)
		}
		list.Transactions = append(list.Transactions, txn)
	}
	return list
}

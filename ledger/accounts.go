package ledger

import (
	"context"
	"fmt"
	"strings"
)

// CreateAccount inserts the account and, for a nonzero initial balance, an
// INITIAL_BALANCE entry opening at 0, in one transaction.
func (e *Engine) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Account{}, Invalid("name", "name is required")
	}
	if !in.Type.Valid() {
		return Account{}, Invalid("type", "type must be one of CASH, PARTY_ACCOUNT, CUSTOMER_ACCOUNT")
	}

	var created Account
	err := e.InTx(ctx, func(s Store) error {
		acct, err := s.CreateAccount(ctx, Account{
			Name:    in.Name,
			Type:    in.Type,
			Phone:   in.Phone,
			Address: in.Address,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		initial := Round(in.InitialBalance)
		if !initial.IsZero() {
			dr, cr := SplitSigned(acct.Type, initial)
			_, err := AppendChain(ctx, s, acct, Posting{
				AccountID:     acct.ID,
				Type:          EntryInitialBalance,
				Ref:           AccountCreationRef(acct.ID),
				DrAmount:      dr,
				CrAmount:      cr,
				Details:       "Initial balance on account creation",
				EffectiveDate: e.Now(),
			})
			if err != nil {
				return err
			}
			acct.Balance = initial
		}
		created = acct
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	e.logger.InfoContext(ctx, "account created", "account_id", created.ID, "type", created.Type,
		"balance", created.Balance.StringFixed(MoneyPlaces))
	return created, nil
}

func (e *Engine) GetAccount(ctx context.Context, id AccountID) (Account, error) {
	return e.store.GetAccount(ctx, id)
}

func (e *Engine) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, Invalid("type", "unknown account type %q", filter.Type)
	}
	return e.store.ListAccounts(ctx, filter)
}

// UpdateAccount edits the descriptive fields. The balance cannot be set
// here, and the type is frozen once the account owns entries.
func (e *Engine) UpdateAccount(ctx context.Context, id AccountID, upd AccountUpdate) (Account, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	if upd.Name == "" {
		return Account{}, Invalid("name", "name is required")
	}
	if !upd.Type.Valid() {
		return Account{}, Invalid("type", "type must be one of CASH, PARTY_ACCOUNT, CUSTOMER_ACCOUNT")
	}

	var updated Account
	err := e.InTx(ctx, func(s Store) error {
		accts, err := s.LockAccounts(ctx, id)
		if err != nil {
			return err
		}
		acct := accts[0]
		if upd.Type != acct.Type {
			_, hasEntries, err := s.LatestEntry(ctx, id)
			if err != nil {
				return err
			}
			if hasEntries {
				return Invalid("type", "cannot change the type of account %d, it already has ledger entries", id)
			}
		}
		acct.Name, acct.Type, acct.Phone, acct.Address = upd.Name, upd.Type, upd.Phone, upd.Address
		if err := s.UpdateAccount(ctx, acct); err != nil {
			return fmt.Errorf("update account %d: %w", id, err)
		}
		updated, err = s.GetAccount(ctx, id)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

// DeleteAccount removes an account that owns no entries, sales, purchases,
// or journals.
func (e *Engine) DeleteAccount(ctx context.Context, id AccountID) error {
	err := e.InTx(ctx, func(s Store) error {
		if _, err := s.LockAccounts(ctx, id); err != nil {
			return err
		}
		deps, err := s.CountDependents(ctx, id)
		if err != nil {
			return err
		}
		if deps.Any() {
			return &HasDependentsError{AccountID: id, Dependents: deps}
		}
		return s.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "account deleted", "account_id", id)
	return nil
}

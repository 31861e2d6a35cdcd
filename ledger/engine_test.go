package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/books/ledger"
	"github.com/warp/books/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := ledger.NewEngine(mem, ledger.WithClock(func() time.Time { return day(1) }))
	return eng, mem
}

func createAccount(t *testing.T, eng *ledger.Engine, name string, typ ledger.AccountType) ledger.Account {
	t.Helper()
	acct, err := eng.CreateAccount(context.Background(), ledger.NewAccount{Name: name, Type: typ})
	require.NoError(t, err)
	return acct
}

func balanceOf(t *testing.T, eng *ledger.Engine, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	acct, err := eng.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance
}

func requireConsistent(t *testing.T, eng *ledger.Engine, id ledger.AccountID) {
	t.Helper()
	rep, err := eng.Reconcile(context.Background(), id)
	require.NoError(t, err)
	require.True(t, rep.Consistent(), "breaks: %+v", rep.Breaks)
}

func sale(id int64, accountID ledger.AccountID, total string, d time.Time) ledger.Posting {
	return ledger.Posting{
		AccountID: accountID, Type: ledger.EntrySale, Ref: ledger.SaleRef(id),
		DrAmount: dec(total), Details: "sale", EffectiveDate: d,
	}
}

// =============================================================================
// SIGN CONVENTION
// =============================================================================

func TestPostChain_CustomerSaleWithPayment(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	// GIVEN: a sale of 100 with 40 paid on the spot
	entries, err := eng.PostChain(ctx, ali.ID, []ledger.Posting{
		sale(1, ali.ID, "100", day(2)),
		{Type: ledger.EntryPayment, Ref: ledger.SaleRef(1), CrAmount: dec("40"), Details: "payment", EffectiveDate: day(2)},
	})
	require.NoError(t, err)

	// THEN: the chain reads 0 -> 100 -> 60
	require.Len(t, entries, 2)
	assertMoney(t, "0", entries[0].OpeningBalance)
	assertMoney(t, "100", entries[0].ClosingBalance)
	assertMoney(t, "100", entries[1].OpeningBalance)
	assertMoney(t, "60", entries[1].ClosingBalance)
	assert.Equal(t, entries[0].Ref, entries[1].Ref)
	assertMoney(t, "60", balanceOf(t, eng, ali.ID))
	requireConsistent(t, eng, ali.ID)
}

func TestPostChain_PartyPurchaseWithPayment(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	// GIVEN: a purchase of 100 (credit) with 40 paid (debit)
	entries, err := eng.PostChain(ctx, mill.ID, []ledger.Posting{
		{Type: ledger.EntryPurchase, Ref: ledger.PurchaseRef(1), CrAmount: dec("100"), EffectiveDate: day(2)},
		{Type: ledger.EntryPayment, Ref: ledger.PurchaseRef(1), DrAmount: dec("40"), EffectiveDate: day(2)},
	})
	require.NoError(t, err)

	// THEN: what we owe the supplier goes 0 -> 100 -> 60
	assertMoney(t, "100", entries[0].ClosingBalance)
	assertMoney(t, "60", entries[1].ClosingBalance)
	assertMoney(t, "60", balanceOf(t, eng, mill.ID))
}

func TestPost_RejectsSaleOnParty(t *testing.T) {
	eng, _ := newTestEngine(t)
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	_, err := eng.Post(context.Background(), sale(1, mill.ID, "100", day(2)))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	assertMoney(t, "0", balanceOf(t, eng, mill.ID))
}

func TestPost_Guards(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	tests := []struct {
		name    string
		posting ledger.Posting
	}{
		{"both amounts zero", ledger.Posting{AccountID: ali.ID, Type: ledger.EntrySale, Ref: ledger.SaleRef(1)}},
		{"negative debit", ledger.Posting{AccountID: ali.ID, Type: ledger.EntrySale, Ref: ledger.SaleRef(1), DrAmount: dec("-5")}},
		{"unknown type", ledger.Posting{AccountID: ali.ID, Type: "BONUS", Ref: ledger.SaleRef(1), DrAmount: dec("5")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Post(ctx, tt.posting)
			assert.True(t, errors.Is(err, ledger.ErrValidation), "got %v", err)
		})
	}

	_, err := eng.Post(ctx, ledger.Posting{AccountID: 999, Type: ledger.EntryManual, DrAmount: dec("5")})
	assert.True(t, ledger.IsNotFound(err))
}

func TestPost_ManualGetsReference(t *testing.T) {
	eng, _ := newTestEngine(t)
	cash := createAccount(t, eng, "Cash", ledger.Cash)

	e, err := eng.Post(context.Background(), ledger.Posting{
		AccountID: cash.ID, Type: ledger.EntryManual, DrAmount: dec("12.345"), Details: "float",
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.RefManual, e.Ref.Type)
	assert.NotEmpty(t, e.Ref.ID)
	assertMoney(t, "12.35", e.ClosingBalance, "amounts are rounded half away from zero")
	assert.Equal(t, day(1), e.CreatedAt, "zero date defaults to now")
}

func TestPostManual_RejectsRecordReferences(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := eng.Post(ctx, sale(1, ali.ID, "500", day(2)))
	require.NoError(t, err)

	// WHEN: a hand-entered row claims references owned by other records
	refs := []ledger.Ref{
		ledger.SaleRef(1),
		ledger.PurchaseRef(1),
		ledger.JournalRef(1),
		ledger.AccountCreationRef(ali.ID),
		ledger.PaymentToPartyRef("p-1"),
		ledger.PaymentFromCustomerRef("r-1"),
	}
	for _, ref := range refs {
		_, err := eng.PostManual(ctx, ledger.Posting{
			AccountID: ali.ID, Type: ledger.EntryManual, Ref: ref, CrAmount: dec("75"),
		})

		// THEN: each is rejected and the chain is untouched
		var ve *ledger.ValidationError
		require.True(t, errors.As(err, &ve), "%s: got %v", ref, err)
		assert.Equal(t, "referenceType", ve.Field)
	}
	assertMoney(t, "500", balanceOf(t, eng, ali.ID))

	// A MANUAL reference, or none, is accepted
	e, err := eng.PostManual(ctx, ledger.Posting{
		AccountID: ali.ID, Type: ledger.EntryManual, Ref: ledger.ManualRef("adj-1"), CrAmount: dec("75"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.ManualRef("adj-1"), e.Ref)
	e, err = eng.PostManual(ctx, ledger.Posting{AccountID: ali.ID, Type: ledger.EntryManual, CrAmount: dec("25")})
	require.NoError(t, err)
	assert.Equal(t, ledger.RefManual, e.Ref.Type)
	assertMoney(t, "400", balanceOf(t, eng, ali.ID))
	requireConsistent(t, eng, ali.ID)
}

func TestPost_DuplicateIdempotencyKey(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	cash := createAccount(t, eng, "Cash", ledger.Cash)

	p := ledger.Posting{AccountID: cash.ID, Type: ledger.EntryManual, DrAmount: dec("10"), IdempotencyKey: "till-1"}
	_, err := eng.Post(ctx, p)
	require.NoError(t, err)

	_, err = eng.Post(ctx, p)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateIdempotencyKey))
	assertMoney(t, "10", balanceOf(t, eng, cash.ID))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestCreateAccount_InitialBalance(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	mill, err := eng.CreateAccount(ctx, ledger.NewAccount{
		Name: "Rice Mill", Type: ledger.PartyAccount, InitialBalance: dec("250"),
	})
	require.NoError(t, err)
	assertMoney(t, "250", mill.Balance)

	entries, err := eng.Entries(ctx, mill.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, ledger.EntryInitialBalance, e.Type)
	assert.Equal(t, ledger.AccountCreationRef(mill.ID), e.Ref)
	assertMoney(t, "250", e.CrAmount, "party balances sit on the credit side")
	assertMoney(t, "0", e.OpeningBalance)
	assertMoney(t, "250", e.ClosingBalance)
}

func TestCreateAccount_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateAccount(ctx, ledger.NewAccount{Name: " ", Type: ledger.Cash})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	_, err = eng.CreateAccount(ctx, ledger.NewAccount{Name: "X", Type: "BANK"})
	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "type", ve.Field)
}

func TestUpdateAccount_TypeFrozenOnceUsed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	bare := createAccount(t, eng, "Bare", ledger.CustomerAccount)
	_, err := eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)

	_, err = eng.UpdateAccount(ctx, ali.ID, ledger.AccountUpdate{Name: "Ali", Type: ledger.PartyAccount})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	updated, err := eng.UpdateAccount(ctx, ali.ID, ledger.AccountUpdate{Name: "Ali Khan", Type: ledger.CustomerAccount, Phone: "0300"})
	require.NoError(t, err)
	assert.Equal(t, "Ali Khan", updated.Name)
	assertMoney(t, "100", updated.Balance, "balance is not editable")

	updated, err = eng.UpdateAccount(ctx, bare.ID, ledger.AccountUpdate{Name: "Bare", Type: ledger.PartyAccount})
	require.NoError(t, err)
	assert.Equal(t, ledger.PartyAccount, updated.Type)
}

func TestDeleteAccount_BlockedByDependents(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	empty := createAccount(t, eng, "Empty", ledger.Cash)
	_, err := eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)

	err = eng.DeleteAccount(ctx, ali.ID)
	var he *ledger.HasDependentsError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, 1, he.Dependents.Entries)
	assert.True(t, errors.Is(err, ledger.ErrHasDependents))

	require.NoError(t, eng.DeleteAccount(ctx, empty.ID))
	_, err = eng.GetAccount(ctx, empty.ID)
	assert.True(t, ledger.IsNotFound(err))

	assert.True(t, ledger.IsNotFound(eng.DeleteAccount(ctx, 999)))
}

func TestListAccounts_FilterAndSearch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	createAccount(t, eng, "Ali Traders", ledger.CustomerAccount)
	createAccount(t, eng, "Rice Mill", ledger.PartyAccount)
	createAccount(t, eng, "Bilal", ledger.CustomerAccount)

	customers, err := eng.ListAccounts(ctx, ledger.AccountFilter{Type: ledger.CustomerAccount})
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Bilal", customers[0].Name, "newest first")

	found, err := eng.ListAccounts(ctx, ledger.AccountFilter{Search: "mill"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ledger.PartyAccount, found[0].Type)
}

// =============================================================================
// OPENING BALANCE
// =============================================================================

func TestOpeningBalance_MustHeadChain(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)

	// WHEN: an opening balance is posted after other entries
	_, err = eng.Post(ctx, ledger.Posting{
		AccountID: ali.ID, Type: ledger.EntryOpeningBalance, DrAmount: dec("50"), EffectiveDate: day(3),
	})

	// THEN: rejected, the chain would no longer start at 0
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	requireConsistent(t, eng, ali.ID)
}

func TestOpeningBalance_Duplicate(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	ob := ledger.Posting{AccountID: ali.ID, Type: ledger.EntryOpeningBalance, DrAmount: dec("50"), EffectiveDate: day(1)}
	_, err := eng.Post(ctx, ob)
	require.NoError(t, err)

	_, err = eng.Post(ctx, ob)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateOpeningBalance))
}

func TestSetOpeningBalance_RewriteRechains(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	// GIVEN: opening 500 then a sale of 100
	res, err := eng.SetOpeningBalance(ctx, ali.ID, dec("500"), ledger.CustomerAccount)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assertMoney(t, "500", res.Entry.DrAmount)
	assertMoney(t, "500", res.Balance)
	_, err = eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)

	// WHEN: the opening balance is lowered to 300
	res, err = eng.SetOpeningBalance(ctx, ali.ID, dec("300"), ledger.CustomerAccount)
	require.NoError(t, err)

	// THEN: the row is rewritten in place and the sale re-chained
	assert.False(t, res.Created)
	assert.Equal(t, 1, res.Rechained)
	assertMoney(t, "400", res.Balance)

	entries, err := eng.Entries(ctx, ali.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assertMoney(t, "300", entries[0].ClosingBalance)
	assertMoney(t, "300", entries[1].OpeningBalance)
	assertMoney(t, "400", entries[1].ClosingBalance)
	requireConsistent(t, eng, ali.ID)
}

func TestSetOpeningBalance_PartyAdvance(t *testing.T) {
	eng, _ := newTestEngine(t)
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	res, err := eng.SetOpeningBalance(context.Background(), mill.ID, dec("-200"), ledger.PartyAccount)
	require.NoError(t, err)

	assertMoney(t, "200", res.Entry.DrAmount, "negative party balance is an advance on the debit side")
	assertMoney(t, "0", res.Entry.CrAmount)
	assertMoney(t, "-200", res.Balance)
	assert.Equal(t, "200.00 Dr (advance)", ledger.BalanceLabel(ledger.PartyAccount, res.Balance))
}

func TestSetOpeningBalance_Rejections(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	_, err := eng.SetOpeningBalance(ctx, ali.ID, dec("10"), ledger.PartyAccount)
	assert.True(t, errors.Is(err, ledger.ErrValidation), "type mismatch")

	_, err = eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)
	_, err = eng.SetOpeningBalance(ctx, ali.ID, dec("10"), ledger.CustomerAccount)
	assert.True(t, errors.Is(err, ledger.ErrValidation), "account already has entries")
}

// =============================================================================
// REVERSAL
// =============================================================================

func TestDeleteTransaction_TailRestoresBalance(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)

	// GIVEN: a second sale on top
	_, err = eng.Post(ctx, sale(2, ali.ID, "70", day(3)))
	require.NoError(t, err)

	// WHEN: it is deleted
	rev, err := eng.DeleteTransaction(ctx, ledger.SaleRef(2), ali.ID)
	require.NoError(t, err)

	// THEN: the balance is back to what it was before it
	assertMoney(t, "100", rev.BalanceBefore)
	assertMoney(t, "100", rev.Balance)
	assert.Equal(t, 0, rev.Rechained)
	assertMoney(t, "100", balanceOf(t, eng, ali.ID))
}

func TestDeleteTransaction_NonTailRechains(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	for i, amt := range []string{"100", "50", "25"} {
		_, err := eng.Post(ctx, sale(int64(i+1), ali.ID, amt, day(i+2)))
		require.NoError(t, err)
	}

	// WHEN: the middle sale is deleted
	rev, err := eng.DeleteTransaction(ctx, ledger.SaleRef(2), ali.ID)
	require.NoError(t, err)

	// THEN: the later sale now opens where the first one closed
	assert.Equal(t, 1, rev.Rechained)
	assertMoney(t, "125", rev.Balance)
	entries, err := eng.Entries(ctx, ali.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assertMoney(t, "100", entries[1].OpeningBalance)
	assertMoney(t, "125", entries[1].ClosingBalance)
	requireConsistent(t, eng, ali.ID)
}

func TestDeleteTransaction_Missing(t *testing.T) {
	eng, _ := newTestEngine(t)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	_, err := eng.DeleteTransaction(context.Background(), ledger.SaleRef(42), ali.ID)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// JOURNALS
// =============================================================================

func TestPostJournal_LegsFollowConvention(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	cash := createAccount(t, eng, "Cash", ledger.Cash)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := eng.Post(ctx, sale(1, ali.ID, "300", day(2)))
	require.NoError(t, err)

	// WHEN: Ali pays 100 in cash, booked as debit cash / credit Ali
	res, err := eng.PostJournal(ctx, ledger.JournalRequest{
		DebitAccountID: cash.ID, CreditAccountID: ali.ID,
		Amount: dec("100"), Description: "cash from Ali", Date: day(3),
	})
	require.NoError(t, err)

	// THEN: cash goes up, what Ali owes goes down
	assertMoney(t, "0", res.PreBalances.Debit)
	assertMoney(t, "300", res.PreBalances.Credit)
	assertMoney(t, "100", res.DebitEntry.ClosingBalance)
	assertMoney(t, "200", res.CreditEntry.ClosingBalance)
	assert.Equal(t, ledger.JournalRef(res.Journal.ID), res.DebitEntry.Ref)
	assert.Equal(t, ledger.EntryJournal, res.CreditEntry.Type)
	assertMoney(t, "100", balanceOf(t, eng, cash.ID))
	assertMoney(t, "200", balanceOf(t, eng, ali.ID))

	page, err := eng.ListJournals(ctx, ledger.JournalFilter{AccountID: ali.ID})
	require.NoError(t, err)
	require.Len(t, page.Journals, 1)
	assert.Equal(t, 1, page.Pagination.TotalCount)

	// WHEN: the journal is deleted
	revs, err := eng.DeleteJournal(ctx, res.Journal.ID)
	require.NoError(t, err)

	// THEN: both legs are reversed
	assert.Len(t, revs, 2)
	assertMoney(t, "0", balanceOf(t, eng, cash.ID))
	assertMoney(t, "300", balanceOf(t, eng, ali.ID))
	_, err = eng.GetJournal(ctx, res.Journal.ID)
	assert.True(t, ledger.IsNotFound(err))
	requireConsistent(t, eng, cash.ID)
	requireConsistent(t, eng, ali.ID)
}

func TestPostJournal_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	cash := createAccount(t, eng, "Cash", ledger.Cash)

	_, err := eng.PostJournal(ctx, ledger.JournalRequest{
		DebitAccountID: cash.ID, CreditAccountID: cash.ID, Amount: dec("1"), Description: "loop",
	})
	assert.True(t, errors.Is(err, ledger.ErrValidation))

	_, err = eng.PostJournal(ctx, ledger.JournalRequest{
		DebitAccountID: cash.ID, CreditAccountID: 77, Amount: dec("0"), Description: "x",
	})
	assert.True(t, errors.Is(err, ledger.ErrValidation), "amount must be positive")

	_, err = eng.PostJournal(ctx, ledger.JournalRequest{
		DebitAccountID: cash.ID, CreditAccountID: 77, Amount: dec("5"), Description: "x",
	})
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// AD-HOC PAYMENTS
// =============================================================================

func TestPayments(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := eng.Post(ctx, ledger.Posting{
		AccountID: mill.ID, Type: ledger.EntryPurchase, Ref: ledger.PurchaseRef(1), CrAmount: dec("100"), EffectiveDate: day(2),
	})
	require.NoError(t, err)

	paid, err := eng.PayParty(ctx, ledger.PaymentRequest{AccountID: mill.ID, Amount: dec("40"), Description: "bank transfer", Date: day(3)})
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryPaymentToParty, paid.Type)
	assert.Equal(t, ledger.RefPaymentToParty, paid.Ref.Type)
	assertMoney(t, "40", paid.DrAmount)
	assertMoney(t, "60", paid.ClosingBalance)

	_, err = eng.PayParty(ctx, ledger.PaymentRequest{AccountID: ali.ID, Amount: dec("40"), Description: "x", Date: day(3)})
	assert.True(t, errors.Is(err, ledger.ErrValidation), "customers cannot be paid as suppliers")

	got, err := eng.ReceiveFromCustomer(ctx, ledger.PaymentRequest{AccountID: ali.ID, Amount: dec("25"), Description: "advance", Date: day(3)})
	require.NoError(t, err)
	assertMoney(t, "25", got.CrAmount)
	assertMoney(t, "-25", got.ClosingBalance)

	_, err = eng.ReceiveFromCustomer(ctx, ledger.PaymentRequest{AccountID: ali.ID, Amount: dec("25"), Date: day(3)})
	assert.True(t, errors.Is(err, ledger.ErrValidation), "description is required")

	rev, err := eng.DeletePayment(ctx, paid.Ref)
	require.NoError(t, err)
	assertMoney(t, "100", rev.Balance)
	assertMoney(t, "100", balanceOf(t, eng, mill.ID))

	_, err = eng.DeletePayment(ctx, ledger.SaleRef(1))
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	_, err = eng.DeletePayment(ctx, paid.Ref)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// QUERY AND LABELS
// =============================================================================

func TestQueryEntries_DisplayOrderAndPages(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	// GIVEN: entries whose business dates are not in id order
	first, err := eng.Post(ctx, sale(1, ali.ID, "10", day(5)))
	require.NoError(t, err)
	second, err := eng.Post(ctx, sale(2, ali.ID, "20", day(1)))
	require.NoError(t, err)
	third, err := eng.Post(ctx, sale(3, ali.ID, "30", day(5)))
	require.NoError(t, err)

	// WHEN: the first page of two is requested
	page, err := eng.QueryEntries(ctx, ledger.EntryFilter{AccountID: ali.ID, Limit: 2})
	require.NoError(t, err)

	// THEN: createdAt desc, then id desc
	require.Len(t, page.Entries, 2)
	assert.Equal(t, third.ID, page.Entries[0].ID)
	assert.Equal(t, first.ID, page.Entries[1].ID)
	assert.Equal(t, ledger.Pagination{CurrentPage: 1, TotalPages: 2, TotalCount: 3, HasNextPage: true}, page.Pagination)

	// labels come from the id-chained snapshots, not the display order
	assert.Equal(t, "10.00 Dr (they owe us)", page.Entries[1].PostLabel)
	assert.Equal(t, "60.00 Dr (they owe us)", page.Entries[0].PostLabel)

	page, err = eng.QueryEntries(ctx, ledger.EntryFilter{AccountID: ali.ID, Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, second.ID, page.Entries[0].ID)
	assert.Equal(t, "10.00 Dr (they owe us)", page.Entries[0].PreLabel)
	assert.Equal(t, "30.00 Dr (they owe us)", page.Entries[0].PostLabel)
	assert.True(t, page.Pagination.HasPrevPage)
}

func TestQueryEntries_DateRangeAndType(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	for i := 1; i <= 4; i++ {
		_, err := eng.Post(ctx, sale(int64(i), ali.ID, "10", day(i)))
		require.NoError(t, err)
	}
	from, to := day(2), day(3)

	page, err := eng.QueryEntries(ctx, ledger.EntryFilter{Type: ledger.EntrySale, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.TotalCount)

	_, err = eng.QueryEntries(ctx, ledger.EntryFilter{From: &to, To: &from})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestBalanceLabel(t *testing.T) {
	tests := []struct {
		typ     ledger.AccountType
		balance string
		want    string
	}{
		{ledger.PartyAccount, "500", "500.00 Cr (we owe them)"},
		{ledger.PartyAccount, "-20", "20.00 Dr (advance)"},
		{ledger.CustomerAccount, "300", "300.00 Dr (they owe us)"},
		{ledger.CustomerAccount, "-5.5", "5.50 Cr (we owe them)"},
		{ledger.Cash, "1250.75", "1250.75 Dr (they owe us)"},
		{ledger.Cash, "0", "0 (settled)"},
		{ledger.PartyAccount, "0.001", "0 (settled)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.balance, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.BalanceLabel(tt.typ, dec(tt.balance)))
		})
	}
}

func TestSplitSigned(t *testing.T) {
	for _, typ := range ledger.AccountTypes {
		for _, amt := range []string{"125.50", "-40", "0"} {
			dr, cr := ledger.SplitSigned(typ, dec(amt))
			assert.False(t, dr.IsNegative() || cr.IsNegative())
			assertMoney(t, amt, ledger.SignedDelta(typ, dr, cr), "%s %s", typ, amt)
		}
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_DetectsAndRepairs(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	createAccount(t, eng, "Clean", ledger.Cash)
	e1, err := eng.Post(ctx, sale(1, ali.ID, "100", day(2)))
	require.NoError(t, err)
	_, err = eng.Post(ctx, sale(2, ali.ID, "50", day(3)))
	require.NoError(t, err)

	// GIVEN: a corrupted snapshot and cached balance
	e1.ClosingBalance = dec("90")
	mem.Tamper(ali.ID, dec("999"), e1)

	// WHEN: the consistency check runs
	bad, err := eng.CheckConsistency(ctx)
	require.NoError(t, err)

	// THEN: only Ali is reported, with entry and balance breaks
	require.Len(t, bad, 1)
	rep := bad[0]
	assert.Equal(t, ali.ID, rep.AccountID)
	assert.GreaterOrEqual(t, len(rep.Breaks), 2)
	assert.True(t, errors.Is(rep.Err(), ledger.ErrInvariantViolation))
	assertMoney(t, "150", rep.Replayed)
	assertMoney(t, "999", rep.Cached)

	// WHEN: the operator repairs the account
	fixed, err := eng.RepairAccount(ctx, ali.ID)
	require.NoError(t, err)

	// THEN: the chain is rebuilt from the amounts
	assert.True(t, fixed.Consistent(), "breaks: %+v", fixed.Breaks)
	assertMoney(t, "150", balanceOf(t, eng, ali.ID))
	bad, err = eng.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)
}

// =============================================================================
// TIMEOUT
// =============================================================================

// slowStore delays every transaction past the engine deadline.
type slowStore struct {
	*store.Memory
	delay time.Duration
}

func (s slowStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx ledger.Store) error {
		err := fn(tx)
		time.Sleep(s.delay)
		return err
	})
}

func TestTimeout_RollsBack(t *testing.T) {
	mem := store.NewMemory()
	fast := ledger.NewEngine(mem)
	ali, err := fast.CreateAccount(context.Background(), ledger.NewAccount{Name: "Ali", Type: ledger.CustomerAccount})
	require.NoError(t, err)

	slow := ledger.NewEngine(slowStore{Memory: mem, delay: 50 * time.Millisecond}, ledger.WithTimeout(5*time.Millisecond))

	_, err = slow.Post(context.Background(), sale(1, ali.ID, "100", day(2)))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrTimeout))
	assert.Equal(t, "Timeout", ledger.Kind(err))
	entries, err := fast.Entries(context.Background(), ali.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing was committed")
	assertMoney(t, "0", balanceOf(t, fast, ali.ID))
}

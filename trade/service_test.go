package trade_test

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
	"github.com/warp/books/store/sqlstore"
	"github.com/warp/books/trade"
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

func ptr[T any](v T) *T { return &v }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func newTestService(t *testing.T) (*trade.Service, *ledger.Engine) {
	t.Helper()
	s, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	eng := ledger.NewEngine(s, ledger.WithClock(func() time.Time { return day(1) }))
	return trade.NewService(eng), eng
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

func entriesOf(t *testing.T, eng *ledger.Engine, id ledger.AccountID) []ledger.Entry {
	t.Helper()
	entries, err := eng.Entries(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func requireConsistent(t *testing.T, eng *ledger.Engine, id ledger.AccountID) {
	t.Helper()
	rep, err := eng.Reconcile(context.Background(), id)
	require.NoError(t, err)
	require.True(t, rep.Consistent(), "breaks: %+v", rep.Breaks)
}

// =============================================================================
// SALES
// =============================================================================

func TestSale_CreateEditDelete(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	// GIVEN: 10kg at 50 with 200 paid on the spot
	s, err := svc.CreateSale(ctx, trade.Input{
		AccountID: ali.ID, Date: day(2), Weight: dec("10"), Rate: dec("50"), Payment: dec("200"),
	})
	require.NoError(t, err)

	// THEN: the sale and its payment chain 0 -> 500 -> 300
	assertMoney(t, "500", s.TotalAmount)
	assertMoney(t, "0", s.PreBalance)
	assertMoney(t, "300", s.Balance)
	entries := entriesOf(t, eng, ali.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.EntrySale, entries[0].Type)
	assertMoney(t, "500", entries[0].DrAmount)
	assertMoney(t, "500", entries[0].ClosingBalance)
	assert.Equal(t, ledger.EntryPayment, entries[1].Type)
	assertMoney(t, "200", entries[1].CrAmount)
	assertMoney(t, "300", entries[1].ClosingBalance)
	assert.Equal(t, ledger.SaleRef(s.ID), entries[1].Ref)
	assertMoney(t, "300", balanceOf(t, eng, ali.ID))

	// WHEN: the weight is corrected to 20kg
	s, err = svc.UpdateSale(ctx, s.ID, trade.Patch{Weight: ptr(dec("20"))})
	require.NoError(t, err)

	// THEN: the total is recomputed and the entries are reposted
	assertMoney(t, "1000", s.TotalAmount)
	assertMoney(t, "800", s.Balance)
	entries = entriesOf(t, eng, ali.ID)
	require.Len(t, entries, 2)
	assertMoney(t, "0", entries[0].OpeningBalance)
	assertMoney(t, "1000", entries[0].ClosingBalance)
	assertMoney(t, "1000", entries[1].OpeningBalance)
	assertMoney(t, "800", entries[1].ClosingBalance)
	assertMoney(t, "800", balanceOf(t, eng, ali.ID))
	requireConsistent(t, eng, ali.ID)

	// WHEN: the sale is deleted
	rev, err := svc.DeleteSale(ctx, s.ID)
	require.NoError(t, err)

	// THEN: nothing is left on the account
	assert.Len(t, rev.Removed, 2)
	assertMoney(t, "0", rev.Balance)
	assert.Empty(t, entriesOf(t, eng, ali.ID))
	assertMoney(t, "0", balanceOf(t, eng, ali.ID))
	_, err = svc.GetSale(ctx, s.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestSale_ExplicitTotalWins(t *testing.T) {
	svc, eng := newTestService(t)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	s, err := svc.CreateSale(context.Background(), trade.Input{
		AccountID: ali.ID, Date: day(2), Weight: dec("10"), Rate: dec("50"), TotalAmount: ptr(dec("480")),
	})
	require.NoError(t, err)

	assertMoney(t, "480", s.TotalAmount)
	assert.Len(t, entriesOf(t, eng, ali.ID), 1, "no payment entry without a payment")
	assertMoney(t, "480", balanceOf(t, eng, ali.ID))
}

func TestSale_RejectsPartyAccount(t *testing.T) {
	svc, eng := newTestService(t)
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	_, err := svc.CreateSale(context.Background(), trade.Input{
		AccountID: mill.ID, Date: day(2), Weight: dec("10"), Rate: dec("50"),
	})

	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "accountId", ve.Field)
	assert.Empty(t, entriesOf(t, eng, mill.ID))
	sales, err := svc.ListSales(context.Background(), trade.Filter{})
	require.NoError(t, err)
	assert.Empty(t, sales, "the record rolled back with the entries")
}

func TestSale_Validation(t *testing.T) {
	svc, eng := newTestService(t)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	tests := []struct {
		name  string
		in    trade.Input
		field string
	}{
		{"missing account", trade.Input{Date: day(2), Weight: dec("1"), Rate: dec("1")}, "accountId"},
		{"missing date", trade.Input{AccountID: ali.ID, Weight: dec("1"), Rate: dec("1")}, "date"},
		{"zero weight", trade.Input{AccountID: ali.ID, Date: day(2), Rate: dec("1")}, "weight"},
		{"negative rate", trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("-1")}, "rate"},
		{"negative payment", trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("1"), Payment: dec("-5")}, "payment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSale(context.Background(), tt.in)
			var ve *ledger.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSale_MoveToAnotherCustomer(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	bilal := createAccount(t, eng, "Bilal", ledger.CustomerAccount)
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	s, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("10"), Rate: dec("50")})
	require.NoError(t, err)

	// WHEN: the sale is moved to a supplier
	_, err = svc.UpdateSale(ctx, s.ID, trade.Patch{AccountID: ptr(mill.ID)})

	// THEN: it is rejected and nothing changes
	assert.True(t, errors.Is(err, ledger.ErrValidation))
	assertMoney(t, "500", balanceOf(t, eng, ali.ID))

	// WHEN: it is moved to another customer
	s, err = svc.UpdateSale(ctx, s.ID, trade.Patch{AccountID: ptr(bilal.ID), Date: ptr(day(3))})
	require.NoError(t, err)

	// THEN: the entries follow it
	assert.Equal(t, bilal.ID, s.AccountID)
	assert.Equal(t, day(3), s.Date)
	assert.Empty(t, entriesOf(t, eng, ali.ID))
	assertMoney(t, "0", balanceOf(t, eng, ali.ID))
	assertMoney(t, "500", balanceOf(t, eng, bilal.ID))
	requireConsistent(t, eng, bilal.ID)
}

func TestSale_DeleteEarlierRechains(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	first, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("100")})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(3), Weight: dec("1"), Rate: dec("50")})
	require.NoError(t, err)

	// WHEN: the earlier sale is deleted
	rev, err := svc.DeleteSale(ctx, first.ID)
	require.NoError(t, err)

	// THEN: the later one now opens at zero
	assert.Equal(t, 1, rev.Rechained)
	entries := entriesOf(t, eng, ali.ID)
	require.Len(t, entries, 1)
	assertMoney(t, "0", entries[0].OpeningBalance)
	assertMoney(t, "50", entries[0].ClosingBalance)
	assertMoney(t, "50", balanceOf(t, eng, ali.ID))
}

func TestSale_EditAndMoveBelowTheTail(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	bilal := createAccount(t, eng, "Bilal", ledger.CustomerAccount)
	till := createAccount(t, eng, "Till", ledger.Cash)

	// GIVEN: two sales on Ali, 500 then 400
	first, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("10"), Rate: dec("50")})
	require.NoError(t, err)
	second, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(3), Weight: dec("8"), Rate: dec("50")})
	require.NoError(t, err)
	assertMoney(t, "900", balanceOf(t, eng, ali.ID))

	// WHEN: the earlier sale's rate changes to 60
	first, err = svc.UpdateSale(ctx, first.ID, trade.Patch{Rate: ptr(dec("60"))})
	require.NoError(t, err)

	// THEN: the later sale is re-chained and the edit reposts at the tail
	assertMoney(t, "600", first.TotalAmount)
	assertMoney(t, "400", first.PreBalance)
	assertMoney(t, "1000", first.Balance)
	entries := entriesOf(t, eng, ali.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.SaleRef(second.ID), entries[0].Ref)
	assertMoney(t, "0", entries[0].OpeningBalance)
	assertMoney(t, "400", entries[0].ClosingBalance)
	assertMoney(t, "1000", balanceOf(t, eng, ali.ID))
	requireConsistent(t, eng, ali.ID)

	// WHEN: the other sale, now below the tail, moves to Bilal
	_, err = svc.UpdateSale(ctx, second.ID, trade.Patch{AccountID: ptr(bilal.ID)})
	require.NoError(t, err)

	// THEN: both accounts stay chained
	assertMoney(t, "600", balanceOf(t, eng, ali.ID))
	assertMoney(t, "400", balanceOf(t, eng, bilal.ID))
	requireConsistent(t, eng, ali.ID)
	requireConsistent(t, eng, bilal.ID)

	// WHEN: a journal from Ali to the till is buried under a later sale and deleted
	j, err := eng.PostJournal(ctx, ledger.JournalRequest{
		DebitAccountID: till.ID, CreditAccountID: ali.ID, Amount: dec("100"),
		Description: "cash collected", Date: day(4),
	})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(5), Weight: dec("4"), Rate: dec("50")})
	require.NoError(t, err)
	assertMoney(t, "700", balanceOf(t, eng, ali.ID))
	_, err = eng.DeleteJournal(ctx, j.Journal.ID)
	require.NoError(t, err)

	// THEN: the later sale is re-chained and both legs are gone
	assertMoney(t, "800", balanceOf(t, eng, ali.ID))
	assertMoney(t, "0", balanceOf(t, eng, till.ID))
	requireConsistent(t, eng, ali.ID)
	requireConsistent(t, eng, till.ID)
}

func TestListSales_NewestFirst(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	for _, d := range []int{3, 5, 4} {
		_, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(d), Weight: dec("1"), Rate: dec("10")})
		require.NoError(t, err)
	}

	sales, err := svc.ListSales(ctx, trade.Filter{AccountID: ali.ID})
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, day(5), sales[0].Date)
	assert.Equal(t, day(3), sales[2].Date)

	from, to := day(4), day(5)
	ranged, err := svc.ListSales(ctx, trade.Filter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	_, err = svc.ListSales(ctx, trade.Filter{From: &to, To: &from})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestPurchase_PartyConvention(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)

	// GIVEN: 100kg at 2.50 with 50 paid, delivered by truck
	p, err := svc.CreatePurchase(ctx, trade.Input{
		AccountID: mill.ID, Date: day(2), Weight: dec("100"), Rate: dec("2.5"),
		Payment: dec("50"), VehicleNumber: " LEA-1234 ",
	})
	require.NoError(t, err)

	// THEN: what we owe goes 0 -> 250 -> 200
	assert.Equal(t, "LEA-1234", p.VehicleNumber)
	assertMoney(t, "250", p.TotalAmount)
	assertMoney(t, "200", p.Balance)
	entries := entriesOf(t, eng, mill.ID)
	require.Len(t, entries, 2)
	assertMoney(t, "250", entries[0].CrAmount)
	assertMoney(t, "50", entries[1].DrAmount)
	assertMoney(t, "200", balanceOf(t, eng, mill.ID))

	// WHEN: the vehicle and payment are corrected
	p, err = svc.UpdatePurchase(ctx, p.ID, trade.Patch{VehicleNumber: ptr("LEB-9"), Payment: ptr(dec("250"))})
	require.NoError(t, err)

	// THEN: the purchase is fully paid
	assert.Equal(t, "LEB-9", p.VehicleNumber)
	assertMoney(t, "0", p.Balance)
	assertMoney(t, "0", balanceOf(t, eng, mill.ID))
	requireConsistent(t, eng, mill.ID)

	list, err := svc.ListPurchases(ctx, trade.Filter{AccountID: mill.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "LEB-9", list[0].VehicleNumber)

	_, err = svc.DeletePurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, entriesOf(t, eng, mill.ID))
}

func TestPurchase_RequiresVehicleAndParty(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	mill := createAccount(t, eng, "Rice Mill", ledger.PartyAccount)
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)

	_, err := svc.CreatePurchase(ctx, trade.Input{AccountID: mill.ID, Date: day(2), Weight: dec("1"), Rate: dec("1")})
	var ve *ledger.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "vehicleNumber", ve.Field)

	_, err = svc.CreatePurchase(ctx, trade.Input{
		AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("1"), VehicleNumber: "LEA-1",
	})
	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestDeleteAccount_BlockedBySales(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()
	ali := createAccount(t, eng, "Ali", ledger.CustomerAccount)
	_, err := svc.CreateSale(ctx, trade.Input{AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("10")})
	require.NoError(t, err)

	err = eng.DeleteAccount(ctx, ali.ID)

	var hd *ledger.HasDependentsError
	require.True(t, errors.As(err, &hd), "got %v", err)
	assert.Equal(t, 1, hd.Dependents.Sales)
}

func TestMissingRecords(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateSale(ctx, 42, trade.Patch{})
	assert.True(t, ledger.IsNotFound(err))
	_, err = svc.DeletePurchase(ctx, 42)
	assert.True(t, ledger.IsNotFound(err))
}

func TestService_NeedsTradeStore(t *testing.T) {
	eng := ledger.NewEngine(store.NewMemory())
	ali, err := eng.CreateAccount(context.Background(), ledger.NewAccount{Name: "Ali", Type: ledger.CustomerAccount})
	require.NoError(t, err)

	_, err = trade.NewService(eng).CreateSale(context.Background(), trade.Input{
		AccountID: ali.ID, Date: day(2), Weight: dec("1"), Rate: dec("10"),
	})

	assert.True(t, errors.Is(err, ledger.ErrStoreRequired))
}

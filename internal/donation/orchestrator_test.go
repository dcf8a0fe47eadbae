package donation

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dappshunt/api-gateway/models"
)

const testMint = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

type fakeWallet struct {
	connected bool
	pub       solana.PublicKey
	signErr   error
	signCalls int
}

func (w *fakeWallet) Connected() bool             { return w.connected }
func (w *fakeWallet) PublicKey() solana.PublicKey { return w.pub }
func (w *fakeWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	w.signCalls++
	return w.signErr
}

type fakeChain struct {
	mu         sync.Mutex
	ataExists  bool
	accountErr error
	sendErr    error
	confirmErr error

	sentTx       *solana.Transaction
	sendCalls    int
	accountCalls int
}

func (c *fakeChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (c *fakeChain) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountCalls++
	return c.ataExists, c.accountErr
}

func (c *fakeChain) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++
	c.sentTx = tx
	return solana.Signature{}, c.sendErr
}

func (c *fakeChain) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	return c.confirmErr
}

type fakeFunds struct {
	mu    sync.Mutex
	total float64
	err   error
	calls int
}

func (f *fakeFunds) IncrementFundsRaised(ctx context.Context, projectID string, amount float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.total += amount
	return f.total, nil
}

type fakeReceipts struct {
	mu          sync.Mutex
	created     []models.Donation
	createErr   error
	claims      []string
	claimErr    error
	claimDenied bool
	released    []string
	reconciled  []string
	markErr     error
}

func (r *fakeReceipts) CreateDonation(ctx context.Context, d *models.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *d)
	return nil
}

func (r *fakeReceipts) ClaimDonation(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	if r.claimDenied {
		return false, nil
	}
	r.claims = append(r.claims, id)
	return true, nil
}

func (r *fakeReceipts) ReleaseDonation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, id)
	return nil
}

func (r *fakeReceipts) MarkDonationReconciled(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.reconciled = append(r.reconciled, id)
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testProject(t *testing.T) *models.Project {
	t.Helper()
	return &models.Project{
		ID:          uuid.New(),
		Name:        "Test Project",
		Slug:        "test-project",
		FundingGoal: 200,
		Wallet:      solana.NewWallet().PublicKey().String(),
	}
}

func newTestOrchestrator(t *testing.T, w *fakeWallet, chain *fakeChain, funds FundsStore, receipts *fakeReceipts) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(w, chain, funds, receipts, testMint, testLogger())
	require.NoError(t, err)
	return o
}

func connectedWallet() *fakeWallet {
	return &fakeWallet{connected: true, pub: solana.NewWallet().PublicKey()}
}

func TestDonateRejectsDisconnectedWallet(t *testing.T) {
	chain := &fakeChain{}
	o := newTestOrchestrator(t, &fakeWallet{connected: false}, chain, &fakeFunds{}, &fakeReceipts{})

	_, _, err := o.Donate(context.Background(), testProject(t), 10)

	assert.ErrorIs(t, err, ErrWalletNotConnected)
	assert.Zero(t, chain.accountCalls, "no network call before precondition checks pass")
}

func TestDonateRejectsNonPositiveAmount(t *testing.T) {
	chain := &fakeChain{}
	o := newTestOrchestrator(t, connectedWallet(), chain, &fakeFunds{}, &fakeReceipts{})

	_, _, err := o.Donate(context.Background(), testProject(t), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = o.Donate(context.Background(), testProject(t), -3)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Zero(t, chain.accountCalls)
}

func TestDonateRejectsMalformedRecipient(t *testing.T) {
	o := newTestOrchestrator(t, connectedWallet(), &fakeChain{}, &fakeFunds{}, &fakeReceipts{})

	project := testProject(t)
	project.Wallet = "not-a-public-key"

	_, _, err := o.Donate(context.Background(), project, 10)
	assert.ErrorIs(t, err, ErrBadRecipient)
}

func TestDonateSigningRefusalStopsBeforeSubmit(t *testing.T) {
	w := connectedWallet()
	w.signErr = assert.AnError
	chain := &fakeChain{ataExists: true}
	o := newTestOrchestrator(t, w, chain, &fakeFunds{}, &fakeReceipts{})

	_, _, err := o.Donate(context.Background(), testProject(t), 10)

	require.Error(t, err)
	assert.Zero(t, chain.sendCalls, "refused signature must not be submitted")
}

func TestDonateConfirmationFailureLeavesStoreUntouched(t *testing.T) {
	chain := &fakeChain{ataExists: true, confirmErr: assert.AnError}
	funds := &fakeFunds{}
	receipts := &fakeReceipts{}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, receipts)

	_, _, err := o.Donate(context.Background(), testProject(t), 10)

	require.Error(t, err)
	assert.Zero(t, funds.calls)
	assert.Empty(t, receipts.created)
}

func TestDonateCreatesRecipientTokenAccountWhenMissing(t *testing.T) {
	chain := &fakeChain{ataExists: false}
	o := newTestOrchestrator(t, connectedWallet(), chain, &fakeFunds{}, &fakeReceipts{})

	_, _, err := o.Donate(context.Background(), testProject(t), 10)

	require.NoError(t, err)
	require.NotNil(t, chain.sentTx)
	assert.Len(t, chain.sentTx.Message.Instructions, 2, "create-account instruction prepended before the transfer")
}

func TestDonateSkipsTokenAccountCreationWhenPresent(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	o := newTestOrchestrator(t, connectedWallet(), chain, &fakeFunds{}, &fakeReceipts{})

	_, _, err := o.Donate(context.Background(), testProject(t), 10)

	require.NoError(t, err)
	require.NotNil(t, chain.sentTx)
	assert.Len(t, chain.sentTx.Message.Instructions, 1)
}

func TestDonateReconcilesCounterAndReceipt(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &fakeFunds{total: 50}
	receipts := &fakeReceipts{}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, receipts)

	project := testProject(t)
	receipt, newTotal, err := o.Donate(context.Background(), project, 25)

	require.NoError(t, err)
	assert.Equal(t, 75.0, newTotal)
	assert.Equal(t, models.DonationReconciled, receipt.Status)
	assert.Equal(t, uint64(25000000), receipt.BaseUnits)
	assert.Equal(t, project.ID.String(), receipt.ProjectID)

	require.Len(t, receipts.created, 1)
	require.Len(t, receipts.reconciled, 1)
	assert.Equal(t, receipt.ID, receipts.reconciled[0])
}

func TestDonateCounterFailureLeavesReceiptConfirmed(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &fakeFunds{err: assert.AnError}
	receipts := &fakeReceipts{}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, receipts)

	receipt, _, err := o.Donate(context.Background(), testProject(t), 10)

	require.Error(t, err)
	require.NotNil(t, receipt, "receipt survives the failed counter update")
	assert.Equal(t, models.DonationConfirmed, receipt.Status)
	require.Len(t, receipts.created, 1)
	assert.Empty(t, receipts.reconciled, "receipt stays unreconciled for the sweep")
	require.Len(t, receipts.released, 1, "claim handed back so the sweep can retry")
	assert.Equal(t, receipt.ID, receipts.released[0])
}

func TestDonateDefersToSweepWhenClaimDenied(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &fakeFunds{}
	receipts := &fakeReceipts{claimDenied: true}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, receipts)

	receipt, newTotal, err := o.Donate(context.Background(), testProject(t), 10)

	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Zero(t, newTotal)
	assert.Zero(t, funds.calls, "owner of the claim applies the increment, not us")
}

func TestDonateMarkFailureKeepsClaimHeld(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &fakeFunds{}
	receipts := &fakeReceipts{markErr: assert.AnError}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, receipts)

	receipt, newTotal, err := o.Donate(context.Background(), testProject(t), 10)

	// The counter moved, so the claim must not go back to confirmed: a
	// released receipt would be swept and incremented a second time.
	require.NoError(t, err)
	assert.Equal(t, 10.0, newTotal)
	assert.Equal(t, 1, funds.calls)
	assert.Empty(t, receipts.released)
	require.NotNil(t, receipt)
}

// Two simultaneous donations must both land in the counter when the store
// increment is atomic.
func TestConcurrentDonationsBothCounted(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &fakeFunds{}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, &fakeReceipts{})
	project := testProject(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := o.Donate(context.Background(), project, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20.0, funds.total)
}

// rmwFunds reproduces a blind read-modify-write counter: both callers read
// before either writes, so the later write overwrites the earlier increment.
type rmwFunds struct {
	mu      sync.Mutex
	total   float64
	reads   chan struct{}
	proceed chan struct{}
}

func (f *rmwFunds) IncrementFundsRaised(ctx context.Context, projectID string, amount float64) (float64, error) {
	f.mu.Lock()
	current := f.total
	f.mu.Unlock()

	f.reads <- struct{}{}
	<-f.proceed

	f.mu.Lock()
	f.total = current + amount
	out := f.total
	f.mu.Unlock()
	return out, nil
}

// Documents the lost-update hazard a non-conditional store update would
// reintroduce: two $10 donations against a blind read-modify-write counter
// end at $10, not $20. The real store's conditional write exists to make
// this outcome impossible.
func TestBlindReadModifyWriteLosesAnIncrement(t *testing.T) {
	chain := &fakeChain{ataExists: true}
	funds := &rmwFunds{reads: make(chan struct{}, 2), proceed: make(chan struct{})}
	o := newTestOrchestrator(t, connectedWallet(), chain, funds, &fakeReceipts{})
	project := testProject(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = o.Donate(context.Background(), project, 10)
		}()
	}

	// Hold both donations at the point where each has read the counter.
	<-funds.reads
	<-funds.reads
	close(funds.proceed)
	wg.Wait()

	assert.Equal(t, 10.0, funds.total, "one increment is silently overwritten")
}

package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"dappshunt/api-gateway/internal/donation"
	"dappshunt/api-gateway/models"
)

// ReceiptLister is how the sweeper finds receipts still owed a counter
// update.
type ReceiptLister interface {
	ListUnreconciled(ctx context.Context) ([]models.Donation, error)
}

// Sweeper periodically scans for confirmed-but-unreconciled receipts and
// feeds them to the dispatcher.
type Sweeper struct {
	lister     ReceiptLister
	funds      donation.FundsStore
	receipts   donation.ReceiptStore
	dispatcher *Dispatcher
	cron       *cron.Cron
	schedule   string
	log        *logrus.Logger
}

// NewSweeper builds a sweeper on the given cron schedule (cron expression
// or @every syntax).
func NewSweeper(lister ReceiptLister, funds donation.FundsStore, receipts donation.ReceiptStore, dispatcher *Dispatcher, schedule string, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		lister:     lister,
		funds:      funds,
		receipts:   receipts,
		dispatcher: dispatcher,
		cron:       cron.New(),
		schedule:   schedule,
		log:        log,
	}
}

// Start registers the sweep with cron and begins running it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("Reconciliation sweep scheduled")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep enqueues a reconciliation job for every unreconciled receipt.
// Sweeps may overlap and re-enqueue a receipt a queued job already covers;
// that is safe because each job must claim the receipt before touching the
// counter, and only one claim succeeds.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	receipts, err := s.lister.ListUnreconciled(ctx)
	if err != nil {
		s.log.WithError(err).Error("Reconciliation sweep failed to list receipts")
		return
	}
	if len(receipts) == 0 {
		return
	}

	s.log.WithField("count", len(receipts)).Info("Sweeping unreconciled donations")
	for _, receipt := range receipts {
		s.dispatcher.Submit(&ReceiptJob{
			Receipt:  receipt,
			Funds:    s.funds,
			Receipts: s.receipts,
		})
	}
}

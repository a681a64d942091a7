package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markb/reminderd/internal/log"
	"github.com/markb/reminderd/internal/reminder"
	"github.com/markb/reminderd/internal/status"
)

// DefaultInterval is the polling period for due reminders.
const DefaultInterval = 30 * time.Second

// Emitter receives delivery state transitions. *status.Hub implements it.
type Emitter interface {
	Publish(ev status.Event)
}

// nopEmitter discards events.
type nopEmitter struct{}

func (nopEmitter) Publish(status.Event) {}

// Dispatcher polls for due reminders and delivers each one. A reminder
// is marked notified only after its email was handed off, so a crash in
// between means a duplicate on restart rather than a lost notification.
// Failed deliveries stay eligible and are retried every cycle until
// they succeed or the reminder is removed.
type Dispatcher struct {
	reminders *reminder.Store
	deliverer *Deliverer
	emitter   Emitter
	clock     Clock
	interval  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDispatcher creates a Dispatcher. emitter may be nil when no status
// feed is wanted; a zero interval falls back to DefaultInterval.
func NewDispatcher(reminders *reminder.Store, deliverer *Deliverer, emitter Emitter, clock Clock, interval time.Duration) *Dispatcher {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dispatcher{
		reminders: reminders,
		deliverer: deliverer,
		emitter:   emitter,
		clock:     clock,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the polling loop. One cycle runs immediately so due
// reminders are not held back for a full interval after startup.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop halts polling and waits for the current cycle to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	log.Info("notify: dispatcher started", "interval", d.interval.String())
	d.RunCycle(ctx)

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			d.RunCycle(ctx)
		case <-d.stop:
			log.Info("notify: dispatcher stopped")
			return
		case <-ctx.Done():
			log.Info("notify: dispatcher stopped", "reason", ctx.Err().Error())
			return
		}
	}
}

// RunCycle delivers every reminder due at the current clock reading.
// Deliveries run concurrently; the cycle returns when all attempts have
// settled.
func (d *Dispatcher) RunCycle(ctx context.Context) {
	now := d.clock.Now()
	due, err := d.reminders.ListDue(now)
	if err != nil {
		log.Error("notify: listing due reminders failed", "error", err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	log.Debug("notify: cycle", "due", len(due))

	var wg sync.WaitGroup
	for i := range due {
		rem := due[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.dispatch(ctx, &rem)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, rem *reminder.Reminder) {
	d.emitter.Publish(status.Event{
		ReminderID: rem.ID,
		State:      status.StatePending,
		At:         d.clock.Now(),
	})

	receipt, err := d.deliverer.Deliver(ctx, rem)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			// Not an error: delivery is switched off. The reminder
			// stays due and fires once a recipient is configured.
			log.Debug("notify: delivery skipped", "reminder_id", rem.ID)
			return
		}
		log.Error("notify: delivery failed",
			"reminder_id", rem.ID,
			"title", rem.Title,
			"error", err.Error(),
		)
		d.emitter.Publish(status.Event{
			ReminderID: rem.ID,
			State:      status.StateFailure,
			Detail:     err.Error(),
			At:         d.clock.Now(),
		})
		return
	}

	// The email is already handed off; if marking fails the reminder
	// is delivered again next cycle. Duplicates are accepted, silent
	// loss is not.
	if err := d.reminders.MarkNotified(rem.ID); err != nil {
		log.Error("notify: marking reminder notified failed", "reminder_id", rem.ID, "error", err.Error())
	}

	log.Info("notify: reminder delivered",
		"reminder_id", rem.ID,
		"title", rem.Title,
		"recipient", receipt.Recipient,
		"mode", receipt.Mode,
	)
	d.emitter.Publish(status.Event{
		ReminderID: rem.ID,
		State:      status.StateSuccess,
		At:         receipt.DeliveredAt,
	})
}

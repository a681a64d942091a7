package notify

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/reminder"
	"github.com/markb/reminderd/internal/settings"
	"github.com/markb/reminderd/internal/smtp"
	"github.com/markb/reminderd/internal/status"
)

// fakeClock drives the dispatcher deterministically. Advance moves the
// clock and fires one tick.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	c   chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, c: make(chan time.Time, 1)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	f.mu.Unlock()
	f.c <- now
}

func (f *fakeClock) NewTicker(time.Duration) Ticker { return &fakeTicker{c: f.c} }

type fakeTicker struct{ c chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               {}

// stubMailer scripts SMTP outcomes without a network.
type stubMailer struct {
	mu       sync.Mutex
	err      error
	attempts int
	sent     []*mail.Message
}

func (s *stubMailer) Send(ctx context.Context, msg *mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubMailer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubMailer) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *stubMailer) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// recordingEmitter captures published events in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []status.Event
}

func (r *recordingEmitter) Publish(ev status.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) states(reminderID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.ReminderID == reminderID {
			out = append(out, ev.State)
		}
	}
	return out
}

func (r *recordingEmitter) lastFailureDetail(reminderID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	detail := ""
	for _, ev := range r.events {
		if ev.ReminderID == reminderID && ev.State == status.StateFailure {
			detail = ev.Detail
		}
	}
	return detail
}

type testEnv struct {
	db        *db.DB
	reminders *reminder.Store
	settings  *settings.Store
	configs   *mailconfig.Store
	deliverer *Deliverer
	logOut    *bytes.Buffer
	clock     *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations())
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		db:        database,
		reminders: reminder.NewStore(database),
		settings:  settings.NewStore(database),
		configs:   mailconfig.NewStore(database),
		logOut:    &bytes.Buffer{},
		clock:     newFakeClock(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)),
	}
	env.deliverer = NewDeliverer(database, env.settings, env.configs, env.logOut, env.clock)
	return env
}

func (e *testEnv) configure(t *testing.T, recipient, mode string) {
	t.Helper()
	require.NoError(t, e.settings.Set(settings.KeyNotifyRecipient, recipient))
	if mode != "" {
		require.NoError(t, e.settings.Set(settings.KeyMailMode, mode))
	}
}

func (e *testEnv) createDue(t *testing.T, title string) *reminder.Reminder {
	t.Helper()
	rem, err := e.reminders.Create(title, "Due EOD", e.clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	return rem
}

func TestDeliverer_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	rem := env.createDue(t, "Submit report")

	_, err := env.deliverer.Deliver(context.Background(), rem)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDeliverer_LogModeIsDefault(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", "")
	rem := env.createDue(t, "Submit report")

	receipt, err := env.deliverer.Deliver(context.Background(), rem)
	require.NoError(t, err)
	require.Equal(t, mail.ModeLog, receipt.Mode)
	require.Equal(t, "alice@example.test", receipt.Recipient)
	require.Contains(t, env.logOut.String(), "Reminder: Submit report")
}

func TestDeliverer_CatchMode(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeCatch)
	rem := env.createDue(t, "Submit report")

	_, err := env.deliverer.Deliver(context.Background(), rem)
	require.NoError(t, err)

	emails, err := mail.NewCatchMailer(env.db).ListEmails(10, 0)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	require.Equal(t, rem.ID, emails[0].ReminderID)
	require.Equal(t, "alice@example.test", emails[0].To)
}

func TestDeliverer_SMTPModeNeedsActiveConfig(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeSMTP)
	rem := env.createDue(t, "Submit report")

	_, err := env.deliverer.Deliver(context.Background(), rem)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDeliverer_UnknownMode(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", "carrier-pigeon")
	rem := env.createDue(t, "Submit report")

	_, err := env.deliverer.Deliver(context.Background(), rem)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotConfigured)
}

func TestDeliverer_SMTPModeDelivers(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeSMTP)
	stub := &stubMailer{}
	env.deliverer.smtpMailer = stub
	rem := env.createDue(t, "Submit report")

	receipt, err := env.deliverer.Deliver(context.Background(), rem)
	require.NoError(t, err)
	require.Equal(t, mail.ModeSMTP, receipt.Mode)
	require.Equal(t, 1, stub.sentCount())
	require.Equal(t, "alice@example.test", stub.sent[0].To)
	require.Equal(t, "Reminder: Submit report", stub.sent[0].Subject)
}

func TestDispatcher_DeliversDueOnce(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeSMTP)
	stub := &stubMailer{}
	env.deliverer.smtpMailer = stub
	emitter := &recordingEmitter{}

	due := env.createDue(t, "Submit report")
	future, err := env.reminders.Create("Later", "", env.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	d := NewDispatcher(env.reminders, env.deliverer, emitter, env.clock, time.Minute)
	ctx := context.Background()

	d.RunCycle(ctx)
	require.Equal(t, 1, stub.sentCount())

	got, err := env.reminders.Get(due.ID)
	require.NoError(t, err)
	require.True(t, got.Notified)

	got, err = env.reminders.Get(future.ID)
	require.NoError(t, err)
	require.False(t, got.Notified)

	// A delivered reminder is not attempted again.
	d.RunCycle(ctx)
	require.Equal(t, 1, stub.sentCount())

	require.Equal(t, []string{status.StatePending, status.StateSuccess}, emitter.states(due.ID))
	require.Nil(t, emitter.states(future.ID))
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeSMTP)
	stub := &stubMailer{}
	stub.setErr(&smtp.StageError{
		Stage:    smtp.StageRcptTo,
		Code:     550,
		Response: "550 5.1.1 no such user",
	})
	env.deliverer.smtpMailer = stub
	emitter := &recordingEmitter{}

	rem := env.createDue(t, "Submit report")
	d := NewDispatcher(env.reminders, env.deliverer, emitter, env.clock, time.Minute)
	ctx := context.Background()

	// A persistently failing reminder is retried every cycle without
	// a cap or backoff.
	for i := 0; i < 3; i++ {
		d.RunCycle(ctx)
	}
	require.Equal(t, 3, stub.attemptCount())
	require.Equal(t, 0, stub.sentCount())

	got, err := env.reminders.Get(rem.ID)
	require.NoError(t, err)
	require.False(t, got.Notified)
	require.Contains(t, emitter.lastFailureDetail(rem.ID), "550")

	// Once the server accepts, the reminder is delivered and settles.
	stub.setErr(nil)
	d.RunCycle(ctx)
	require.Equal(t, 1, stub.sentCount())

	got, err = env.reminders.Get(rem.ID)
	require.NoError(t, err)
	require.True(t, got.Notified)

	d.RunCycle(ctx)
	require.Equal(t, 1, stub.sentCount())
}

func TestDispatcher_SkipsWhenNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	emitter := &recordingEmitter{}
	rem := env.createDue(t, "Submit report")

	d := NewDispatcher(env.reminders, env.deliverer, emitter, env.clock, time.Minute)
	d.RunCycle(context.Background())

	// The reminder stays due, with no failure recorded.
	got, err := env.reminders.Get(rem.ID)
	require.NoError(t, err)
	require.False(t, got.Notified)
	require.Equal(t, []string{status.StatePending}, emitter.states(rem.ID))

	// Configuring a recipient makes the next cycle deliver it.
	env.configure(t, "alice@example.test", mail.ModeLog)
	d.RunCycle(context.Background())

	got, err = env.reminders.Get(rem.ID)
	require.NoError(t, err)
	require.True(t, got.Notified)
}

func TestDispatcher_StartStop(t *testing.T) {
	env := newTestEnv(t)
	env.configure(t, "alice@example.test", mail.ModeSMTP)
	stub := &stubMailer{}
	env.deliverer.smtpMailer = stub

	first := env.createDue(t, "First")

	d := NewDispatcher(env.reminders, env.deliverer, nil, env.clock, time.Minute)
	d.Start(context.Background())

	// The startup cycle runs without waiting for a tick.
	require.Eventually(t, func() bool {
		got, err := env.reminders.Get(first.ID)
		return err == nil && got.Notified
	}, 2*time.Second, 10*time.Millisecond)

	second := env.createDue(t, "Second")
	env.clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		got, err := env.reminders.Get(second.ID)
		return err == nil && got.Notified
	}, 2*time.Second, 10*time.Millisecond)

	d.Stop()
}

package service

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zappabad/stocksim/internal/notify"
	notifyview "github.com/zappabad/stocksim/internal/notify/view"
)

// NotificationService records player notifications and fans them out to one
// subscriber. Muted kinds are discarded on arrival and bursts of fills in one
// symbol are merged into a single entry.
type NotificationService struct {
	cfg   Config
	log   zerolog.Logger
	muted map[notify.Kind]bool
	view  *notifyview.NotificationView

	incoming chan notify.Notification
	events   chan notifyview.NotificationEvent
	dropped  atomic.Int64

	// owned by the dispatcher
	last notify.Notification

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewNotificationService creates a NotificationService. Unknown muted kinds
// are ignored; Config.Validate reports them.
func NewNotificationService(cfg Config) *NotificationService {
	cfg = cfg.withDefaults()
	logger := log.With().Str("component", "notify").Logger()

	muted, err := cfg.mutedKinds()
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring muted kinds")
		muted = nil
	}

	s := &NotificationService{
		cfg:      cfg,
		log:      logger,
		muted:    muted,
		view:     notifyview.NewNotificationView(cfg.History),
		incoming: make(chan notify.Notification, cfg.Buffer),
		events:   make(chan notifyview.NotificationEvent, cfg.Buffer),
		closed:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.dispatch()

	return s
}

func (s *NotificationService) dispatch() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.closed:
			return
		case n := <-s.incoming:
			ev := s.merge(n)
			s.view.Apply(ev)

			select {
			case s.events <- ev:
			default:
				if s.dropped.Add(1) == 1 {
					s.log.Debug().Msg("subscriber is behind, dropping notifications")
				}
			}
		}
	}
}

// merge folds n into the previous entry when both are fills of the same
// symbol within the merge window.
func (s *NotificationService) merge(n notify.Notification) notifyview.NotificationEvent {
	if n.Count < 1 {
		n.Count = 1
	}

	prev := s.last
	gap := n.Time.Sub(prev.Time)
	if s.cfg.MergeWindow > 0 &&
		prev.ID != uuid.Nil &&
		prev.Kind == notify.KindOrderFilled &&
		n.Kind == notify.KindOrderFilled &&
		prev.Symbol == n.Symbol &&
		gap >= 0 && gap <= s.cfg.MergeWindow {
		n.ID = prev.ID
		n.Count += prev.Count
		n.Severity = max(n.Severity, prev.Severity)
		s.last = n
		return notifyview.NotificationEvent{Item: n, Merged: true}
	}

	s.last = n
	return notifyview.NotificationEvent{Item: n}
}

// Notify implements notify.Notifier. It assigns an ID if missing and never
// blocks once the service is closed.
func (s *NotificationService) Notify(n notify.Notification) {
	if s.muted[n.Kind] {
		return
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	select {
	case s.incoming <- n:
	case <-s.closed:
	}
}

// Latest returns the last n notifications, oldest first.
func (s *NotificationService) Latest(n int) []notify.Notification {
	return s.view.Latest(n)
}

// Events streams recorded notifications. A merged entry arrives again with
// the same ID and Merged set.
func (s *NotificationService) Events() <-chan notifyview.NotificationEvent {
	return s.events
}

// DroppedEvents returns how many events the subscriber missed.
func (s *NotificationService) DroppedEvents() int64 {
	return s.dropped.Load()
}

// Close stops the dispatcher and closes the events channel.
func (s *NotificationService) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}

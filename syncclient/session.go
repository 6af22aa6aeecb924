package syncclient

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"puzzle-bar/realtime"
	"puzzle-bar/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/r3labs/sse/v2"
)

var ErrAlreadyConnected = errors.New("session already connected")

// Session owns one change-stream connection for one signed-in client. It is
// created by the application shell and handed to whatever needs live data.
type Session struct {
	client *sse.Client
	views  *Sync

	// RetryDelay is the pause before resubscribing after the server closes the stream.
	RetryDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession prepares a session against streamURL. token is sent as the
// token query parameter since EventSource clients cannot set headers.
func NewSession(streamURL, token string, s *Sync) (*Session, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return &Session{
		client:     sse.NewClient(u.String()),
		views:      s,
		RetryDelay: 2 * time.Second,
	}, nil
}

// Connect starts listening in the background. Every successful
// (re)connect triggers one full refresh of the tracked views.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 10 * time.Second
	s.client.ReconnectStrategy = backoff.WithContext(bo, ctx)
	s.client.ReconnectNotify = func(err error, next time.Duration) {
		utils.LogWarn("[SYNC] stream dropped: %v (retry in %s)", err, next)
	}
	s.client.OnConnect(func(*sse.Client) {
		utils.LogInfo("[SYNC] stream connected, refreshing views")
		if err := s.views.RefreshAll(ctx); err != nil {
			utils.LogWarn("[SYNC] refresh after connect: %v", err)
		}
	})

	go s.run(ctx, s.done)
	return nil
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		// reset so OnConnect fires again after a clean server close
		s.client.Connected = false
		err := s.client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			s.dispatch(ctx, msg)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			utils.LogWarn("[SYNC] subscription ended: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.RetryDelay):
		}
	}
}

func (s *Session) dispatch(ctx context.Context, msg *sse.Event) {
	if len(msg.Event) == 0 {
		return
	}
	ev, err := realtime.Decode(string(msg.Event), msg.Data)
	if err != nil {
		utils.LogWarn("[SYNC] %v", err)
		return
	}
	if err := s.views.Handle(ctx, ev); err != nil {
		utils.LogWarn("[SYNC] handle %s: %v", ev.Kind(), err)
	}
}

// Close disconnects and waits for the listener to stop. The session may be
// connected again afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// notifyChannel is the channel the messages insert trigger publishes on;
// the payload is the recipient user id.
const notifyChannel = "app_messages"

// SubscribeMessages calls onChange whenever a message is inserted for userID,
// on this or any other server instance.
func (s *Store) SubscribeMessages(ctx context.Context, userID string, onChange func()) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.listenOnce.Do(func() {
		listenCtx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		s.wg.Add(1)
		go s.listen(listenCtx)
	})
	return s.events.Subscribe(userID, onChange), nil
}

// listen keeps one LISTEN connection open, reconnecting with backoff
func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	reconnect := false
	for ctx.Err() == nil {
		err := s.listenConn(ctx, reconnect, b)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("Message listener disconnected")
		reconnect = true

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.NextBackOff()):
		}
	}
}

func (s *Store) listenConn(ctx context.Context, reconnect bool, b *backoff.ExponentialBackOff) error {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	b.Reset()
	log.Info().Str("channel", notifyChannel).Msg("Message listener started")

	// events may have been missed while disconnected
	if reconnect {
		s.events.PublishAll()
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		s.events.Publish(notification.Payload)
	}
}

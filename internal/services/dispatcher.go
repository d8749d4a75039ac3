package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxDeliveries = 500

// DeliveryStatus is the state of one outbound message
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Delivery records the outcome of persisting one message for its recipient
type Delivery struct {
	ID          string             `json:"id"`
	SenderID    string             `json:"sender_id,omitempty"`
	RecipientID string             `json:"recipient_id"`
	Type        models.MessageType `json:"type"`
	Status      DeliveryStatus     `json:"status"`
	Attempts    int                `json:"attempts"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Pusher sends a device notification
type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string) error
}

// Presence reports whether a user has a live push channel
type Presence interface {
	IsOnline(userID string) bool
}

// DispatcherOptions bounds delivery
type DispatcherOptions struct {
	// Attempts is the total number of tries per message.
	Attempts int
	// Timeout bounds each try.
	Timeout time.Duration
	// RatePerMinute limits manual reminders and encouragements per sender.
	// Zero disables the limit.
	RatePerMinute int
	Pusher        Pusher
	// Presence skips the device push for users with an open socket.
	Presence Presence
}

// Dispatcher maps state transitions to partner messages and delivers them
// asynchronously with bounded retry. Each message is tracked in a delivery log.
type Dispatcher struct {
	store repository.Store
	eval  *policy.Evaluator
	opts  DispatcherOptions
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	deliveries map[string]*Delivery
	order      []string
	limiters   map[string]*rate.Limiter
}

// NewDispatcher creates a dispatcher writing messages through store
func NewDispatcher(store repository.Store, eval *policy.Evaluator, opts DispatcherOptions) *Dispatcher {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:      store,
		eval:       eval,
		opts:       opts,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		deliveries: make(map[string]*Delivery),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// CheckInSubmitted notifies the partner about a first or changed check-in.
// An unchanged resubmission sends nothing.
func (d *Dispatcher) CheckInSubmitted(userID, partnerID string, previous *models.CheckIn, current *models.CheckIn) *Delivery {
	if partnerID == "" || current == nil {
		return nil
	}
	input := models.MessageInput{
		Type:  models.MessagePartnerDone,
		Title: "Your partner checked in",
		Extra: &models.MessageExtra{CheckInDate: current.Date, FromUserID: userID},
	}
	if previous != nil {
		if previous.CheckInFields.Equal(current.CheckInFields) {
			return nil
		}
		input.Title = "Your partner updated today's check-in"
		input.Extra.Updated = true
	}
	body := current.CheckInFields.Summary()
	input.Body = &body
	return d.enqueue(userID, partnerID, input)
}

// RatingSubmitted notifies the rated partner
func (d *Dispatcher) RatingSubmitted(rating *models.Rating) *Delivery {
	body := fmt.Sprintf("Completeness %d/5, effort %d/5", rating.Completeness, rating.Effort)
	if rating.Comment != nil && *rating.Comment != "" {
		body += ": " + *rating.Comment
	}
	return d.enqueue(rating.FromUserID, rating.ToUserID, models.MessageInput{
		Type:  models.MessagePartnerRated,
		Title: "Your partner rated your check-in",
		Body:  &body,
		Extra: &models.MessageExtra{
			CheckInDate:  rating.CheckInDate,
			FromUserID:   rating.FromUserID,
			Completeness: rating.Completeness,
			Effort:       rating.Effort,
		},
	})
}

// RemindRate asks the partner to rate the caller's pending check-in: today's
// if unrated, else yesterday's if unrated and still inside the window.
func (d *Dispatcher) RemindRate(ctx context.Context, userID string) (*Delivery, error) {
	binding, err := d.partnerOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	target, err := d.pendingRatingDate(ctx, userID, binding.PartnerID)
	if err != nil {
		return nil, err
	}
	if err := d.allow(userID); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Rate their check-in for %s", target)
	return d.enqueue(userID, binding.PartnerID, models.MessageInput{
		Type:  models.MessageRemindRate,
		Title: "Your partner is waiting for a rating",
		Body:  &body,
		Extra: &models.MessageExtra{CheckInDate: target, FromUserID: userID},
	}), nil
}

func (d *Dispatcher) pendingRatingDate(ctx context.Context, userID, partnerID string) (string, error) {
	candidates := []string{d.eval.Today(), d.eval.Yesterday()}
	for _, date := range candidates {
		if !d.eval.InRatingWindow(date) {
			continue
		}
		checkIn, err := d.store.GetCheckIn(ctx, userID, date)
		if err != nil {
			return "", fmt.Errorf("failed to get check-in: %w", err)
		}
		if checkIn == nil {
			continue
		}
		rating, err := d.store.GetRating(ctx, partnerID, userID, date)
		if err != nil {
			return "", fmt.Errorf("failed to get rating: %w", err)
		}
		if rating == nil {
			return date, nil
		}
	}
	return "", apperr.ErrNoPendingRating
}

// Encourage sends free text to the bound partner
func (d *Dispatcher) Encourage(ctx context.Context, userID, text string) (*Delivery, error) {
	binding, err := d.partnerOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := d.allow(userID); err != nil {
		return nil, err
	}
	return d.enqueue(userID, binding.PartnerID, models.MessageInput{
		Type:  models.MessageEncourage,
		Title: "Your partner sent you encouragement",
		Body:  &text,
		Extra: &models.MessageExtra{FromUserID: userID},
	}), nil
}

// PartnerBound tells the invite code owner who bound with them
func (d *Dispatcher) PartnerBound(requester *models.User, ownerID string) *Delivery {
	body := fmt.Sprintf("%s is now your partner", requester.Nickname)
	return d.enqueue(requester.ID, ownerID, models.MessageInput{
		Type:  models.MessageBind,
		Title: "New partner",
		Body:  &body,
		Extra: &models.MessageExtra{FromUserID: requester.ID},
	})
}

// PartnerUnbound tells the former partner the binding was removed
func (d *Dispatcher) PartnerUnbound(user *models.User, formerPartnerID string) *Delivery {
	body := fmt.Sprintf("%s ended the partnership", user.Nickname)
	return d.enqueue(user.ID, formerPartnerID, models.MessageInput{
		Type:  models.MessageUnbind,
		Title: "Partner unbound",
		Body:  &body,
		Extra: &models.MessageExtra{FromUserID: user.ID},
	})
}

// RemindCheckIn nudges a user who has not checked in today
func (d *Dispatcher) RemindCheckIn(ctx context.Context, userID string) (*Delivery, error) {
	today := d.eval.Today()
	checkIn, err := d.store.GetCheckIn(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	if checkIn != nil {
		return nil, nil
	}
	body := "You have not checked in today"
	return d.enqueue("", userID, models.MessageInput{
		Type:  models.MessageRemindCheckIn,
		Title: "Time to check in",
		Body:  &body,
		Extra: &models.MessageExtra{CheckInDate: today},
	}), nil
}

func (d *Dispatcher) partnerOf(ctx context.Context, userID string) (*models.PartnerBinding, error) {
	binding, err := d.store.GetPartnerBinding(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner binding: %w", err)
	}
	if binding == nil {
		return nil, apperr.ErrNoPartner
	}
	return binding, nil
}

// allow applies the per-sender limit on manual triggers
func (d *Dispatcher) allow(senderID string) error {
	if d.opts.RatePerMinute <= 0 {
		return nil
	}
	d.mu.Lock()
	limiter, ok := d.limiters[senderID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.opts.RatePerMinute)), max(d.opts.RatePerMinute/2, 1))
		d.limiters[senderID] = limiter
	}
	d.mu.Unlock()

	if !limiter.Allow() {
		return apperr.ErrRateLimited
	}
	return nil
}

// enqueue records a pending delivery and persists it in the background
func (d *Dispatcher) enqueue(senderID, recipientID string, input models.MessageInput) *Delivery {
	input.ID = uuid.New().String()
	now := d.now()
	delivery := &Delivery{
		ID:          input.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Type:        input.Type,
		Status:      DeliveryPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	d.mu.Lock()
	d.deliveries[delivery.ID] = delivery
	d.order = append(d.order, delivery.ID)
	if len(d.order) > maxDeliveries {
		delete(d.deliveries, d.order[0])
		d.order = d.order[1:]
	}
	snapshot := *delivery
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(recipientID, input)
	}()

	return &snapshot
}

func (d *Dispatcher) deliver(recipientID string, input models.MessageInput) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(d.ctx, func() (*models.Message, error) {
		ctx, cancel := context.WithTimeout(d.ctx, d.opts.Timeout)
		defer cancel()

		msg, err := d.store.AddMessage(ctx, recipientID, input)
		d.update(input.ID, func(del *Delivery) {
			del.Attempts++
			if err != nil {
				del.LastError = err.Error()
			}
		})
		if err == nil {
			return msg, nil
		}
		switch apperr.KindOf(err) {
		case apperr.KindTransient, apperr.KindUnknown:
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(d.opts.Attempts)))

	if err != nil {
		d.update(input.ID, func(del *Delivery) {
			del.Status = DeliveryFailed
			del.LastError = err.Error()
		})
		log.Error().
			Err(err).
			Str("delivery_id", input.ID).
			Str("user_id", recipientID).
			Str("message_type", string(input.Type)).
			Msg("Failed to deliver message")
		return
	}

	d.update(input.ID, func(del *Delivery) {
		del.Status = DeliveryDelivered
		del.LastError = ""
	})
	log.Debug().
		Str("delivery_id", input.ID).
		Str("user_id", recipientID).
		Str("message_type", string(input.Type)).
		Msg("Message delivered")

	d.push(recipientID, input)
}

// push sends a device notification; failures are only logged
func (d *Dispatcher) push(recipientID string, input models.MessageInput) {
	if d.opts.Pusher == nil {
		return
	}
	if d.opts.Presence != nil && d.opts.Presence.IsOnline(recipientID) {
		return
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.opts.Timeout)
	defer cancel()

	user, err := d.store.GetUser(ctx, recipientID)
	if err != nil || user.PushToken == nil {
		return
	}
	body := ""
	if input.Body != nil {
		body = *input.Body
	}
	if err := d.opts.Pusher.Push(ctx, *user.PushToken, input.Title, body); err != nil {
		log.Warn().
			Err(err).
			Str("delivery_id", input.ID).
			Str("user_id", recipientID).
			Msg("Failed to send device push")
	}
}

func (d *Dispatcher) update(id string, fn func(*Delivery)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if del, ok := d.deliveries[id]; ok {
		fn(del)
		del.UpdatedAt = d.now()
	}
}

// Delivery returns a copy of one tracked delivery
func (d *Dispatcher) Delivery(id string) (Delivery, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	del, ok := d.deliveries[id]
	if !ok {
		return Delivery{}, false
	}
	return *del, true
}

// Deliveries lists the tracked deliveries sent or received by userID, newest first
func (d *Dispatcher) Deliveries(userID string) []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]Delivery, 0)
	for i := len(d.order) - 1; i >= 0; i-- {
		del := d.deliveries[d.order[i]]
		if del.SenderID == userID || del.RecipientID == userID {
			list = append(list, *del)
		}
	}
	return list
}

// Wait blocks until every in-flight delivery has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close drains in-flight deliveries until ctx is done, then abandons the rest
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("failed to drain deliveries: %w", ctx.Err())
	}
}

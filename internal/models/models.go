package models

import "time"

// User represents a user in the system
type User struct {
	ID         string    `json:"id"`
	Nickname   string    `json:"nickname"`
	Avatar     string    `json:"avatar"`
	InviteCode string    `json:"invite_code"`
	PushToken  *string   `json:"push_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PartnerBinding is the directed edge user -> partner as seen by UserID
type PartnerBinding struct {
	UserID            string    `json:"user_id"`
	PartnerID         string    `json:"partner_id"`
	PartnerNickname   string    `json:"partner_nickname"`
	PartnerAvatar     string    `json:"partner_avatar"`
	PartnerInviteCode string    `json:"partner_invite_code"`
	BoundAt           time.Time `json:"bound_at"`
}

// Sport types accepted on a check-in
const (
	SportRunning  = "running"
	SportSwimming = "swimming"
	SportStrength = "strength"
	SportYoga     = "yoga"
	SportCycling  = "cycling"
	SportOther    = "other"
)

// CheckInFields holds the user-editable part of a check-in
type CheckInFields struct {
	Weight       *float64 `json:"weight,omitempty" validate:"omitempty,gt=0,lt=500"`
	BodyFat      *float64 `json:"body_fat,omitempty" validate:"omitempty,gte=0,lte=100"`
	SportType    *string  `json:"sport_type,omitempty" validate:"omitempty,oneof=running swimming strength yoga cycling other"`
	SportMinutes *int     `json:"sport_minutes,omitempty" validate:"omitempty,gte=0,lte=1440"`
	Breakfast    *string  `json:"breakfast,omitempty" validate:"omitempty,max=500"`
	Lunch        *string  `json:"lunch,omitempty" validate:"omitempty,max=500"`
	Dinner       *string  `json:"dinner,omitempty" validate:"omitempty,max=500"`
	MealImages   []string `json:"meal_images,omitempty" validate:"omitempty,max=9,dive,url"`
	WaterCups    *int     `json:"water_cups,omitempty" validate:"omitempty,gte=0,lte=100"`
	WaterMl      *int     `json:"water_ml,omitempty" validate:"omitempty,gte=0,lte=20000"`
	SleepHours   *float64 `json:"sleep_hours,omitempty" validate:"omitempty,gte=0,lte=24"`
	Mood         *string  `json:"mood,omitempty" validate:"omitempty,max=100"`
}

// CheckIn is one user's daily record, unique per (UserID, Date)
type CheckIn struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	CheckInFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rating is one user's evaluation of another's check-in, unique per
// (FromUserID, ToUserID, CheckInDate)
type Rating struct {
	ID           string    `json:"id"`
	FromUserID   string    `json:"from_user_id"`
	ToUserID     string    `json:"to_user_id"`
	CheckInDate  string    `json:"check_in_date"`
	CheckInID    string    `json:"check_in_id"`
	Completeness int       `json:"completeness"`
	Effort       int       `json:"effort"`
	Comment      *string   `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RatingInput carries the values of a rating upsert
type RatingInput struct {
	FromUserID   string  `validate:"required"`
	ToUserID     string  `validate:"required"`
	CheckInDate  string  `validate:"required,datetime=2006-01-02"`
	CheckInID    string  `validate:"required"`
	Completeness int     `validate:"gte=1,lte=5"`
	Effort       int     `validate:"gte=1,lte=5"`
	Comment      *string `validate:"omitempty,max=500"`
}

// MessageType enumerates the notifications a user can receive
type MessageType string

const (
	MessagePartnerDone   MessageType = "partner_done"
	MessagePartnerRated  MessageType = "partner_rated"
	MessageRemindRate    MessageType = "remind_rate"
	MessageRemindCheckIn MessageType = "remind_checkin"
	MessageEncourage     MessageType = "encourage"
	MessageBind          MessageType = "bind"
	MessageUnbind        MessageType = "unbind"
)

// MessageExtra is the structured payload attached to a message
type MessageExtra struct {
	CheckInDate  string `json:"check_in_date,omitempty"`
	FromUserID   string `json:"from_user_id,omitempty"`
	Completeness int    `json:"completeness,omitempty"`
	Effort       int    `json:"effort,omitempty"`
	Updated      bool   `json:"updated,omitempty"`
}

// MessageInput is the immutable payload of a new message. ID is assigned by
// the caller so that retried inserts stay idempotent.
type MessageInput struct {
	ID    string        `json:"id"`
	Type  MessageType   `json:"type"`
	Title string        `json:"title"`
	Body  *string       `json:"body,omitempty"`
	Extra *MessageExtra `json:"extra,omitempty"`
}

// Message is a notification delivered to exactly one recipient
type Message struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Type      MessageType   `json:"type"`
	Title     string        `json:"title"`
	Body      *string       `json:"body,omitempty"`
	Extra     *MessageExtra `json:"extra,omitempty"`
	Read      bool          `json:"read"`
	CreatedAt time.Time     `json:"created_at"`
}

// MaxMessages caps the message history returned or kept per store
const MaxMessages = 200

// Page selects a window of a newest-first list
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to the allowed range
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > MaxMessages {
		p.Limit = MaxMessages
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Snapshot is the full state a client needs for one user
type Snapshot struct {
	User            *User           `json:"user"`
	Partner         *PartnerBinding `json:"partner"`
	CheckIns        []CheckIn       `json:"check_ins"`
	PartnerCheckIns []CheckIn       `json:"partner_check_ins"`
	Ratings         []Rating        `json:"ratings"`
	Messages        []Message       `json:"messages"`
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/psicanalise-online/platform/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type ProfileFilter struct {
	Role  models.Role
	Query string
	Limit int
}

type ProductFilter struct {
	ProfessionalID  uint
	AppointmentType models.AppointmentType
	OnlyActive      bool
}

type AppointmentFilter struct {
	UserID         uint
	ProfessionalID uint
	Status         models.AppointmentStatus
	From           *time.Time
	To             *time.Time
	Limit          int
}

// OverlapQuery matches scheduled appointments of either party that intersect
// [Start, End).
type OverlapQuery struct {
	ProfessionalID uint
	UserID         uint
	Start          time.Time
	End            time.Time
	ExcludeID      uint
}

type NotificationFilter struct {
	UserID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	// GetProfile and GetProfileByEmail also return soft-deleted profiles so
	// callers can tell a deleted account from a missing one.
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	// LockProfile takes a row lock on the profile for the rest of the transaction.
	LockProfile(ctx context.Context, id uint) error
	SearchProfiles(ctx context.Context, filter ProfileFilter) ([]models.Profile, error)
}

type VerificationRepository interface {
	CreateEmailVerification(ctx context.Context, v *models.EmailVerification) error
	DeleteUnusedEmailVerifications(ctx context.Context, userID uint) error
	GetEmailVerificationByHash(ctx context.Context, tokenHash string) (*models.EmailVerification, error)
	// MarkEmailVerificationUsed sets used_at only if it is still unset and
	// reports whether this call did it.
	MarkEmailVerificationUsed(ctx context.Context, id uint, at time.Time) (bool, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int64, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id uint) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, userID uint) ([]models.Order, error)
	ListStaleOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	SumPaidOrders(ctx context.Context, professionalID uint) (int64, error)
}

type CreditRepository interface {
	CreateSessionCredit(ctx context.Context, c *models.SessionCredit) error
	GetSessionCredit(ctx context.Context, id uint) (*models.SessionCredit, error)
	GetSessionCreditByOrder(ctx context.Context, orderID uint) (*models.SessionCredit, error)
	// FindSpendableCredit returns the oldest active credit with sessions left,
	// locked for update.
	FindSpendableCredit(ctx context.Context, userID, professionalID uint, t models.AppointmentType) (*models.SessionCredit, error)
	// ConsumeCredit increments used when used < total and reports whether a
	// unit was taken.
	ConsumeCredit(ctx context.Context, id uint) (bool, error)
	// RefundCredit decrements used when used > 0 and reactivates the credit.
	RefundCredit(ctx context.Context, id uint) (bool, error)
	ListSessionCredits(ctx context.Context, userID uint) ([]models.SessionCredit, error)
}

type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id uint) (*models.Appointment, error)
	// GetAppointmentForUpdate row-locks the appointment until the
	// transaction ends.
	GetAppointmentForUpdate(ctx context.Context, id uint) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, a *models.Appointment) error
	// SetVideoRoom stores the room only while the appointment is scheduled
	// and has none yet. It reports whether this call won.
	SetVideoRoom(ctx context.Context, id uint, name, url string) (bool, error)
	// TransitionAppointment moves status from -> to and reports whether the
	// row was still in from.
	TransitionAppointment(ctx context.Context, id uint, from, to models.AppointmentStatus) (bool, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	HasOverlap(ctx context.Context, q OverlapQuery) (bool, error)
	ListRemindable(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	MarkReminderSent(ctx context.Context, id uint, at time.Time) (bool, error)
	CountAppointmentsByStatus(ctx context.Context, filter AppointmentFilter) (map[models.AppointmentStatus]int64, error)
}

type WorkingHoursRepository interface {
	ListWorkingHours(ctx context.Context, professionalID uint) ([]models.WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, professionalID uint, hours []models.WorkingHours) error
}

type ChatRepository interface {
	CreateChatMessage(ctx context.Context, m *models.ChatMessage) error
	ListChatMessages(ctx context.Context, appointmentID uint) ([]models.ChatMessage, error)
}

type NotesRepository interface {
	UpsertSessionNotes(ctx context.Context, n *models.SessionNotes) error
	GetSessionNotes(ctx context.Context, appointmentID uint) (*models.SessionNotes, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error)
	CountUnreadNotifications(ctx context.Context, userID uint) (int64, error)
	// MarkNotificationRead returns ErrNotFound when the notification does not
	// belong to userID.
	MarkNotificationRead(ctx context.Context, userID, id uint, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, userID, id uint) error
	DeleteReadNotifications(ctx context.Context, userID uint) (int64, error)
}

type BlogRepository interface {
	CreateBlogPost(ctx context.Context, p *models.BlogPost) error
	GetBlogPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	ListBlogPosts(ctx context.Context, limit, offset int) ([]models.BlogPost, int64, error)
}

type OutboxRepository interface {
	EnqueueOutbox(ctx context.Context, m *models.OutboxMessage) error
	ListDueOutbox(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error)
	UpdateOutbox(ctx context.Context, m *models.OutboxMessage) error
}

// Store is the persistence boundary used by the services.
type Store interface {
	ProfileRepository
	VerificationRepository
	ProductRepository
	OrderRepository
	CreditRepository
	AppointmentRepository
	WorkingHoursRepository
	ChatRepository
	NotesRepository
	NotificationRepository
	BlogRepository
	OutboxRepository

	// Tx runs fn inside a transaction. Returning an error rolls it back.
	Tx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

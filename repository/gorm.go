package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psicanalise-online/platform/models"
)

// GormStore implements Store on top of gorm and PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Tx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Profiles

func (s *GormStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.conn(ctx).Create(p).Error)
}

func (s *GormStore) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	var p models.Profile
	if err := s.conn(ctx).Unscoped().First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := s.conn(ctx).Unscoped().Where("LOWER(email) = ?", strings.ToLower(email)).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.conn(ctx).Unscoped().Save(p).Error)
}

func (s *GormStore) LockProfile(ctx context.Context, id uint) error {
	var p models.Profile
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&p, id).Error
	return translate(err)
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *GormStore) SearchProfiles(ctx context.Context, filter ProfileFilter) ([]models.Profile, error) {
	q := s.conn(ctx).Model(&models.Profile{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`(name ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\' OR phone ILIKE ? ESCAPE '\')`, like, like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var profiles []models.Profile
	if err := q.Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Email verifications

func (s *GormStore) CreateEmailVerification(ctx context.Context, v *models.EmailVerification) error {
	return translate(s.conn(ctx).Create(v).Error)
}

func (s *GormStore) DeleteUnusedEmailVerifications(ctx context.Context, userID uint) error {
	return s.conn(ctx).Where("user_id = ? AND used_at IS NULL", userID).Delete(&models.EmailVerification{}).Error
}

func (s *GormStore) GetEmailVerificationByHash(ctx context.Context, tokenHash string) (*models.EmailVerification, error) {
	var v models.EmailVerification
	if err := s.conn(ctx).Where("token_hash = ?", tokenHash).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *GormStore) MarkEmailVerificationUsed(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.EmailVerification{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	return res.RowsAffected == 1, res.Error
}

// Products

func (s *GormStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return translate(s.conn(ctx).Create(p).Error)
}

func (s *GormStore) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.conn(ctx).Preload("Professional").First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(p).Error)
}

func (s *GormStore) productQuery(ctx context.Context, filter ProductFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Product{})
	if filter.ProfessionalID != 0 {
		q = q.Where("professional_id = ?", filter.ProfessionalID)
	}
	if filter.AppointmentType != "" {
		q = q.Where("appointment_type = ?", filter.AppointmentType)
	}
	if filter.OnlyActive {
		q = q.Where("is_active = ?", true)
	}
	return q
}

func (s *GormStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	var products []models.Product
	err := s.productQuery(ctx, filter).Preload("Professional").Order("price_cents ASC, id ASC").Find(&products).Error
	return products, err
}

func (s *GormStore) CountProducts(ctx context.Context, filter ProductFilter) (int64, error) {
	var n int64
	err := s.productQuery(ctx, filter).Count(&n).Error
	return n, err
}

// Orders

func (s *GormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(o).Error)
}

func (s *GormStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := s.conn(ctx).Preload("Product").First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *GormStore) GetOrderForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *GormStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(o).Error)
}

func (s *GormStore) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.conn(ctx).Preload("Product").Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *GormStore) ListStaleOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.conn(ctx).
		Where("status IN ? AND created_at < ?", []models.OrderStatus{models.OrderPending, models.OrderPendingPix}, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (s *GormStore) SumPaidOrders(ctx context.Context, professionalID uint) (int64, error) {
	var total int64
	err := s.conn(ctx).Model(&models.Order{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("professional_id = ? AND status = ?", professionalID, models.OrderPaid).
		Scan(&total).Error
	return total, err
}

// Session credits

func (s *GormStore) CreateSessionCredit(ctx context.Context, c *models.SessionCredit) error {
	return translate(s.conn(ctx).Create(c).Error)
}

func (s *GormStore) GetSessionCredit(ctx context.Context, id uint) (*models.SessionCredit, error) {
	var c models.SessionCredit
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) GetSessionCreditByOrder(ctx context.Context, orderID uint) (*models.SessionCredit, error) {
	var c models.SessionCredit
	if err := s.conn(ctx).Where("order_id = ?", orderID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) FindSpendableCredit(ctx context.Context, userID, professionalID uint, t models.AppointmentType) (*models.SessionCredit, error) {
	var c models.SessionCredit
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND professional_id = ? AND appointment_type = ? AND status = ? AND used < total",
			userID, professionalID, t, models.CreditActive).
		Order("created_at ASC, id ASC").
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) ConsumeCredit(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).Model(&models.SessionCredit{}).
		Where("id = ? AND status = ? AND used < total", id, models.CreditActive).
		Updates(map[string]interface{}{
			"used":   gorm.Expr("used + 1"),
			"status": gorm.Expr("CASE WHEN used + 1 >= total THEN ? ELSE status END", models.CreditConsumed),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) RefundCredit(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).Model(&models.SessionCredit{}).
		Where("id = ? AND used > 0 AND status <> ?", id, models.CreditRefunded).
		Updates(map[string]interface{}{
			"used":   gorm.Expr("used - 1"),
			"status": models.CreditActive,
		})
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) ListSessionCredits(ctx context.Context, userID uint) ([]models.SessionCredit, error) {
	var credits []models.SessionCredit
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&credits).Error
	return credits, err
}

// Appointments

func (s *GormStore) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(a).Error)
}

func (s *GormStore) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	var a models.Appointment
	err := s.conn(ctx).
		Preload("Client", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Professional", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&a, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) GetAppointmentForUpdate(ctx context.Context, id uint) (*models.Appointment, error) {
	var a models.Appointment
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *GormStore) UpdateAppointment(ctx context.Context, a *models.Appointment) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(a).Error)
}

func (s *GormStore) SetVideoRoom(ctx context.Context, id uint, name, url string) (bool, error) {
	res := s.conn(ctx).Model(&models.Appointment{}).
		Where("id = ? AND status = ? AND (video_room_url = '' OR video_room_url IS NULL)", id, models.StatusScheduled).
		Updates(map[string]interface{}{"video_room_name": name, "video_room_url": url})
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) TransitionAppointment(ctx context.Context, id uint, from, to models.AppointmentStatus) (bool, error) {
	res := s.conn(ctx).Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) appointmentQuery(ctx context.Context, filter AppointmentFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Appointment{})
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ProfessionalID != 0 {
		q = q.Where("professional_id = ?", filter.ProfessionalID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("end_at > ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("start_at < ?", *filter.To)
	}
	return q
}

func (s *GormStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	q := s.appointmentQuery(ctx, filter).Preload("Client").Preload("Professional").Order("start_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var appointments []models.Appointment
	err := q.Find(&appointments).Error
	return appointments, err
}

func (s *GormStore) HasOverlap(ctx context.Context, q OverlapQuery) (bool, error) {
	query := s.conn(ctx).Model(&models.Appointment{}).
		Where("status = ? AND start_at < ? AND end_at > ?", models.StatusScheduled, q.End, q.Start)
	switch {
	case q.ProfessionalID != 0 && q.UserID != 0:
		query = query.Where("(professional_id = ? OR user_id = ?)", q.ProfessionalID, q.UserID)
	case q.ProfessionalID != 0:
		query = query.Where("professional_id = ?", q.ProfessionalID)
	case q.UserID != 0:
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.ExcludeID != 0 {
		query = query.Where("id <> ?", q.ExcludeID)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) ListRemindable(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := s.conn(ctx).Preload("Client").Preload("Professional").
		Where("status = ? AND start_at BETWEEN ? AND ? AND reminder_sent_at IS NULL", models.StatusScheduled, from, to).
		Find(&appointments).Error
	return appointments, err
}

func (s *GormStore) MarkReminderSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.Appointment{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		Update("reminder_sent_at", at)
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) CountAppointmentsByStatus(ctx context.Context, filter AppointmentFilter) (map[models.AppointmentStatus]int64, error) {
	var rows []struct {
		Status models.AppointmentStatus
		Count  int64
	}
	err := s.appointmentQuery(ctx, filter).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.AppointmentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Working hours

func (s *GormStore) ListWorkingHours(ctx context.Context, professionalID uint) ([]models.WorkingHours, error) {
	var hours []models.WorkingHours
	err := s.conn(ctx).Where("professional_id = ?", professionalID).Order("day_of_week ASC").Find(&hours).Error
	return hours, err
}

func (s *GormStore) ReplaceWorkingHours(ctx context.Context, professionalID uint, hours []models.WorkingHours) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("professional_id = ?", professionalID).Delete(&models.WorkingHours{}).Error; err != nil {
			return err
		}
		if len(hours) == 0 {
			return nil
		}
		for i := range hours {
			hours[i].ID = 0
			hours[i].ProfessionalID = professionalID
		}
		return tx.Create(&hours).Error
	})
}

// Chat

func (s *GormStore) CreateChatMessage(ctx context.Context, m *models.ChatMessage) error {
	return s.conn(ctx).Create(m).Error
}

func (s *GormStore) ListChatMessages(ctx context.Context, appointmentID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.conn(ctx).Where("appointment_id = ?", appointmentID).Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

// Session notes

func (s *GormStore) UpsertSessionNotes(ctx context.Context, n *models.SessionNotes) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "appointment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(n).Error
}

func (s *GormStore) GetSessionNotes(ctx context.Context, appointmentID uint) (*models.SessionNotes, error) {
	var n models.SessionNotes
	if err := s.conn(ctx).Where("appointment_id = ?", appointmentID).First(&n).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// Notifications

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.conn(ctx).Create(n).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error) {
	q := s.conn(ctx).Model(&models.Notification{}).Where("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var notifications []models.Notification
	err := q.Order("created_at DESC, id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&notifications).Error
	return notifications, total, err
}

func (s *GormStore) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id uint, at time.Time) error {
	var n models.Notification
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return translate(err)
	}
	if n.IsRead {
		return nil
	}
	return s.conn(ctx).Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteNotification(ctx context.Context, userID, id uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteReadNotifications(ctx context.Context, userID uint) (int64, error) {
	res := s.conn(ctx).Where("user_id = ? AND is_read = ?", userID, true).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// Blog

func (s *GormStore) CreateBlogPost(ctx context.Context, p *models.BlogPost) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(p).Error)
}

func (s *GormStore) GetBlogPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var p models.BlogPost
	err := s.conn(ctx).Preload("Author").Where("slug = ? AND published_at IS NOT NULL", slug).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListBlogPosts(ctx context.Context, limit, offset int) ([]models.BlogPost, int64, error) {
	q := s.conn(ctx).Model(&models.BlogPost{}).Where("published_at IS NOT NULL")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []models.BlogPost
	err := q.Preload("Author").Order("published_at DESC").Limit(limit).Offset(offset).Find(&posts).Error
	return posts, total, err
}

// Outbox

func (s *GormStore) EnqueueOutbox(ctx context.Context, m *models.OutboxMessage) error {
	return s.conn(ctx).Create(m).Error
}

func (s *GormStore) ListDueOutbox(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error) {
	var messages []models.OutboxMessage
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status IN ? AND available_at <= ?", []models.OutboxStatus{models.OutboxReady, models.OutboxRetry}, now).
		Order("available_at ASC, id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) UpdateOutbox(ctx context.Context, m *models.OutboxMessage) error {
	return s.conn(ctx).Save(m).Error
}

package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/psicanalise-online/platform/models"
)

type table[T any] struct {
	rows map[uint]T
	seq  uint
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[uint]T)}
}

func (t table[T]) clone() table[T] {
	return table[T]{rows: maps.Clone(t.rows), seq: t.seq}
}

func (t *table[T]) nextID() uint {
	t.seq++
	return t.seq
}

func (t table[T]) sorted() []T {
	ids := make([]uint, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

type memData struct {
	profiles      table[models.Profile]
	verifications table[models.EmailVerification]
	products      table[models.Product]
	orders        table[models.Order]
	credits       table[models.SessionCredit]
	appointments  table[models.Appointment]
	workingHours  table[models.WorkingHours]
	chat          table[models.ChatMessage]
	notes         table[models.SessionNotes]
	notifications table[models.Notification]
	blog          table[models.BlogPost]
	outbox        table[models.OutboxMessage]
}

func (d *memData) clone() *memData {
	return &memData{
		profiles:      d.profiles.clone(),
		verifications: d.verifications.clone(),
		products:      d.products.clone(),
		orders:        d.orders.clone(),
		credits:       d.credits.clone(),
		appointments:  d.appointments.clone(),
		workingHours:  d.workingHours.clone(),
		chat:          d.chat.clone(),
		notes:         d.notes.clone(),
		notifications: d.notifications.clone(),
		blog:          d.blog.clone(),
		outbox:        d.outbox.clone(),
	}
}

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by discarding a snapshot, which makes it suitable for tests and local
// runs without a database.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			profiles:      newTable[models.Profile](),
			verifications: newTable[models.EmailVerification](),
			products:      newTable[models.Product](),
			orders:        newTable[models.Order](),
			credits:       newTable[models.SessionCredit](),
			appointments:  newTable[models.Appointment](),
			workingHours:  newTable[models.WorkingHours](),
			chat:          newTable[models.ChatMessage](),
			notes:         newTable[models.SessionNotes](),
			notifications: newTable[models.Notification](),
			blog:          newTable[models.BlogPost](),
			outbox:        newTable[models.OutboxMessage](),
		},
	}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) Tx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&MemoryStore{mu: m.mu, data: snapshot, inTx: true}); err != nil {
		return err
	}
	m.data = snapshot
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// Profiles

func (m *MemoryStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	defer m.lock()()
	for _, existing := range m.data.profiles.rows {
		if strings.EqualFold(existing.Email, p.Email) {
			return ErrDuplicate
		}
	}
	p.ID = m.data.profiles.nextID()
	stamp(&p.CreatedAt, &p.UpdatedAt)
	m.data.profiles.rows[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	defer m.lock()()
	p, ok := m.data.profiles.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	defer m.lock()()
	for _, p := range m.data.profiles.rows {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	defer m.lock()()
	if _, ok := m.data.profiles.rows[p.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &p.UpdatedAt)
	m.data.profiles.rows[p.ID] = *p
	return nil
}

func (m *MemoryStore) LockProfile(ctx context.Context, id uint) error {
	defer m.lock()()
	p, ok := m.data.profiles.rows[id]
	if !ok || p.IsDeleted() {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryStore) SearchProfiles(ctx context.Context, filter ProfileFilter) ([]models.Profile, error) {
	defer m.lock()()
	term := strings.ToLower(strings.TrimSpace(filter.Query))
	var out []models.Profile
	for _, p := range m.data.profiles.sorted() {
		if p.IsDeleted() || (filter.Role != "" && p.Role != filter.Role) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Email), term) &&
			!strings.Contains(strings.ToLower(p.Phone), term) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Email verifications

func (m *MemoryStore) CreateEmailVerification(ctx context.Context, v *models.EmailVerification) error {
	defer m.lock()()
	for _, existing := range m.data.verifications.rows {
		if existing.TokenHash == v.TokenHash {
			return ErrDuplicate
		}
	}
	v.ID = m.data.verifications.nextID()
	stamp(&v.CreatedAt, nil)
	m.data.verifications.rows[v.ID] = *v
	return nil
}

func (m *MemoryStore) DeleteUnusedEmailVerifications(ctx context.Context, userID uint) error {
	defer m.lock()()
	for id, v := range m.data.verifications.rows {
		if v.UserID == userID && v.UsedAt == nil {
			delete(m.data.verifications.rows, id)
		}
	}
	return nil
}

func (m *MemoryStore) GetEmailVerificationByHash(ctx context.Context, tokenHash string) (*models.EmailVerification, error) {
	defer m.lock()()
	for _, v := range m.data.verifications.rows {
		if v.TokenHash == tokenHash {
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) MarkEmailVerificationUsed(ctx context.Context, id uint, at time.Time) (bool, error) {
	defer m.lock()()
	v, ok := m.data.verifications.rows[id]
	if !ok || v.UsedAt != nil {
		return false, nil
	}
	v.UsedAt = &at
	m.data.verifications.rows[id] = v
	return true, nil
}

// Products

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	defer m.lock()()
	p.ID = m.data.products.nextID()
	stamp(&p.CreatedAt, &p.UpdatedAt)
	row := *p
	row.Professional = nil
	m.data.products.rows[p.ID] = row
	return nil
}

func (m *MemoryStore) withProfessional(p models.Product) models.Product {
	if prof, ok := m.data.profiles.rows[p.ProfessionalID]; ok {
		p.Professional = &prof
	}
	return p
}

func (m *MemoryStore) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	defer m.lock()()
	p, ok := m.data.products.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = m.withProfessional(p)
	return &p, nil
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	defer m.lock()()
	if _, ok := m.data.products.rows[p.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &p.UpdatedAt)
	row := *p
	row.Professional = nil
	m.data.products.rows[p.ID] = row
	return nil
}

func matchProduct(p models.Product, filter ProductFilter) bool {
	if filter.ProfessionalID != 0 && p.ProfessionalID != filter.ProfessionalID {
		return false
	}
	if filter.AppointmentType != "" && p.AppointmentType != filter.AppointmentType {
		return false
	}
	return !filter.OnlyActive || p.IsActive
}

func (m *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	defer m.lock()()
	var out []models.Product
	for _, p := range m.data.products.sorted() {
		if matchProduct(p, filter) {
			out = append(out, m.withProfessional(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

func (m *MemoryStore) CountProducts(ctx context.Context, filter ProductFilter) (int64, error) {
	defer m.lock()()
	var n int64
	for _, p := range m.data.products.rows {
		if matchProduct(p, filter) {
			n++
		}
	}
	return n, nil
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	defer m.lock()()
	for _, existing := range m.data.orders.rows {
		if existing.Reference == o.Reference {
			return ErrDuplicate
		}
	}
	o.ID = m.data.orders.nextID()
	stamp(&o.CreatedAt, &o.UpdatedAt)
	row := *o
	row.Product = nil
	m.data.orders.rows[o.ID] = row
	return nil
}

func (m *MemoryStore) withProduct(o models.Order) models.Order {
	if p, ok := m.data.products.rows[o.ProductID]; ok {
		o.Product = &p
	}
	return o
}

func (m *MemoryStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	defer m.lock()()
	o, ok := m.data.orders.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = m.withProduct(o)
	return &o, nil
}

func (m *MemoryStore) GetOrderForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	defer m.lock()()
	o, ok := m.data.orders.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	defer m.lock()()
	if _, ok := m.data.orders.rows[o.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &o.UpdatedAt)
	row := *o
	row.Product = nil
	m.data.orders.rows[o.ID] = row
	return nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	defer m.lock()()
	var out []models.Order
	for _, o := range m.data.orders.sorted() {
		if o.UserID == userID {
			out = append([]models.Order{m.withProduct(o)}, out...)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListStaleOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	defer m.lock()()
	var out []models.Order
	for _, o := range m.data.orders.sorted() {
		if (o.Status == models.OrderPending || o.Status == models.OrderPendingPix) && o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) SumPaidOrders(ctx context.Context, professionalID uint) (int64, error) {
	defer m.lock()()
	var total int64
	for _, o := range m.data.orders.rows {
		if o.ProfessionalID == professionalID && o.Status == models.OrderPaid {
			total += o.AmountCents
		}
	}
	return total, nil
}

// Session credits

func (m *MemoryStore) CreateSessionCredit(ctx context.Context, c *models.SessionCredit) error {
	defer m.lock()()
	for _, existing := range m.data.credits.rows {
		if existing.OrderID == c.OrderID {
			return ErrDuplicate
		}
	}
	c.ID = m.data.credits.nextID()
	stamp(&c.CreatedAt, &c.UpdatedAt)
	m.data.credits.rows[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetSessionCredit(ctx context.Context, id uint) (*models.SessionCredit, error) {
	defer m.lock()()
	c, ok := m.data.credits.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetSessionCreditByOrder(ctx context.Context, orderID uint) (*models.SessionCredit, error) {
	defer m.lock()()
	for _, c := range m.data.credits.rows {
		if c.OrderID == orderID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindSpendableCredit(ctx context.Context, userID, professionalID uint, t models.AppointmentType) (*models.SessionCredit, error) {
	defer m.lock()()
	for _, c := range m.data.credits.sorted() {
		if c.UserID == userID && c.ProfessionalID == professionalID && c.AppointmentType == t && c.Spendable() {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ConsumeCredit(ctx context.Context, id uint) (bool, error) {
	defer m.lock()()
	c, ok := m.data.credits.rows[id]
	if !ok {
		return false, nil
	}
	if err := c.Consume(); err != nil {
		return false, nil
	}
	stamp(nil, &c.UpdatedAt)
	m.data.credits.rows[id] = c
	return true, nil
}

func (m *MemoryStore) RefundCredit(ctx context.Context, id uint) (bool, error) {
	defer m.lock()()
	c, ok := m.data.credits.rows[id]
	if !ok {
		return false, nil
	}
	if err := c.Refund(); err != nil {
		return false, nil
	}
	stamp(nil, &c.UpdatedAt)
	m.data.credits.rows[id] = c
	return true, nil
}

func (m *MemoryStore) ListSessionCredits(ctx context.Context, userID uint) ([]models.SessionCredit, error) {
	defer m.lock()()
	var out []models.SessionCredit
	for _, c := range m.data.credits.sorted() {
		if c.UserID == userID {
			out = append([]models.SessionCredit{c}, out...)
		}
	}
	return out, nil
}

// Appointments

func (m *MemoryStore) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	defer m.lock()()
	if err := a.BeforeCreate(nil); err != nil {
		return err
	}
	a.ID = m.data.appointments.nextID()
	stamp(&a.CreatedAt, &a.UpdatedAt)
	m.data.appointments.rows[a.ID] = stripParties(*a)
	return nil
}

func stripParties(a models.Appointment) models.Appointment {
	a.Client = nil
	a.Professional = nil
	return a
}

func (m *MemoryStore) withParties(a models.Appointment) models.Appointment {
	if p, ok := m.data.profiles.rows[a.UserID]; ok {
		a.Client = &p
	}
	if p, ok := m.data.profiles.rows[a.ProfessionalID]; ok {
		a.Professional = &p
	}
	return a
}

func (m *MemoryStore) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	defer m.lock()()
	a, ok := m.data.appointments.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	a = m.withParties(a)
	return &a, nil
}

// GetAppointmentForUpdate needs no row lock here; transactions already run
// one at a time.
func (m *MemoryStore) GetAppointmentForUpdate(ctx context.Context, id uint) (*models.Appointment, error) {
	return m.GetAppointment(ctx, id)
}

func (m *MemoryStore) SetVideoRoom(ctx context.Context, id uint, name, url string) (bool, error) {
	defer m.lock()()
	a, ok := m.data.appointments.rows[id]
	if !ok || a.Status != models.StatusScheduled || a.VideoRoomURL != "" {
		return false, nil
	}
	a.VideoRoomName = name
	a.VideoRoomURL = url
	stamp(nil, &a.UpdatedAt)
	m.data.appointments.rows[id] = a
	return true, nil
}

func (m *MemoryStore) TransitionAppointment(ctx context.Context, id uint, from, to models.AppointmentStatus) (bool, error) {
	defer m.lock()()
	a, ok := m.data.appointments.rows[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	stamp(nil, &a.UpdatedAt)
	m.data.appointments.rows[id] = a
	return true, nil
}

func (m *MemoryStore) UpdateAppointment(ctx context.Context, a *models.Appointment) error {
	defer m.lock()()
	if _, ok := m.data.appointments.rows[a.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &a.UpdatedAt)
	m.data.appointments.rows[a.ID] = stripParties(*a)
	return nil
}

func matchAppointment(a models.Appointment, filter AppointmentFilter) bool {
	if filter.UserID != 0 && a.UserID != filter.UserID {
		return false
	}
	if filter.ProfessionalID != 0 && a.ProfessionalID != filter.ProfessionalID {
		return false
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	if filter.From != nil && !a.EndAt.After(*filter.From) {
		return false
	}
	if filter.To != nil && !a.StartAt.Before(*filter.To) {
		return false
	}
	return true
}

func (m *MemoryStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error) {
	defer m.lock()()
	var out []models.Appointment
	for _, a := range m.data.appointments.sorted() {
		if matchAppointment(a, filter) {
			out = append(out, m.withParties(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) HasOverlap(ctx context.Context, q OverlapQuery) (bool, error) {
	defer m.lock()()
	for _, a := range m.data.appointments.rows {
		if a.Status != models.StatusScheduled || a.ID == q.ExcludeID {
			continue
		}
		party := (q.ProfessionalID != 0 && a.ProfessionalID == q.ProfessionalID) ||
			(q.UserID != 0 && a.UserID == q.UserID)
		if party && a.Overlaps(q.Start, q.End) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListRemindable(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	defer m.lock()()
	var out []models.Appointment
	for _, a := range m.data.appointments.sorted() {
		if a.Status == models.StatusScheduled && a.ReminderSentAt == nil &&
			!a.StartAt.Before(from) && !a.StartAt.After(to) {
			out = append(out, m.withParties(a))
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkReminderSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	defer m.lock()()
	a, ok := m.data.appointments.rows[id]
	if !ok || a.ReminderSentAt != nil {
		return false, nil
	}
	a.ReminderSentAt = &at
	m.data.appointments.rows[id] = a
	return true, nil
}

func (m *MemoryStore) CountAppointmentsByStatus(ctx context.Context, filter AppointmentFilter) (map[models.AppointmentStatus]int64, error) {
	defer m.lock()()
	counts := make(map[models.AppointmentStatus]int64)
	for _, a := range m.data.appointments.rows {
		if matchAppointment(a, filter) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

// Working hours

func (m *MemoryStore) ListWorkingHours(ctx context.Context, professionalID uint) ([]models.WorkingHours, error) {
	defer m.lock()()
	var out []models.WorkingHours
	for _, w := range m.data.workingHours.sorted() {
		if w.ProfessionalID == professionalID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (m *MemoryStore) ReplaceWorkingHours(ctx context.Context, professionalID uint, hours []models.WorkingHours) error {
	defer m.lock()()
	for id, w := range m.data.workingHours.rows {
		if w.ProfessionalID == professionalID {
			delete(m.data.workingHours.rows, id)
		}
	}
	for i := range hours {
		hours[i].ID = m.data.workingHours.nextID()
		hours[i].ProfessionalID = professionalID
		stamp(&hours[i].CreatedAt, &hours[i].UpdatedAt)
		m.data.workingHours.rows[hours[i].ID] = hours[i]
	}
	return nil
}

// Chat

func (m *MemoryStore) CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	defer m.lock()()
	msg.ID = m.data.chat.nextID()
	stamp(&msg.CreatedAt, nil)
	m.data.chat.rows[msg.ID] = *msg
	return nil
}

func (m *MemoryStore) ListChatMessages(ctx context.Context, appointmentID uint) ([]models.ChatMessage, error) {
	defer m.lock()()
	var out []models.ChatMessage
	for _, msg := range m.data.chat.sorted() {
		if msg.AppointmentID == appointmentID {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Session notes

func (m *MemoryStore) UpsertSessionNotes(ctx context.Context, n *models.SessionNotes) error {
	defer m.lock()()
	for id, existing := range m.data.notes.rows {
		if existing.AppointmentID == n.AppointmentID {
			existing.Content = n.Content
			stamp(nil, &existing.UpdatedAt)
			m.data.notes.rows[id] = existing
			*n = existing
			return nil
		}
	}
	n.ID = m.data.notes.nextID()
	stamp(&n.CreatedAt, &n.UpdatedAt)
	m.data.notes.rows[n.ID] = *n
	return nil
}

func (m *MemoryStore) GetSessionNotes(ctx context.Context, appointmentID uint) (*models.SessionNotes, error) {
	defer m.lock()()
	for _, n := range m.data.notes.rows {
		if n.AppointmentID == appointmentID {
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

// Notifications

func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer m.lock()()
	n.ID = m.data.notifications.nextID()
	stamp(&n.CreatedAt, nil)
	m.data.notifications.rows[n.ID] = *n
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]models.Notification, int64, error) {
	defer m.lock()()
	var matched []models.Notification
	for _, n := range m.data.notifications.sorted() {
		if n.UserID == filter.UserID && (!filter.UnreadOnly || !n.IsRead) {
			matched = append([]models.Notification{n}, matched...)
		}
	}
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []models.Notification{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	defer m.lock()()
	var n int64
	for _, row := range m.data.notifications.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkNotificationRead(ctx context.Context, userID, id uint, at time.Time) error {
	defer m.lock()()
	n, ok := m.data.notifications.rows[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	if n.IsRead {
		return nil
	}
	n.IsRead = true
	n.ReadAt = &at
	m.data.notifications.rows[id] = n
	return nil
}

func (m *MemoryStore) MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	defer m.lock()()
	var updated int64
	for id, n := range m.data.notifications.rows {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			m.data.notifications.rows[id] = n
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryStore) DeleteNotification(ctx context.Context, userID, id uint) error {
	defer m.lock()()
	n, ok := m.data.notifications.rows[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.data.notifications.rows, id)
	return nil
}

func (m *MemoryStore) DeleteReadNotifications(ctx context.Context, userID uint) (int64, error) {
	defer m.lock()()
	var deleted int64
	for id, n := range m.data.notifications.rows {
		if n.UserID == userID && n.IsRead {
			delete(m.data.notifications.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

// Blog

func (m *MemoryStore) CreateBlogPost(ctx context.Context, p *models.BlogPost) error {
	defer m.lock()()
	for _, existing := range m.data.blog.rows {
		if existing.Slug == p.Slug {
			return ErrDuplicate
		}
	}
	p.ID = m.data.blog.nextID()
	stamp(&p.CreatedAt, &p.UpdatedAt)
	row := *p
	row.Author = nil
	m.data.blog.rows[p.ID] = row
	return nil
}

func (m *MemoryStore) withAuthor(p models.BlogPost) models.BlogPost {
	if a, ok := m.data.profiles.rows[p.AuthorID]; ok {
		p.Author = &a
	}
	return p
}

func (m *MemoryStore) GetBlogPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	defer m.lock()()
	for _, p := range m.data.blog.rows {
		if p.Slug == slug && p.PublishedAt != nil {
			p = m.withAuthor(p)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListBlogPosts(ctx context.Context, limit, offset int) ([]models.BlogPost, int64, error) {
	defer m.lock()()
	var published []models.BlogPost
	for _, p := range m.data.blog.sorted() {
		if p.PublishedAt != nil {
			published = append(published, m.withAuthor(p))
		}
	}
	sort.SliceStable(published, func(i, j int) bool { return published[i].PublishedAt.After(*published[j].PublishedAt) })
	total := int64(len(published))
	if offset >= len(published) {
		return []models.BlogPost{}, total, nil
	}
	published = published[offset:]
	if limit > 0 && len(published) > limit {
		published = published[:limit]
	}
	return published, total, nil
}

// Outbox

func (m *MemoryStore) EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	defer m.lock()()
	msg.ID = m.data.outbox.nextID()
	stamp(&msg.CreatedAt, &msg.UpdatedAt)
	m.data.outbox.rows[msg.ID] = *msg
	return nil
}

func (m *MemoryStore) ListDueOutbox(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error) {
	defer m.lock()()
	var out []models.OutboxMessage
	for _, msg := range m.data.outbox.sorted() {
		if (msg.Status == models.OutboxReady || msg.Status == models.OutboxRetry) && !msg.AvailableAt.After(now) {
			out = append(out, msg)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	defer m.lock()()
	if _, ok := m.data.outbox.rows[msg.ID]; !ok {
		return ErrNotFound
	}
	stamp(nil, &msg.UpdatedAt)
	m.data.outbox.rows[msg.ID] = *msg
	return nil
}

// OutboxMessages returns every outbox row in id order, whatever its status.
func (m *MemoryStore) OutboxMessages() []models.OutboxMessage {
	defer m.lock()()
	return m.data.outbox.sorted()
}

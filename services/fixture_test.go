package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
)

type fakeRail struct {
	mu         sync.Mutex
	confirmed  bool
	status     string
	chargeErr  error
	confirmErr error
	confirms   int
}

func (r *fakeRail) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if r.chargeErr != nil {
		return nil, r.chargeErr
	}
	charge := &Charge{Reference: "ch_" + req.Reference}
	if req.Method == models.PaymentPix {
		charge.QRCode = "00020126pix"
	}
	return charge, nil
}

func (r *fakeRail) Confirm(ctx context.Context, method models.PaymentMethod, reference string) (*Confirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirms++
	if r.confirmErr != nil {
		return nil, r.confirmErr
	}
	return &Confirmation{Confirmed: r.confirmed, Status: r.status}, nil
}

type fakeVideo struct {
	mu     sync.Mutex
	rooms  int
	tokens int
	err    error

	// onCreate runs after a room is created and before it is returned.
	onCreate func()
}

func (v *fakeVideo) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	v.mu.Lock()
	if v.err != nil {
		v.mu.Unlock()
		return nil, v.err
	}
	v.rooms++
	hook := v.onCreate
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &Room{Name: req.Name, URL: "https://video.test/" + req.Name}, nil
}

func (v *fakeVideo) CreateMeetingToken(ctx context.Context, req MeetingTokenRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens++
	return "meeting-token", nil
}

type sentEmail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	sent []sentEmail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

type fakePublisher struct {
	topics []string
}

func (p *fakePublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	p.topics = append(p.topics, eventType)
	return nil
}

type pushed struct {
	UserIDs []uint
	Type    string
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *recordingPusher) Push(userIDs []uint, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{UserIDs: userIDs, Type: eventType})
}

func (p *recordingPusher) ofType(eventType string) []pushed {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushed
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type fakeCooldown struct {
	seen map[string]bool
}

func (c *fakeCooldown) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	if c.seen[key] {
		return false, nil
	}
	c.seen[key] = true
	return true, nil
}

type fakeUploader struct {
	err error
}

func (u fakeUploader) Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.test/" + folder + "/" + publicID, nil
}

// fixture wires every service against one MemoryStore and a shared clock.
type fixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	cfg   *config.Config
	now   time.Time

	rail     *fakeRail
	video    *fakeVideo
	mailer   *fakeMailer
	events   *fakePublisher
	pusher   *recordingPusher
	locker   *fakeLocker
	cooldown *fakeCooldown

	notifications *NotificationService
	verification  *VerificationService
	auth          *AuthService
	catalog       *CatalogService
	payments      *PaymentService
	scheduling    *SchedulingService
	rooms         *RoomService
	notes         *NotesService
	admin         *AdminService
	blog          *BlogService
	relay         *OutboxRelay

	orderSeq uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		cfg: &config.Config{
			JWT: config.JWTConfig{
				Secret:           "test-secret",
				AccessTokenTTL:   time.Hour,
				RefreshTokenTTL:  24 * time.Hour,
				RefreshThreshold: 10 * time.Minute,
			},
			Site:         config.SiteConfig{BaseURL: "https://psi.test"},
			Verification: config.VerificationConfig{TokenTTL: 24 * time.Hour, ResendCooldown: time.Minute},
		},
		now:      time.Date(2025, 2, 27, 12, 0, 0, 0, time.UTC),
		rail:     &fakeRail{confirmed: true, status: "paid"},
		video:    &fakeVideo{},
		mailer:   &fakeMailer{},
		events:   &fakePublisher{},
		pusher:   &recordingPusher{},
		locker:   &fakeLocker{},
		cooldown: &fakeCooldown{},
		orderSeq: 1000,
	}
	log := zap.NewNop()
	clock := func() time.Time { return f.now }

	f.notifications = NewNotificationService(f.store, f.pusher, log)
	f.notifications.now = clock
	f.verification = NewVerificationService(f.store, f.cooldown, f.notifications, f.cfg, log)
	f.verification.now = clock
	f.auth = NewAuthService(f.store, f.verification, nil, f.cfg.JWT, log)
	f.catalog = NewCatalogService(f.store, f.rail, log)
	f.payments = NewPaymentService(f.store, f.rail, f.locker, f.notifications, log)
	f.payments.now = clock
	f.scheduling = NewSchedulingService(f.store, f.notifications, time.UTC, log)
	f.scheduling.now = clock
	f.rooms = NewRoomService(f.store, f.video, f.pusher, f.notifications, log)
	f.rooms.now = clock
	f.notes = NewNotesService(f.store)
	f.admin = NewAdminService(f.store)
	f.blog = NewBlogService(f.store, nil, log)
	f.blog.now = clock
	f.relay = NewOutboxRelay(f.store, f.mailer, f.events, log)
	f.relay.now = clock
	return f
}

func (f *fixture) profile(t *testing.T, role models.Role, name, email string) (*models.Profile, Caller) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	verified := f.now
	p := &models.Profile{
		Name:            name,
		Email:           email,
		PasswordHash:    string(hash),
		Role:            role,
		Status:          models.ProfileActive,
		EmailVerifiedAt: &verified,
	}
	require.NoError(t, f.store.CreateProfile(f.ctx, p))
	return p, Caller{UserID: p.ID, Role: p.Role, Name: p.Name, Email: p.Email}
}

func (f *fixture) product(t *testing.T, professionalID uint, kind models.AppointmentType, sessions int, price int64, minutes int) *models.Product {
	t.Helper()
	p := &models.Product{
		ProfessionalID:  professionalID,
		Name:            "Pacote",
		AppointmentType: kind,
		SessionsCount:   sessions,
		PriceCents:      price,
		DurationMinutes: minutes,
		IsActive:        true,
	}
	require.NoError(t, f.store.CreateProduct(f.ctx, p))
	return p
}

// everyDay opens the professional's agenda 09:00-18:00 on all seven days.
func (f *fixture) everyDay(t *testing.T, professionalID uint) {
	t.Helper()
	var hours []models.WorkingHours
	for d := models.Sunday; d <= models.Saturday; d++ {
		hours = append(hours, models.WorkingHours{DayOfWeek: d, StartTime: "09:00", EndTime: "18:00", IsWorkDay: true})
	}
	require.NoError(t, f.store.ReplaceWorkingHours(f.ctx, professionalID, hours))
}

func (f *fixture) credit(t *testing.T, userID, professionalID uint, kind models.AppointmentType, total int) *models.SessionCredit {
	t.Helper()
	f.orderSeq++
	c := &models.SessionCredit{
		UserID:          userID,
		ProfessionalID:  professionalID,
		AppointmentType: kind,
		Total:           total,
		Status:          models.CreditActive,
		OrderID:         f.orderSeq,
	}
	require.NoError(t, f.store.CreateSessionCredit(f.ctx, c))
	return c
}

func (f *fixture) pendingOutbox(t *testing.T) []models.OutboxMessage {
	t.Helper()
	due, err := f.store.ListDueOutbox(f.ctx, f.now.Add(365*24*time.Hour), 0)
	require.NoError(t, err)
	return due
}

func (f *fixture) pendingEmails(t *testing.T, to string) []EmailPayload {
	t.Helper()
	var out []EmailPayload
	for _, msg := range f.pendingOutbox(t) {
		if msg.Kind != models.OutboxEmail {
			continue
		}
		var p EmailPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		if p.To == to {
			out = append(out, p)
		}
	}
	return out
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]{64})`)

// lastVerificationToken pulls the raw token out of the newest queued email.
func (f *fixture) lastVerificationToken(t *testing.T, to string) string {
	t.Helper()
	emails := f.pendingEmails(t, to)
	require.NotEmpty(t, emails)
	m := tokenInLink.FindStringSubmatch(emails[len(emails)-1].Body)
	require.Len(t, m, 2)
	return m[1]
}

func at(s string) *time.Time {
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &v
}

var errBoom = errors.New("boom")

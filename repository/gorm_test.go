package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/psicanalise-online/platform/db"
	"github.com/psicanalise-online/platform/models"
)

// newPostgresStore returns a migrated store backed by TEST_DATABASE_URL or,
// when unset, by a throwaway Postgres container. Tests skip without Docker.
func newPostgresStore(t *testing.T) *GormStore {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests skipped in short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("psicanalise"),
			tcpostgres.WithUsername("psicanalise"),
			tcpostgres.WithPassword("psicanalise"),
			tcpostgres.BasicWaitStrategies(),
		)
		t.Cleanup(func() {
			if ctr != nil {
				_ = ctr.Terminate(context.Background())
			}
		})
		require.NoError(t, err)
		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	var tables []string
	for _, model := range db.Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		tables = append(tables, stmt.Schema.Table)
	}
	require.NoError(t, conn.Exec("TRUNCATE "+strings.Join(tables, ", ")+" RESTART IDENTITY").Error)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormStore(conn)
}

func pgProfile(t *testing.T, store *GormStore, name, email string, role models.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{Name: name, Email: email, PasswordHash: "x", Role: role, Status: models.ProfileActive}
	require.NoError(t, store.CreateProfile(context.Background(), p))
	return p
}

// withLockTimeout runs fn in a transaction that gives up on row locks quickly.
func withLockTimeout(ctx context.Context, store *GormStore, fn func(Store) error) error {
	return store.Tx(ctx, func(tx Store) error {
		if err := tx.(*GormStore).conn(ctx).Exec("SET LOCAL lock_timeout = '200ms'").Error; err != nil {
			return err
		}
		return fn(tx)
	})
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}

// holdLock keeps fn's row locks until the returned release is called.
func holdLock(t *testing.T, store *GormStore, fn func(Store) error) (release func()) {
	t.Helper()
	locked := make(chan error, 1)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = store.Tx(context.Background(), func(tx Store) error {
			err := fn(tx)
			locked <- err
			if err != nil {
				return err
			}
			<-done
			return nil
		})
	}()
	require.NoError(t, <-locked)
	return func() {
		close(done)
		<-finished
	}
}

func TestGormConsumeCreditFlipsStatusOnLastUnit(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	credit := &models.SessionCredit{UserID: 1, ProfessionalID: 2, AppointmentType: models.TypeVideo, Total: 2, Status: models.CreditActive, OrderID: 10}
	require.NoError(t, store.CreateSessionCredit(ctx, credit))
	require.ErrorIs(t, store.CreateSessionCredit(ctx, &models.SessionCredit{OrderID: 10, Total: 1, Status: models.CreditActive}), ErrDuplicate)

	ok, err := store.ConsumeCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := store.GetSessionCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Used)
	require.Equal(t, models.CreditActive, got.Status)

	ok, err = store.ConsumeCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.True(t, ok)
	got, err = store.GetSessionCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Used)
	require.Equal(t, models.CreditConsumed, got.Status)

	ok, err = store.ConsumeCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.RefundCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.True(t, ok)
	got, err = store.GetSessionCredit(ctx, credit.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Used)
	require.Equal(t, models.CreditActive, got.Status)
}

func TestGormFindSpendableCreditLocksRow(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	spent := &models.SessionCredit{UserID: 1, ProfessionalID: 2, AppointmentType: models.TypeVideo, Total: 1, Used: 1, Status: models.CreditConsumed, OrderID: 1}
	oldest := &models.SessionCredit{UserID: 1, ProfessionalID: 2, AppointmentType: models.TypeVideo, Total: 3, Status: models.CreditActive, OrderID: 2}
	newer := &models.SessionCredit{UserID: 1, ProfessionalID: 2, AppointmentType: models.TypeVideo, Total: 3, Status: models.CreditActive, OrderID: 3}
	for _, c := range []*models.SessionCredit{spent, oldest, newer} {
		require.NoError(t, store.CreateSessionCredit(ctx, c))
	}

	found, err := store.FindSpendableCredit(ctx, 1, 2, models.TypeVideo)
	require.NoError(t, err)
	require.Equal(t, oldest.ID, found.ID)
	_, err = store.FindSpendableCredit(ctx, 1, 2, models.TypeChat)
	require.ErrorIs(t, err, ErrNotFound)

	release := holdLock(t, store, func(tx Store) error {
		_, err := tx.FindSpendableCredit(ctx, 1, 2, models.TypeVideo)
		return err
	})
	err = withLockTimeout(ctx, store, func(tx Store) error {
		_, err := tx.FindSpendableCredit(ctx, 1, 2, models.TypeVideo)
		return err
	})
	require.True(t, isLockTimeout(err), "expected lock timeout, got %v", err)
	release()

	err = withLockTimeout(ctx, store, func(tx Store) error {
		_, err := tx.FindSpendableCredit(ctx, 1, 2, models.TypeVideo)
		return err
	})
	require.NoError(t, err)
}

func TestGormHasOverlapMatchesEitherParty(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	booked := &models.Appointment{UserID: 1, ProfessionalID: 2, CreditID: 1, AppointmentType: models.TypeVideo, Status: models.StatusScheduled, StartAt: start, EndAt: start.Add(time.Hour)}
	require.NoError(t, store.CreateAppointment(ctx, booked))
	cancelled := &models.Appointment{UserID: 5, ProfessionalID: 6, CreditID: 2, AppointmentType: models.TypeVideo, Status: models.StatusScheduled, StartAt: start, EndAt: start.Add(time.Hour)}
	require.NoError(t, store.CreateAppointment(ctx, cancelled))
	moved, err := store.TransitionAppointment(ctx, cancelled.ID, models.StatusScheduled, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, moved)

	tests := []struct {
		name string
		q    OverlapQuery
		want bool
	}{
		{"same client other professional", OverlapQuery{ProfessionalID: 3, UserID: 1, Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)}, true},
		{"same professional other client", OverlapQuery{ProfessionalID: 2, UserID: 4, Start: start, End: start.Add(time.Hour)}, true},
		{"unrelated parties", OverlapQuery{ProfessionalID: 3, UserID: 4, Start: start, End: start.Add(time.Hour)}, false},
		{"back to back", OverlapQuery{ProfessionalID: 2, UserID: 1, Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}, false},
		{"excluded self", OverlapQuery{ProfessionalID: 2, UserID: 1, Start: start, End: start.Add(time.Hour), ExcludeID: booked.ID}, false},
		{"cancelled ignored for client", OverlapQuery{ProfessionalID: 3, UserID: 5, Start: start, End: start.Add(time.Hour)}, false},
		{"cancelled ignored for professional", OverlapQuery{ProfessionalID: 6, UserID: 4, Start: start, End: start.Add(time.Hour)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.HasOverlap(ctx, tc.q)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGormMarkEmailVerificationUsedOnce(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	v := &models.EmailVerification{UserID: 1, TokenHash: "hash-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.CreateEmailVerification(ctx, v))
	require.ErrorIs(t, store.CreateEmailVerification(ctx, &models.EmailVerification{UserID: 2, TokenHash: "hash-1", ExpiresAt: time.Now()}), ErrDuplicate)

	ok, err := store.MarkEmailVerificationUsed(ctx, v.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.MarkEmailVerificationUsed(ctx, v.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	got, err := store.GetEmailVerificationByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.IsUsed())
}

func TestGormUpsertSessionNotesKeepsOneRow(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSessionNotes(ctx, &models.SessionNotes{AppointmentID: 7, ProfessionalID: 2, ClientID: 1, Content: "primeira"}))
	require.NoError(t, store.UpsertSessionNotes(ctx, &models.SessionNotes{AppointmentID: 7, ProfessionalID: 2, ClientID: 1, Content: "revisada"}))

	got, err := store.GetSessionNotes(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "revisada", got.Content)

	var n int64
	require.NoError(t, store.conn(ctx).Model(&models.SessionNotes{}).Where("appointment_id = ?", 7).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestGormSearchProfilesTreatsWildcardsLiterally(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	pgProfile(t, store, "Ana_Maria", "ana.maria@example.com", models.RoleClient)
	pgProfile(t, store, "AnaXMaria", "anax@example.com", models.RoleClient)
	pgProfile(t, store, "100% Ana", "cem@example.com", models.RoleClient)
	pgProfile(t, store, `Ana\Luz`, "luz@example.com", models.RoleProfessional)

	names := func(query string, role models.Role) []string {
		profiles, err := store.SearchProfiles(ctx, ProfileFilter{Query: query, Role: role})
		require.NoError(t, err)
		var out []string
		for _, p := range profiles {
			out = append(out, p.Name)
		}
		return out
	}

	require.Equal(t, []string{"Ana_Maria"}, names("_", ""))
	require.Equal(t, []string{"100% Ana"}, names("%", ""))
	require.Equal(t, []string{`Ana\Luz`}, names(`\`, ""))
	require.Len(t, names("ANA", ""), 4)
	require.Equal(t, []string{`Ana\Luz`}, names("ana", models.RoleProfessional))
}

func TestGormSetVideoRoomFirstWriterWins(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	a := &models.Appointment{UserID: 1, ProfessionalID: 2, CreditID: 1, AppointmentType: models.TypeVideo, Status: models.StatusScheduled, StartAt: start, EndAt: start.Add(time.Hour)}
	require.NoError(t, store.CreateAppointment(ctx, a))

	won, err := store.SetVideoRoom(ctx, a.ID, "room-a", "https://video.test/room-a")
	require.NoError(t, err)
	require.True(t, won)
	won, err = store.SetVideoRoom(ctx, a.ID, "room-b", "https://video.test/room-b")
	require.NoError(t, err)
	require.False(t, won)

	got, err := store.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "https://video.test/room-a", got.VideoRoomURL)

	b := &models.Appointment{UserID: 1, ProfessionalID: 2, CreditID: 1, AppointmentType: models.TypeVideo, Status: models.StatusScheduled, StartAt: start.Add(2 * time.Hour), EndAt: start.Add(3 * time.Hour)}
	require.NoError(t, store.CreateAppointment(ctx, b))
	moved, err := store.TransitionAppointment(ctx, b.ID, models.StatusScheduled, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, moved)
	won, err = store.SetVideoRoom(ctx, b.ID, "room-c", "https://video.test/room-c")
	require.NoError(t, err)
	require.False(t, won)

	moved, err = store.TransitionAppointment(ctx, b.ID, models.StatusScheduled, models.StatusCompleted)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestGormGetAppointmentForUpdateBlocksWriters(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	a := &models.Appointment{UserID: 1, ProfessionalID: 2, CreditID: 1, AppointmentType: models.TypeVideo, Status: models.StatusScheduled, StartAt: start, EndAt: start.Add(time.Hour)}
	require.NoError(t, store.CreateAppointment(ctx, a))

	release := holdLock(t, store, func(tx Store) error {
		_, err := tx.GetAppointmentForUpdate(ctx, a.ID)
		return err
	})
	err := withLockTimeout(ctx, store, func(tx Store) error {
		_, err := tx.SetVideoRoom(ctx, a.ID, "room-a", "https://video.test/room-a")
		return err
	})
	require.True(t, isLockTimeout(err), "expected lock timeout, got %v", err)
	release()

	_, err = store.GetAppointmentForUpdate(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

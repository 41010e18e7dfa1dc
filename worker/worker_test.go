package worker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sendloop/config"
	"sendloop/mailer"
	"sendloop/queue"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named shared-cache DB so GORM's pooled connections see one store,
	// unique per test so tests stay isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeMailer records sends and fails for addresses in failFor.
type fakeMailer struct {
	sent    []mailer.Email
	failFor map[string]bool
	counter int
}

func (f *fakeMailer) Send(email mailer.Email) (string, error) {
	if f.failFor[email.To] {
		return "", fmt.Errorf("550 mailbox unavailable")
	}
	f.sent = append(f.sent, email)
	f.counter++
	return fmt.Sprintf("<msg-%d@test.local>", f.counter), nil
}

// fakeEnqueuer captures follow-up jobs instead of touching Redis.
type fakeEnqueuer struct {
	payloads []interface{}
	options  []queue.EnqueueOptions
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, payload interface{}, opts ...queue.Option) error {
	if f.err != nil {
		return f.err
	}
	var o queue.EnqueueOptions
	o.Apply(opts...)
	f.payloads = append(f.payloads, payload)
	f.options = append(f.options, o)
	return nil
}

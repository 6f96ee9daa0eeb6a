package kernel

import (
	"time"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/email"
	"github.com/seiixin/gunwadex/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockJWTSecret signs tokens issued by mock kernels
const MockJWTSecret = "kernel-mock-secret"

// NewMock returns a kernel wired for tests: the given database and store,
// a log mailer, no Redis and database-backed search. Individual dependencies
// can be swapped with the With* setters followed by another Wire.
func NewMock(db *gorm.DB, store storage.AttachmentStore) (*Kernel, error) {
	cfg := &config.Config{
		Environment: "test",
		Auth: config.AuthConfig{
			JWTSecret: []byte(MockJWTSecret),
			TokenTTL:  time.Hour,
		},
		Mail: config.MailConfig{
			Backend:      "log",
			FromEmail:    "no-reply@gunwadex.test",
			ContactInbox: "inbox@gunwadex.test",
			SiteName:     "GunwaDex",
		},
	}

	k := New().
		WithConfig(cfg).
		WithLogger(zap.NewNop()).
		WithDB(db).
		WithStore(store).
		WithMailer(email.LogMailer{})
	if err := k.Wire(); err != nil {
		return nil, err
	}
	return k, nil
}

// Package contact implements the contact page settings and the contact form.
package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/email"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultReplySubject is used when the settings row has no reply subject
const DefaultReplySubject = "We received your message"

// Service owns the contact settings row and sends contact mail
type Service struct {
	db     *gorm.DB
	mailer email.Mailer
	cfg    config.MailConfig
}

func NewService(db *gorm.DB, mailer email.Mailer, cfg config.MailConfig) *Service {
	return &Service{db: db, mailer: mailer, cfg: cfg}
}

func (s *Service) defaults() models.ContactSetting {
	recipient := s.cfg.ContactInbox
	if recipient == "" {
		recipient = s.cfg.FromEmail
	}
	return models.ContactSetting{
		ID:             models.ContactSettingID,
		RecipientEmail: recipient,
		ReplySubject:   DefaultReplySubject,
		PublicEmail:    recipient,
	}
}

// Settings returns the settings row, creating it from configuration on first use
func (s *Service) Settings(ctx context.Context) (*models.ContactSetting, error) {
	settings := s.defaults()
	err := s.db.WithContext(ctx).
		Where(models.ContactSetting{ID: models.ContactSettingID}).
		FirstOrCreate(&settings).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// created concurrently; read the winner
		err = s.db.WithContext(ctx).First(&settings, models.ContactSettingID).Error
	}
	if err != nil {
		return nil, fmt.Errorf("load contact settings: %w", err)
	}
	return &settings, nil
}

// SettingsUpdate carries the fields an admin may change; nil means unchanged
type SettingsUpdate struct {
	RecipientEmail *string `json:"recipient_email"`
	ReplySubject   *string `json:"reply_subject"`
	Address        *string `json:"address"`
	Phone          *string `json:"phone"`
	PublicEmail    *string `json:"public_email"`
	AutoReply      *string `json:"auto_reply"`
}

// UpdateSettings applies an admin edit to the settings row
func (s *Service) UpdateSettings(ctx context.Context, in SettingsUpdate) (*models.ContactSetting, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.RecipientEmail != nil {
		if err := util.ValidateEmail(*in.RecipientEmail); err != nil {
			return nil, apierrors.ValidationError("recipient_email", err.Error())
		}
		updates["recipient_email"] = *in.RecipientEmail
	}
	if in.PublicEmail != nil {
		if *in.PublicEmail != "" {
			if err := util.ValidateEmail(*in.PublicEmail); err != nil {
				return nil, apierrors.ValidationError("public_email", err.Error())
			}
		}
		updates["public_email"] = *in.PublicEmail
	}
	if in.ReplySubject != nil {
		subject, err := util.ValidateLength(*in.ReplySubject, 0, 150)
		if err != nil {
			return nil, apierrors.ValidationError("reply_subject", "reply subject "+err.Error())
		}
		updates["reply_subject"] = subject
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if in.Phone != nil {
		phone, err := util.ValidateLength(*in.Phone, 0, 40)
		if err != nil {
			return nil, apierrors.ValidationError("phone", "phone "+err.Error())
		}
		updates["phone"] = phone
	}
	if in.AutoReply != nil {
		updates["auto_reply"] = *in.AutoReply
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(settings).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update contact settings: %w", err)
		}
	}
	return s.Settings(ctx)
}

// SendInput is a contact form submission
type SendInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in SendInput) validate() (email.ContactForm, error) {
	var form email.ContactForm
	var err error

	if form.Name, err = util.ValidateLength(in.Name, 1, 100); err != nil {
		return form, apierrors.ValidationError("name", "name "+err.Error())
	}
	form.Email = in.Email
	if err = util.ValidateEmail(in.Email); err != nil {
		return form, apierrors.ValidationError("email", err.Error())
	}
	if form.Subject, err = util.ValidateLength(in.Subject, 1, 150); err != nil {
		return form, apierrors.ValidationError("subject", "subject "+err.Error())
	}
	if form.Message, err = util.ValidateLength(in.Message, 1, 5000); err != nil {
		return form, apierrors.ValidationError("message", "message "+err.Error())
	}
	return form, nil
}

// Send mails the submission to the configured recipient and an
// acknowledgement to the sender. Delivery failures become a 503.
func (s *Service) Send(ctx context.Context, in SendInput) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "contact.send")
	defer func() { telemetry.EndSpan(span, err) }()

	form, err := in.validate()
	if err != nil {
		return err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.RecipientEmail == "" {
		return apierrors.ServiceUnavailable("The contact form is not configured yet.")
	}

	notification, err := email.ContactNotification(s.cfg.SiteName, settings.RecipientEmail, form)
	if err != nil {
		return err
	}
	ack, err := email.ContactAcknowledgement(s.cfg.SiteName, settings.ReplySubject, settings.AutoReply, form)
	if err != nil {
		return err
	}

	for _, msg := range []email.Message{notification, ack} {
		if sendErr := s.mailer.Send(ctx, msg); sendErr != nil {
			metrics.Get().MailFailuresTotal.WithLabelValues(msg.Template).Inc()
			logger.Log.Error("Contact mail delivery failed",
				zap.String("template", msg.Template),
				zap.Strings("to", msg.To),
				zap.Error(sendErr))
			return apierrors.ServiceUnavailable("We could not send your message right now. Please try again later.").
				WithDetails(sendErr.Error())
		}
		metrics.Get().MailSentTotal.WithLabelValues(msg.Template).Inc()
	}
	return nil
}

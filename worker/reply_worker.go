package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"sendloop/mailer"
	"sendloop/models"
	"sendloop/utils"
)

// ReplyWorker polls the IMAP inboxes of registered providers and stamps
// RepliedAt on tracking rows whose Message-ID shows up in the
// In-Reply-To or References headers of incoming mail.
type ReplyWorker struct {
	DB        *gorm.DB
	Providers *mailer.ProviderStore
	Logger    *logrus.Logger
	Interval  time.Duration
}

func NewReplyWorker(db *gorm.DB, providers *mailer.ProviderStore, logger *logrus.Logger) *ReplyWorker {
	return &ReplyWorker{
		DB:        db,
		Providers: providers,
		Logger:    logger,
		Interval:  5 * time.Minute,
	}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	rw.Logger.Info("Reply worker started")
	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Info("Reply worker shutting down")
			return
		case <-ticker.C:
			rw.pollAll()
		}
	}
}

func (rw *ReplyWorker) pollAll() {
	for _, provider := range rw.Providers.WithIMAP() {
		if err := rw.pollProvider(provider); err != nil {
			rw.Logger.WithError(err).WithField("provider", provider.Name).Error("Reply poll failed")
		}
	}
}

func (rw *ReplyWorker) pollProvider(p mailer.Provider) error {
	password, err := utils.Decrypt(p.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", p.IMAPHost, p.IMAPPort)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("IMAP dial %s failed: %w", addr, err)
	}
	defer c.Logout()

	if err := c.Login(p.IMAPUsername, password); err != nil {
		return fmt.Errorf("IMAP login failed: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	for msg := range messages {
		ref := rw.referencedMessageID(msg, section)
		if ref == "" {
			continue
		}
		if err := rw.markReplied(ref); err != nil {
			rw.Logger.WithError(err).WithField("message_id", ref).Error("Failed to record reply")
		}
	}

	if err := <-done; err != nil {
		return fmt.Errorf("IMAP fetch failed: %w", err)
	}
	return nil
}

// referencedMessageID extracts the message id an incoming mail replies
// to: the envelope's In-Reply-To when present, otherwise the last entry
// of the parsed References header.
func (rw *ReplyWorker) referencedMessageID(msg *imap.Message, section *imap.BodySectionName) string {
	if msg.Envelope != nil && msg.Envelope.InReplyTo != "" {
		return strings.TrimSpace(msg.Envelope.InReplyTo)
	}

	body := msg.GetBody(section)
	if body == nil {
		return ""
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		return ""
	}
	refs := strings.Fields(mr.Header.Get("References"))
	if len(refs) == 0 {
		return ""
	}
	return refs[len(refs)-1]
}

func (rw *ReplyWorker) markReplied(messageID string) error {
	var tracking models.EmailTracking
	err := rw.DB.Where("message_id = ? AND replied_at IS NULL", messageID).First(&tracking).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	if err := rw.DB.Model(&tracking).Update("replied_at", time.Now()).Error; err != nil {
		return err
	}

	rw.Logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"recipient":  tracking.RecipientEmail,
	}).Info("Recorded reply")

	if tracking.CampaignID != nil {
		return rw.DB.Model(&models.Campaign{}).
			Where("id = ?", *tracking.CampaignID).
			Update("reply_count", gorm.Expr("reply_count + ?", 1)).Error
	}
	return nil
}

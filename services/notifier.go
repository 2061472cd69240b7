package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages ...messaging.Message) error
	Push(ctx context.Context, to string, messages ...messaging.Message) error
	Multicast(ctx context.Context, to []string, messages ...messaging.Message) error
	GetProfile(ctx context.Context, userID string) (*messaging.Profile, error)
	LinkRichMenu(ctx context.Context, userID, richMenuID string) error
}

// Subject ties a dispatch to the entities it is about, for the audit log.
type Subject struct {
	Type     models.NotificationType
	TaskID   *uint
	ReportID *uint
	RoomID   *uint
}

// Notifier delivers rendered messages and keeps the audit log. Delivery is best effort:
// callers log a failure but never undo the state change that triggered it.
type Notifier struct {
	client Messenger
	store  *database.Store
	now    func() time.Time
}

func NewNotifier(client Messenger, store *database.Store) *Notifier {
	return &Notifier{client: client, store: store, now: time.Now}
}

// Reply answers the inbound event that carried replyToken.
func (n *Notifier) Reply(ctx context.Context, replyToken string, messages ...messaging.Message) error {
	if replyToken == "" || len(messages) == 0 {
		return nil
	}
	if err := n.client.Reply(ctx, replyToken, messages...); err != nil {
		utils.ErrorLogger.WithError(err).Warn("reply delivery failed")
		return err
	}
	return nil
}

// Push sends to one recipient.
func (n *Notifier) Push(ctx context.Context, to string, subject Subject, messages ...messaging.Message) error {
	if to == "" {
		return nil
	}
	n.record(ctx, []string{to}, subject, messages)
	if err := n.client.Push(ctx, to, messages...); err != nil {
		utils.ErrorLogger.WithError(err).WithFields(logrus.Fields{
			"recipient": to,
			"type":      subject.Type,
		}).Warn("push delivery failed")
		return err
	}
	return nil
}

// Multicast sends to every distinct recipient and returns how many were addressed.
// Zero recipients is a no-op.
func (n *Notifier) Multicast(ctx context.Context, to []string, subject Subject, messages ...messaging.Message) (int, error) {
	to = distinct(to)
	if len(to) == 0 {
		return 0, nil
	}
	n.record(ctx, to, subject, messages)
	if err := n.client.Multicast(ctx, to, messages...); err != nil {
		utils.ErrorLogger.WithError(err).WithFields(logrus.Fields{
			"recipients": len(to),
			"type":       subject.Type,
		}).Warn("multicast delivery failed")
		return len(to), err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"recipients": len(to),
		"type":       subject.Type,
	}).Info("multicast sent")
	return len(to), nil
}

// record writes one audit row per recipient. Rows are written as sent before the call
// goes out since the platform reports no per-recipient delivery.
func (n *Notifier) record(ctx context.Context, to []string, subject Subject, messages []messaging.Message) {
	if n.store == nil {
		return
	}
	content := ""
	for i, m := range messages {
		if i > 0 {
			content += "\n"
		}
		content += m.Summary()
	}

	sentAt := n.now()
	records := make([]models.Notification, 0, len(to))
	for _, recipient := range to {
		records = append(records, models.Notification{
			RecipientID: recipient,
			Type:        subject.Type,
			TaskID:      subject.TaskID,
			ReportID:    subject.ReportID,
			RoomID:      subject.RoomID,
			Content:     content,
			Status:      models.DeliveryStatusSent,
			SentAt:      sentAt,
		})
	}
	if err := n.store.RecordNotifications(ctx, records); err != nil {
		utils.ErrorLogger.WithError(err).Error("failed to write notification audit records")
	}
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

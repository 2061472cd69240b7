package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/models"
)

func TestMulticastWithoutRecipientsIsNoop(t *testing.T) {
	store := newTestStore(t)
	fake := newFakeMessenger()
	n := NewNotifier(fake, store)

	sent, err := n.Multicast(context.Background(), nil, Subject{Type: models.NotifyCustom}, messaging.Text("hi"))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, fake.multicasts)
	assert.Zero(t, countNotifications(t, store, models.NotifyCustom))
}

func TestMulticastDeduplicatesAndAudits(t *testing.T) {
	store := newTestStore(t)
	fake := newFakeMessenger()
	n := NewNotifier(fake, store)
	taskID := uint(7)

	sent, err := n.Multicast(context.Background(), []string{"U-a", "U-b", "U-a", ""},
		Subject{Type: models.NotifyTaskAssigned, TaskID: &taskID}, messaging.Text("room 101"))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, [][]string{{"U-a", "U-b"}}, fake.multicastRecipients())

	var records []models.Notification
	require.NoError(t, store.DB().Order("id").Find(&records).Error)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, models.DeliveryStatusSent, r.Status)
		assert.Equal(t, "room 101", r.Content)
		require.NotNil(t, r.TaskID)
		assert.Equal(t, taskID, *r.TaskID)
	}
}

func TestDeliveryFailureKeepsAuditRows(t *testing.T) {
	store := newTestStore(t)
	fake := newFakeMessenger()
	fake.deliverErr = errors.New("502 from platform")
	n := NewNotifier(fake, store)

	err := n.Push(context.Background(), "U-a", Subject{Type: models.NotifyCustom}, messaging.Text("hello"))
	assert.Error(t, err)
	assert.Equal(t, int64(1), countNotifications(t, store, models.NotifyCustom))
}

func TestReplyIsNotAudited(t *testing.T) {
	store := newTestStore(t)
	fake := newFakeMessenger()
	n := NewNotifier(fake, store)

	require.NoError(t, n.Reply(context.Background(), "token", messaging.Text("ok")))
	require.NoError(t, n.Reply(context.Background(), "", messaging.Text("dropped")))
	assert.Len(t, fake.replies, 1)

	var count int64
	require.NoError(t, store.DB().Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

package services

import (
	"context"

	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/models"
)

// ConversationState is the per-staff pending input: Idle or AwaitingRepairDetails.
type ConversationState interface {
	isConversationState()
}

type Idle struct{}

// AwaitingRepairDetails means the next text from the staff member is the repair
// description for TaskID.
type AwaitingRepairDetails struct {
	TaskID uint
	Room   models.Room
}

func (Idle) isConversationState()                  {}
func (AwaitingRepairDetails) isConversationState() {}

// ConversationTracker derives the state from the staff member's tasks. The awaiting flag
// is the task's pending_repair_details status, so it is set and cleared by the same
// compare-and-set updates that move the task.
type ConversationTracker struct {
	store *database.Store
}

func NewConversationTracker(store *database.Store) *ConversationTracker {
	return &ConversationTracker{store: store}
}

func (ct *ConversationTracker) Current(ctx context.Context, staffID uint) (ConversationState, error) {
	tasks, err := ct.store.TasksByAssignee(ctx, staffID, models.TaskPendingRepairDetails)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return Idle{}, nil
	}
	return AwaitingRepairDetails{TaskID: tasks[0].ID, Room: tasks[0].Room}, nil
}

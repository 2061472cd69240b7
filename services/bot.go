package services

import (
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/feed"
)

// Bot holds the wired services. Controllers and the process entry point share one instance.
type Bot struct {
	Store        *database.Store
	Hub          *feed.Hub
	Notifier     *Notifier
	Selector     *RecipientSelector
	Registration *Registration
	Tracker      *ConversationTracker
	Tasks        *RoomTasks
	Maintenance  *Maintenance
	Attendance   *Attendance
	Dispatcher   *Dispatcher
	Triggers     *Triggers
}

// NewBot wires every service. profiles and hub may be nil.
func NewBot(store *database.Store, client Messenger, profiles *ProfileCache, hub *feed.Hub, richMenus map[string]string) *Bot {
	notifier := NewNotifier(client, store)
	selector := NewRecipientSelector(store)
	registration := NewRegistration(store, profiles, client, richMenus)
	tracker := NewConversationTracker(store)
	maintenance := NewMaintenance(store, selector, notifier, hub)
	tasks := NewRoomTasks(store, selector, notifier, tracker, maintenance, hub)
	attendance := NewAttendance(store)

	return &Bot{
		Store:        store,
		Hub:          hub,
		Notifier:     notifier,
		Selector:     selector,
		Registration: registration,
		Tracker:      tracker,
		Tasks:        tasks,
		Maintenance:  maintenance,
		Attendance:   attendance,
		Dispatcher:   NewDispatcher(registration, tracker, tasks, maintenance, attendance, notifier),
		Triggers:     NewTriggers(store, selector, notifier, tasks, maintenance),
	}
}

// Package messaging holds the chat platform wire types and its REST client.
package messaging

import "strings"

const (
	EventTypeFollow   = "follow"
	EventTypeMessage  = "message"
	EventTypePostback = "postback"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Envelope is the webhook request body.
type Envelope struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type           string        `json:"type"`
	ReplyToken     string        `json:"replyToken,omitempty"`
	Source         Source        `json:"source"`
	Timestamp      int64         `json:"timestamp"`
	Message        *EventMessage `json:"message,omitempty"`
	Postback       *Postback     `json:"postback,omitempty"`
	WebhookEventID string        `json:"webhookEventId,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type EventMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

type Postback struct {
	Data string `json:"data"`
}

// Profile is the public profile of a chat user.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// Message is an outbound message: plain text or a buttons template.
type Message struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	AltText  string    `json:"altText,omitempty"`
	Template *Template `json:"template,omitempty"`
}

type Template struct {
	Type    string   `json:"type"`
	Title   string   `json:"title,omitempty"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions"`
}

type Action struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Platform limits for the buttons template.
const (
	maxTitle      = 40
	maxButtonText = 60
	maxAltText    = 400
	maxLabel      = 20
	maxTextLength = 5000
)

func Text(s string) Message {
	return Message{Type: "text", Text: truncate(s, maxTextLength)}
}

// Buttons builds a buttons template. The platform caps the body at 60 characters when a
// title is set, so longer bodies are cut.
func Buttons(altText, title, text string, actions ...Action) Message {
	return Message{
		Type:    "template",
		AltText: truncate(altText, maxAltText),
		Template: &Template{
			Type:    "buttons",
			Title:   truncate(title, maxTitle),
			Text:    truncate(text, maxButtonText),
			Actions: actions,
		},
	}
}

func PostbackAction(label, data, displayText string) Action {
	return Action{Type: "postback", Label: truncate(label, maxLabel), Data: data, DisplayText: displayText}
}

func MessageAction(label, text string) Action {
	return Action{Type: "message", Label: truncate(label, maxLabel), Text: text}
}

// Summary is the text snapshot stored in the notification audit log.
func (m Message) Summary() string {
	if m.Template == nil {
		return m.Text
	}
	parts := []string{m.AltText}
	if m.Template.Title != "" {
		parts = append(parts, m.Template.Title)
	}
	parts = append(parts, m.Template.Text)
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

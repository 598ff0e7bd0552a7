package thread

import (
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

type Role string

const (
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
)

// Kind tells confirmed server messages apart from local placeholders.
type Kind int

const (
	KindConfirmed Kind = iota
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindConfirmed:
		return "confirmed"
	case KindPending:
		return "pending"
	default:
		return "unknown"
	}
}

// text shown for the assistant while a run is in progress
const PendingReplyText = "..."

// DisplayMessage is the common shape of everything in the message list.
type DisplayMessage interface {
	MessageID() string
	MessageRole() Role
	Text() string
	Kind() Kind
}

// Confirmed is a message the server has stored.
type Confirmed struct {
	openai.Message
}

func (c Confirmed) MessageID() string {
	return c.ID
}

func (c Confirmed) MessageRole() Role {
	return Role(c.Role)
}

// Text joins the values of all text content blocks.
func (c Confirmed) Text() string {
	var parts []string
	for _, content := range c.Content {
		if content.Type == "text" && content.Text != nil {
			parts = append(parts, content.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

func (c Confirmed) Kind() Kind {
	return KindConfirmed
}

// Pending is a locally created placeholder shown until the next reload.
type Pending struct {
	ID   string
	Role Role
	Body string
}

func newPending(role Role, text string) Pending {
	return Pending{
		ID:   uuid.NewString(),
		Role: role,
		Body: text,
	}
}

func (p Pending) MessageID() string {
	return p.ID
}

func (p Pending) MessageRole() Role {
	return p.Role
}

func (p Pending) Text() string {
	return p.Body
}

func (p Pending) Kind() Kind {
	return KindPending
}

type MessageGroup struct {
	Role     Role
	Messages []DisplayMessage
}

// Snapshot is what subscribers receive after every state change.
type Snapshot struct {
	Messages []DisplayMessage
	LastRun  *openai.Run
	Busy     bool
}

func confirmAll(messages []openai.Message) []DisplayMessage {
	result := make([]DisplayMessage, len(messages))
	for i, message := range messages {
		result[i] = Confirmed{Message: message}
	}
	return result
}

package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

const BOT_ID = "BOT"

// FOR TESTING
type MockDiscordSession struct {
	mu                  sync.Mutex
	channelMessages     map[string][]string
	channelTypingCalled map[string]bool
	responses           []*discordgo.InteractionResponse
	commands            []*discordgo.ApplicationCommand
	handlers            int
	opened              bool
	closed              bool
	State               *discordgo.State
}

func NewMockDiscordSession() *MockDiscordSession {
	state := discordgo.NewState()
	state.Ready = discordgo.Ready{
		User: &discordgo.User{
			ID:       BOT_ID,
			Username: "threadbot",
		},
	}
	return &MockDiscordSession{
		channelMessages:     make(map[string][]string),
		channelTypingCalled: make(map[string]bool),
		State:               state,
	}
}

func (m *MockDiscordSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *MockDiscordSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockDiscordSession) ChannelMessageSend(
	channelID, content string,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelMessages[channelID] = append(m.channelMessages[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (m *MockDiscordSession) ChannelTyping(
	channelID string,
	options ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelTypingCalled[channelID] = true
	return nil
}

func (m *MockDiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return nil
}

func (m *MockDiscordSession) ApplicationCommandCreate(
	appID string,
	guildID string,
	cmd *discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) (*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return cmd, nil
}

func (m *MockDiscordSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers++
	return func() {}
}

func (m *MockDiscordSession) GetState() *discordgo.State {
	return m.State
}

func (m *MockDiscordSession) lastResponse() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return ""
	}
	return m.responses[len(m.responses)-1].Data.Content
}

package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordgo.Session interface wrapping for testing
// implements methods used in this project
type DiscordSession interface {
	Open() error
	Close() error

	// see discordgo.Session.ChannelMessageSend
	ChannelMessageSend(
		channelID, content string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// see discordgo.Session.ChannelTyping()
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error

	// see discordgo.Session.InteractionRespond()
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	ApplicationCommandCreate(
		appID string,
		guildID string,
		cmd *discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) (*discordgo.ApplicationCommand, error)

	AddHandler(handler interface{}) func()
	// wraps discordgo.Session.State
	GetState() *discordgo.State
}

// wrapper
type DiscordBot struct {
	*discordgo.Session
}

func NewDiscordBot(token string) (*DiscordBot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("unable to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordBot{Session: session}, nil
}

func (bot *DiscordBot) GetState() *discordgo.State {
	return bot.State
}

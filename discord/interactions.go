package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"threadbot/thread"
)

const (
	SETTINGS     = "settings"
	RELOAD       = "reload"
	STATUS       = "status"
	CREDENTIAL   = "credential"
	ASSISTANT_ID = "assistant_id"
	THREAD_ID    = "thread_id"
)

func initSlashCommands(
	dg DiscordSession,
) ([]*discordgo.ApplicationCommand, error) {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        SETTINGS,
			Description: "Change the credential, assistant or thread. Omitted values are kept.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        CREDENTIAL,
					Description: "API key sent as the bearer token",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        ASSISTANT_ID,
					Description: "assistant that executes runs",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        THREAD_ID,
					Description: "conversation thread",
					Required:    false,
				},
			},
		},
		{
			Name:        RELOAD,
			Description: "Reload the conversation from the server",
		},
		{
			Name:        STATUS,
			Description: "Show the status of the last run",
		},
	}

	for _, command := range commands {
		if _, err := dg.ApplicationCommandCreate(dg.GetState().User.ID, "", command); err != nil {
			return nil, fmt.Errorf("error unable to create command %w", err)
		}
	}

	return commands, nil
}

func (b *Bot) onCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	b.log.Debug().Str("command", name).Msg("received command")

	var err error
	switch name {
	case SETTINGS:
		err = b.handleSettings(ctx, i)
	case RELOAD:
		err = b.handleReload(ctx, i)
	case STATUS:
		err = b.handleStatus(i)
	default:
		err = fmt.Errorf("unknown command %q", name)
	}

	if err != nil {
		b.handleSlashCommandError(i, err)
	}
}

func (b *Bot) handleSettings(ctx context.Context, i *discordgo.InteractionCreate) error {
	options := i.ApplicationCommandData().Options
	values := b.settings.Get()

	if option, ok := findCommandOption(options, CREDENTIAL); ok {
		values.Credential = option.StringValue()
	}
	if option, ok := findCommandOption(options, ASSISTANT_ID); ok {
		values.AssistantID = option.StringValue()
	}
	if option, ok := findCommandOption(options, THREAD_ID); ok {
		values.ThreadID = option.StringValue()
	}

	if err := b.settings.Set(values.Credential, values.AssistantID, values.ThreadID); err != nil {
		return err
	}

	content := "Settings saved."
	if !values.Complete() {
		content = "Settings saved. Credential, assistant id and thread id are all required before chatting."
	} else if err := b.thread.LoadMessages(ctx); err != nil {
		b.log.Warn().Err(err).Msg("unable to load messages after settings change")
		content = "Settings saved, but the thread could not be loaded."
	}

	return respondEphemeral(b.session, i, content)
}

func (b *Bot) handleReload(ctx context.Context, i *discordgo.InteractionCreate) error {
	if err := b.thread.LoadMessages(ctx); err != nil {
		if errors.Is(err, thread.ErrNotInitialized) {
			return respondEphemeral(b.session, i, "Settings are incomplete, use /settings first.")
		}
		return err
	}

	count := 0
	for _, group := range b.thread.MessageGroups() {
		count += len(group.Messages)
	}
	return respondEphemeral(b.session, i, fmt.Sprintf("Loaded %d messages.", count))
}

func (b *Bot) handleStatus(i *discordgo.InteractionCreate) error {
	status, ok := b.thread.RunStatus()
	if !ok {
		return respondEphemeral(b.session, i, "No run yet.")
	}
	return respondEphemeral(
		b.session,
		i,
		fmt.Sprintf("Last run is %s (%s).", status, b.thread.RunDuration()),
	)
}

func (b *Bot) handleSlashCommandError(
	i *discordgo.InteractionCreate,
	err error,
) {
	b.log.Error().Err(err).Msg("error processing command")
	if err := respondEphemeral(b.session, i, "Error processing command"); err != nil {
		b.log.Error().Err(err).Msg("error responding to slash command")
	}
}

func respondEphemeral(dg DiscordSession, i *discordgo.InteractionCreate, content string) error {
	return dg.InteractionRespond(i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
}

func findCommandOption(
	options []*discordgo.ApplicationCommandInteractionDataOption,
	name string,
) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, option := range options {
		if option.Name == name {
			return option, true
		}
	}
	return nil, false
}

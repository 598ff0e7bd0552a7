package discord

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"threadbot/settings"
	"threadbot/thread"
)

const (
	MAX_MESSAGE_LENGTH = 2000
	ERROR_MESSAGE      = "Oh no! Something went wrong."
)

// Thread is the orchestrator as seen by the bot.
type Thread interface {
	LoadMessages(ctx context.Context) error
	Send(ctx context.Context, text string) ([]thread.DisplayMessage, error)
	MessageGroups() []thread.MessageGroup
	RunStatus() (openai.RunStatus, bool)
	RunDuration() time.Duration
}

type Settings interface {
	Get() settings.Values
	Set(credential string, assistantID string, threadID string) error
}

type Bot struct {
	session   DiscordSession
	thread    Thread
	settings  Settings
	channelID string
	log       zerolog.Logger
}

// NewBot answers every message in channelID and any message that mentions
// the bot. An empty channelID means mentions only.
func NewBot(
	session DiscordSession,
	th Thread,
	s Settings,
	channelID string,
	log zerolog.Logger,
) *Bot {
	return &Bot{
		session:   session,
		thread:    th,
		settings:  s,
		channelID: channelID,
		log:       log,
	}
}

// Run opens the session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(ctx, m)
	})
	b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type == discordgo.InteractionApplicationCommand {
			b.onCommand(ctx, i)
		}
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("unable to open discord session: %w", err)
	}
	defer b.session.Close()

	if _, err := initSlashCommands(b.session); err != nil {
		return err
	}

	b.log.Info().Msg("bot is now running")
	<-ctx.Done()
	return nil
}

func (b *Bot) onMessageCreate(ctx context.Context, m *discordgo.MessageCreate) {
	botUser := b.session.GetState().User
	// Ignore all messages created by the bot itself
	if m.Author == nil || m.Author.ID == botUser.ID {
		return
	}

	mentioned := isMentioned(m.Mentions, botUser)
	inChannel := b.channelID != "" && m.ChannelID == b.channelID
	if !mentioned && !inChannel {
		return
	}

	message := strings.TrimSpace(removeBotMention(m.Content, botUser.ID))
	if message == "" {
		return
	}

	b.log.Debug().
		Str("channel", m.ChannelID).
		Str("author", m.Author.ID).
		Msg("received message")

	if err := b.session.ChannelTyping(m.ChannelID); err != nil {
		b.log.Warn().Err(err).Msg("unable to show typing")
	}

	reply, err := b.thread.Send(ctx, message)
	if err != nil {
		b.log.Error().Err(err).Msg("unable to get response")
		b.send(m.ChannelID, ERROR_MESSAGE)
		return
	}

	content := replyText(reply)
	if content == "" {
		b.log.Warn().Msg("run finished without a reply")
		return
	}
	b.send(m.ChannelID, content)
}

func (b *Bot) send(channelID string, content string) {
	if err := sendChunkedChannelMessage(b.session, channelID, content); err != nil {
		b.log.Error().Err(err).Str("channel", channelID).Msg("could not send discord message")
	}
}

// replyText joins the text of the reply messages, which are oldest first.
func replyText(reply []thread.DisplayMessage) string {
	texts := make([]string, 0, len(reply))
	for _, message := range reply {
		if message.Kind() == thread.KindPending {
			continue
		}
		if text := message.Text(); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n")
}

func sendChunkedChannelMessage(dg DiscordSession, channelID string, content string) error {
	for _, chunk := range chunkMessage(content, MAX_MESSAGE_LENGTH) {
		if _, err := dg.ChannelMessageSend(channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// chunkMessage splits content into pieces of at most limit runes, preferring
// to break after a newline.
func chunkMessage(content string, limit int) []string {
	var chunks []string
	for utf8.RuneCountInString(content) > limit {
		cut := runeOffset(content, limit)
		if nl := strings.LastIndex(content[:cut], "\n"); nl > 0 {
			cut = nl + 1
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

func removeBotMention(content string, botID string) string {
	mentionPattern := fmt.Sprintf("<@%s>", botID)
	// remove nicknames
	mentionPatternNick := fmt.Sprintf("<@!%s>", botID)

	content = strings.ReplaceAll(content, mentionPattern, "")
	content = strings.ReplaceAll(content, mentionPatternNick, "")
	return content
}

func isMentioned(mentions []*discordgo.User, currUser *discordgo.User) bool {
	for _, user := range mentions {
		if user.ID == currUser.ID {
			return true
		}
	}
	return false
}

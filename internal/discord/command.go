package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linebridge/internal/domain"
	"linebridge/internal/metrics"

	"github.com/bwmarrin/discordgo"
)

const (
	// DefaultPushTimeout bounds the LINE push call issued by /stl.
	DefaultPushTimeout = 10 * time.Second

	msgRejected = "🚫 嘿嘿～別亂丟訊息到其他專案的 LINE 群組啦 📵"
	msgFailed   = "⚠️ 發送失敗，請稍後再試～"
	msgTimedOut = "🚨 發送超時，請稍後再試！"
	msgErrored  = "🚨 發送過程中發生錯誤，請稍後再試！"
)

// Pusher sends a text message into the LINE group. *line.Client satisfies it.
type Pusher interface {
	PushText(ctx context.Context, to, text string) error
}

// Command is the Discord side of the reverse direction: a guild-scoped
// /stl slash command that pushes a message into the LINE group.
type Command struct {
	token         string
	guildID       string
	allowedParent string
	targetGroupID string
	pusher        Pusher
	pushTimeout   time.Duration
	session       *discordgo.Session
	logger        *slog.Logger
}

// CommandConfig configures the slash-command channel.
type CommandConfig struct {
	Token                  string
	GuildID                string
	AllowedParentChannelID string
	TargetGroupID          string
	Pusher                 Pusher
	PushTimeout            time.Duration
	Logger                 *slog.Logger
}

func recordOutcome(outcome domain.PushOutcome) {
	metrics.Collector.Counter(
		"linebridge_push_total",
		"LINE push attempts by terminal outcome",
		fmt.Sprintf("outcome=%q", outcome),
	).Inc()
}

// NewCommand creates the /stl command channel.
func NewCommand(cfg CommandConfig) *Command {
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPushTimeout
	}
	return &Command{
		token:         cfg.Token,
		guildID:       cfg.GuildID,
		allowedParent: cfg.AllowedParentChannelID,
		targetGroupID: cfg.TargetGroupID,
		pusher:        cfg.Pusher,
		pushTimeout:   cfg.PushTimeout,
		logger:        cfg.Logger,
	}
}

// Start connects to Discord, registers the slash command, and blocks until
// ctx is cancelled.
func (c *Command) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages
	c.session = session

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.handleInteraction(ctx, s, i)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	c.logger.Info("discord bot connected", "user", session.State.User.Username)

	if err := c.registerCommand(); err != nil {
		c.logger.Warn("failed to register slash command", "err", err)
	}

	<-ctx.Done()
	c.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (c *Command) registerCommand() error {
	cmd := &discordgo.ApplicationCommand{
		Name:        "stl",
		Description: "傳送訊息到 LINE 群組",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "你要傳送的訊息",
				Required:    true,
			},
		},
	}
	_, err := c.session.ApplicationCommandCreate(c.session.State.User.ID, c.guildID, cmd)
	return err
}

func (c *Command) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "stl" {
		return
	}

	var message string
	for _, opt := range data.Options {
		if opt.Name == "message" && opt.Type == discordgo.ApplicationCommandOptionString {
			message = opt.StringValue()
		}
	}

	parentID := i.ChannelID
	if ch, err := s.State.Channel(i.ChannelID); err == nil && ch.ParentID != "" {
		parentID = ch.ParentID
	} else if ch, err := s.Channel(i.ChannelID); err == nil && ch.ParentID != "" {
		parentID = ch.ParentID
	}

	sender := senderDisplayName(i)

	if parentID != c.allowedParent {
		recordOutcome(domain.PushRejected)
		c.respondEphemeral(s, i, msgRejected)
		return
	}

	// Acknowledge now; the push can take up to the full timeout.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		c.logger.Error("interaction defer failed", "err", err)
		return
	}

	outcome, reply := c.safePush(ctx, parentID, sender, message)
	recordOutcome(outcome)

	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: reply}); err != nil {
		c.logger.Error("interaction followup failed", "err", err)
	}
}

// safePush never lets a fault escape into discordgo; the issuer always
// receives exactly one of the four outcome messages.
func (c *Command) safePush(ctx context.Context, parentChannelID, senderName, message string) (outcome domain.PushOutcome, reply string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("push handler panic", "panic", r)
			outcome, reply = domain.PushErrored, msgErrored
		}
	}()
	return c.ExecutePush(ctx, parentChannelID, senderName, message)
}

// ExecutePush runs the validated push and returns the terminal outcome with
// the user-visible reply. Every path terminates in exactly one outcome; no
// retries.
func (c *Command) ExecutePush(ctx context.Context, parentChannelID, senderName, message string) (domain.PushOutcome, string) {
	if parentChannelID != c.allowedParent {
		return domain.PushRejected, msgRejected
	}

	text := fmt.Sprintf("%s：%s", senderName, message)

	pushCtx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()

	err := c.pusher.PushText(pushCtx, c.targetGroupID, text)
	switch {
	case err == nil:
		return domain.PushSent, fmt.Sprintf("👤 %s", text)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(pushCtx.Err(), context.DeadlineExceeded):
		c.logger.Error("line push timed out", "err", err)
		return domain.PushTimedOut, msgTimedOut
	default:
		c.logger.Error("line push failed", "err", err)
		return domain.PushFailed, msgFailed
	}
}

func (c *Command) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.logger.Error("ephemeral respond failed", "err", err)
	}
}

func senderDisplayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return "(unknown)"
}

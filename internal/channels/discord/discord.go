// Package discord connects ThreadClaw to Discord via the Bot API.
// Discord threads map directly onto the core's thread model: a message in
// a thread channel carries the thread id, everything else is top-level.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/channels"
	"github.com/nextlevelbuilder/threadclaw/internal/config"
)

// historyFetchLimit bounds one thread-history page.
const historyFetchLimit = 100

// Channel connects to Discord via gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string // populated on start
	// agentUsers maps logical agent names to Discord user IDs, for the
	// RemoveAgentFromRoom call-through in multi-bot setups.
	agentUsers map[string]string
}

// New creates a Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus, agentUsers map[string]string) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
		agentUsers:  agentUsers,
	}, nil
}

// Start opens the gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord channel")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord channel connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord channel")
	c.SetRunning(false)
	return c.session.Close()
}

// handleMessage converts a Discord message event into a core message.
func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == c.botUserID {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		slog.Debug("discord sender not allowed", "sender", m.Author.ID)
		return
	}
	if c.config.GuildID != "" && m.GuildID != c.config.GuildID {
		return
	}

	roomID, threadID := c.resolveContext(m.ChannelID)

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	c.Bus().PublishInbound(bus.Message{
		ID:              m.ID,
		Channel:         c.Name(),
		RoomID:          roomID,
		ThreadID:        threadID,
		Sender:          m.Author.ID,
		Body:            m.Content,
		MentionedAgents: c.mentionedAgents(m.Mentions),
		Timestamp:       ts,
		Metadata:        map[string]string{"guild_id": m.GuildID},
	})
}

// mentionedAgents translates Discord mention entities back to agent names
// through the agentUsers mapping, preserving mention order.
func (c *Channel) mentionedAgents(mentions []*discordgo.User) []string {
	if len(mentions) == 0 || len(c.agentUsers) == 0 {
		return nil
	}
	byUserID := make(map[string]string, len(c.agentUsers))
	for agent, userID := range c.agentUsers {
		byUserID[userID] = agent
	}
	var out []string
	for _, u := range mentions {
		if agent, ok := byUserID[u.ID]; ok {
			out = append(out, agent)
		}
	}
	return out
}

// resolveContext splits a Discord channel id into (room, thread). For a
// thread channel the parent is the room; otherwise the channel itself is
// the room and there is no thread.
func (c *Channel) resolveContext(channelID string) (roomID, threadID string) {
	ch, err := c.session.State.Channel(channelID)
	if err != nil {
		ch, err = c.session.Channel(channelID)
	}
	if err == nil && ch.IsThread() {
		return ch.ParentID, channelID
	}
	return channelID, ""
}

// Send delivers an outbound message. Threads take priority over rooms.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord channel not running")
	}
	target := msg.ThreadID
	if target == "" {
		target = msg.RoomID
	}
	if target == "" {
		return fmt.Errorf("empty target for discord send")
	}
	_, err := c.session.ChannelMessageSend(target, msg.Content)
	return err
}

// SendReply posts text into a thread (or the room when threadID is empty).
func (c *Channel) SendReply(ctx context.Context, roomID, threadID, text string) error {
	return c.Send(ctx, bus.OutboundMessage{RoomID: roomID, ThreadID: threadID, Content: text})
}

// GetThreadHistory fetches the thread transcript, oldest first.
func (c *Channel) GetThreadHistory(_ context.Context, threadID string) ([]bus.Message, error) {
	msgs, err := c.session.ChannelMessages(threadID, historyFetchLimit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetch thread history: %w", err)
	}

	roomID, _ := c.resolveContext(threadID)
	out := make([]bus.Message, 0, len(msgs))
	// Discord returns newest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := ""
		if m.Author != nil {
			sender = m.Author.ID
		}
		out = append(out, bus.Message{
			ID:        m.ID,
			Channel:   c.Name(),
			RoomID:    roomID,
			ThreadID:  threadID,
			Sender:    sender,
			Body:      m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

// RemoveAgentFromRoom revokes an agent bot's guild membership. Pure
// call-through: agents without a mapped Discord user are skipped.
func (c *Channel) RemoveAgentFromRoom(_ context.Context, agent, roomID string) error {
	userID, ok := c.agentUsers[agent]
	if !ok {
		slog.Debug("no discord user mapped for agent, skipping room removal", "agent", agent)
		return nil
	}
	guildID := c.config.GuildID
	if guildID == "" {
		ch, err := c.session.State.Channel(roomID)
		if err != nil || ch.GuildID == "" {
			return fmt.Errorf("cannot resolve guild for room %s", roomID)
		}
		guildID = ch.GuildID
	}
	return c.session.GuildMemberDelete(guildID, userID)
}

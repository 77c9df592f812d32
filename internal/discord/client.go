// Package discord adapts a discordgo REST session to the directory interface
// the engine consumes. A one-shot job never opens the gateway; every call is
// a plain REST request.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/koivu/rolewarden/internal/directory"
)

const memberPageSize = 1000

// Client implements directory.Directory and directory.Messenger on top of a
// discordgo session. It is not safe for concurrent use; the engine is
// strictly sequential.
type Client struct {
	s *discordgo.Session

	// Per-run caches. Roles are immutable for the duration of a run and DM
	// channels are stable, so one lookup each is enough.
	roles      map[string][]*discordgo.Role
	dmChannels map[string]string
}

// New builds a REST-only client from a bot token.
func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Client{
		s:          s,
		roles:      make(map[string][]*discordgo.Role),
		dmChannels: make(map[string]string),
	}, nil
}

func (c *Client) ResolveServer(ctx context.Context, id string) (directory.Server, error) {
	g, err := c.s.Guild(id, discordgo.WithContext(ctx))
	if err != nil {
		return directory.Server{}, mapErr(err)
	}
	return directory.Server{ID: g.ID, Name: g.Name}, nil
}

func (c *Client) ResolveRole(ctx context.Context, serverID, roleID string) (directory.Role, error) {
	roles, ok := c.roles[serverID]
	if !ok {
		var err error
		roles, err = c.s.GuildRoles(serverID, discordgo.WithContext(ctx))
		if err != nil {
			return directory.Role{}, mapErr(err)
		}
		c.roles[serverID] = roles
	}
	for _, r := range roles {
		if r.ID == roleID {
			return directory.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return directory.Role{}, fmt.Errorf("%w: role %s", directory.ErrNotFound, roleID)
}

func (c *Client) ListMembers(ctx context.Context, serverID string, visit func(directory.Member) error) error {
	after := ""
	for {
		page, err := c.s.GuildMembers(serverID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return mapErr(err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			after = m.User.ID
			if err := visit(snapshot(m)); err != nil {
				return err
			}
		}
		if len(page) < memberPageSize {
			return nil
		}
	}
}

func (c *Client) FetchMember(ctx context.Context, serverID, memberID string) (directory.Member, error) {
	m, err := c.s.GuildMember(serverID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return directory.Member{}, mapErr(err)
	}
	return snapshot(m), nil
}

func (c *Client) GrantRole(ctx context.Context, serverID, memberID, roleID, reason string) error {
	err := c.s.GuildMemberRoleAdd(serverID, memberID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapErr(err)
}

func (c *Client) RemoveRole(ctx context.Context, serverID, memberID, roleID, reason string) error {
	err := c.s.GuildMemberRoleRemove(serverID, memberID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapErr(err)
}

func (c *Client) DirectMessage(ctx context.Context, memberID, text string) error {
	channelID, ok := c.dmChannels[memberID]
	if !ok {
		ch, err := c.s.UserChannelCreate(memberID, discordgo.WithContext(ctx))
		if err != nil {
			return mapErr(err)
		}
		channelID = ch.ID
		c.dmChannels[memberID] = channelID
	}
	_, err := c.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return mapErr(err)
}

func snapshot(m *discordgo.Member) directory.Member {
	return directory.Member{
		ID:          m.User.ID,
		DisplayName: displayName(m),
		Bot:         m.User.Bot,
		Pending:     m.Pending,
		JoinedAt:    m.JoinedAt,
		RoleIDs:     m.Roles,
	}
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// mapErr folds REST failures into the directory error taxonomy: 403 is
// forbidden, 404 is not found, anything else stays a transport error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", directory.ErrForbidden, restMessage(rerr))
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", directory.ErrNotFound, restMessage(rerr))
		}
	}
	return err
}

func restMessage(rerr *discordgo.RESTError) string {
	if rerr.Message != nil {
		return rerr.Message.Message
	}
	return http.StatusText(rerr.Response.StatusCode)
}

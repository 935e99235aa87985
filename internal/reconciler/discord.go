package reconciler

import (
	"github.com/bwmarrin/discordgo"
)

// discordMembership implements Membership over a discordgo session,
// preferring the state cache and falling back to REST.
type discordMembership struct {
	s *discordgo.Session
}

// NewDiscordMembership wraps a discordgo session as a Membership.
func NewDiscordMembership(s *discordgo.Session) Membership {
	return &discordMembership{s: s}
}

func (d *discordMembership) ResolveGuild(guildID string) (string, error) {
	if d.s.State != nil {
		if g, err := d.s.State.Guild(guildID); err == nil && g != nil {
			return g.Name, nil
		}
	}
	g, err := d.s.Guild(guildID)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

func (d *discordMembership) ResolveRole(guildID, roleID string) (string, error) {
	if d.s.State != nil {
		if r, err := d.s.State.Role(guildID, roleID); err == nil && r != nil {
			return r.Name, nil
		}
	}
	roles, err := d.s.GuildRoles(guildID)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r.Name, nil
		}
	}
	return "", ErrRoleNotFound
}

// MemberRoles maps any member-fetch failure to ErrMemberNotFound: the user
// most likely left the guild, and the reconciler skips them either way.
func (d *discordMembership) MemberRoles(guildID, userID string) ([]string, error) {
	if d.s.State != nil {
		if m, err := d.s.State.Member(guildID, userID); err == nil && m != nil {
			return m.Roles, nil
		}
	}
	m, err := d.s.GuildMember(guildID, userID)
	if err != nil || m == nil {
		return nil, ErrMemberNotFound
	}
	return m.Roles, nil
}

func (d *discordMembership) AddRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *discordMembership) RemoveRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleRemove(guildID, userID, roleID)
}

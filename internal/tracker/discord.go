package tracker

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/discord-voice-time/internal/logging"
)

// HandleVoiceState adapts a discordgo voice state update into a Transition.
// Register it on the session; discordgo invokes it once per presence change.
func (tr *Tracker) HandleVoiceState(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs == nil {
		return
	}

	before := ""
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}

	tr.Apply(context.Background(), Transition{
		UserID: vs.UserID,
		Bot:    isBot(s, vs),
		Before: before,
		After:  vs.ChannelID,
	})
}

// RecoverFromState enumerates the session state's voice states for the
// guild and opens sessions for occupants of active channels that are not
// yet tracked. Call once after the Ready event, when the state cache has
// been populated.
func (tr *Tracker) RecoverFromState(s *discordgo.Session, guildID string) {
	if s == nil || s.State == nil || guildID == "" {
		return
	}
	g, err := s.State.Guild(guildID)
	if err != nil || g == nil {
		logging.Warnw("startup recovery skipped; guild not in state cache", "guild.id", guildID)
		return
	}

	occupants := make([]Occupant, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs == nil || vs.UserID == "" {
			continue
		}
		occupants = append(occupants, Occupant{
			UserID:    vs.UserID,
			ChannelID: vs.ChannelID,
			Bot:       memberIsBot(s, guildID, vs.UserID),
		})
	}
	tr.Recover(occupants)
}

// isBot reports whether the update belongs to an automated account,
// including this bot itself.
func isBot(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) bool {
	if s != nil && s.State != nil && s.State.User != nil && s.State.User.ID == vs.UserID {
		return true
	}
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	if s != nil {
		return memberIsBot(s, vs.GuildID, vs.UserID)
	}
	return false
}

// memberIsBot checks the state cache first and falls back to a REST lookup.
// Unknown members are treated as human: failing open only risks counting a
// bot's time, never dropping a member's.
func memberIsBot(s *discordgo.Session, guildID, userID string) bool {
	if s.State != nil && s.State.User != nil && s.State.User.ID == userID {
		return true
	}
	if s.State != nil {
		if m, err := s.State.Member(guildID, userID); err == nil && m != nil && m.User != nil {
			return m.User.Bot
		}
	}
	if m, err := s.GuildMember(guildID, userID); err == nil && m != nil && m.User != nil {
		return m.User.Bot
	}
	return false
}

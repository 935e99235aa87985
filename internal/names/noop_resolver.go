package names

// NoopResolver implements Resolver and returns empty names. Useful in tests
// and when no session is available.
type NoopResolver struct{}

func (NoopResolver) UserName(userID string) string       { return "" }
func (NoopResolver) GuildName(guildID string) string     { return "" }
func (NoopResolver) ChannelName(channelID string) string { return "" }

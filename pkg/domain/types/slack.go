package types

// UserID is a Slack user identifier (e.g. "U012AB3CD")
type UserID string

// String returns the string representation of the user ID
func (id UserID) String() string {
	return string(id)
}

// ChannelID is a Slack channel identifier (e.g. "C012AB3CD")
type ChannelID string

// String returns the string representation of the channel ID
func (id ChannelID) String() string {
	return string(id)
}

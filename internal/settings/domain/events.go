package settings

// ConfigChanged is published after every successful settings mutation.
type ConfigChanged struct {
	Config Configuration `json:"config"`
}

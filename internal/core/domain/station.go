package domain

// StationConfig is a signal post: short internal ID, the display name used by
// the game, alias posts sharing the same location, and the platform position.
type StationConfig struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	SecondaryPosts []string   `json:"secondary_posts,omitempty" yaml:"secondary_posts"`
	Platform       Coordinate `json:"platform" yaml:"platform"`
}

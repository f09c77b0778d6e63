package models

// Profile is the shared singleton stored at settings/profile.
type Profile struct {
	Name   string `json:"name" mapstructure:"name"`
	Region string `json:"region" mapstructure:"region"`
}

// DefaultProfile is shown until a profile document exists.
func DefaultProfile() Profile {
	return Profile{Name: "Sales King", Region: "Sri Lanka"}
}

func (p Profile) Fields() map[string]any {
	return map[string]any{"name": p.Name, "region": p.Region}
}

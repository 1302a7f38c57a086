package model

// Session is the identity carried by a signed session token. It is re-derived
// on every request and never stored server-side.
type Session struct {
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Provider         Provider `json:"provider"`
	ProviderUsername string   `json:"providerUsername"`
	Profile          Profile  `json:"profile"`
}

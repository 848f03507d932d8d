package notify

// Settings are the user's notification preferences.
type Settings struct {
	Push  bool `json:"push"`
	Sound bool `json:"sound"`
	InApp bool `json:"inApp"`
	Badge bool `json:"badge"`
}

// DefaultSettings returns the settings used when nothing has been saved.
// Push stays off until a subscription is acknowledged by the server.
func DefaultSettings() Settings {
	return Settings{
		Push:  false,
		Sound: true,
		InApp: true,
		Badge: true,
	}
}

// Permission is the platform notification permission state.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Keys holds the client-side key material of a push subscription.
type Keys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a push subscription as registered with the server.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

package command

// Status codes carried in response frames.
const (
	StatusOK                   uint32 = 0
	StatusError                uint32 = 1
	StatusInvalidConfiguration uint32 = 2
	StatusInvalidCommand       uint32 = 3
	StatusInvalidFormat        uint32 = 4
	StatusFeatureUnavailable   uint32 = 5
	StatusInvalidIdentifier    uint32 = 6
	StatusDisconnected         uint32 = 8
	StatusUnauthenticated      uint32 = 40
	StatusUnauthorized         uint32 = 41
	StatusInvalidCredentials   uint32 = 42
)

const StatusUnknown = "unknown"

var statusNames = map[uint32]string{
	StatusOK:                   "OK",
	StatusError:                "Error",
	StatusInvalidConfiguration: "Invalid Configuration",
	StatusInvalidCommand:       "Invalid Command",
	StatusInvalidFormat:        "Invalid Format",
	StatusFeatureUnavailable:   "Feature Unavailable",
	StatusInvalidIdentifier:    "Invalid Identifier",
	StatusDisconnected:         "Disconnected",
	StatusUnauthenticated:      "Unauthenticated",
	StatusUnauthorized:         "Unauthorized",
	StatusInvalidCredentials:   "Invalid Credentials",
}

// StatusName resolves a status code to its symbolic name.
func StatusName(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return StatusUnknown
}

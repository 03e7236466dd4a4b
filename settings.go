package pilotlink

// Settings is the ephemeral configuration the core needs for one
// session. Persistence, a settings UI, and an installer are the
// surrounding application's concern, not the core's: Settings is
// constructed fresh by the caller on every Connect.
type Settings struct {
	Callsign string
	TypeCode string
	SelcalCode string
	Observer bool

	CID      string
	Password string

	// ServerAddress is "AUTOMATIC" to try the well-known VATSIM address
	// and then a random server from the status feed, or an explicit
	// "host:port" override.
	ServerAddress string

	AuthEndpoint string // base URL of the external JWT endpoint

	PluginHost string
	PluginPort int

	ModeCAutoArm bool
	AltimeterTemperatureErrorFt float64
}

// AutomaticServer is the sentinel ServerAddress value requesting
// best-server selection (see NetworkManager.selectServer).
const AutomaticServer = "AUTOMATIC"

package pdu

import "strconv"

// NetworkFacility is the ATC position facility type carried on the "%"
// ATC position PDU and printed as its FSD wire index (0-6).
type NetworkFacility int

const (
	FacilityOBS NetworkFacility = iota
	FacilityFSS
	FacilityDEL
	FacilityGND
	FacilityTWR
	FacilityAPP
	FacilityCTR
)

func (f NetworkFacility) String() string {
	return strconv.Itoa(int(f))
}

func ParseNetworkFacility(s string) NetworkFacility {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(FacilityOBS) || n > int(FacilityCTR) {
		return FacilityOBS
	}
	return NetworkFacility(n)
}

// NetworkRating is a pilot or controller's network rating, wire-coded as
// rating-number-plus-one (OBS=1 .. ADM=12).
type NetworkRating int

const (
	RatingOBS NetworkRating = iota + 1
	RatingS1
	RatingS2
	RatingS3
	RatingC1
	RatingC2
	RatingC3
	RatingI1
	RatingI2
	RatingI3
	RatingSUP
	RatingADM
)

func (r NetworkRating) String() string {
	return strconv.Itoa(int(r))
}

func ParseNetworkRating(s string) NetworkRating {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(RatingOBS) || n > int(RatingADM) {
		return RatingOBS
	}
	return NetworkRating(n)
}

// SimulatorType identifies the flight-sim host a pilot client reports in
// its #AP simulator-type field.
type SimulatorType int

const (
	SimulatorUnknown SimulatorType = iota
	SimulatorMSFS95
	SimulatorMSFS98
	SimulatorMSCFS
	SimulatorAS2
	SimulatorPS1
	SimulatorXPlane
)

func (s SimulatorType) String() string {
	return strconv.Itoa(int(s))
}

// ProtocolRevision is the FSD protocol version a client advertises at
// logon.
type ProtocolRevision int

const (
	ProtocolUnknown      ProtocolRevision = 0
	ProtocolClassic      ProtocolRevision = 9
	ProtocolVatsimNoAuth ProtocolRevision = 10
	ProtocolVatsimAuth   ProtocolRevision = 100
	ProtocolVatsim2022   ProtocolRevision = 101
)

func (p ProtocolRevision) String() string {
	return strconv.Itoa(int(p))
}

// ClientQueryType enumerates every $CQ/$CR query subtype the client sends
// or answers.
type ClientQueryType int

const (
	QueryUnknown ClientQueryType = iota
	QueryIsValidATC
	QueryCapabilities
	QueryCOM1Freq
	QueryRealName
	QueryServer
	QueryATIS
	QueryPublicIP
	QueryINF
	QueryFlightPlan
	QueryIPC
	QueryRequestRelief
	QueryCancelRequestRelief
	QueryRequestHelp
	QueryCancelRequestHelp
	QueryWhoHas
	QueryInitiateTrack
	QueryAcceptHandoff
	QueryDropTrack
	QuerySetFinalAltitude
	QuerySetTempAltitude
	QuerySetBeaconCode
	QuerySetScratchpad
	QuerySetVoiceType
	QueryAircraftConfiguration
	QueryNewInfo
	QueryNewATIS
	QueryEstimate
	QuerySetGlobalData
)

var clientQueryTokens = map[ClientQueryType]string{
	QueryIsValidATC:            "ATC",
	QueryCapabilities:          "CAPS",
	QueryCOM1Freq:              "C?",
	QueryRealName:              "RN",
	QueryServer:                "SV",
	QueryATIS:                  "ATIS",
	QueryPublicIP:              "IP",
	QueryINF:                   "INF",
	QueryFlightPlan:            "FP",
	QueryIPC:                   "IPC",
	QueryRequestRelief:         "BY",
	QueryCancelRequestRelief:   "HI",
	QueryRequestHelp:           "HLP",
	QueryCancelRequestHelp:     "NOHLP",
	QueryWhoHas:                "WH",
	QueryInitiateTrack:         "IT",
	QueryAcceptHandoff:         "HT",
	QueryDropTrack:             "DR",
	QuerySetFinalAltitude:      "FA",
	QuerySetTempAltitude:       "TA",
	QuerySetBeaconCode:         "BC",
	QuerySetScratchpad:         "SC",
	QuerySetVoiceType:          "VT",
	QueryAircraftConfiguration: "ACC",
	QueryNewInfo:               "NEWINFO",
	QueryNewATIS:               "NEWATIS",
	QueryEstimate:              "EST",
	QuerySetGlobalData:         "GD",
}

var clientQueryByToken = func() map[string]ClientQueryType {
	m := make(map[string]ClientQueryType, len(clientQueryTokens))
	for k, v := range clientQueryTokens {
		m[v] = k
	}
	return m
}()

func (q ClientQueryType) String() string {
	if s, ok := clientQueryTokens[q]; ok {
		return s
	}
	return ""
}

func ParseClientQueryType(s string) ClientQueryType {
	if s == "" {
		return QueryUnknown
	}
	if q, ok := clientQueryByToken[s]; ok {
		return q
	}
	return QueryUnknown
}

// FlightRules is a flight plan's rules category. The wire form collapses
// VFR, DVFR and SVFR to the single letter "V" on output; all four letter
// and word forms are accepted on input.
type FlightRules int

const (
	RulesUnknown FlightRules = iota
	RulesIFR
	RulesVFR
	RulesDVFR
	RulesSVFR
)

func (r FlightRules) String() string {
	switch r {
	case RulesIFR:
		return "I"
	case RulesVFR, RulesDVFR, RulesSVFR:
		return "V"
	default:
		return ""
	}
}

func ParseFlightRules(s string) FlightRules {
	switch s {
	case "I", "IFR":
		return RulesIFR
	case "V", "VFR":
		return RulesVFR
	case "D", "DVFR":
		return RulesDVFR
	case "S", "SVFR":
		return RulesSVFR
	default:
		return RulesUnknown
	}
}

// NetworkError is the server-reported reason code carried on a $ER PDU.
// The numeric values match the wire's zero-based ordinal.
type NetworkError int

const (
	ErrorOk NetworkError = iota
	ErrorCallsignInUse
	ErrorCallsignInvalid
	ErrorAlreadyRegistered
	ErrorSyntaxError
	ErrorSourceInvalid
	ErrorInvalidLogon
	ErrorNoSuchCallsign
	ErrorNoFlightPlan
	ErrorNoWeatherProfile
	ErrorInvalidProtocolRevision
	ErrorRequestedLevelTooHigh
	ErrorServerFull
	ErrorCertificateSuspended
	ErrorInvalidControl
	ErrorInvalidPositionForRating
	ErrorUnauthorizedSoftware
)

// Fatal reports whether a $ER code should terminate the session rather
// than merely being logged and surfaced to the caller.
func (e NetworkError) Fatal() bool {
	switch e {
	case ErrorCallsignInUse,
		ErrorCallsignInvalid,
		ErrorAlreadyRegistered,
		ErrorInvalidLogon,
		ErrorInvalidProtocolRevision,
		ErrorRequestedLevelTooHigh,
		ErrorServerFull,
		ErrorCertificateSuspended,
		ErrorInvalidPositionForRating,
		ErrorUnauthorizedSoftware:
		return true
	default:
		return false
	}
}

func ParseNetworkError(s string) NetworkError {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(ErrorOk) || n > int(ErrorUnauthorizedSoftware) {
		return ErrorOk
	}
	return NetworkError(n)
}

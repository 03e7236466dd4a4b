package pdu

import "strings"

// PilotPosition is the legacy "@" slow pilot position report.
type PilotPosition struct {
	From             string
	SquawkCode       int
	SquawkingModeC   bool
	Identing         bool
	Rating           NetworkRating
	Lat, Lon         float64
	TrueAltitude     int
	PressureAltitude int
	GroundSpeed      int
	Pitch, Bank      float64
	Heading          float64
}

func (p PilotPosition) Encode() string {
	mode := "S"
	if p.Identing {
		mode = "Y"
	} else if p.SquawkingModeC {
		mode = "N"
	}
	pbh := PackPitchBankHeading(p.Pitch, p.Bank, p.Heading)
	return "@" + join(
		mode,
		p.From,
		itoa(p.SquawkCode),
		p.Rating.String(),
		ftoa(p.Lat, 6),
		ftoa(p.Lon, 6),
		itoa(p.TrueAltitude),
		itoa(p.GroundSpeed),
		itoa(int(pbh)),
		itoa(p.PressureAltitude-p.TrueAltitude),
	)
}

func decodePilotPosition(fields []string) (PilotPosition, error) {
	if len(fields) < 10 {
		return PilotPosition{}, newFormatError("invalid field count", join(fields...))
	}
	pitch, bank, heading := UnpackPitchBankHeading(uint32(atoiOr(fields[8], 0)))
	identing, charlie := false, false
	switch fields[0] {
	case "N":
		charlie = true
	case "Y":
		charlie, identing = true, true
	}
	trueAlt := atoiOr(fields[6], 0)
	return PilotPosition{
		From:             fields[1],
		SquawkCode:       atoiOr(fields[2], 0),
		SquawkingModeC:   charlie,
		Identing:         identing,
		Rating:           ParseNetworkRating(fields[3]),
		Lat:              atofOr(fields[4], 0),
		Lon:              atofOr(fields[5], 0),
		TrueAltitude:     trueAlt,
		PressureAltitude: trueAlt + atoiOr(fields[9], 0),
		GroundSpeed:      atoiOr(fields[7], 0),
		Pitch:            pitch,
		Bank:             bank,
		Heading:          heading,
	}, nil
}

// FastPositionKind distinguishes the three "^"/"#SL"/"#ST" fast position
// variants, which share a wire shape but differ in field count and in
// whether velocity is present.
type FastPositionKind int

const (
	FastPositionFast FastPositionKind = iota
	FastPositionSlow
	FastPositionStopped
)

// FastPilotPosition is the high-rate "^" position report, also used in its
// "slow" (#SL) and "stopped" (#ST) forms.
type FastPilotPosition struct {
	Kind                  FastPositionKind
	From                   string
	Lat, Lon, TrueAltitude float64
	AglFt                  float64
	Pitch, Bank, Heading   float64
	VelocityX              float64
	VelocityY              float64
	VelocityZ              float64
	VelocityPitch          float64
	VelocityHeading        float64
	VelocityBank           float64
	NoseGearAngle          float64
	HasNoseGearAngle       bool
}

func (p FastPilotPosition) Encode() string {
	pbh := PackPitchBankHeading(p.Pitch, p.Bank, p.Heading)
	tokens := []string{
		p.From,
		ftoa(p.Lat, 7),
		ftoa(p.Lon, 7),
		ftoa(p.TrueAltitude, 2),
		ftoa(p.AglFt, 2),
		itoa(int(pbh)),
	}
	if p.Kind != FastPositionStopped {
		tokens = append(tokens,
			ftoa(p.VelocityX, 4),
			ftoa(p.VelocityY, 4),
			ftoa(p.VelocityZ, 4),
			ftoa(p.VelocityPitch, 4),
			ftoa(p.VelocityHeading, 4),
			ftoa(p.VelocityBank, 4),
		)
	}
	if p.HasNoseGearAngle {
		tokens = append(tokens, ftoa(p.NoseGearAngle, 2))
	}
	prefix := "^"
	switch p.Kind {
	case FastPositionSlow:
		prefix = "#SL"
	case FastPositionStopped:
		prefix = "#ST"
	}
	return prefix + join(tokens...)
}

func decodeFastPilotPosition(kind FastPositionKind, fields []string) (FastPilotPosition, error) {
	wantFields := 12
	if kind == FastPositionStopped {
		wantFields = 6
	}
	if len(fields) < wantFields {
		return FastPilotPosition{}, newFormatError("invalid field count", join(fields...))
	}
	pitch, bank, heading := UnpackPitchBankHeading(uint32(atoiOr(fields[5], 0)))
	out := FastPilotPosition{
		Kind:         kind,
		From:         fields[0],
		Lat:          atofOr(fields[1], 0),
		Lon:          atofOr(fields[2], 0),
		TrueAltitude: atofOr(fields[3], 0),
		AglFt:        atofOr(fields[4], 0),
		Pitch:        pitch,
		Bank:         bank,
		Heading:      heading,
	}
	if kind == FastPositionStopped {
		if len(fields) > 6 {
			out.NoseGearAngle = atofOr(fields[6], 0)
			out.HasNoseGearAngle = true
		}
		return out, nil
	}
	out.VelocityX = atofOr(fields[6], 0)
	out.VelocityY = atofOr(fields[7], 0)
	out.VelocityZ = atofOr(fields[8], 0)
	out.VelocityPitch = atofOr(fields[9], 0)
	out.VelocityHeading = atofOr(fields[10], 0)
	out.VelocityBank = atofOr(fields[11], 0)
	if len(fields) > 12 {
		out.NoseGearAngle = atofOr(fields[12], 0)
		out.HasNoseGearAngle = true
	}
	return out, nil
}

// ATCPosition is the "%" controller position report.
type ATCPosition struct {
	From            string
	Frequencies     []int
	Facility        NetworkFacility
	VisibilityRange int
	Rating          NetworkRating
	Lat, Lon        float64
}

func (p ATCPosition) Encode() string {
	freqs := make([]string, len(p.Frequencies))
	for i, f := range p.Frequencies {
		freqs[i] = itoa(f)
	}
	return "%" + join(
		p.From,
		strings.Join(freqs, "&"),
		p.Facility.String(),
		itoa(p.VisibilityRange),
		p.Rating.String(),
		ftoa(p.Lat, 5),
		ftoa(p.Lon, 5),
		"0",
	)
}

func decodeATCPosition(fields []string) (ATCPosition, error) {
	if len(fields) < 7 {
		return ATCPosition{}, newFormatError("invalid field count", join(fields...))
	}
	var freqs []int
	for _, f := range strings.Split(fields[1], "&") {
		if f == "" {
			continue
		}
		freqs = append(freqs, atoiOr(f, 0)+100000)
	}
	return ATCPosition{
		From:            fields[0],
		Frequencies:     freqs,
		Facility:        ParseNetworkFacility(fields[2]),
		VisibilityRange: atoiOr(fields[3], 0),
		Rating:          ParseNetworkRating(fields[4]),
		Lat:             atofOr(fields[5], 0),
		Lon:             atofOr(fields[6], 0),
	}, nil
}

// AddPilot is the "#AP" pilot logon PDU.
type AddPilot struct {
	Callsign string
	CID      string
	Password string
	Rating   NetworkRating
	Protocol ProtocolRevision
	SimType  SimulatorType
	RealName string
}

func (p AddPilot) Encode() string {
	return "#AP" + join(p.Callsign, ServerCallsign, p.CID, p.Password,
		p.Rating.String(), p.Protocol.String(), p.SimType.String(), p.RealName)
}

func decodeAddPilot(fields []string) (AddPilot, error) {
	if len(fields) < 8 {
		return AddPilot{}, newFormatError("invalid field count", join(fields...))
	}
	return AddPilot{
		Callsign: fields[0],
		CID:      fields[2],
		Password: fields[3],
		Rating:   ParseNetworkRating(fields[4]),
		Protocol: ProtocolRevision(atoiOr(fields[5], 0)),
		SimType:  SimulatorType(atoiOr(fields[6], 0)),
		RealName: fields[7],
	}, nil
}

// DeletePilot is the "#DP" pilot logoff PDU.
type DeletePilot struct {
	From string
	CID  string
}

func (p DeletePilot) Encode() string {
	return "#DP" + join(p.From, p.CID)
}

func decodeDeletePilot(fields []string) (DeletePilot, error) {
	if len(fields) < 1 {
		return DeletePilot{}, newFormatError("invalid field count", join(fields...))
	}
	cid := ""
	if len(fields) >= 2 {
		cid = fields[1]
	}
	return DeletePilot{From: fields[0], CID: cid}, nil
}

// AddATC is the "#AA" controller logon PDU.
type AddATC struct {
	Callsign string
	RealName string
	CID      string
	Password string
	Rating   NetworkRating
	Protocol ProtocolRevision
}

func (p AddATC) Encode() string {
	return "#AA" + join(p.Callsign, ServerCallsign, p.RealName, p.CID, p.Password,
		p.Rating.String(), p.Protocol.String())
}

func decodeAddATC(fields []string) (AddATC, error) {
	if len(fields) < 6 {
		return AddATC{}, newFormatError("invalid field count", join(fields...))
	}
	proto := ""
	if len(fields) > 6 {
		proto = fields[6]
	}
	return AddATC{
		Callsign: fields[0],
		RealName: fields[2],
		CID:      fields[3],
		Password: fields[4],
		Rating:   ParseNetworkRating(fields[5]),
		Protocol: ProtocolRevision(atoiOr(proto, 0)),
	}, nil
}

// DeleteATC is the "#DA" controller logoff PDU.
type DeleteATC struct {
	From string
	CID  string
}

func (p DeleteATC) Encode() string {
	return "#DA" + join(p.From, p.CID)
}

func decodeDeleteATC(fields []string) (DeleteATC, error) {
	if len(fields) < 1 {
		return DeleteATC{}, newFormatError("invalid field count", join(fields...))
	}
	cid := ""
	if len(fields) >= 2 {
		cid = fields[1]
	}
	return DeleteATC{From: fields[0], CID: cid}, nil
}

// ClientIdentification is the "$ID" client identification PDU.
type ClientIdentification struct {
	From             string
	ClientID         uint16
	ClientName       string
	MajorVersion     int
	MinorVersion     int
	CID              string
	SystemUID        string
	InitialChallenge string
}

func (p ClientIdentification) Encode() string {
	tokens := []string{p.From, ServerCallsign, hex16(p.ClientID), p.ClientName,
		itoa(p.MajorVersion), itoa(p.MinorVersion), p.CID, p.SystemUID}
	if p.InitialChallenge != "" {
		tokens = append(tokens, p.InitialChallenge)
	}
	return "$ID" + join(tokens...)
}

func decodeClientIdentification(fields []string) (ClientIdentification, error) {
	if len(fields) < 8 {
		return ClientIdentification{}, newFormatError("invalid field count", join(fields...))
	}
	challenge := ""
	if len(fields) > 8 {
		challenge = fields[8]
	}
	return ClientIdentification{
		From:             fields[0],
		ClientID:         uint16(hexOr(fields[2], 0)),
		ClientName:       fields[3],
		MajorVersion:     atoiOr(fields[4], 0),
		MinorVersion:     atoiOr(fields[5], 0),
		CID:              fields[6],
		SystemUID:        fields[7],
		InitialChallenge: challenge,
	}, nil
}

// ServerIdentification is the "$DI" server identification PDU that opens
// the mutual-challenge handshake.
type ServerIdentification struct {
	From                 string
	To                   string
	Version              string
	InitialChallengeKey  string
}

func (p ServerIdentification) Encode() string {
	return "$DI" + join(p.From, p.To, p.Version, p.InitialChallengeKey)
}

func decodeServerIdentification(fields []string) (ServerIdentification, error) {
	if len(fields) < 4 {
		return ServerIdentification{}, newFormatError("invalid field count", join(fields...))
	}
	return ServerIdentification{From: fields[0], To: fields[1], Version: fields[2], InitialChallengeKey: fields[3]}, nil
}

// AuthChallenge is the "$ZC" rolling-challenge PDU the server sends
// periodically once logged on.
type AuthChallenge struct {
	From, To     string
	ChallengeKey string
}

func (p AuthChallenge) Encode() string {
	return "$ZC" + join(p.From, p.To, p.ChallengeKey)
}

func decodeAuthChallenge(fields []string) (AuthChallenge, error) {
	if len(fields) < 3 {
		return AuthChallenge{}, newFormatError("invalid field count", join(fields...))
	}
	return AuthChallenge{From: fields[0], To: fields[1], ChallengeKey: fields[2]}, nil
}

// AuthResponse is the "$ZR" reply to an AuthChallenge.
type AuthResponse struct {
	From, To string
	Response string
}

func (p AuthResponse) Encode() string {
	return "$ZR" + join(p.From, p.To, p.Response)
}

func decodeAuthResponse(fields []string) (AuthResponse, error) {
	if len(fields) < 3 {
		return AuthResponse{}, newFormatError("invalid field count", join(fields...))
	}
	return AuthResponse{From: fields[0], To: fields[1], Response: fields[2]}, nil
}

// Ping is the "$PI" keepalive probe.
type Ping struct {
	From, To  string
	Timestamp string
}

func (p Ping) Encode() string {
	return "$PI" + join(p.From, p.To, p.Timestamp)
}

func decodePing(fields []string) (Ping, error) {
	if len(fields) < 3 {
		return Ping{}, newFormatError("invalid field count", join(fields...))
	}
	return Ping{From: fields[0], To: fields[1], Timestamp: fields[2]}, nil
}

// Pong is the "$PO" reply to a Ping.
type Pong struct {
	From, To  string
	Timestamp string
}

func (p Pong) Encode() string {
	return "$PO" + join(p.From, p.To, p.Timestamp)
}

func decodePong(fields []string) (Pong, error) {
	if len(fields) < 3 {
		return Pong{}, newFormatError("invalid field count", join(fields...))
	}
	return Pong{From: fields[0], To: fields[1], Timestamp: fields[2]}, nil
}

// ClientQuery is the "$CQ" query PDU; Payload carries any type-specific
// trailing fields verbatim.
type ClientQuery struct {
	From, To string
	Type     ClientQueryType
	Payload  []string
}

func (p ClientQuery) Encode() string {
	return "$CQ" + join(append([]string{p.From, p.To, p.Type.String()}, p.Payload...)...)
}

func decodeClientQuery(fields []string) (ClientQuery, error) {
	if len(fields) < 3 {
		return ClientQuery{}, newFormatError("invalid field count", join(fields...))
	}
	var payload []string
	if len(fields) > 3 {
		payload = fields[3:]
	}
	return ClientQuery{From: fields[0], To: fields[1], Type: ParseClientQueryType(fields[2]), Payload: payload}, nil
}

// ClientQueryResponse is the "$CR" reply to a ClientQuery.
type ClientQueryResponse struct {
	From, To string
	Type     ClientQueryType
	Payload  []string
}

func (p ClientQueryResponse) Encode() string {
	return "$CR" + join(append([]string{p.From, p.To, p.Type.String()}, p.Payload...)...)
}

func decodeClientQueryResponse(fields []string) (ClientQueryResponse, error) {
	if len(fields) < 3 {
		return ClientQueryResponse{}, newFormatError("invalid field count", join(fields...))
	}
	var payload []string
	if len(fields) > 3 {
		payload = fields[3:]
	}
	return ClientQueryResponse{From: fields[0], To: fields[1], Type: ParseClientQueryType(fields[2]), Payload: payload}, nil
}

// PlaneInfoRequest is the "#SB ... PIR" plane info request.
type PlaneInfoRequest struct {
	From, To string
}

func (p PlaneInfoRequest) Encode() string {
	return "#SB" + join(p.From, p.To, "PIR")
}

func decodePlaneInfoRequest(fields []string) (PlaneInfoRequest, error) {
	if len(fields) < 3 {
		return PlaneInfoRequest{}, newFormatError("invalid field count", join(fields...))
	}
	return PlaneInfoRequest{From: fields[0], To: fields[1]}, nil
}

// PlaneInfoResponse is the "#SB ... PI GEN" plane info response.
type PlaneInfoResponse struct {
	From, To                          string
	Equipment, Airline, Livery, CSL string
}

func (p PlaneInfoResponse) Encode() string {
	tokens := []string{p.From, p.To, "PI", "GEN", "EQUIPMENT=" + p.Equipment}
	if p.Airline != "" {
		tokens = append(tokens, "AIRLINE="+p.Airline)
	}
	if p.Livery != "" {
		tokens = append(tokens, "LIVERY="+p.Livery)
	}
	if p.CSL != "" {
		tokens = append(tokens, "CSL="+p.CSL)
	}
	return "#SB" + join(tokens...)
}

func decodePlaneInfoResponse(fields []string) (PlaneInfoResponse, error) {
	if len(fields) < 5 {
		return PlaneInfoResponse{}, newFormatError("invalid field count", join(fields...))
	}
	return PlaneInfoResponse{
		From:      fields[0],
		To:        fields[1],
		Equipment: findValue(fields, "EQUIPMENT"),
		Airline:   findValue(fields, "AIRLINE"),
		Livery:    findValue(fields, "LIVERY"),
		CSL:       findValue(fields, "CSL"),
	}, nil
}

// MetarRequest is the "$AX ... METAR" weather request.
type MetarRequest struct {
	From, Station string
}

func (p MetarRequest) Encode() string {
	return "$AX" + join(p.From, ServerCallsign, "METAR", p.Station)
}

func decodeMetarRequest(fields []string) (MetarRequest, error) {
	if len(fields) < 4 {
		return MetarRequest{}, newFormatError("invalid field count", join(fields...))
	}
	return MetarRequest{From: fields[0], Station: fields[3]}, nil
}

// MetarResponse is the "$AR" weather reply.
type MetarResponse struct {
	To, Metar string
}

func (p MetarResponse) Encode() string {
	return "$AR" + join(ServerCallsign, p.To, "METAR", p.Metar)
}

func decodeMetarResponse(fields []string) (MetarResponse, error) {
	if len(fields) < 4 {
		return MetarResponse{}, newFormatError("invalid field count", join(fields...))
	}
	return MetarResponse{To: fields[1], Metar: fields[3]}, nil
}

// FlightPlan is the "$FP" filed flight plan.
type FlightPlan struct {
	From, To                                   string
	Rules                                       FlightRules
	Equipment, TAS                              string
	DepAirport, EstimatedDepTime, ActualDepTime string
	CruiseAlt, DestAirport                      string
	HoursEnroute, MinutesEnroute                string
	FuelAvailHours, FuelAvailMinutes            string
	AltAirport, Remarks, Route                  string
}

func (p FlightPlan) Encode() string {
	rules := p.Rules.String()
	if len(rules) > 1 {
		rules = rules[:1]
	}
	return "$FP" + join(p.From, p.To, rules, p.Equipment, p.TAS,
		p.DepAirport, p.EstimatedDepTime, p.ActualDepTime, p.CruiseAlt, p.DestAirport,
		p.HoursEnroute, p.MinutesEnroute, p.FuelAvailHours, p.FuelAvailMinutes,
		p.AltAirport, strings.ReplaceAll(p.Remarks, ":", " "), strings.ReplaceAll(p.Route, ":", " "))
}

func decodeFlightPlan(fields []string) (FlightPlan, error) {
	if len(fields) < 17 {
		return FlightPlan{}, newFormatError("invalid field count", join(fields...))
	}
	return FlightPlan{
		From: fields[0], To: fields[1], Rules: ParseFlightRules(fields[2]),
		Equipment: fields[3], TAS: fields[4], DepAirport: fields[5],
		EstimatedDepTime: fields[6], ActualDepTime: fields[7], CruiseAlt: fields[8],
		DestAirport: fields[9], HoursEnroute: fields[10], MinutesEnroute: fields[11],
		FuelAvailHours: fields[12], FuelAvailMinutes: fields[13], AltAirport: fields[14],
		Remarks: fields[15], Route: fields[16],
	}, nil
}

// BroadcastMessage is the "#TM ... *" server-wide broadcast.
type BroadcastMessage struct {
	From, Message string
}

func (p BroadcastMessage) Encode() string {
	return "#TM" + join(p.From, "*", p.Message)
}

func decodeBroadcastMessage(fields []string) (BroadcastMessage, error) {
	if len(fields) < 3 {
		return BroadcastMessage{}, newFormatError("invalid field count", join(fields...))
	}
	return BroadcastMessage{From: fields[0], Message: strings.Join(fields[2:], Delimiter)}, nil
}

// Wallop is the "#TM ... *S" supervisor-alert message.
type Wallop struct {
	From, Message string
}

func (p Wallop) Encode() string {
	return "#TM" + join(p.From, "*S", p.Message)
}

func decodeWallop(fields []string) (Wallop, error) {
	if len(fields) < 2 {
		return Wallop{}, newFormatError("invalid field count", join(fields...))
	}
	return Wallop{From: fields[0], Message: strings.Join(fields[2:], Delimiter)}, nil
}

// TextMessage is the "#TM" private or ATC-to-pilot chat message.
type TextMessage struct {
	From, To, Message string
}

func (p TextMessage) Encode() string {
	return "#TM" + join(p.From, p.To, p.Message)
}

func decodeTextMessage(fields []string) (TextMessage, error) {
	if len(fields) < 3 {
		return TextMessage{}, newFormatError("invalid field count", join(fields...))
	}
	return TextMessage{From: fields[0], To: fields[1], Message: strings.Join(fields[2:], Delimiter)}, nil
}

// RadioMessage is the "#TM" radio-frequency broadcast addressed to one or
// more "@<freq>" targets.
type RadioMessage struct {
	From        string
	Frequencies []int
	Message     string
}

func (p RadioMessage) Encode() string {
	parts := make([]string, len(p.Frequencies))
	for i, f := range p.Frequencies {
		parts[i] = "@" + itoa(f)
	}
	return "#TM" + join(p.From, strings.Join(parts, "&"), p.Message)
}

func decodeRadioMessage(fields []string) (RadioMessage, error) {
	if len(fields) < 3 {
		return RadioMessage{}, newFormatError("invalid field count", join(fields...))
	}
	var freqs []int
	for _, f := range strings.Split(fields[1], "&") {
		f = strings.TrimPrefix(f, "@")
		freqs = append(freqs, atoiOr(f, 0))
	}
	return RadioMessage{From: fields[0], Frequencies: freqs, Message: strings.Join(fields[2:], Delimiter)}, nil
}

// KillRequest is the "$!!" forced-disconnect PDU a server or supervisor
// sends to end a session.
type KillRequest struct {
	From, Victim, Reason string
}

func (p KillRequest) Encode() string {
	return "$!!" + join(p.From, p.Victim, p.Reason)
}

func decodeKillRequest(fields []string) (KillRequest, error) {
	if len(fields) < 2 {
		return KillRequest{}, newFormatError("invalid field count", join(fields...))
	}
	reason := ""
	if len(fields) > 2 {
		reason = fields[2]
	}
	return KillRequest{From: fields[0], Victim: fields[1], Reason: reason}, nil
}

// ProtocolError is the "$ER" server error report.
type ProtocolError struct {
	From, To string
	ErrType  NetworkError
	Param    string
	Message  string
}

func (p ProtocolError) Encode() string {
	return "$ER" + join(p.From, p.To, itoa(int(p.ErrType)), p.Param, p.Message)
}

// Fatal reports whether this error should terminate the session.
func (p ProtocolError) Fatal() bool {
	return p.ErrType.Fatal()
}

func decodeProtocolError(fields []string) (ProtocolError, error) {
	if len(fields) < 5 {
		return ProtocolError{}, newFormatError("invalid field count", join(fields...))
	}
	return ProtocolError{
		From: fields[0], To: fields[1],
		ErrType: ParseNetworkError(fields[2]),
		Param:   fields[3], Message: fields[4],
	}, nil
}

// SendFast is the "$SF" directive enabling/disabling fast position
// broadcast cadence for the named recipient.
type SendFast struct {
	From, To   string
	DoSendFast bool
}

func (p SendFast) Encode() string {
	v := "0"
	if p.DoSendFast {
		v = "1"
	}
	return "$SF" + join(p.From, p.To, v)
}

func decodeSendFast(fields []string) (SendFast, error) {
	if len(fields) < 3 {
		return SendFast{}, newFormatError("invalid field count", join(fields...))
	}
	return SendFast{From: fields[0], To: fields[1], DoSendFast: atoiOr(fields[2], 0) != 0}, nil
}

// ChangeServer is the "$XX" mid-session server-switch directive.
type ChangeServer struct {
	From, To, NewServer string
}

func (p ChangeServer) Encode() string {
	return "$XX" + join(p.From, p.To, p.NewServer)
}

func decodeChangeServer(fields []string) (ChangeServer, error) {
	if len(fields) < 3 {
		return ChangeServer{}, newFormatError("invalid field count", join(fields...))
	}
	return ChangeServer{From: fields[0], To: fields[1], NewServer: fields[2]}, nil
}

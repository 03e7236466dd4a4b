package pdu

import "strings"

// Decode parses one already-unframed PDU line (no trailing delimiter) into
// its concrete type. Unrecognized prefixes return a *FormatError; callers
// are expected to log and drop rather than treat it as fatal.
func Decode(line string) (PDU, error) {
	if line == "" {
		return nil, newFormatError("empty packet", line)
	}

	fields := splitFields(line)
	prefix := fields[0]

	switch prefix[0] {
	case '@':
		fields[0] = prefix[1:]
		return decodePilotPosition(fields)
	case '^':
		fields[0] = prefix[1:]
		return decodeFastPilotPosition(FastPositionFast, fields)
	case '%':
		fields[0] = prefix[1:]
		return decodeATCPosition(fields)
	case '#', '$':
		if len(prefix) < 3 {
			return nil, newFormatError("invalid PDU type", line)
		}
		tag := prefix[:3]
		fields[0] = prefix[3:]

		switch tag {
		case "$DI":
			return decodeServerIdentification(fields)
		case "$ID":
			return decodeClientIdentification(fields)
		case "#AA":
			return decodeAddATC(fields)
		case "#DA":
			return decodeDeleteATC(fields)
		case "#AP":
			return decodeAddPilot(fields)
		case "#DP":
			return decodeDeletePilot(fields)
		case "#TM":
			return decodeTM(fields)
		case "#SB":
			return decodeSB(fields)
		case "#SL":
			return decodeFastPilotPosition(FastPositionSlow, fields)
		case "#ST":
			return decodeFastPilotPosition(FastPositionStopped, fields)
		case "$AR":
			return decodeMetarResponse(fields)
		case "$AX":
			return decodeMetarRequest(fields)
		case "$PI":
			return decodePing(fields)
		case "$PO":
			return decodePong(fields)
		case "$CQ":
			return decodeClientQuery(fields)
		case "$CR":
			return decodeClientQueryResponse(fields)
		case "$ZC":
			return decodeAuthChallenge(fields)
		case "$ZR":
			return decodeAuthResponse(fields)
		case "$!!":
			return decodeKillRequest(fields)
		case "$ER":
			return decodeProtocolError(fields)
		case "$SF":
			return decodeSendFast(fields)
		case "$FP":
			return decodeFlightPlan(fields)
		case "$XX":
			return decodeChangeServer(fields)
		default:
			return nil, newFormatError("unrecognized PDU tag "+tag, line)
		}
	default:
		return nil, newFormatError("unrecognized PDU prefix", line)
	}
}

// decodeTM dispatches a "#TM" PDU to broadcast, wallop, radio, or plain
// text message decoding based on its "To" field, mirroring the server's
// own routing rule.
func decodeTM(fields []string) (PDU, error) {
	if len(fields) < 3 {
		return nil, newFormatError("invalid field count", join(fields...))
	}
	switch {
	case fields[1] == "*":
		return decodeBroadcastMessage(fields)
	case strings.EqualFold(fields[1], "*s"):
		return decodeWallop(fields)
	case strings.HasPrefix(fields[1], "@"):
		return decodeRadioMessage(fields)
	default:
		return decodeTextMessage(fields)
	}
}

// decodeSB dispatches a "#SB" plane-info PDU by its third field.
func decodeSB(fields []string) (PDU, error) {
	if len(fields) < 3 {
		return nil, newFormatError("invalid field count", join(fields...))
	}
	switch {
	case fields[2] == "PIR":
		return decodePlaneInfoRequest(fields)
	case fields[2] == "PI" && len(fields) >= 4 && fields[3] == "GEN":
		return decodePlaneInfoResponse(fields)
	default:
		return nil, newFormatError("unrecognized #SB subtype", join(fields...))
	}
}

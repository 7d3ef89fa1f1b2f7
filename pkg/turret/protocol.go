package turret

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire grammar, one command per request, plain text:
//
//	(h,v)      -> "1"/"0"                  set absolute angles
//	norm(x,y)  -> "1"/"0"                  set target by normalized coordinate
//	on / off   -> "1"                      laser emission
//	angles     -> "(h,v)"                  current position
//	limits     -> "((hmin,hmax),(vmin,vmax))"
//	test/stop  -> "1"                      diagnostic motion sequence
//	h0 / h1    -> "1"                      head rotation to min/max
//	quit       -> "1"                      close session
//
// Anything outside this grammar is rejected on both sides. The earlier
// firmware evaluated any two-float tuple it received, which made the
// normalized and absolute forms indistinguishable; they are distinct
// verbs here and no value-range guessing happens anywhere.

const (
	cmdLaserOn  = "on"
	cmdLaserOff = "off"
	cmdAngles   = "angles"
	cmdLimits   = "limits"
	cmdTest     = "test"
	cmdStop     = "stop"
	cmdHeadMin  = "h0"
	cmdHeadMax  = "h1"
	cmdQuit     = "quit"
)

func encodeSetAngles(a ServoAngles) string {
	return fmt.Sprintf("(%s,%s)", formatAngle(a.H), formatAngle(a.V))
}

func encodeSetNormalized(x, y float64) string {
	return fmt.Sprintf("norm(%s,%s)", formatAngle(x), formatAngle(y))
}

// formatAngle keeps two decimals, matching the firmware's rounding.
func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// parseAck validates a "1"/"0" acknowledgement.
func parseAck(reply string) error {
	switch strings.TrimSpace(reply) {
	case "1":
		return nil
	case "0":
		return ErrRejected
	default:
		return fmt.Errorf("%w: ack %q", ErrProtocol, reply)
	}
}

// parseAngles parses "(h,v)".
func parseAngles(reply string) (ServoAngles, error) {
	fields, err := parseTuple(strings.TrimSpace(reply))
	if err != nil || len(fields) != 2 {
		return ServoAngles{}, fmt.Errorf("%w: angles %q", ErrProtocol, reply)
	}
	h, err1 := strconv.ParseFloat(fields[0], 64)
	v, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return ServoAngles{}, fmt.Errorf("%w: angles %q", ErrProtocol, reply)
	}
	return ServoAngles{H: h, V: v}, nil
}

// parseLimits parses "((hmin,hmax),(vmin,vmax))".
func parseLimits(reply string) (ServoLimits, error) {
	s := strings.TrimSpace(reply)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return ServoLimits{}, fmt.Errorf("%w: limits %q", ErrProtocol, reply)
	}
	inner := s[1 : len(s)-1]

	// Split "(a,b),(c,d)" on the comma between the groups.
	depth, split := 0, -1
	for i, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if split >= 0 {
					return ServoLimits{}, fmt.Errorf("%w: limits %q", ErrProtocol, reply)
				}
				split = i
			}
		}
	}
	if split < 0 || depth != 0 {
		return ServoLimits{}, fmt.Errorf("%w: limits %q", ErrProtocol, reply)
	}

	hPart, err1 := parseTuple(strings.TrimSpace(inner[:split]))
	vPart, err2 := parseTuple(strings.TrimSpace(inner[split+1:]))
	if err1 != nil || err2 != nil || len(hPart) != 2 || len(vPart) != 2 {
		return ServoLimits{}, fmt.Errorf("%w: limits %q", ErrProtocol, reply)
	}

	vals := make([]float64, 0, 4)
	for _, f := range append(hPart, vPart...) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ServoLimits{}, fmt.Errorf("%w: limits %q", ErrProtocol, reply)
		}
		vals = append(vals, v)
	}

	lim := ServoLimits{HMin: vals[0], HMax: vals[1], VMin: vals[2], VMax: vals[3]}
	if !lim.Valid() {
		return ServoLimits{}, fmt.Errorf("%w: empty axis range in %q", ErrProtocol, reply)
	}
	return lim, nil
}

// parseTuple splits "(a,b)" into its comma-separated fields.
func parseTuple(s string) ([]string, error) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("not a tuple: %q", s)
	}
	fields := strings.Split(s[1:len(s)-1], ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return nil, fmt.Errorf("empty field in tuple %q", s)
		}
	}
	return fields, nil
}

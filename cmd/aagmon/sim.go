package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/joshwalawender/AAGonRPi/pkg/protocol"
	"github.com/joshwalawender/AAGonRPi/pkg/transport"
)

// trailer is the handshake block the hardware appends to every reply.
const trailer = "\x11            0"

// field renders one tagged reply field the way the hardware pads them.
func field(tag, value string) string {
	return fmt.Sprintf("!%s%13s", tag, value)
}

func closed(fields ...string) string {
	out := ""
	for _, f := range fields {
		out += f
	}
	return out + "!" + trailer
}

// installSimulator wires a rough CloudWatcher behavior into a mock channel
// so the daemon can run end to end without hardware. Readings jitter
// around fixed baselines; the PWM and switch state round-trip.
func installSimulator(m *transport.Mock) {
	pwm := 0
	switchOpen := true

	jitter := func(base, spread int) string {
		return strconv.Itoa(base + rand.Intn(2*spread+1) - spread)
	}

	m.Handle(func(request string) (string, bool) {
		switch request {
		case protocol.ReqName:
			return closed(field("N", "CloudWatcher")), true
		case protocol.ReqFirmware:
			return closed(field("V", "5.89")), true
		case protocol.ReqSerialNumber:
			return "!K2001\x00!" + trailer, true
		case protocol.ReqSkyTemp:
			return closed(field("1", jitter(-1800, 40))), true
		case protocol.ReqAmbientTemp:
			return closed(field("2", jitter(1500, 20))), true
		case protocol.ReqValues:
			return closed(
				field("6", jitter(300, 5)),
				field("4", jitter(500, 10)),
				field("5", jitter(400, 10)),
			), true
		case protocol.ReqErrors:
			return closed(field("E1", "0"), field("E2", "0"), field("E3", "0"), field("E4", "0")), true
		case protocol.ReqRainFrequency:
			return closed(field("R", jitter(2500, 50))), true
		case protocol.ReqPWM:
			return closed(field("Q", strconv.Itoa(pwm))), true
		case protocol.ReqAnemometer:
			return closed(field("v", "1")), true
		case protocol.ReqWindSpeed:
			return closed(field("w", jitter(8, 5))), true
		case protocol.ReqElectrical:
			return "!M" + "ZABCDEFGHIJK" + trailer, true
		case protocol.ReqSwitch:
			if switchOpen {
				return closed(field("Y", "1")), true
			}
			return closed(field("X", "1")), true
		case protocol.ReqSwitchOpen:
			switchOpen = true
			return "", false
		case protocol.ReqSwitchClosed:
			switchOpen = false
			return "", false
		case protocol.ReqResetBuffers:
			return "", false
		}

		// Parametrized PWM set: absorb the value and echo it back.
		if len(request) == 6 && request[0] == 'P' && request[5] == '!' {
			if v, err := strconv.Atoi(request[1:5]); err == nil {
				pwm = v
			}
			return closed(field("Q", strconv.Itoa(pwm))), true
		}
		return "", false
	})
}

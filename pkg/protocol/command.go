package protocol

import (
	"errors"
	"fmt"
	"time"
)

// Request strings for every command the device understands, from
// Rs232_Comms_v100.pdf through v120. The PWM set command is parametrized;
// use SetPWMRequest to build it.
const (
	ReqName          = "!A"
	ReqFirmware      = "!B"
	ReqValues        = "!C"
	ReqErrors        = "!D"
	ReqRainFrequency = "!E"
	ReqSwitch        = "!F"
	ReqSwitchOpen    = "!G"
	ReqSwitchClosed  = "!H"
	ReqPWM           = "!Q"
	ReqSkyTemp       = "!S"
	ReqAmbientTemp   = "!T"
	ReqResetBuffers  = "!z"
	ReqSerialNumber  = "!K"
	ReqAnemometer    = "v!"
	ReqWindSpeed     = "V!"
	ReqElectrical    = "M!"
)

// SetPWMRequest builds the P command that sets the heater duty cycle to
// the given 0-1023 digital value.
func SetPWMRequest(digital int) string {
	return fmt.Sprintf("P%04d!", digital)
}

// ErrUnknownCommand is returned when a request matches no command
// definition.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoReplyPattern is returned when Query is used on a command that has
// no expected reply (the switch and buffer-reset commands).
var ErrNoReplyPattern = errors.New("command has no expected reply pattern")

// Command is one immutable entry in the device's command table.
type Command struct {
	Request     string
	Description string
	// Expect is the compiled reply decoder, nil for commands that are sent
	// without validation.
	Expect *ReplyPattern
	// Delay overrides the default settle delay after sending.
	Delay time.Duration
	// Parametrized marks the PWM set command, whose request carries a
	// zero-padded numeric value instead of being a fixed literal.
	Parametrized bool
}

// Matches reports whether a request string is an instance of this command.
func (c *Command) Matches(request string) bool {
	if !c.Parametrized {
		return request == c.Request
	}
	// P command: 'P' + 4 digits + '!'
	if len(request) != 6 || request[0] != 'P' || request[5] != '!' {
		return false
	}
	for i := 1; i < 5; i++ {
		if request[i] < '0' || request[i] > '9' {
			return false
		}
	}
	return true
}

func single(tag string, kind FieldKind) *ReplyPattern {
	return &ReplyPattern{Fields: []Field{{Tag: tag, Kind: kind}}, Closed: true}
}

// commands is the static command table. Order matters only in that lookup
// is first-match-wins.
var commands = []Command{
	{Request: ReqName, Description: "Get internal name", Expect: single("N", Word)},
	{Request: ReqFirmware, Description: "Get firmware version", Expect: single("V", Number)},
	{Request: ReqValues, Description: "Get values", Expect: &ReplyPattern{
		Fields: []Field{{Tag: "6", Kind: Number}, {Tag: "4", Kind: Number}, {Tag: "5", Kind: Number}},
		Closed: true,
	}},
	{Request: ReqErrors, Description: "Get internal errors", Expect: &ReplyPattern{
		Fields: []Field{{Tag: "E1", Kind: Number}, {Tag: "E2", Kind: Number}, {Tag: "E3", Kind: Number}, {Tag: "E4", Kind: Number}},
		Closed: true,
	}},
	{Request: ReqRainFrequency, Description: "Get rain frequency", Expect: single("R", Number), Delay: 350 * time.Millisecond},
	{Request: ReqSwitch, Description: "Get switch status", Expect: single("Y", Number)},
	{Request: ReqSwitchOpen, Description: "Set switch open"},
	{Request: ReqSwitchClosed, Description: "Set switch closed"},
	{Request: "Pxxxx!", Description: "Set PWM value", Parametrized: true, Expect: single("Q", Number), Delay: 750 * time.Millisecond},
	{Request: ReqPWM, Description: "Get PWM value", Expect: single("Q", Number)},
	{Request: ReqSkyTemp, Description: "Get sky IR temperature", Expect: single("1", Number)},
	{Request: ReqAmbientTemp, Description: "Get sensor temperature", Expect: single("2", Number)},
	{Request: ReqResetBuffers, Description: "Reset RS232 buffer pointers"},
	{Request: ReqSerialNumber, Description: "Get serial number", Expect: &ReplyPattern{
		Fields: []Field{{Tag: "K", Kind: SerialDigits}},
		Closed: true,
	}},
	{Request: ReqAnemometer, Description: "Query if anemometer enabled", Expect: single("v", Number)},
	{Request: ReqWindSpeed, Description: "Get wind speed", Expect: single("w", Number)},
	{Request: ReqElectrical, Description: "Get electrical constants", Expect: &ReplyPattern{
		Fields: []Field{{Tag: "M", Kind: RawBlock, Len: 12}},
	}},
}

// Lookup resolves a request string against the command table.
func Lookup(request string) (*Command, error) {
	for i := range commands {
		if commands[i].Matches(request) {
			return &commands[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, request)
}

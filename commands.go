package rfe

import "fmt"

// Command is the two-byte command identifier of the RFE reader host
// protocol: a class byte followed by a command byte within that class.
type Command [2]byte

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return fmt.Sprintf("%02X %02X (%s)", c[0], c[1], name)
	}
	return fmt.Sprintf("%02X %02X", c[0], c[1])
}

// IsInterrupt reports whether the command class marks an unsolicited
// frame pushed by the reader rather than a response to a request.
func (c Command) IsInterrupt() bool {
	return c[0] == 0x90
}

// Reader info commands.
var (
	CmdGetSerialNumber = Command{0x01, 0x01}
	CmdGetReaderType   = Command{0x01, 0x02}
	CmdGetAntennaCount = Command{0x01, 0x10}
)

// RF configuration commands.
var (
	CmdGetAttenuation = Command{0x02, 0x01}
	CmdGetFrequency   = Command{0x02, 0x02}
	CmdGetSensitivity = Command{0x02, 0x03}
	CmdSetAttenuation = Command{0x02, 0x81}
	CmdSetFrequency   = Command{0x02, 0x82}
	CmdSetSensitivity = Command{0x02, 0x83}
)

// Device control commands.
var (
	CmdSetHeartBeat          = Command{0x03, 0x02}
	CmdSetAntennaPower       = Command{0x03, 0x03}
	CmdSaveSettingsPermanent = Command{0x03, 0x21}
	CmdSetParam              = Command{0x03, 0x30}
	CmdGetParam              = Command{0x03, 0x31}
)

// Tag operation commands.
var (
	CmdInventorySingle = Command{0x50, 0x01}
	CmdInventoryCyclic = Command{0x50, 0x02}
)

// Interrupts pushed by the reader without a request.
var (
	CmdHeartBeatInterrupt       = Command{0x90, 0x01}
	CmdInventoryCyclicInterrupt = Command{0x90, 0x02}
)

var commandNames = map[Command]string{
	CmdGetSerialNumber:          "Get-Serial-Number",
	CmdGetReaderType:            "Get-Reader-Type",
	CmdGetAntennaCount:          "Get-Antenna-Count",
	CmdGetAttenuation:           "Get-Attenuation",
	CmdGetFrequency:             "Get-Frequency",
	CmdGetSensitivity:           "Get-Sensitivity",
	CmdSetAttenuation:           "Set-Attenuation",
	CmdSetFrequency:             "Set-Frequency",
	CmdSetSensitivity:           "Set-Sensitivity",
	CmdSetHeartBeat:             "Set-Heart-Beat",
	CmdSetAntennaPower:          "Set-Antenna-Power",
	CmdSaveSettingsPermanent:    "Save-Settings-Permanent",
	CmdSetParam:                 "Set-Param",
	CmdGetParam:                 "Get-Param",
	CmdInventorySingle:          "Inventory-Single",
	CmdInventoryCyclic:          "Inventory-Cyclic",
	CmdHeartBeatInterrupt:       "Heart-Beat-Interrupt",
	CmdInventoryCyclicInterrupt: "Inventory-Cyclic-Interrupt",
}

// Status codes carried in the first payload byte of a checked response.
const (
	StatusOK             byte = 0x00
	StatusPending        byte = 0x01
	StatusNotSupported   byte = 0x50
	StatusUnknownError   byte = 0x51
	StatusNotExecuted    byte = 0x52
	StatusWriteFailed    byte = 0x53
	StatusWrongParamLen  byte = 0x54
	StatusWrongParam     byte = 0x55
	StatusTagUnreachable byte = 0xA0
	StatusInvalidMemory  byte = 0xA1
	StatusMemoryLocked   byte = 0xA2
	StatusTagLowPower    byte = 0xA3
	StatusWrongPassword  byte = 0xA4
)

var statusDescriptions = map[byte]string{
	StatusOK:             "everything went fine",
	StatusPending:        "operation pending, result will be sent later",
	StatusNotSupported:   "operation not supported on this reader",
	StatusUnknownError:   "unknown error",
	StatusNotExecuted:    "the operation could not be executed",
	StatusWriteFailed:    "the reader could not write the value",
	StatusWrongParamLen:  "wrong parameter count",
	StatusWrongParam:     "wrong parameter",
	StatusTagUnreachable: "the reader could not reach the tag",
	StatusInvalidMemory:  "the specified memory space is not valid",
	StatusMemoryLocked:   "the specified memory space is locked",
	StatusTagLowPower:    "the tag has too less power",
	StatusWrongPassword:  "the specified password is wrong",
}

// StatusDescription returns the vendor description for a status code.
func StatusDescription(code byte) string {
	if descr, ok := statusDescriptions[code]; ok {
		return descr
	}
	return fmt.Sprintf("unknown status code 0x%02X", code)
}

// Device parameter addresses reached via Set-Param / Get-Param.
const (
	ParamReportRSSI      uint16 = 0x0002
	ParamLinkFrequency   uint16 = 0x0020
	ParamEncoding        uint16 = 0x0021
	ParamModulationDepth uint16 = 0x0022
	ParamSession         uint16 = 0x0028
)

// blfCodes maps the wire enum key to the backscatter link frequency in KHz.
var blfCodes = map[byte]int{
	0x00: 40,
	0x01: 80,
	0x02: 160,
	0x03: 213,
	0x04: 256,
	0x05: 320,
}

// blfCodeFor returns the wire key for a link frequency, false if the
// frequency is not in the reader's enumerated set.
func blfCodeFor(khz int) (byte, bool) {
	for code, val := range blfCodes {
		if val == khz {
			return code, true
		}
	}
	return 0, false
}

// BLFValues returns the enumerated backscatter link frequencies in KHz,
// ascending.
func BLFValues() []int {
	return []int{40, 80, 160, 213, 256, 320}
}

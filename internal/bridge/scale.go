package bridge

// Registry data-point codes that carry integer-encoded physical units.
const (
	CodeVoltage = "cur_voltage" // 0.1 V
	CodePower   = "cur_power"   // 0.1 W
	CodeEnergy  = "add_ele"     // 0.001 kWh
)

// CodeSwitch is the on/off code read from governing devices.
const CodeSwitch = "switch"

var scaleDivisors = map[string]float64{
	CodeVoltage: 10,
	CodePower:   10,
	CodeEnergy:  1000,
}

// Scale converts a raw registry value into display units.
// Unknown codes and non-numeric values pass through unchanged.
func Scale(code string, raw Value) Value {
	div, ok := scaleDivisors[code]
	if !ok {
		return raw
	}
	n, ok := raw.AsNumber()
	if !ok {
		return raw
	}
	return Number(n / div)
}

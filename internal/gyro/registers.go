// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

// Register addresses (L3GD20 / I3G4250D).
const (
	RegWhoAmI    byte = 0x0F
	RegCtrl1     byte = 0x20
	RegCtrl2     byte = 0x21
	RegCtrl3     byte = 0x22
	RegCtrl4     byte = 0x23
	RegCtrl5     byte = 0x24
	RegReference byte = 0x25
	RegOutTemp   byte = 0x26
	RegStatus    byte = 0x27
	RegOutXL     byte = 0x28
	RegOutZH     byte = 0x2D
	RegFIFOCtrl  byte = 0x2E
	RegFIFOSrc   byte = 0x2F
	RegInt1Cfg   byte = 0x30
	RegInt1Dur   byte = 0x38
)

// Address byte flags.
const (
	readBit     byte = 0x80
	autoIncBit  byte = 0x40
	addressMask byte = 0x3F
)

// Identity values reported by WHO_AM_I.
const (
	WhoAmIL3GD20   byte = 0xD4
	WhoAmII3G4250D byte = 0xD3
)

// Configuration written by Init.
//
// CTRL_REG1
// +-----+-----+-----+-----+----+-----+-----+-----+
// | DR1 | DR0 | BW1 | BW0 | PD | Zen | Yen | Xen |
// |  0  |  1  |  1  |  0  | 1  |  1  |  1  |  1  |
// +-----+-----+-----+-----+----+-----+-----+-----+
// ODR 190 Hz, cutoff 50 Hz, normal mode, all axes on.
const (
	Ctrl1Config byte = 0b0110_1111
	Ctrl3Config byte = 0b0000_1000 // I2_DRDY: data-ready on INT2
	Ctrl4Config byte = 0b0001_0000 // FS = 01, ±500 dps
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the debug tool.
type RegisterInfo struct {
	Address     byte       `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for the gyro registers in address order.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: RegWhoAmI, Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0xD4"},
		{Address: RegCtrl1, Name: "CTRL_REG1", Description: "Data rate, bandwidth, power and axis enable", Access: "RW", Default: "0x07",
			BitFields: []BitField{
				{Bits: "7:6", Name: "DR", Description: "Output data rate", Values: "0=95Hz, 1=190Hz, 2=380Hz, 3=760Hz"},
				{Bits: "5:4", Name: "BW", Description: "Bandwidth selection", Values: "Depends on DR"},
				{Bits: "3", Name: "PD", Description: "Power mode", Values: "0=Power-down, 1=Normal/Sleep"},
				{Bits: "2", Name: "Zen", Description: "Z axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "Yen", Description: "Y axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "Xen", Description: "X axis enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: RegCtrl2, Name: "CTRL_REG2", Description: "High-pass filter configuration", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5:4", Name: "HPM", Description: "High-pass filter mode", Values: "0=Normal (reset reading REFERENCE)"},
				{Bits: "3:0", Name: "HPCF", Description: "High-pass cut-off frequency", Values: "0-9"},
			}},
		{Address: RegCtrl3, Name: "CTRL_REG3", Description: "Interrupt pin routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "I1_Int1", Description: "Interrupt enable on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "I1_Boot", Description: "Boot status on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "5", Name: "H_Lactive", Description: "Interrupt active level", Values: "0=High, 1=Low"},
				{Bits: "4", Name: "PP_OD", Description: "Output type", Values: "0=Push-pull, 1=Open drain"},
				{Bits: "3", Name: "I2_DRDY", Description: "Data ready on INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "2", Name: "I2_WTM", Description: "FIFO watermark on INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "I2_ORun", Description: "FIFO overrun on INT2", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "I2_Empty", Description: "FIFO empty on INT2", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: RegCtrl4, Name: "CTRL_REG4", Description: "Full scale and data format", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Until MSB and LSB read"},
				{Bits: "6", Name: "BLE", Description: "Endianness", Values: "0=Little endian, 1=Big endian"},
				{Bits: "5:4", Name: "FS", Description: "Full scale", Values: "0=±250dps, 1=±500dps, 2=±2000dps, 3=±2000dps"},
				{Bits: "0", Name: "SIM", Description: "SPI mode", Values: "0=4-wire, 1=3-wire"},
			}},
		{Address: RegCtrl5, Name: "CTRL_REG5", Description: "FIFO and filter routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content", Values: "0=Normal, 1=Reboot"},
				{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "HPen", Description: "High-pass filter enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: RegReference, Name: "REFERENCE", Description: "Reference value for interrupt generation", Access: "RW", Default: "0x00"},
		{Address: RegOutTemp, Name: "OUT_TEMP", Description: "Temperature data", Access: "R"},
		{Address: RegStatus, Name: "STATUS_REG", Description: "Data status", Access: "R",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOR", Description: "X, Y, Z overrun"},
				{Bits: "3", Name: "ZYXDA", Description: "X, Y, Z new data available"},
			}},
		{Address: RegOutXL, Name: "OUT_X_L", Description: "X-axis angular rate low byte", Access: "R"},
		{Address: RegOutXL + 1, Name: "OUT_X_H", Description: "X-axis angular rate high byte", Access: "R"},
		{Address: RegOutXL + 2, Name: "OUT_Y_L", Description: "Y-axis angular rate low byte", Access: "R"},
		{Address: RegOutXL + 3, Name: "OUT_Y_H", Description: "Y-axis angular rate high byte", Access: "R"},
		{Address: RegOutXL + 4, Name: "OUT_Z_L", Description: "Z-axis angular rate low byte", Access: "R"},
		{Address: RegOutZH, Name: "OUT_Z_H", Description: "Z-axis angular rate high byte", Access: "R"},
		{Address: RegFIFOCtrl, Name: "FIFO_CTRL_REG", Description: "FIFO mode and watermark", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "FM", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream"},
				{Bits: "4:0", Name: "WTM", Description: "Watermark level"},
			}},
		{Address: RegFIFOSrc, Name: "FIFO_SRC_REG", Description: "FIFO status", Access: "R"},
		{Address: RegInt1Cfg, Name: "INT1_CFG", Description: "Interrupt 1 configuration", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 1, Name: "INT1_SRC", Description: "Interrupt 1 source", Access: "R"},
		{Address: RegInt1Cfg + 2, Name: "INT1_THS_XH", Description: "Interrupt 1 X threshold high", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 3, Name: "INT1_THS_XL", Description: "Interrupt 1 X threshold low", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 4, Name: "INT1_THS_YH", Description: "Interrupt 1 Y threshold high", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 5, Name: "INT1_THS_YL", Description: "Interrupt 1 Y threshold low", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 6, Name: "INT1_THS_ZH", Description: "Interrupt 1 Z threshold high", Access: "RW", Default: "0x00"},
		{Address: RegInt1Cfg + 7, Name: "INT1_THS_ZL", Description: "Interrupt 1 Z threshold low", Access: "RW", Default: "0x00"},
		{Address: RegInt1Dur, Name: "INT1_DURATION", Description: "Interrupt 1 duration", Access: "RW", Default: "0x00"},
	}
}

// dataRate returns the output data rate in Hz selected by a CTRL_REG1
// value, or 0 when the device is powered down.
func dataRate(ctrl1 byte) int {
	if ctrl1&0x08 == 0 {
		return 0
	}
	return []int{95, 190, 380, 760}[ctrl1>>6]
}

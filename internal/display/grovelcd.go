package display

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// Grove RGB LCD (JHD1313M1): an HD44780-style text controller and a PCA9633
// backlight driver on separate I2C addresses.
const (
	lcdCommandPrefix = 0x80
	lcdDataPrefix    = 0x40

	lcdClear      = 0x01
	lcdDisplayOn  = 0x0C // display on, cursor off
	lcdTwoLines   = 0x28
	lcdSecondLine = 0xC0

	lcdColumns = 16
	lcdRows    = 2

	rgbMode1  = 0x00
	rgbMode2  = 0x01
	rgbOutput = 0x08
	rgbRed    = 0x04
	rgbGreen  = 0x03
	rgbBlue   = 0x02
	rgbAllPWM = 0xAA
)

// GroveLCD drives a Grove 16x2 RGB backlight LCD.
type GroveLCD struct {
	text  *i2c.Dev
	rgb   *i2c.Dev
	delay time.Duration
}

// NewGroveLCD initializes the backlight controller, which doubles as a
// presence check for the module.
func NewGroveLCD(bus i2c.Bus, textAddr, rgbAddr uint16) (*GroveLCD, error) {
	return newGroveLCD(bus, textAddr, rgbAddr, 50*time.Millisecond)
}

func newGroveLCD(bus i2c.Bus, textAddr, rgbAddr uint16, delay time.Duration) (*GroveLCD, error) {
	l := &GroveLCD{
		text:  &i2c.Dev{Bus: bus, Addr: textAddr},
		rgb:   &i2c.Dev{Bus: bus, Addr: rgbAddr},
		delay: delay,
	}
	for _, reg := range [][2]byte{{rgbMode1, 0}, {rgbMode2, 0}, {rgbOutput, rgbAllPWM}} {
		if _, err := l.rgb.Write(reg[:]); err != nil {
			return nil, fmt.Errorf("grove lcd: init backlight: %w", err)
		}
	}
	return l, nil
}

// SetText clears the screen and writes text, wrapping after 16 characters
// or at '\n'. Anything past the second line is dropped.
func (l *GroveLCD) SetText(text string) error {
	if err := l.command(lcdClear); err != nil {
		return err
	}
	l.sleep()
	if err := l.command(lcdDisplayOn); err != nil {
		return err
	}
	if err := l.command(lcdTwoLines); err != nil {
		return err
	}
	l.sleep()

	col, row := 0, 0
	for _, r := range text {
		if r == '\n' || col == lcdColumns {
			col = 0
			row++
			if row == lcdRows {
				break
			}
			if err := l.command(lcdSecondLine); err != nil {
				return err
			}
			if r == '\n' {
				continue
			}
		}
		if r > 0x7E || r < 0x20 {
			r = '?'
		}
		if _, err := l.text.Write([]byte{lcdDataPrefix, byte(r)}); err != nil {
			return fmt.Errorf("grove lcd: write data: %w", err)
		}
		col++
	}
	return nil
}

func (l *GroveLCD) SetColor(ind Indicator) error {
	var r, g, b byte
	switch ind {
	case IndicatorRed:
		r = 255
	case IndicatorGreen:
		g = 255
	}
	for _, reg := range [][2]byte{{rgbRed, r}, {rgbGreen, g}, {rgbBlue, b}} {
		if _, err := l.rgb.Write(reg[:]); err != nil {
			return fmt.Errorf("grove lcd: set backlight: %w", err)
		}
	}
	return nil
}

func (l *GroveLCD) command(cmd byte) error {
	if _, err := l.text.Write([]byte{lcdCommandPrefix, cmd}); err != nil {
		return fmt.Errorf("grove lcd: command 0x%02x: %w", cmd, err)
	}
	return nil
}

func (l *GroveLCD) sleep() {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/session"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

// lineHeight is the baseline spacing for basicfont.Face7x13.
const lineHeight = 13

// Drawer is the subset of *ssd1306.Dev the OLED sink draws on.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLED renders session output on a 128x64 monochrome display. Draw errors
// are logged and do not reach the session.
type OLED struct {
	mu  sync.Mutex
	dev Drawer
	th  throttle
}

// OpenOLED initializes an SSD1306 on bus.
func OpenOLED(bus i2c.Bus, clock timeutil.Clock, interval time.Duration) (*OLED, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: init ssd1306: %w", err)
	}
	log.Printf("display: ssd1306 initialized (%v)", dev.Bounds().Size())
	o := NewOLED(dev, clock, interval)
	o.splash()
	return o, nil
}

// NewOLED draws on dev, showing at most one readout per interval.
func NewOLED(dev Drawer, clock timeutil.Clock, interval time.Duration) *OLED {
	return &OLED{dev: dev, th: throttle{clock: clock, interval: interval}}
}

func (o *OLED) Status(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.th.reset()
	o.show("Gyro Odometer", "", msg)
}

func (o *OLED) Readout(r gyro.Rates) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.th.allow() {
		return
	}
	o.show(
		"Recording",
		fmt.Sprintf("X:%+7.2f", r.X),
		fmt.Sprintf("Y:%+7.2f", r.Y),
		fmt.Sprintf("Z:%+7.2f", r.Z),
	)
}

func (o *OLED) Result(r session.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r.Fault != nil {
		o.show("Aborted", fmt.Sprintf("%d samples", r.Samples), "Sensor fault")
		return
	}
	lines := []string{"Distance", fmt.Sprintf("%.2f m", r.Distance), fmt.Sprintf("%d samples", r.Samples)}
	if r.Dropped > 0 {
		lines = append(lines, fmt.Sprintf("%d dropped", r.Dropped))
	}
	o.show(lines...)
}

func (o *OLED) splash() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.show("Gyro Odometer", "", "Relabs Tech")
}

// show draws up to four text lines. Callers hold o.mu.
func (o *OLED) show(lines ...string) {
	img := render(o.dev.Bounds(), lines)
	if err := o.dev.Draw(o.dev.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

// render draws lines onto a blank frame.
func render(bounds image.Rectangle, lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		y := lineHeight * (i + 1)
		if y > bounds.Dy() {
			break
		}
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(line)
	}
	return img
}

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

// displayData holds the latest reading for the OLED refresh loop.
type displayData struct {
	mu      sync.RWMutex
	reading telemetry.Reading
	have    bool
}

// RunDisplay drives a 128x64 SSD1306 OLED showing the latest water level,
// gas value and status from the telemetry topic.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("display: periph host init: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("display: I2C open: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: SSD1306 init: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r telemetry.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: reading unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.reading = r
		data.have = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTelemetry)

	ticker := time.NewTicker(time.Duration(cfg.ReadIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		data.mu.RLock()
		r, have := data.reading, data.have
		data.mu.RUnlock()

		if err := drawReading(dev, r, have); err != nil {
			log.Printf("display: draw error: %v", err)
		}
	}
	return nil
}

func drawReading(dev *ssd1306.Dev, r telemetry.Reading, have bool) error {
	img := image1bit.NewVerticalLSB(dev.Bounds())

	drawText(img, 0, 12, "DrainGuard")
	if !have {
		drawText(img, 0, 32, "waiting for data...")
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	water := fmt.Sprintf("water: %.2f cm", r.WaterLevel)
	if r.WaterLevel == telemetry.InvalidWaterLevel {
		water = "water: no echo"
	}
	drawText(img, 0, 28, water)
	drawText(img, 0, 42, fmt.Sprintf("gas:   %d", r.GasLevel))
	drawText(img, 0, 56, fmt.Sprintf("state: %s", r.Status))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func drawText(img *image1bit.VerticalLSB, x, y int, text string) {
	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

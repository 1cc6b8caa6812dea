package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

// RunConsole subscribes to the telemetry and event topics and prints each
// record in a fixed-width, glanceable format.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	telToken := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r telemetry.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: reading unmarshal error: %v", err)
			return
		}

		water := fmt.Sprintf("%7.2fcm", r.WaterLevel)
		if r.WaterLevel == telemetry.InvalidWaterLevel {
			water = "  (no echo)"
		}
		fmt.Printf("[DRAIN] #%06d  water=%s  gas=%4d  uptime=%5ds  status=%s\n",
			r.Index, water, r.GasLevel, r.Uptime, r.Status)
	})
	telToken.Wait()
	if telToken.Error() != nil {
		return telToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTelemetry)

	evToken := client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var b telemetry.Boot
		if err := json.Unmarshal(msg.Payload(), &b); err != nil {
			log.Printf("console: event unmarshal error: %v", err)
			return
		}
		fmt.Printf("[EVENT] %s firmware=%s interval=%dms\n", b.Event, b.Firmware, b.IntervalMS)
	})
	evToken.Wait()
	if evToken.Error() != nil {
		return evToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEvents)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

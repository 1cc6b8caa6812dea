package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/csvlog"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

// RunReader opens the node's serial port, validates the JSON telemetry
// lines, and republishes them to MQTT. Boot/event records go to the events
// topic; malformed or out-of-range lines are counted and dropped.
func RunReader() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDReader)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("reader: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Optional CSV log of everything that passes validation ----
	var csvLogger *csvlog.Logger
	if cfg.CSVLogPath != "" {
		var err error
		csvLogger, err = csvlog.New(cfg.CSVLogPath, cfg.CSVMaxRows)
		if err != nil {
			return err
		}
		log.Printf("reader: logging readings to %s", cfg.CSVLogPath)
	}

	// ---- 3) Open node serial port ----
	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.SerialPort,
		BaudRate:        uint(cfg.SerialBaud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("reader: serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaud)

	reader := bufio.NewReader(port)

	var readings, dropped uint64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("reader: serial read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		// The node may also log plain text on the same channel; telemetry
		// lines are always JSON objects.
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		reading, isEvent, err := telemetry.ParseLine([]byte(line))
		if err != nil {
			dropped++
			continue
		}

		if isEvent {
			// A boot record after a gap means the node (or its watchdog)
			// restarted; worth surfacing.
			log.Printf("reader: node event: %s", line)
			if token := client.Publish(cfg.TopicEvents, 0, true, []byte(line)); token.Wait() && token.Error() != nil {
				log.Printf("reader: MQTT publish error (event): %v", token.Error())
			}
			continue
		}

		if !reading.InRange() {
			log.Printf("reader: out-of-range reading dropped: water=%.2f gas=%d",
				reading.WaterLevel, reading.GasLevel)
			dropped++
			continue
		}

		reading.Timestamp = time.Now().Format(time.RFC3339)

		payload, err := json.Marshal(reading)
		if err != nil {
			log.Printf("reader: JSON marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicTelemetry, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("reader: MQTT publish error: %v", token.Error())
			continue
		}

		if csvLogger != nil {
			if err := csvLogger.Append(reading); err != nil {
				log.Printf("reader: CSV log error: %v", err)
			}
		}

		readings++
		if readings%100 == 0 {
			log.Printf("reader: %d readings forwarded, %d dropped", readings, dropped)
		}
	}
}

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/drainguard_node/internal/config"
	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

// Metrics exposed to Prometheus from the live telemetry stream.
var (
	gaugeWaterLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drain_water_level_cm",
		Help: "Latest filtered water level (distance from sensor to surface, cm); -1 when the ranging batch timed out",
	})
	gaugeGasLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drain_gas_level",
		Help: "Latest smoothed gas reading (ADC-native units)",
	})
	counterReadings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drain_readings_total",
		Help: "Telemetry readings received",
	})
	counterAnomalies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drain_anomalies_total",
		Help: "Readings classified as anomalous",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(gaugeWaterLevel)
	prometheus.MustRegister(gaugeGasLevel)
	prometheus.MustRegister(counterReadings)
	prometheus.MustRegister(counterAnomalies)
}

var upgrader = websocket.Upgrader{
	// The dashboard is served from the same host; no origin policy needed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// webState fans the latest reading out to HTTP and websocket clients.
type webState struct {
	mu    sync.RWMutex
	last  telemetry.Reading
	have  bool
	conns map[*websocket.Conn]bool
}

func (s *webState) update(r telemetry.Reading, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
	s.have = true

	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("web: websocket write error: %v", err)
			}
			conn.Close()
			delete(s.conns, conn)
		}
	}
}

// RunWeb subscribes to the telemetry topic and serves the latest reading as
// JSON, a websocket live stream, and Prometheus metrics.
func RunWeb() error {
	cfg := config.Get()
	state := &webState{conns: make(map[*websocket.Conn]bool)}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe and keep the latest reading + metrics fresh
	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r telemetry.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: payload unmarshal error: %v", err)
			return
		}

		gaugeWaterLevel.Set(r.WaterLevel)
		gaugeGasLevel.Set(float64(r.GasLevel))
		counterReadings.Inc()
		if r.Anomaly {
			counterAnomalies.WithLabelValues(string(r.Status)).Inc()
		}

		state.update(r, msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicTelemetry)

	// 3) JSON API endpoint: latest reading
	http.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.have {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.last); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket live stream: every reading as it arrives
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}

		state.mu.Lock()
		state.conns[conn] = true
		state.mu.Unlock()
		log.Printf("web: websocket client connected (%s)", r.RemoteAddr)
	})

	// 5) Prometheus metrics
	http.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	// 6) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

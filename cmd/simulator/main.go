package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/geolock/internal/fetcher"
	"github.com/ukydev/geolock/internal/models"
	"github.com/ukydev/geolock/internal/parser"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Cities the target travels between
var cities = []Location{
	{Lat: 51.5074, Lon: -0.1278},   // London
	{Lat: 40.7128, Lon: -74.0060},  // New York
	{Lat: 40.4168, Lon: -3.7038},   // Madrid
	{Lat: 35.1856, Lon: 33.3823},   // Nicosia
	{Lat: 4.7110, Lon: -74.0721},   // Bogotá
	{Lat: 48.8566, Lon: 2.3522},    // Paris
	{Lat: 41.0082, Lon: 28.9784},   // Istanbul
	{Lat: 51.4816, Lon: -3.1791},   // Cardiff
	{Lat: 34.0522, Lon: -118.2437}, // Los Angeles
	{Lat: 37.7749, Lon: -122.4194}, // San Francisco
	{Lat: 52.5200, Lon: 13.4050},   // Berlin
	{Lat: 35.6762, Lon: 139.6503},  // Tokyo
	{Lat: -33.8688, Lon: 151.2093}, // Sydney
	{Lat: 1.3521, Lon: 103.8198},   // Singapore
	{Lat: 43.6532, Lon: -79.3832},  // Toronto
}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func haversineKm(a, b Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

func lerp(a, b Location, t float64) Location {
	return Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}

// --- Routing & movement ---

type Route struct {
	Points    []Location
	SegIndex  int
	SegOffset float64 // km along current segment
}

type Target struct {
	Position Location
	SpeedKmh float64
	Route    *Route
}

// fetchOSRMRoute asks an OSRM server for a driving route between two points.
func fetchOSRMRoute(baseURL string, start, end Location) ([]Location, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson", baseURL, start.Lon, start.Lat, end.Lon, end.Lat)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("no route")
	}
	coords := obj.Routes[0].Geometry.Coordinates
	pts := make([]Location, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, Location{Lat: c[1], Lon: c[0]})
	}
	return pts, nil
}

// planRoute picks a destination city at least 50km away. Without an OSRM
// server (or when it fails) the route is a straight line.
func planRoute(s *Target, osrmURL string) {
	start := s.Position
	end := jitterLocation(start, 2000)
	for i := 0; i < 10; i++ {
		cand := cities[rand.Intn(len(cities))]
		if haversineKm(start, cand) > 50 {
			end = jitterLocation(cand, 500)
			break
		}
	}
	if osrmURL != "" {
		pts, err := fetchOSRMRoute(osrmURL, start, end)
		if err == nil {
			s.Route = &Route{Points: pts}
			return
		}
		log.WithError(err).Warn("OSRM routing failed, travelling in a straight line")
	}
	s.Route = &Route{Points: []Location{start, end}}
}

func stepAlongRoute(s *Target, tickSec float64, osrmURL string) {
	if s.Route == nil || len(s.Route.Points) < 2 {
		planRoute(s, osrmURL)
	}
	remKm := s.SpeedKmh * (tickSec / 3600.0)
	for remKm > 0 && s.Route.SegIndex < len(s.Route.Points)-1 {
		a := s.Route.Points[s.Route.SegIndex]
		b := s.Route.Points[s.Route.SegIndex+1]
		segLen := haversineKm(a, b)
		leftOnSeg := segLen - s.Route.SegOffset
		if remKm >= leftOnSeg {
			s.Position = b
			s.Route.SegIndex++
			s.Route.SegOffset = 0
			remKm -= leftOnSeg
			continue
		}
		t := math.Min(math.Max((s.Route.SegOffset+remKm)/segLen, 0), 1)
		s.Position = lerp(a, b, t)
		s.Route.SegOffset += remKm
		remKm = 0
	}
	if s.Route.SegIndex >= len(s.Route.Points)-1 {
		planRoute(s, osrmURL)
	}
}

// locationMessage renders the chat line the tracker looks for.
func locationMessage(loc Location) string {
	round := func(v float64) float64 { return math.Round(v*1e6) / 1e6 }
	c := models.NewCoordinate(round(loc.Lat), round(loc.Lon))
	return "Status update. " + parser.Marker + " " + c.String()
}

// Publisher sends one message to the tracker's source.
type Publisher interface {
	Publish(payload string) error
}

type mqttPublisher struct {
	client mqtt.Client
	topic  string
}

func (p *mqttPublisher) Publish(payload string) error {
	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

func simulate(ctx context.Context, pub Publisher, s *Target, interval time.Duration, osrmURL string) {
	if s.Route == nil {
		planRoute(s, osrmURL)
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		s.SpeedKmh += (rand.Float64()*2 - 1) * 5
		s.SpeedKmh = math.Min(math.Max(s.SpeedKmh, 200), 900)
		stepAlongRoute(s, interval.Seconds(), osrmURL)

		msg := locationMessage(s.Position)
		if err := pub.Publish(msg); err != nil {
			log.WithError(err).Error("Failed to publish location")
			continue
		}
		log.WithFields(log.Fields{"lat": s.Position.Lat, "lon": s.Position.Lon}).Info("Published location")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	broker := getEnv("MQTT_BROKER", "tcp://localhost:1883")
	topic := getEnv("MQTT_TOPIC", fetcher.DefaultMQTTTopic)
	osrmURL := os.Getenv("OSRM_URL")

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"broker":   broker,
		"topic":    topic,
		"interval": interval,
	}).Info("Starting location simulation")

	client, err := fetcher.ConnectMQTT(fetcher.MQTTConfig{Broker: broker, ClientID: getEnv("MQTT_CLIENT_ID", "geolock-simulator")})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to broker")
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := cities[rand.Intn(len(cities))]
	target := &Target{Position: jitterLocation(start, 500), SpeedKmh: 500}
	simulate(ctx, &mqttPublisher{client: client, topic: topic}, target, interval, osrmURL)
	log.Info("Simulation stopped")
}

// Package config loads runtime settings from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/roadwatch/console/internal/domain"
)

// Default map library resources
const (
	DefaultLeafletScriptURL = "https://unpkg.com/leaflet@1.7.1/dist/leaflet.js"
	DefaultLeafletStyleURL  = "https://unpkg.com/leaflet@1.7.1/dist/leaflet.css"
	DefaultGeocoderURL      = "https://nominatim.openstreetmap.org"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	ReportAPIURL   string
	ReportAPIToken string
	RequestTimeout time.Duration

	GeocoderURL      string
	LeafletScriptURL string
	LeafletStyleURL  string
	UserAgent        string
	FitDelay         time.Duration
	DayNameLocale    string
	DefaultLatitude  float64
	DefaultLongitude float64

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Fixed device position used when no MQTT broker is configured
	DeviceLatitude  float64
	DeviceLongitude float64
	HasDevice       bool
}

// Load reads .env if present, then the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("GO_ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ReportAPIURL:   getEnv("REPORT_API_URL", "https://react-gpsapi.vercel.app/api"),
		ReportAPIToken: getEnv("REPORT_API_TOKEN", ""),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),

		GeocoderURL:      getEnv("GEOCODER_URL", DefaultGeocoderURL),
		LeafletScriptURL: getEnv("LEAFLET_SCRIPT_URL", DefaultLeafletScriptURL),
		LeafletStyleURL:  getEnv("LEAFLET_STYLE_URL", DefaultLeafletStyleURL),
		UserAgent:        getEnv("USER_AGENT", "roadwatch-console/1.0"),
		FitDelay:         getEnvDuration("FIT_DELAY", 200*time.Millisecond),
		DayNameLocale:    getEnv("DAY_NAME_LOCALE", "en"),
		DefaultLatitude:  getEnvFloat("DEFAULT_LAT", domain.DefaultCenterLat),
		DefaultLongitude: getEnvFloat("DEFAULT_LON", domain.DefaultCenterLon),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "devices/+/location/solved"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "roadwatch-console"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
	}

	if !domain.ValidLatLon(cfg.DefaultLatitude, cfg.DefaultLongitude) {
		log.Printf("[config] default center (%f, %f) out of range, using Paris", cfg.DefaultLatitude, cfg.DefaultLongitude)
		cfg.DefaultLatitude, cfg.DefaultLongitude = domain.DefaultCenterLat, domain.DefaultCenterLon
	}

	lat, latOK := os.LookupEnv("DEVICE_LAT")
	lon, lonOK := os.LookupEnv("DEVICE_LON")
	if latOK && lonOK {
		dLat, errLat := strconv.ParseFloat(lat, 64)
		dLon, errLon := strconv.ParseFloat(lon, 64)
		if errLat == nil && errLon == nil && domain.ValidLatLon(dLat, dLon) {
			cfg.DeviceLatitude, cfg.DeviceLongitude, cfg.HasDevice = dLat, dLon, true
		} else {
			log.Printf("[config] ignoring invalid DEVICE_LAT/DEVICE_LON %q, %q", lat, lon)
		}
	}

	return cfg
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("[config] %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("[config] %s=%q is not a number, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are milliseconds
		if ms := getEnvInt(key, -1); ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// Package config loads the daemon configuration from defaults, an optional
// YAML file and dotenv files, and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/fret-sensor/internal/adc"
	"github.com/sweeney/fret-sensor/internal/gpio"
	"github.com/sweeney/fret-sensor/internal/logic"
)

// Store kinds.
const (
	StoreMQTT = "mqtt"
	StoreRTDB = "rtdb"
)

// DefaultEnvFiles are loaded, if present, before flags are parsed.
// pi-helper writes network state to /run/pi-helper.env.
var DefaultEnvFiles = []string{"/run/pi-helper.env", ".env"}

// Config is the complete daemon configuration.
type Config struct {
	Threshold int           `yaml:"threshold"`
	Interval  time.Duration `yaml:"interval"`
	Tick      time.Duration `yaml:"tick"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	HTTPAddr  string        `yaml:"http_addr"`

	Channels []ChannelConfig `yaml:"channels"`
	ADC      ADCConfig       `yaml:"adc"`
	LED      LEDConfig       `yaml:"led"`
	Store    StoreConfig     `yaml:"store"`
}

// ChannelConfig describes one flex sensor. Its index is its position in the list.
type ChannelConfig struct {
	Pin int `yaml:"pin"`
}

// ADCConfig selects the IIO device the sensors are wired to.
type ADCConfig struct {
	Device string `yaml:"device"`
}

// LEDConfig selects the LED output line and the channel that drives it.
// Channel -1 disables the LED.
type LEDConfig struct {
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
	Channel int    `yaml:"channel"`
}

// StoreConfig selects and configures the remote store.
type StoreConfig struct {
	Kind string     `yaml:"kind"`
	MQTT MQTTConfig `yaml:"mqtt"`
	RTDB RTDBConfig `yaml:"rtdb"`
}

// MQTTConfig configures the MQTT store.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// RTDBConfig configures the Realtime Database store.
type RTDBConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Default returns the configuration of the reference build: one flex sensor
// on ADC input 4 driving the LED on line 13, publishing over MQTT.
func Default() Config {
	return Config{
		Threshold: logic.DefaultThreshold,
		Interval:  logic.DefaultInterval,
		Tick:      10 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		HTTPAddr:  ":80",
		Channels:  []ChannelConfig{{Pin: 4}},
		ADC:       ADCConfig{Device: adc.DefaultDevice},
		LED: LEDConfig{
			Chip:    gpio.DefaultChip,
			Line:    gpio.DefaultLine,
			Channel: 0,
		},
		Store: StoreConfig{
			Kind: StoreMQTT,
			MQTT: MQTTConfig{Broker: "tcp://192.168.1.200:1883"},
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads the dotenv files that exist into the process environment.
// Variables already set are not overridden. Returns the files that were loaded.
func LoadEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("load env file %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("config: at least one channel is required")
	}
	for i, ch := range c.Channels {
		if ch.Pin < 0 {
			return fmt.Errorf("config: channel %d: pin must be >= 0", i)
		}
	}
	if c.Threshold < 1 || c.Threshold > adc.MaxRaw+1 {
		return fmt.Errorf("config: threshold %d outside 1..%d", c.Threshold, adc.MaxRaw+1)
	}
	if c.Interval <= 0 {
		return errors.New("config: interval must be > 0")
	}
	if c.Tick <= 0 {
		return errors.New("config: tick must be > 0")
	}
	if c.Heartbeat < 0 {
		return errors.New("config: heartbeat must be >= 0")
	}
	if c.LED.Channel < -1 || c.LED.Channel >= len(c.Channels) {
		return fmt.Errorf("config: led channel %d outside -1..%d", c.LED.Channel, len(c.Channels)-1)
	}
	if c.LED.Channel >= 0 && c.LED.Chip == "" {
		return errors.New("config: led chip is required")
	}

	switch c.Store.Kind {
	case StoreMQTT:
		if c.Store.MQTT.Broker == "" {
			return errors.New("config: mqtt broker is required")
		}
	case StoreRTDB:
		if c.Store.RTDB.URL == "" {
			return errors.New("config: rtdb url is required")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// LogicChannels converts the channel list to indexed logic channels, marking
// the LED channel as actuated.
func (c Config) LogicChannels() []logic.Channel {
	out := make([]logic.Channel, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = logic.Channel{
			Index:    i,
			Pin:      ch.Pin,
			Actuated: i == c.LED.Channel,
		}
	}
	return out
}

// Pins returns the ADC pin of every channel in index order.
func (c Config) Pins() []int {
	pins := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		pins[i] = ch.Pin
	}
	return pins
}

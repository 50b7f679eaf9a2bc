package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	Environment   string        `yaml:"environment"` // "dev" or "prod"
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Booking       BookingConfig `yaml:"booking"`
	Notify        NotifyConfig  `yaml:"notify"`
	Push          PushConfig    `yaml:"push"`
	SMS           SMSConfig     `yaml:"sms"`
}

// BookingConfig holds booking-domain knobs.
type BookingConfig struct {
	// ImmediateOffsetMinutes is the lead time given to an immediate job:
	// due = now + offset.
	ImmediateOffsetMinutes int `yaml:"immediate_offset_minutes"`
	// SupportPhone is quoted to translators who try to cancel inside the
	// 24h window; that path is handled by a human.
	SupportPhone string `yaml:"support_phone"`
	// ExpirySweepInterval is how often pending jobs are checked against
	// their will_expire_at.
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
}

// NotifyConfig defines the quiet-hours window and the business-day resume
// point used for delayed pushes. Times are "HH:MM" wall clock.
type NotifyConfig struct {
	NightStart    string `yaml:"night_start"`
	NightEnd      string `yaml:"night_end"`
	BusinessStart string `yaml:"business_start"`
}

type PushApp struct {
	AppID  string `yaml:"app_id"`
	APIKey string `yaml:"api_key"`
}

type PushConfig struct {
	BaseURL string        `yaml:"base_url"`
	Prod    PushApp       `yaml:"prod"`
	Dev     PushApp       `yaml:"dev"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// App returns the credentials matching the runtime environment.
func (p PushConfig) App(environment string) PushApp {
	if environment == "prod" {
		return p.Prod
	}
	return p.Dev
}

type SMSConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	FromNumber string        `yaml:"from_number"`
	Timeout    time.Duration `yaml:"timeout"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("TOLKA_ADDR", ":8080"),
		Environment:   getEnv("TOLKA_ENV", "dev"),
		JWTSecret:     getEnv("TOLKA_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("TOLKA_DATABASE_PATH", "tolka.db"),
		TokenDuration: 1 * time.Hour,
		Booking: BookingConfig{
			ImmediateOffsetMinutes: 5,
			SupportPhone:           getEnv("TOLKA_SUPPORT_PHONE", "+46 73 75 86 865"),
			ExpirySweepInterval:    time.Minute,
		},
		Notify: NotifyConfig{
			NightStart:    "22:00",
			NightEnd:      "06:00",
			BusinessStart: "09:00",
		},
		Push: PushConfig{
			BaseURL: getEnv("TOLKA_PUSH_URL", "https://onesignal.com/api/v1/notifications"),
			Prod:    PushApp{AppID: os.Getenv("TOLKA_PUSH_PROD_APP_ID"), APIKey: os.Getenv("TOLKA_PUSH_PROD_API_KEY")},
			Dev:     PushApp{AppID: os.Getenv("TOLKA_PUSH_DEV_APP_ID"), APIKey: os.Getenv("TOLKA_PUSH_DEV_API_KEY")},
			Timeout: 10 * time.Second,
			Retries: 3,
			Backoff: 500 * time.Millisecond,
		},
		SMS: SMSConfig{
			Endpoint:   os.Getenv("TOLKA_SMS_ENDPOINT"),
			FromNumber: os.Getenv("TOLKA_SMS_NUMBER"),
			Timeout:    10 * time.Second,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

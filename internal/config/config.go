package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the webhook process.
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
//
// Two tiers:
// - Required options fail fast at startup, naming every missing variable.
// - Optional options (Email, Extract, Speech, Redis) silently disable the
//   corresponding feature; the absence is logged once at startup.
type Config struct {
	App     AppConfig
	Twilio  TwilioConfig
	Hours   HoursConfig
	Session SessionConfig
	Email   EmailConfig
	Extract ExtractConfig
	Speech  SpeechConfig
	Redis   RedisConfig
	Urgency UrgencyConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BusinessName is spoken and written into every caller-facing template.
	BusinessName string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// Number is the caller-facing Twilio number.
	Number string
	// OwnerNumber receives notifications and urgent callbacks.
	OwnerNumber string
	// ForwardNumber is the live-dial target during business hours.
	ForwardNumber string

	// AnswerMinSeconds is the tier-3 answered-duration threshold.
	AnswerMinSeconds int
}

type HoursConfig struct {
	Timezone string

	WeekdayOpen   int
	WeekdayClose  int
	SaturdayOpen  int
	SaturdayClose int
}

type SessionConfig struct {
	// Secret signs the turn-correlation token.
	Secret string
	TTL    time.Duration
}

type EmailConfig struct {
	Host     string
	Port     string
	From     string
	To       string
	Username string
	Password string
}

func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.From != "" && c.To != ""
}

type ExtractConfig struct {
	APIKey string
	Model  string
}

func (c ExtractConfig) Enabled() bool { return c.APIKey != "" }

type SpeechConfig struct {
	APIKey  string
	VoiceID string
	// PublicBaseURL is the externally reachable address serving /audio.
	PublicBaseURL string
}

func (c SpeechConfig) Enabled() bool {
	return c.APIKey != "" && c.VoiceID != "" && c.PublicBaseURL != ""
}

type RedisConfig struct {
	Host string
	Port int
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

type UrgencyConfig struct {
	// Keywords overrides the compiled-in emergency keyword list
	// (comma-separated in URGENT_KEYWORDS).
	Keywords []string
	// GazetteerFile overrides the compiled-in suburb list, one name per line.
	GazetteerFile string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.BusinessName = strings.TrimSpace(os.Getenv("BUSINESS_NAME"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.Number = strings.TrimSpace(os.Getenv("TWILIO_NUMBER"))
	c.Twilio.OwnerNumber = strings.TrimSpace(os.Getenv("OWNER_NUMBER"))
	c.Twilio.ForwardNumber = strings.TrimSpace(os.Getenv("FORWARD_NUMBER"))
	c.Twilio.AnswerMinSeconds = optInt("ANSWER_MIN_SECONDS", 12)

	c.Hours.Timezone = strings.TrimSpace(os.Getenv("TIMEZONE"))
	c.Hours.WeekdayOpen = optInt("HOURS_WEEKDAY_OPEN", 7)
	c.Hours.WeekdayClose = optInt("HOURS_WEEKDAY_CLOSE", 17)
	c.Hours.SaturdayOpen = optInt("HOURS_SATURDAY_OPEN", 7)
	c.Hours.SaturdayClose = optInt("HOURS_SATURDAY_CLOSE", 12)

	c.Session.Secret = os.Getenv("SESSION_SECRET")
	c.Session.TTL = optDuration("SESSION_TTL", 10*time.Minute)

	c.Email.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.Email.Port = strings.TrimSpace(os.Getenv("SMTP_PORT"))
	c.Email.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))
	c.Email.To = strings.TrimSpace(os.Getenv("SMTP_TO"))
	c.Email.Username = strings.TrimSpace(os.Getenv("SMTP_USER"))
	c.Email.Password = os.Getenv("SMTP_PASSWORD")

	c.Extract.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Extract.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))

	c.Speech.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.Speech.VoiceID = strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE"))
	c.Speech.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379)

	if v := strings.TrimSpace(os.Getenv("URGENT_KEYWORDS")); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Urgency.Keywords = append(c.Urgency.Keywords, k)
			}
		}
	}
	c.Urgency.GazetteerFile = strings.TrimSpace(os.Getenv("GAZETTEER_FILE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BusinessName == "" {
		errs = append(errs, errors.New("BUSINESS_NAME is required"))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.Number == "" {
		errs = append(errs, errors.New("TWILIO_NUMBER is required"))
	}
	if c.Twilio.OwnerNumber == "" {
		errs = append(errs, errors.New("OWNER_NUMBER is required"))
	}
	if c.Twilio.ForwardNumber == "" {
		errs = append(errs, errors.New("FORWARD_NUMBER is required"))
	}

	if c.Hours.Timezone == "" {
		errs = append(errs, errors.New("TIMEZONE is required"))
	}
	for _, h := range []struct {
		name string
		v    int
	}{
		{"HOURS_WEEKDAY_OPEN", c.Hours.WeekdayOpen},
		{"HOURS_WEEKDAY_CLOSE", c.Hours.WeekdayClose},
		{"HOURS_SATURDAY_OPEN", c.Hours.SaturdayOpen},
		{"HOURS_SATURDAY_CLOSE", c.Hours.SaturdayClose},
	} {
		if h.v < 0 || h.v > 23 {
			errs = append(errs, fmt.Errorf("%s must be an hour of day, got %d", h.name, h.v))
		}
	}

	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	if c.Redis.Enabled() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.App.Port) }

func (c Config) RedisAddr() string { return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port) }

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}

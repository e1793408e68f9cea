package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App: AppConfig{Env: "local", Port: 8080, BusinessName: "Vale Plumbing"},
		Twilio: TwilioConfig{
			AccountSID: "AC123", AuthToken: "tok",
			Number: "+15550001111", OwnerNumber: "+15550009999", ForwardNumber: "+15550008888",
		},
		Hours:   HoursConfig{Timezone: "Australia/Sydney", WeekdayOpen: 7, WeekdayClose: 17, SaturdayOpen: 7, SaturdayClose: 12},
		Session: SessionConfig{Secret: "s3cret", TTL: 10 * time.Minute},
	}
}

func TestValidate_ReportsAllMissingRequired(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "TWILIO_ACCOUNT_SID", "OWNER_NUMBER", "TIMEZONE", "SESSION_SECRET", "BUSINESS_NAME"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error should name %s:\n%v", want, err)
		}
	}
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OptionalTiersStayOptional(t *testing.T) {
	c := validConfig()
	if c.Email.Enabled() || c.Extract.Enabled() || c.Speech.Enabled() || c.Redis.Enabled() {
		t.Fatalf("optional features must be off by default")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("missing optional config must not fail validation: %v", err)
	}
}

func TestValidate_RejectsBadHours(t *testing.T) {
	c := validConfig()
	c.Hours.WeekdayClose = 25
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for out-of-range hour")
	}
}

func TestValidate_RedisPortOnlyCheckedWhenEnabled(t *testing.T) {
	c := validConfig()
	c.Redis = RedisConfig{Host: "localhost", Port: 0}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for enabled redis with bad port")
	}
	c.Redis = RedisConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled redis must not be validated: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradecall/internal/config"
	"tradecall/internal/dialog"
	"tradecall/internal/extract"
	"tradecall/internal/gazetteer"
	"tradecall/internal/hours"
	"tradecall/internal/httpapi"
	"tradecall/internal/notify"
	"tradecall/internal/outcome"
	"tradecall/internal/session"
	"tradecall/internal/speech"
	"tradecall/internal/telephony"
	"tradecall/internal/urgency"
	"tradecall/pkg/logger"
	"tradecall/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.Hours.Timezone)
	if err != nil {
		log.Error("timezone load failed", "tz", cfg.Hours.Timezone, "err", err)
		os.Exit(1)
	}
	schedule := buildSchedule(cfg.Hours)
	if err := schedule.Validate(); err != nil {
		log.Error("hours schedule invalid", "err", err)
		os.Exit(1)
	}

	tokens, err := session.NewTokenCodec(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		log.Error("token codec init failed", "err", err)
		os.Exit(1)
	}

	var store session.Store
	if cfg.Redis.Enabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, cfg.Session.TTL)
		log.Info("session store: redis", "addr", cfg.RedisAddr())
	} else {
		ms := session.NewMemoryStore(cfg.Session.TTL)
		ms.StartSweeper(rootCtx, time.Minute)
		store = ms
		log.Info("session store: in-process memory")
	}

	rest := telephony.NewRestClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.Number)

	var email notify.EmailSender
	if cfg.Email.Enabled() {
		email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		})
	} else {
		log.Info("email notifications disabled (SMTP_* unset)")
	}

	notifier := notify.New(rest, rest, email, cfg.Twilio.OwnerNumber, cfg.App.BusinessName, log)

	places := gazetteer.DefaultSuburbs
	if cfg.Urgency.GazetteerFile != "" {
		places, err = gazetteer.LoadFile(cfg.Urgency.GazetteerFile)
		if err != nil {
			log.Error("gazetteer load failed", "err", err)
			os.Exit(1)
		}
		log.Info("gazetteer loaded", "file", cfg.Urgency.GazetteerFile, "places", len(places))
	}

	var extractor extract.Extractor = extract.Disabled{}
	if cfg.Extract.Enabled() {
		extractor = extract.NewOpenAI(cfg.Extract.APIKey, cfg.Extract.Model, "", log)
	} else {
		log.Info("lead extraction disabled (OPENAI_API_KEY unset), using raw transcripts")
	}

	machine := dialog.NewMachine(store, gazetteer.New(places), extractor,
		urgency.New(cfg.Urgency.Keywords), notifier, log)

	var tts speech.Synthesizer
	if cfg.Speech.Enabled() {
		tts = speech.NewElevenLabs(cfg.Speech.APIKey, cfg.Speech.VoiceID)
	} else {
		log.Info("voice synthesis disabled, using platform voice")
	}

	h := httpapi.Handlers{
		Cfg:      cfg,
		Schedule: schedule,
		Location: loc,
		Machine:  machine,
		Outcome:  outcome.Classifier{MinAnsweredSeconds: cfg.Twilio.AnswerMinSeconds},
		Notifier: notifier,
		Tokens:   tokens,
		TTS:      tts,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("webhook listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// buildSchedule maps the flat env hours onto the weekly schedule. A zero
// open/close pair (open == close) keeps that day closed, so Sunday needs no
// special case.
func buildSchedule(h config.HoursConfig) hours.Schedule {
	s := hours.Schedule{}
	for d := time.Monday; d <= time.Friday; d++ {
		s[d] = []hours.Window{{Open: h.WeekdayOpen, Close: h.WeekdayClose}}
	}
	if h.SaturdayOpen != h.SaturdayClose {
		s[time.Saturday] = []hours.Window{{Open: h.SaturdayOpen, Close: h.SaturdayClose}}
	}
	return s
}

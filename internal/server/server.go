package server

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"scoutloot/internal/client"
	"scoutloot/internal/database"
	"scoutloot/internal/matcher"
)

type Server struct {
	DB            database.Database
	Client        client.Client
	Evaluator     matcher.Evaluator
	Logger        logger
	AuthSecretKey jwk.Key
	IngestKey     string
	SiteURL       string

	// Policy knobs, see configuration.Config.
	TokenValidity             time.Duration
	ReminderDelay             time.Duration
	ReminderDiscountThreshold float64
	PruneRetention            time.Duration
}

type logger interface {
	Trace(v ...any)
	Debug(v ...any)
	Info(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

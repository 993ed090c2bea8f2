// Package config declares the go-flags-tagged option groups for the
// collabsyncd binary.
package config

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// SyncConfig tunes the Stream Observer's fault-handling behavior.
type SyncConfig struct {
	Debounce    time.Duration `long:"debounce" env:"DEBOUNCE" default:"3s" description:"Coalescing delay between a detected gap and the catch-up it triggers"`
	StrikeLimit uint32        `long:"strike-limit" env:"STRIKE_LIMIT" default:"2" description:"Consecutive ack-leads-broadcast observations before raising MissUpdates"`
}

// LogConfig tunes logrus's global logger (level + format flags applied to
// the standard logger).
type LogConfig struct {
	Level  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Logging level: debug, info, warn, error"`
	Format string `long:"log-format" env:"LOG_FORMAT" default:"text" description:"Logging format: text or json"`
}

// Apply configures the standard logrus logger from the parsed LogConfig.
func (c LogConfig) Apply() error {
	var level, err = log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

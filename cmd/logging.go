package cmd

import (
	"github.com/achilleasa/mtsblend/config"
	"github.com/achilleasa/mtsblend/log"
	"github.com/urfave/cli"
)

var logger = log.New("mtsblend")

// Apply the configured log level; -v and -vv take precedence.
func setupLogging(ctx *cli.Context, cfg *config.Config) {
	if cfg != nil {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			logger.Warningf("ignoring configured log level: %s", err)
		} else {
			log.SetLevel(level)
		}
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

package main

import (
	"flag"
	"log"
	"os"

	"github.com/avstrong/hotel/internal/app"
	"github.com/avstrong/hotel/internal/config"
	"github.com/avstrong/hotel/internal/logger"
)

func main() {
	path := flag.String("config", os.Getenv("HOTEL_CONFIG"), "path to a YAML config file")
	flag.Parse()

	conf, err := config.Load(*path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(logger.Config{Level: conf.Log.Level, Format: conf.Log.Format}) //nolint:exhaustruct

	var exitCode int

	if err := app.Run(l, conf); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	os.Exit(exitCode)
}

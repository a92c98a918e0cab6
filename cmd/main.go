package main

import (
	"flag"
	"fmt"
	"os"

	"dockmonitor/internal/app"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("DOCKMON_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "/app/configs/config.yaml"
		}
	}

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

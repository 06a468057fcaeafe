package main

import (
	"turnero/internal/config"
	"turnero/pkg/logger"

	"github.com/urfave/cli"
)

var version = "dev"

var (
	configDir   string
	profileFlag string
	apiFlag     string
	backendFlag string
	envFlag     string

	emailFlag    string
	passwordFlag string

	metricsAddrFlag string

	cfg *config.Config

	globalFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "directory holding config.yaml",
			Destination: &configDir,
		},
		cli.StringFlag{
			Name:        "profile",
			Usage:       "session profile (tenant slug) to use",
			EnvVar:      "TURNERO_PROFILE",
			Destination: &profileFlag,
		},
		cli.StringFlag{
			Name:        "api",
			Usage:       "API base URL, e.g. https://canchas.example.com/api",
			Destination: &apiFlag,
		},
		cli.StringFlag{
			Name:        "store",
			Usage:       "session store backend: memory, file, redis, etcd, keyring, mysql",
			Destination: &backendFlag,
		},
		cli.StringFlag{
			Name:        "log-env",
			Usage:       "logger mode: dev, prod or test",
			Value:       "dev",
			Destination: &envFlag,
		},
	}

	loginFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "email, e",
			Usage:       "account email",
			Destination: &emailFlag,
		},
		cli.StringFlag{
			Name:        "password, p",
			Usage:       "account password",
			EnvVar:      "TURNERO_PASSWORD",
			Destination: &passwordFlag,
		},
	}

	keepaliveFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "serve prometheus metrics on this address (e.g. :9100)",
			Destination: &metricsAddrFlag,
		},
	}
)

// before loads config and lets flags override it.
func before(*cli.Context) error {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	c, err := config.Load(paths...)
	if err != nil {
		return err
	}
	if profileFlag != "" {
		c.Store.Profile = profileFlag
	}
	if apiFlag != "" {
		c.Client.APIBaseURL = apiFlag
	}
	if backendFlag != "" {
		c.Store.Backend = backendFlag
	}
	cfg = c
	logger.InitLogger(envFlag)
	return nil
}

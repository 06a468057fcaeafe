package main

import (
	"fmt"
	"os"

	"turnero/pkg/logger"

	"github.com/urfave/cli"
)

const description = `turnero keeps a booking-platform session alive from the terminal.
It logs in once, persists the token pair in the configured store and
renews the access token a minute before it expires.`

func main() {
	app := cli.App{
		Name:        "turnero",
		HelpName:    "turnero",
		Usage:       "session keeper for the turnero booking API",
		UsageText:   "turnero [global options] <command> [arguments...]",
		Description: description,
		Version:     version,
		Flags:       globalFlags,
		Before:      before,
		After: func(*cli.Context) error {
			logger.Sync()
			return nil
		},
		OnUsageError: func(ctx *cli.Context, err error, _ bool) error {
			fmt.Fprintf(os.Stderr, "turnero: %s\n\n", err)
			return cli.ShowAppHelp(ctx)
		},
		Commands: []cli.Command{
			{
				Name:      "login",
				Usage:     "authenticate and persist the session",
				UsageText: "turnero login --email <email> [--password <password>]",
				Action:    login,
				Flags:     loginFlags,
			},
			{
				Name:   "whoami",
				Usage:  "print the profile of the current session",
				Action: whoami,
			},
			{
				Name:      "get",
				Usage:     "GET a path relative to the API base with the session token",
				UsageText: "turnero get /turnos/",
				Action:    get,
			},
			{
				Name:   "keepalive",
				Usage:  "restore the session and keep renewing it until interrupted",
				Action: keepalive,
				Flags:  keepaliveFlags,
			},
			{
				Name:   "logout",
				Usage:  "end the session and clear the store",
				Action: logout,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "turnero:", err)
		os.Exit(1)
	}
}

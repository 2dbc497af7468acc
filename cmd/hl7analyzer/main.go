package main

import (
	"os"

	"github.com/oarkflow/log"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.DefaultLogger.Error().Err(err).Msg("hl7analyzer failed")
		os.Exit(1)
	}
}

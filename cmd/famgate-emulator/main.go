package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/famgate/famgate/internal/emulator"
)

func main() {
	if err := emulator.Run(); err != nil {
		log.Error().Err(err).Msg("famgate-emulator exited with error")
		os.Exit(1)
	}
}

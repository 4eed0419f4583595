//go:build linux || darwin

package main

import (
	"syscall"

	"github.com/rs/zerolog/log"
)

const wantOpenFiles = 2048

// raiseFdLimit lifts RLIMIT_NOFILE to accommodate the fetcher's connection
// pool. Failure is logged, not fatal: the client semaphore still bounds
// concurrent sockets.
func raiseFdLimit() {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		log.Warn().Err(err).Msg("could not read fd limit")
		return
	}
	if rl.Cur >= wantOpenFiles {
		return
	}
	rl.Cur = wantOpenFiles
	if rl.Max < wantOpenFiles {
		rl.Max = wantOpenFiles
	}
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		log.Warn().Err(err).Uint64("want", uint64(wantOpenFiles)).Msg("could not raise fd limit")
		return
	}
	log.Info().Uint64("soft", rl.Cur).Uint64("hard", rl.Max).Msg("fd limit raised")
}

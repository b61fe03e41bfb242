package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Element ranks, matching the host framework's plugin ranks.
const (
	RankNone      uint = 0
	RankMarginal  uint = 64
	RankSecondary uint = 128
	RankPrimary   uint = 256
	// RankMax outranks every platform sink.
	RankMax uint = RankPrimary + 100
)

const (
	EnvSocketPath = "RIALTO_SOCKET_PATH"
	EnvSinksRank  = "RIALTO_SINKS_RANK"
)

// Rank returns the registration rank of the sinks and whether they should
// be registered at all. lookup is usually os.LookupEnv.
//
// The rank is RankSecondary by default and RankMax when a renderer socket
// is configured. RIALTO_SINKS_RANK overrides both; an invalid value is
// ignored with a warning and 0 disables registration.
func Rank(lookup func(string) (string, bool), log *slog.Logger) (uint, bool) {
	if log == nil {
		log = slog.Default()
	}
	rank := RankSecondary
	if _, ok := lookup(EnvSocketPath); ok {
		rank = RankMax
	}

	if s, ok := lookup(EnvSinksRank); ok {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			log.Warn("ignoring invalid sink rank", "env", EnvSinksRank, "value", s)
			return rank, true
		}
		if n == 0 {
			log.Info("sink registration disabled", "env", EnvSinksRank)
			return RankNone, false
		}
		rank = uint(n)
	}
	return rank, true
}

// RankFromEnv is Rank over the process environment.
func RankFromEnv(log *slog.Logger) (uint, bool) {
	return Rank(os.LookupEnv, log)
}

// Command collabsyncd serves the realtime hub: document rooms, presence
// rosters and cursor relays over a websocket endpoint. With a Redis address
// it joins a multi-instance deployment through pub/sub fan-out.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SheaGuev/collabsync/pkg/hub"
	"github.com/SheaGuev/collabsync/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr     = flag.String("addr", ":8080", "listen address for the realtime endpoint")
		redisURL = flag.String("redis", "", "redis address for multi-instance fan-out (empty: in-process broker)")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if !*debug {
		zl = zl.Level(zerolog.InfoLevel)
	}
	log := logger.NewZerolog(zl)

	var broker hub.Broker
	if *redisURL != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisURL})
		broker = hub.NewRedisBroker(client, log)
		log.Info("using redis broker", "addr", *redisURL)
	} else {
		broker = hub.NewMemoryBroker()
	}
	defer broker.Close()

	h := hub.New(broker, log)
	server := hub.NewServer(h, log)

	log.Info("realtime hub listening", "addr", *addr)
	return http.ListenAndServe(*addr, server.Router())
}

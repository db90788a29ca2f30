// Command waitfordb blocks until the integration test databases accept
// connections. It is used by CI before running tagged integration tests.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type settings struct {
	PostgresDSN string        `env:"TEST_POSTGRES_DSN"`
	MongoURI    string        `env:"TEST_MONGO_URI"`
	Timeout     time.Duration `env:"WAIT_FOR_DB_TIMEOUT" envDefault:"60s"`
}

const retryInterval = 2 * time.Second

func main() {
	var s settings
	if err := env.Parse(&s); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(2)
	}
	if s.PostgresDSN == "" && s.MongoURI == "" {
		fmt.Fprintln(os.Stderr, "TEST_POSTGRES_DSN or TEST_MONGO_URI is required")
		os.Exit(2)
	}
	if s.Timeout <= 0 {
		fmt.Fprintf(os.Stderr, "invalid WAIT_FOR_DB_TIMEOUT: %s\n", s.Timeout)
		os.Exit(2)
	}

	if s.PostgresDSN != "" {
		db, err := sql.Open("postgres", s.PostgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		wait("postgres", s.Timeout, db.PingContext)
	}

	if s.MongoURI != "" {
		client, err := mongo.Connect(options.Client().ApplyURI(s.MongoURI))
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect mongo: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		wait("mongo", s.Timeout, func(ctx context.Context) error { return client.Ping(ctx, nil) })
	}
}

func wait(name string, timeout time.Duration, ping func(context.Context) error) {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), retryInterval)
		err := ping(ctx)
		cancel()
		if err == nil {
			fmt.Printf("%s ready\n", name)
			return
		}
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "%s not ready within %s: %v\n", name, timeout, err)
			os.Exit(1)
		}
		time.Sleep(retryInterval)
	}
}

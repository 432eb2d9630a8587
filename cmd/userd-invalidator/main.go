// Command userd-invalidator is a Lambda function attached to the DynamoDB
// stream of the users table. It drops cache entries for users written
// outside the HTTP service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/internal/app"
	"github.com/unkn0wn-root/userd/internal/config"
	"github.com/unkn0wn-root/userd/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "userd-invalidator: config:", err)
		os.Exit(1)
	}
	if cfg.CacheProvider != "redis" || cfg.GenStore != "redis" {
		// in-process caches and generations live in the API replicas, out of reach
		fmt.Fprintln(os.Stderr, "userd-invalidator: USERD_CACHE_PROVIDER and USERD_GENSTORE must be redis")
		os.Exit(1)
	}

	log, flush, err := app.Logger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "userd-invalidator:", err)
		os.Exit(1)
	}
	defer flush()

	rdb := app.RedisClient(cfg)
	defer rdb.Close()

	// fail closed so Lambda retries the batch when Redis is unreachable
	cc, err := app.NewCache(context.Background(), cfg, log, goredis.UniversalClient(rdb), true)
	if err != nil {
		log.Error("cache init failed", userd.Fields{"err": err})
		os.Exit(1)
	}
	defer cc.Close(context.Background())

	lambda.Start(stream.NewHandler(cc.Users, log).HandleInvalidate)
}

package neo4jdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

// connectRetryCap bounds the total time spent verifying reachability at startup.
const connectRetryCap = 30 * time.Second

// Client owns the process-wide Neo4j driver. One instance is shared by the
// graph store and, when the Neo4j vector provider is active, the vector store.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, fmt.Errorf("neo4jdb: missing NEO4J_URI")
	}

	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	timeoutSec := 10
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxPool := 50
	if v := strings.TrimSpace(os.Getenv("NEO4J_MAX_POOL_SIZE")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxPool = parsed
		}
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: database,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

// VerifyConnectivity pings the backend with exponential backoff until it
// answers or the retry budget is spent.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return kgerr.E(kgerr.KindConnectFailed, "neo4jdb.verify", fmt.Errorf("driver not initialized"))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	deadline := time.Now().Add(connectRetryCap)
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := c.Driver.VerifyConnectivity(ctx)
		if err == nil {
			c.log.Info("Neo4j reachable", "attempt", attempt)
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return kgerr.E(kgerr.KindConnectFailed, "neo4jdb.verify", ctx.Err())
		}
		if time.Now().Add(backoff).After(deadline) {
			break
		}
		c.log.Warn("Neo4j not reachable yet, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return kgerr.E(kgerr.KindConnectFailed, "neo4jdb.verify", ctx.Err())
		}
		backoff *= 2
	}
	return kgerr.E(kgerr.KindConnectFailed, "neo4jdb.verify", lastErr)
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

package cassandra

import (
	"fmt"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

// Config holds connection and schema settings for the CQL backend.
type Config struct {
	// Hosts are contact points, "host" or "host:port".
	// Default: ["127.0.0.1:9042"]
	Hosts []string

	// Keyspace holds the users table. Default: "userks"
	Keyspace string

	// Table is the users table name. Default: "users"
	Table string

	// Consistency applies to every statement. nil means QUORUM. ANY is
	// rejected: it is a write-only level and every read would fail.
	Consistency *gocql.Consistency

	// ReplicationFactor is used only when EnsureSchema creates the keyspace
	// (SimpleStrategy). Default: 1
	ReplicationFactor int

	// Timeout bounds a single query when the context carries no deadline.
	// Default: 5s
	Timeout time.Duration

	// ConnectTimeout bounds the initial connection. Default: 5s
	ConnectTimeout time.Duration

	// NumConns is the pool size per host. Default: 2
	NumConns int
}

// Consistency returns a pointer for Config.Consistency.
func Consistency(c gocql.Consistency) *gocql.Consistency { return &c }

// DefaultConfig returns settings for a local single-node cluster.
func DefaultConfig() Config {
	return Config{
		Hosts:             []string{"127.0.0.1:9042"},
		Keyspace:          "userks",
		Table:             "users",
		Consistency:       Consistency(gocql.Quorum),
		ReplicationFactor: 1,
		Timeout:           5 * time.Second,
		ConnectTimeout:    5 * time.Second,
		NumConns:          2,
	}
}

// CQL identifiers are formatted into statements, so only plain names pass.
var identRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// validate fills zero values with defaults and rejects unsafe identifiers.
func (c *Config) validate() error {
	def := DefaultConfig()
	if len(c.Hosts) == 0 {
		c.Hosts = def.Hosts
	}
	if c.Keyspace == "" {
		c.Keyspace = def.Keyspace
	}
	if c.Table == "" {
		c.Table = def.Table
	}
	switch {
	case c.Consistency == nil:
		c.Consistency = def.Consistency
	case *c.Consistency == gocql.Any:
		return fmt.Errorf("cassandra: consistency ANY cannot serve reads")
	}
	if c.ReplicationFactor < 1 {
		c.ReplicationFactor = def.ReplicationFactor
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.NumConns < 1 {
		c.NumConns = def.NumConns
	}
	if !identRE.MatchString(c.Keyspace) {
		return fmt.Errorf("cassandra: invalid keyspace name %q", c.Keyspace)
	}
	if !identRE.MatchString(c.Table) {
		return fmt.Errorf("cassandra: invalid table name %q", c.Table)
	}
	return nil
}

package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Options struct {
	Hosts             []string
	Keyspace          string
	Username          string
	Password          string
	Consistency       string
	Timeout           time.Duration
	ReplicationFactor int
}

// NewSession ensures the feed schema exists and returns a connected session.
func NewSession(opts Options, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(opts.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", opts.Keyspace)
	}
	consistency, err := parseConsistency(opts.Consistency)
	if err != nil {
		return nil, err
	}

	baseCluster := newCluster(opts, consistency)
	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ensureKeyspace(ctx, baseSession, opts); err != nil {
		return nil, err
	}

	cluster := newCluster(opts, consistency)
	cluster.Keyspace = opts.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", opts.Keyspace, err)
	}
	if err := ensureTables(ctx, session, opts); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	}
	return session, nil
}

func newCluster(opts Options, consistency gocql.Consistency) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Timeout = opts.Timeout
	cluster.Consistency = consistency
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
		// avoid long stalls on auth/connect
		cluster.ConnectTimeout = opts.Timeout
	}
	return cluster
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	if strings.TrimSpace(raw) == "" {
		return gocql.Quorum, nil
	}
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("invalid scylla consistency %q: %w", raw, err)
	}
	return c, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, opts Options) error {
	rf := opts.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		opts.Keyspace, rf,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, opts Options) error {
	changes := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.user_changes (
	user_id text,
	change_id timeuuid,
	event_id text,
	type text,
	conversation_id text,
	data text,
	occurred_at timestamp,
	PRIMARY KEY (user_id, change_id)
) WITH CLUSTERING ORDER BY (change_id ASC);`, opts.Keyspace)
	if err := session.Query(changes).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create user_changes table: %w", err)
	}
	return nil
}

// Package cassandra implements store.Store over CQL (Apache Cassandra, ScyllaDB).
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/store"
)

// Store is a store.Store backed by one pooled gocql session.
type Store struct {
	session *gocql.Session
	cfg     Config
	table   string // keyspace-qualified

	insertStmt  string
	selectAll   string
	selectByID  string
	selectEmail string
	deleteStmt  string
}

var _ store.Store = (*Store)(nil)

// Connect opens a session against cfg.Hosts. The session is not bound to the
// keyspace so EnsureSchema can create it on first start.
func Connect(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = *cfg.Consistency
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.NumConns = cfg.NumConns
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra: connect %s: %w", strings.Join(cfg.Hosts, ","), err)
	}
	return New(session, cfg)
}

// New wraps an existing session. The Store owns it from here on.
func New(session *gocql.Session, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := cfg.Keyspace + "." + cfg.Table
	return &Store{
		session:     session,
		cfg:         cfg,
		table:       t,
		insertStmt:  "INSERT INTO " + t + " (id, name, email) VALUES (?, ?, ?)",
		selectAll:   "SELECT id, name, email FROM " + t,
		selectByID:  "SELECT id, name, email FROM " + t + " WHERE id = ?",
		selectEmail: "SELECT id, name, email FROM " + t + " WHERE email = ? ALLOW FILTERING",
		deleteStmt:  "DELETE FROM " + t + " WHERE id = ?",
	}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ks := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		s.cfg.Keyspace, s.cfg.ReplicationFactor)
	if err := s.session.Query(ks).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace %s: %w", s.cfg.Keyspace, err)
	}
	tbl := "CREATE TABLE IF NOT EXISTS " + s.table + " (id uuid PRIMARY KEY, name text, email text)"
	if err := s.session.Query(tbl).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, u userd.User) error {
	err := s.session.Query(s.insertStmt, gocql.UUID(u.ID), u.Name, u.Email).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetAll(ctx context.Context) ([]userd.User, error) {
	iter := s.session.Query(s.selectAll).WithContext(ctx).Iter()
	scanner := iter.Scanner()

	users := make([]userd.User, 0)
	for scanner.Next() {
		var (
			id          gocql.UUID
			name, email string
		)
		if err := scanner.Scan(&id, &name, &email); err != nil {
			_ = iter.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, userd.User{ID: uuid.UUID(id), Name: name, Email: email})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return users, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (userd.User, bool, error) {
	return s.getOne(ctx, s.selectByID, gocql.UUID(id))
}

// GetByEmail scans the whole table (ALLOW FILTERING); there is no index on
// email.
func (s *Store) GetByEmail(ctx context.Context, email string) (userd.User, bool, error) {
	return s.getOne(ctx, s.selectEmail, email)
}

func (s *Store) getOne(ctx context.Context, stmt string, arg any) (userd.User, bool, error) {
	var (
		id          gocql.UUID
		name, email string
	)
	err := s.session.Query(stmt, arg).WithContext(ctx).Scan(&id, &name, &email)
	if errors.Is(err, gocql.ErrNotFound) {
		return userd.User{}, false, nil
	}
	if err != nil {
		return userd.User{}, false, err
	}
	return userd.User{ID: uuid.UUID(id), Name: name, Email: email}, true, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, p userd.PartialUser) error {
	stmt, args, err := updateStatement(s.table, id, p)
	if err != nil {
		return err
	}
	if err := s.session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("update user %s (%s): %w", id, p.Mask(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.session.Query(s.deleteStmt, gocql.UUID(id)).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// Ping runs a trivial query against system.local.
func (s *Store) Ping(ctx context.Context) error {
	return s.session.Query("SELECT release_version FROM system.local").WithContext(ctx).Exec()
}

func (s *Store) Close() error {
	s.session.Close()
	return nil
}

// updateStatement builds an UPDATE that sets exactly the masked columns and
// always ends with the id predicate.
func updateStatement(table string, id uuid.UUID, p userd.PartialUser) (string, []any, error) {
	m := p.Mask()
	if m.Empty() {
		return "", nil, store.ErrEmptyUpdate
	}
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if m.Has(userd.FieldName) {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if m.Has(userd.FieldEmail) {
		sets = append(sets, "email = ?")
		args = append(args, *p.Email)
	}
	args = append(args, gocql.UUID(id))
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?", args, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
)

// ErrUnsupportedType is returned for resource types that have no backing kinds.
var ErrUnsupportedType = errors.New("unsupported resource type")

// resourceKinds maps a command resource type onto the platform's resource
// kinds. Databases are stored per engine.
var resourceKinds = map[command.ResourceType][]string{
	command.ResourceApplication: {"application"},
	command.ResourceService:     {"service"},
	command.ResourceDatabase: {
		"standalone_postgresql",
		"standalone_mysql",
		"standalone_mariadb",
		"standalone_mongodb",
		"standalone_redis",
		"standalone_keydb",
		"standalone_dragonfly",
		"standalone_clickhouse",
	},
	command.ResourceServer:  {"server"},
	command.ResourceProject: {"project"},
}

const findResourcesQuery = `SELECT id, uuid, name, status, project_name, environment_name
FROM team_resources
WHERE team_id = $1 AND kind = ANY($2) AND name ILIKE $3 ESCAPE '\'
ORDER BY name, id`

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Resources looks up team resources in the team_resources view.
type Resources struct {
	db *sql.DB
}

func NewResources(db *sql.DB) *Resources {
	return &Resources{db: db}
}

// FindResources returns resources of type t visible to teamID whose name
// contains nameFilter, case-insensitively. An empty filter matches all.
func (s *Resources) FindResources(ctx context.Context, teamID string, t command.ResourceType, nameFilter string) ([]executor.Resource, error) {
	kinds, ok := resourceKinds[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}

	pattern := "%" + escapeLike(strings.TrimSpace(nameFilter)) + "%"
	rows, err := s.db.QueryContext(ctx, findResourcesQuery, teamID, pq.Array(kinds), pattern)
	if err != nil {
		return nil, describeQueryError(err)
	}
	defer rows.Close()

	var out []executor.Resource
	for rows.Next() {
		var (
			r                         executor.Resource
			uuid, status, proj, envir sql.NullString
		)
		if err := rows.Scan(&r.ID, &uuid, &r.Name, &status, &proj, &envir); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.Type = t
		r.UUID = uuid.String
		r.Status = status.String
		r.Project = proj.String
		r.Environment = envir.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func describeQueryError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("resource view is missing (run the platform migrations): %w", err)
	}
	return fmt.Errorf("query resources: %w", err)
}

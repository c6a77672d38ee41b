// Package postgres implements the relational and realtime gateway contracts
// on PostgreSQL: each portal table is a jsonb document table, and change
// events flow to subscribers through LISTEN/NOTIFY triggers installed by
// the migrations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"projectflow/gateway"
)

// tableSQL maps the portal's logical table names onto SQL identifiers.
// Acting as a whitelist, it also keeps caller input out of query text.
var tableSQL = map[string]string{
	gateway.TableProfiles:   "clientes",
	gateway.TableProjects:   "projects",
	gateway.TableAssistance: "assistance_requests",
}

// Store implements gateway.Relational over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore builds a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func sqlTable(table string) (string, error) {
	name, ok := tableSQL[table]
	if !ok {
		return "", fmt.Errorf("postgres: unknown table %q", table)
	}
	return name, nil
}

// Select returns the matching rows newest first by their created_at field.
func (s *Store) Select(ctx context.Context, table string, filters ...gateway.Filter) ([]gateway.Row, error) {
	name, err := sqlTable(table)
	if err != nil {
		return nil, err
	}

	where := []string{"1=1"}
	args := []any{}
	for _, f := range filters {
		where = append(where, fmt.Sprintf("data->>%s = $%d", quoteLiteral(f.Column), len(args)+1))
		args = append(args, fmt.Sprint(f.Value))
	}

	query := fmt.Sprintf(
		`SELECT data FROM %s WHERE %s ORDER BY data->>'created_at' DESC`,
		name, strings.Join(where, " AND "),
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", table, err)
	}
	defer rows.Close()

	out := []gateway.Row{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", table, err)
		}
		var row gateway.Row
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("postgres: decode %s row: %w", table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: select %s: %w", table, err)
	}
	return out, nil
}

// Insert stores one row under its id.
func (s *Store) Insert(ctx context.Context, table string, row gateway.Row) error {
	name, err := sqlTable(table)
	if err != nil {
		return err
	}
	id, _ := row["id"].(string)
	if id == "" {
		return fmt.Errorf("postgres: insert into %s: row missing id", table)
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("postgres: encode %s row: %w", table, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2::jsonb)`, name)
	if _, err := s.pool.Exec(ctx, query, id, body); err != nil {
		return fmt.Errorf("postgres: insert into %s: %w", table, err)
	}
	return nil
}

// Update merges the patch into the stored document.
func (s *Store) Update(ctx context.Context, table string, id string, patch gateway.Row) error {
	name, err := sqlTable(table)
	if err != nil {
		return err
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("postgres: encode %s patch: %w", table, err)
	}
	query := fmt.Sprintf(`UPDATE %s SET data = data || $2::jsonb WHERE id = $1`, name)
	tag, err := s.pool.Exec(ctx, query, id, body)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

// Delete removes every row matching the filters. Deleting nothing is not an
// error.
func (s *Store) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	name, err := sqlTable(table)
	if err != nil {
		return err
	}
	where := []string{"1=1"}
	args := []any{}
	for _, f := range filters {
		where = append(where, fmt.Sprintf("data->>%s = $%d", quoteLiteral(f.Column), len(args)+1))
		args = append(args, fmt.Sprint(f.Value))
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s`, name, strings.Join(where, " AND "))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: delete from %s: %w", table, err)
	}
	return nil
}

// quoteLiteral escapes a json key for inlining as a SQL string literal.
// Column names come from the core, not from user input, but escaping keeps
// the query well formed for keys like clientUid regardless.
func quoteLiteral(key string) string {
	return "'" + strings.ReplaceAll(key, "'", "''") + "'"
}

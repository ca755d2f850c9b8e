package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"macroBot/internal/domain"
)

// Store persists communities and their custom commands. It is the
// PersistenceGateway of the bot and also serves the initial loads.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the database at path and applies pending migrations.
func NewStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Commit applies the whole ChangeSet in one transaction. Communities go
// first so that new commands find their parent row.
func (s *Store) Commit(ctx context.Context, changes domain.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite: begin commit")
	}
	defer func() { _ = tx.Rollback() }()

	for _, community := range changes.Communities {
		if err := upsertCommunity(ctx, tx, community, s.now()); err != nil {
			return err
		}
	}
	for _, cmd := range changes.UpsertCommands {
		if err := upsertCustomCommand(ctx, tx, cmd, s.now()); err != nil {
			return err
		}
	}
	for _, key := range changes.DeletedCommands {
		if err := deleteCustomCommand(ctx, tx, key); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite: commit")
	}
	return nil
}

func upsertCommunity(ctx context.Context, tx *sql.Tx, community *domain.Community, now time.Time) error {
	if community == nil || community.ID == "" {
		return errors.New("sqlite: community without id")
	}

	roles, err := encodeMinimumRoles(community.MinimumRoles)
	if err != nil {
		return err
	}

	createdAt := community.CreatedAt
	if createdAt.IsZero() {
		createdAt = now.UTC()
	}
	updatedAt := community.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now.UTC()
	}

	const stmt = `
INSERT INTO communities (id, owner_id, minimum_roles, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	owner_id=excluded.owner_id,
	minimum_roles=excluded.minimum_roles,
	updated_at=excluded.updated_at;
`

	if _, err := tx.ExecContext(ctx, stmt, string(community.ID), community.OwnerID, roles, createdAt, updatedAt); err != nil {
		return errors.Wrapf(err, "sqlite: upsert community %s", community.ID)
	}
	return nil
}

func upsertCustomCommand(ctx context.Context, tx *sql.Tx, cmd *domain.CustomCommand, now time.Time) error {
	if cmd == nil {
		return errors.New("sqlite: custom command nil")
	}
	if strings.TrimSpace(cmd.Response) == "" {
		return errors.Wrapf(domain.ErrEmptyResponse, "sqlite: upsert %s", cmd.Name)
	}

	updatedAt := cmd.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now.UTC()
	}

	const stmt = `
INSERT INTO custom_commands (community_id, name, response, created_by, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(community_id, name) DO UPDATE SET
	response=excluded.response,
	updated_at=excluded.updated_at;
`

	if _, err := tx.ExecContext(ctx, stmt, string(cmd.CommunityID), cmd.Name, cmd.Response, cmd.CreatedBy, updatedAt); err != nil {
		return errors.Wrapf(err, "sqlite: upsert custom command %s/%s", cmd.CommunityID, cmd.Name)
	}
	return nil
}

func deleteCustomCommand(ctx context.Context, tx *sql.Tx, key domain.CustomCommandKey) error {
	const stmt = `DELETE FROM custom_commands WHERE community_id = ? AND name = ?`
	if _, err := tx.ExecContext(ctx, stmt, string(key.CommunityID), key.Name); err != nil {
		return errors.Wrapf(err, "sqlite: delete custom command %s/%s", key.CommunityID, key.Name)
	}
	return nil
}

func (s *Store) GetCommunity(ctx context.Context, id domain.CommunityID) (*domain.Community, error) {
	const query = `
SELECT owner_id, minimum_roles, created_at, updated_at
FROM communities
WHERE id = ?
LIMIT 1;
`

	row := s.db.QueryRowContext(ctx, query, string(id))

	var ownerID, roles sql.NullString
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&ownerID, &roles, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "sqlite: get community %s", id)
	}

	minimumRoles, err := decodeMinimumRoles(roles.String)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: community %s", id)
	}

	return &domain.Community{
		ID:           id,
		OwnerID:      ownerID.String,
		MinimumRoles: minimumRoles,
		CreatedAt:    createdAt.Time,
		UpdatedAt:    updatedAt.Time,
	}, nil
}

func (s *Store) ListCustomCommands(ctx context.Context, community domain.CommunityID) ([]*domain.CustomCommand, error) {
	const query = `
SELECT name, response, created_by, updated_at
FROM custom_commands
WHERE community_id = ?
ORDER BY name;
`

	rows, err := s.db.QueryContext(ctx, query, string(community))
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: list custom commands %s", community)
	}
	defer rows.Close()

	var cmds []*domain.CustomCommand
	for rows.Next() {
		record := domain.CustomCommand{CommunityID: community}
		var createdBy sql.NullString
		var updatedAt sql.NullTime

		if err := rows.Scan(&record.Name, &record.Response, &createdBy, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan custom command")
		}
		record.CreatedBy = createdBy.String
		record.UpdatedAt = updatedAt.Time

		cmds = append(cmds, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: list custom command rows")
	}

	return cmds, nil
}

// minimum roles are stored by tier name so the JSON survives a reordering
// of the tier constants.
func encodeMinimumRoles(roles map[domain.ActionCategory]domain.PrivilegeTier) (string, error) {
	named := make(map[string]string, len(roles))
	for category, tier := range roles {
		if !tier.Valid() {
			return "", errors.Errorf("sqlite: invalid tier %d for %s", int(tier), category)
		}
		named[string(category)] = tier.String()
	}
	encoded, err := json.Marshal(named)
	if err != nil {
		return "", errors.Wrap(err, "sqlite: encode minimum roles")
	}
	return string(encoded), nil
}

func decodeMinimumRoles(raw string) (map[domain.ActionCategory]domain.PrivilegeTier, error) {
	out := make(map[domain.ActionCategory]domain.PrivilegeTier)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	var named map[string]string
	if err := json.Unmarshal([]byte(raw), &named); err != nil {
		return nil, errors.Wrap(err, "decode minimum roles")
	}
	for category, name := range named {
		tier, err := domain.ParseTier(name)
		if err != nil {
			return nil, err
		}
		out[domain.ActionCategory(category)] = tier
	}
	return out, nil
}

var (
	_ domain.PersistenceGateway      = (*Store)(nil)
	_ domain.CommunityRepository     = (*Store)(nil)
	_ domain.CustomCommandRepository = (*Store)(nil)
)

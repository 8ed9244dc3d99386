package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/fitlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrUserNotFound = errors.New("user not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Create(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO fituser
				(email, password_hash, created_at)
				VALUES ($1, $2, $3)
			RETURNING id;`,
		user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", id))

	user.ID = id
	return &user, nil
}

func (r *Repo) GetByID(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return r.getUser(
		ctx,
		`SELECT id, email, password_hash,
				COALESCE(username, ''), COALESCE(full_name, ''), COALESCE(image, ''),
				created_at
			FROM fituser WHERE id = $1;`,
		id,
	)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getUser(
		ctx,
		`SELECT id, email, password_hash,
				COALESCE(username, ''), COALESCE(full_name, ''), COALESCE(image, ''),
				created_at
			FROM fituser WHERE email = $1;`,
		email,
	)
}

func (r *Repo) getUser(ctx context.Context, query string, arg any) (*User, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrUserNotFound
	}

	var user User
	if err := rows.Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.Username, &user.FullName, &user.Image,
		&user.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	return &user, nil
}

func (r *Repo) EmailTaken(ctx context.Context, email string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.emailTaken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM fituser WHERE email = $1);`, email)
}

func (r *Repo) UsernameTaken(ctx context.Context, username string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.usernameTaken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM fituser WHERE username = $1);`, username)
}

func (r *Repo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var taken bool
	if err := r.db.QueryRow(ctx, query, arg).Scan(&taken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return taken, nil
}

func (r *Repo) UpdateOnboarding(ctx context.Context, id int, username, fullName string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateOnboarding")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE fituser SET username = $1, full_name = $2 WHERE id = $3;`,
		username, fullName, id,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *Repo) UpdateSettings(ctx context.Context, id int, fullName, image string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateSettings")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE fituser SET full_name = $1, image = NULLIF($2, '') WHERE id = $3;`,
		fullName, image, id,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

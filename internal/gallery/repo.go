package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/fitlog/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrImageNotFound = errors.New("image not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, image Image) (_ *Image, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gallery.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO gallery_image (user_id, url, created_at)
			VALUES ($1, $2, $3) RETURNING id;`,
		image.UserID, image.URL, image.CreatedAt,
	).Scan(&image.ID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("image.id", image.ID))
	return &image, nil
}

// List returns the user's gallery, newest first.
func (r *Repo) List(ctx context.Context, userID int) (_ []Image, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gallery.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, url, created_at FROM gallery_image
			WHERE user_id = $1 ORDER BY created_at DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	images := make([]Image, 0)
	for rows.Next() {
		var image Image
		if err := rows.Scan(&image.ID, &image.UserID, &image.URL, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		images = append(images, image)
	}

	return images, nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.gallery.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("image.id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM gallery_image WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

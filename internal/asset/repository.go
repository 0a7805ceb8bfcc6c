package asset

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/galeria/internal/db"
)

const (
	dbTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

// Repository provê acesso à tabela de imagens.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de imagens.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema cria a tabela e o índice se ainda não existirem.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            CREATE TABLE IF NOT EXISTS images (
                id           UUID PRIMARY KEY,
                original_key TEXT NOT NULL UNIQUE,
                filename     TEXT NOT NULL DEFAULT '',
                content_type TEXT NOT NULL DEFAULT '',
                size         BIGINT NOT NULL DEFAULT 0,
                checksum     TEXT NOT NULL DEFAULT '',
                created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
            )
        `); err != nil {
			return err
		}
		for _, stmt := range []string{
			`ALTER TABLE images ADD COLUMN IF NOT EXISTS thumbnail_key TEXT`,
			`CREATE UNIQUE INDEX IF NOT EXISTS images_thumbnail_key_idx ON images (thumbnail_key)`,
			`CREATE INDEX IF NOT EXISTS images_created_at_idx ON images (created_at DESC)`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Insert reserva a chave do original antes da gravação dos bytes.
// Chave ou miniatura já usadas devolvem ErrDuplicateKey.
func (r *Repository) Insert(ctx context.Context, a *Asset) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        INSERT INTO images (id, original_key, thumbnail_key, filename, content_type, size, checksum, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.pool.Exec(ctx, query, a.ID, a.OriginalKey, a.ThumbnailKey, a.Filename, a.ContentType, a.Size, a.Checksum, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

// Delete remove o registro; usado para liberar uma reserva cujo original não foi gravado.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get busca uma imagem pelo identificador.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, original_key, COALESCE(thumbnail_key, ''), filename, content_type, size, checksum, created_at
        FROM images
        WHERE id = $1
    `
	return scanAsset(r.pool.QueryRow(ctx, query, id))
}

// List devolve as imagens mais recentes primeiro.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	const query = `
        SELECT id, original_key, COALESCE(thumbnail_key, ''), filename, content_type, size, checksum, created_at
        FROM images
        ORDER BY created_at DESC, id
        LIMIT $1 OFFSET $2
    `
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]Asset, 0, limit)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return assets, nil
}

// ListKeys devolve todas as chaves de originais, para o backfill.
func (r *Repository) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT original_key FROM images WHERE original_key <> '' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func scanAsset(row pgx.Row) (*Asset, error) {
	var a Asset
	if err := row.Scan(&a.ID, &a.OriginalKey, &a.ThumbnailKey, &a.Filename, &a.ContentType, &a.Size, &a.Checksum, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// Taxonomy reads are reference-data lookups joined into prompts. The
// pipeline never writes these; CRUD lives in the admin surface outside
// this repository's core.

// GetGenre fetches a genre with its variant list.
func (s *Store) GetGenre(ctx context.Context, id string) (models.Genre, error) {
	var g models.Genre
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description FROM genres WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Genre{}, &apperr.NotFoundError{Kind: "genre", ID: id}
	}
	if err != nil {
		return models.Genre{}, fmt.Errorf("scan genre: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT variant FROM genre_variants WHERE genre_id = $1
	`, id)
	if err != nil {
		return models.Genre{}, fmt.Errorf("query genre variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return models.Genre{}, fmt.Errorf("scan genre variant: %w", err)
		}
		g.Variants = append(g.Variants, v)
	}
	return g, rows.Err()
}

// GetPlot fetches a plot with its chapter beats ordered by ord.
func (s *Store) GetPlot(ctx context.Context, id string) (models.Plot, error) {
	var p models.Plot
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, synopsis FROM plots WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Synopsis)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Plot{}, &apperr.NotFoundError{Kind: "plot", ID: id}
	}
	if err != nil {
		return models.Plot{}, fmt.Errorf("scan plot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, description, ord FROM plot_chapters WHERE plot_id = $1 ORDER BY ord
	`, id)
	if err != nil {
		return models.Plot{}, fmt.Errorf("query plot chapters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.PlotChapter
		if err := rows.Scan(&c.Name, &c.Description, &c.Order); err != nil {
			return models.Plot{}, fmt.Errorf("scan plot chapter: %w", err)
		}
		p.Chapters = append(p.Chapters, c)
	}
	return p, rows.Err()
}

// GetAuthor fetches an author.
func (s *Store) GetAuthor(ctx context.Context, id string) (models.Author, error) {
	var a models.Author
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, design_style FROM authors WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.DesignStyle)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Author{}, &apperr.NotFoundError{Kind: "author", ID: id}
	}
	if err != nil {
		return models.Author{}, fmt.Errorf("scan author: %w", err)
	}
	return a, nil
}

// GetOption fetches one narrative/spice/ending option by id.
func (s *Store) GetOption(ctx context.Context, id string) (models.StoryOption, error) {
	var o models.StoryOption
	err := s.pool.QueryRow(ctx, `
		SELECT id, kind, name, description FROM story_options WHERE id = $1
	`, id).Scan(&o.ID, &o.Kind, &o.Name, &o.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoryOption{}, &apperr.NotFoundError{Kind: "story option", ID: id}
	}
	if err != nil {
		return models.StoryOption{}, fmt.Errorf("scan story option: %w", err)
	}
	return o, nil
}

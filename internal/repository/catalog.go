package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
)

// CatalogRepository serves document types, students, staff and accounts.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ActiveDocumentTypes(ctx context.Context) ([]model.DocumentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome, institucional, colaborador, ativo
		FROM document_types WHERE ativo ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select document types: %w", err)
	}
	types, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DocumentType, error) {
		var t model.DocumentType
		err := row.Scan(&t.ID, &t.Nome, &t.Institucional, &t.Colaborador, &t.Ativo)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan document types: %w", err)
	}
	return types, nil
}

// SearchStudents matches term against name, enrolment number and CPF.
func (r *CatalogRepository) SearchStudents(ctx context.Context, term string, page, size int) (model.Page[model.Student], error) {
	page, size = normalizePage(page, size)
	pattern := "%" + term + "%"
	var total int64
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM students
		WHERE nome ILIKE $1 OR matricula ILIKE $1 OR cpf LIKE $1
	`, pattern).Scan(&total); err != nil {
		return model.Page[model.Student]{}, fmt.Errorf("count students: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome, matricula, cpf, email FROM students
		WHERE nome ILIKE $1 OR matricula ILIKE $1 OR cpf LIKE $1
		ORDER BY nome, id LIMIT $2 OFFSET $3
	`, pattern, size, page*size)
	if err != nil {
		return model.Page[model.Student]{}, fmt.Errorf("select students: %w", err)
	}
	students, err := pgx.CollectRows(rows, scanStudent)
	if err != nil {
		return model.Page[model.Student]{}, fmt.Errorf("scan students: %w", err)
	}
	return pageOf(students, total, page, size), nil
}

func (r *CatalogRepository) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nome, matricula, cpf, email FROM students WHERE id=$1`, id)
	if err != nil {
		return model.Student{}, fmt.Errorf("select student: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanStudent)
	if err != nil {
		return model.Student{}, notFound("student", err)
	}
	return s, nil
}

func (r *CatalogRepository) ListStaff(ctx context.Context, page, size int) (model.Page[model.Staff], error) {
	page, size = normalizePage(page, size)
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM staff`).Scan(&total); err != nil {
		return model.Page[model.Staff]{}, fmt.Errorf("count staff: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome, cargo, email FROM staff ORDER BY nome, id LIMIT $1 OFFSET $2
	`, size, page*size)
	if err != nil {
		return model.Page[model.Staff]{}, fmt.Errorf("select staff: %w", err)
	}
	staff, err := pgx.CollectRows(rows, scanStaff)
	if err != nil {
		return model.Page[model.Staff]{}, fmt.Errorf("scan staff: %w", err)
	}
	return pageOf(staff, total, page, size), nil
}

func (r *CatalogRepository) GetStaff(ctx context.Context, id int64) (model.Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nome, cargo, email FROM staff WHERE id=$1`, id)
	if err != nil {
		return model.Staff{}, fmt.Errorf("select staff: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanStaff)
	if err != nil {
		return model.Staff{}, notFound("staff", err)
	}
	return s, nil
}

func (r *CatalogRepository) FindUser(ctx context.Context, login string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT login, password_hash, permissions FROM users WHERE login=$1
	`, login).Scan(&u.Login, &u.PasswordHash, &u.Permissions)
	if err != nil {
		return model.User{}, notFound("user", err)
	}
	return u, nil
}

// SaveUser upserts an account.
func (r *CatalogRepository) SaveUser(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (login, password_hash, permissions) VALUES ($1,$2,$3)
		ON CONFLICT (login) DO UPDATE SET password_hash=EXCLUDED.password_hash, permissions=EXCLUDED.permissions
	`, u.Login, u.PasswordHash, u.Permissions)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// SeedDocumentTypes inserts the given types unless a type with the same name
// exists.
func (r *CatalogRepository) SeedDocumentTypes(ctx context.Context, types []model.DocumentType) error {
	batch := &pgx.Batch{}
	for _, t := range types {
		batch.Queue(`
			INSERT INTO document_types (nome, institucional, colaborador, ativo)
			VALUES ($1,$2,$3,$4) ON CONFLICT (nome) DO NOTHING
		`, t.Nome, t.Institucional, t.Colaborador, t.Ativo)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed document types: %w", err)
	}
	return nil
}

func scanStudent(row pgx.CollectableRow) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.Nome, &s.Matricula, &s.CPF, &s.Email)
	return s, err
}

func scanStaff(row pgx.CollectableRow) (model.Staff, error) {
	var s model.Staff
	err := row.Scan(&s.ID, &s.Nome, &s.Cargo, &s.Email)
	return s, err
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("select %s: %w", what, err)
}

func normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	return page, size
}

func pageOf[T any](items []T, total int64, page, size int) model.Page[T] {
	if items == nil {
		items = []T{}
	}
	return model.Page[T]{
		Content:       items,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
		Number:        page,
		Size:          size,
	}
}

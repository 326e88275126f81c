package storage

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// DefaultDocumentTypes is the catalog a fresh backend starts with.
var DefaultDocumentTypes = []model.DocumentType{
	{ID: 1, Nome: "Histórico Escolar", Ativo: true},
	{ID: 2, Nome: "Certidão de Nascimento", Ativo: true},
	{ID: 3, Nome: "RG", Ativo: true},
	{ID: 4, Nome: "Contrato de Trabalho", Colaborador: true, Ativo: true},
	{ID: 5, Nome: "Diploma", Colaborador: true, Ativo: true},
	{ID: 6, Nome: "Ata de Reunião", Institucional: true, Ativo: true},
	{ID: 7, Nome: "Portaria", Institucional: true, Ativo: true},
	{ID: 8, Nome: "Ficha de Matrícula (antiga)", Ativo: false},
}

// UserSaver stores accounts.
type UserSaver interface {
	SaveUser(ctx context.Context, u model.User) error
}

// SeedAdmin hashes password and stores the account.
func SeedAdmin(ctx context.Context, users UserSaver, login, password string, permissions []string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return users.SaveUser(ctx, model.User{Login: login, PasswordHash: hash, Permissions: permissions})
}

// SeedDemo fills a MemoryStore with the default catalog and a few people so
// the CLI can be exercised against a fresh backend.
func SeedDemo(m *MemoryStore) {
	m.AddDocumentTypes(DefaultDocumentTypes...)
	m.AddStudents(
		model.Student{ID: 42, Nome: "Maria Silva", Matricula: "2021001", CPF: "12345678900", Email: "maria@escola.edu"},
		model.Student{ID: 43, Nome: "Mariana Costa", Matricula: "2021002"},
		model.Student{ID: 44, Nome: "Pedro Alves", Matricula: "2022015"},
	)
	m.AddStaff(
		model.Staff{ID: 7, Nome: "José Conceição", Cargo: "Secretário"},
		model.Staff{ID: 8, Nome: "Ana Lúcia Prado", Cargo: "Professora"},
	)
}

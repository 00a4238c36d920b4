package database

import (
	"io/fs"
	"strings"
	"testing"

	"pos-backoffice/migrations"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No SQL migration files embedded")
	}

	for _, name := range files {
		content := readMigration(t, name)
		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(content, directive) {
				t.Errorf("Migration file %s missing %q directive", name, directive)
			}
		}
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"usuario":            "00001_create_usuario_table.sql",
		"categoria":          "00002_create_categoria_table.sql",
		"producto":           "00003_create_producto_table.sql",
		"producto_categoria": "00004_create_producto_categoria_table.sql",
		"venta":              "00005_create_venta_table.sql",
		"venta_producto":     "00006_create_venta_producto_table.sql",
	}

	for table, file := range expectedTables {
		content := readMigration(t, file)
		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("Migration file %s does not create table %s", file, table)
		}
		if !strings.Contains(content, "DROP TABLE IF EXISTS "+table) {
			t.Errorf("Migration file %s does not drop table %s in down section", file, table)
		}
	}
}

func TestUsuarioTableConstraints(t *testing.T) {
	content := readMigration(t, "00001_create_usuario_table.sql")

	for _, fragment := range []string{
		"correo VARCHAR(100) NOT NULL UNIQUE",
		"telefono CHAR(10)",
		"rol IN ('cajero', 'administrador')",
		"sexo IN ('H', 'M')",
	} {
		if !strings.Contains(content, fragment) {
			t.Errorf("usuario table missing %q", fragment)
		}
	}
}

func TestCascadeRules(t *testing.T) {
	join := readMigration(t, "00004_create_producto_categoria_table.sql")
	if strings.Count(join, "ON DELETE CASCADE") != 2 {
		t.Error("producto_categoria must cascade from both product and category")
	}

	lines := readMigration(t, "00006_create_venta_producto_table.sql")
	if !strings.Contains(lines, "REFERENCES venta(id_venta) ON DELETE CASCADE") {
		t.Error("venta_producto must cascade from venta")
	}
	if !strings.Contains(lines, "PRIMARY KEY (id_venta, id_producto)") {
		t.Error("venta_producto must use the composite key")
	}
}

func TestMaskDSN(t *testing.T) {
	masked := maskDSN("postgres://pos:secret@db:5432/pos?sslmode=disable")
	if strings.Contains(masked, "secret") || strings.Contains(masked, "pos:") {
		t.Errorf("credentials leaked in %q", masked)
	}
	if got := maskDSN("postgres://db:5432/pos"); got != "postgres://db:5432/pos" {
		t.Errorf("unexpected rewrite of credential-free url: %q", got)
	}
}

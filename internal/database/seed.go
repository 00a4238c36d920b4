package database

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"pos-backoffice/internal/apperr"
)

// PasswordHasher hashes seed passwords before they are stored.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

type seedUser struct {
	role            string
	password        string
	givenNames      string
	paternalSurname string
	maternalSurname string
	email           string
	phone           string
	gender          string
}

type seedProduct struct {
	name        string
	description string
	size        string
	price       string
	category    string
}

var seedUsers = []seedUser{
	{"administrador", "admin123", "Administrador", "Sistema", "", "admin@pos.local", "5551234567", "H"},
	{"cajero", "cajero123", "Cajero", "Principal", "", "cajero@pos.local", "5559876543", "M"},
}

var seedCategories = [][2]string{
	{"Bebidas Calientes", "Café, té y otras bebidas calientes"},
	{"Bebidas Frías", "Frappés, smoothies y bebidas heladas"},
	{"Snacks", "Bocadillos y alimentos ligeros"},
	{"Postres", "Pasteles, galletas y postres"},
}

var seedProducts = []seedProduct{
	{"Café Americano", "Café negro tradicional", "Grande", "25.00", "Bebidas Calientes"},
	{"Cappuccino", "Espresso con leche espumada", "Mediano", "35.00", "Bebidas Calientes"},
	{"Frappé de Vainilla", "Bebida fría con hielo y vainilla", "Grande", "45.00", "Bebidas Frías"},
	{"Croissant", "Pan hojaldrado de mantequilla", "Unidad", "20.00", "Snacks"},
	{"Cheesecake", "Pastel de queso con frutos rojos", "Rebanada", "55.00", "Postres"},
}

// EnsureSeedData inserts the demo accounts and catalog rows that are
// missing. Rows are matched by email or name, so repeated calls never
// duplicate anything.
func EnsureSeedData(ctx context.Context, m *Manager, hasher PasswordHasher, logger *zap.Logger) error {
	inserted := 0

	err := m.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, u := range seedUsers {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM usuario WHERE correo = $1)`, u.email,
			).Scan(&exists); err != nil {
				return apperr.FromSQL("failed to check seed user "+u.email, err)
			}
			if exists {
				continue
			}

			hash, err := hasher.Hash(u.password)
			if err != nil {
				return apperr.Query("failed to hash seed password", err)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO usuario (rol, contrasena, nombres, apellido_paterno, apellido_materno, correo, telefono, sexo)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
				ON CONFLICT (correo) DO NOTHING`,
				u.role, hash, u.givenNames, u.paternalSurname, u.maternalSurname, u.email, u.phone, u.gender,
			); err != nil {
				return apperr.FromSQL("failed to insert seed user "+u.email, err)
			}
			inserted++
		}

		for _, c := range seedCategories {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO categoria (nombre, descripcion)
				SELECT $1::varchar, $2::text
				WHERE NOT EXISTS (SELECT 1 FROM categoria WHERE nombre = $1::varchar)`,
				c[0], c[1],
			)
			if err != nil {
				return apperr.FromSQL("failed to insert seed category "+c[0], err)
			}
			inserted += affected(res)
		}

		for _, p := range seedProducts {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO producto (nombre, descripcion, tamano, precio)
				SELECT $1::varchar, $2::text, $3::varchar, $4::numeric
				WHERE NOT EXISTS (SELECT 1 FROM producto WHERE nombre = $1::varchar)`,
				p.name, p.description, p.size, p.price,
			)
			if err != nil {
				return apperr.FromSQL("failed to insert seed product "+p.name, err)
			}
			inserted += affected(res)

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO producto_categoria (id_producto, id_categoria)
				SELECT p.id_producto, c.id_categoria
				FROM producto p, categoria c
				WHERE p.nombre = $1 AND c.nombre = $2
				ON CONFLICT DO NOTHING`,
				p.name, p.category,
			); err != nil {
				return apperr.FromSQL("failed to link seed product "+p.name, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to seed database", zap.Error(err))
		return err
	}

	logger.Info("Seed data ensured", zap.Int("inserted", inserted))
	return nil
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

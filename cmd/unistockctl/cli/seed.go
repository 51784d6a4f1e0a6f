package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type seedUnit struct {
	code string
	name string
	kind tenancy.UnitKind
}

type seedDepartment struct {
	unit string
	code string
	name string
}

type seedProduct struct {
	unit     string
	code     string
	name     string
	nature   catalog.Nature
	uom      string
	price    string
	minStock int64
}

var demoUnits = []seedUnit{
	{"REK", "Rektorat", tenancy.UnitCentral},
	{"FT", "Fakultas Teknik", tenancy.UnitFaculty},
	{"FK", "Fakultas Kedokteran", tenancy.UnitFaculty},
	{"LPPM", "Lembaga Penelitian dan Pengabdian", tenancy.UnitInstitute},
}

var demoDepartments = []seedDepartment{
	{"REK", "BAU", "Biro Administrasi Umum"},
	{"FT", "TI", "Teknik Informatika"},
	{"FT", "TS", "Teknik Sipil"},
	{"FK", "ANAT", "Anatomi"},
	{"LPPM", "PUB", "Publikasi"},
}

var demoProducts = []seedProduct{
	{"FT", "LAP-14", "Laptop 14 inch", catalog.NatureAsset, catalog.UOMPiece, "12500000", 0},
	{"FT", "PRJ-LCD", "Proyektor LCD", catalog.NatureAsset, catalog.UOMPiece, "7800000", 0},
	{"FT", "KRT-A4", "Kertas A4 80gsm", catalog.NatureConsumable, catalog.UOMReam, "55000", 20},
	{"FT", "TNR-BLK", "Toner hitam", catalog.NatureConsumable, catalog.UOMPiece, "450000", 5},
	{"FK", "MIK-BIN", "Mikroskop binokuler", catalog.NatureAsset, catalog.UOMPiece, "18000000", 0},
	{"FK", "SRG-LTX", "Sarung tangan lateks", catalog.NatureConsumable, catalog.UOMBox, "85000", 30},
	{"REK", "KRT-A4", "Kertas A4 80gsm", catalog.NatureConsumable, catalog.UOMReam, "55000", 50},
}

// Seed inserts demo reference data. Existing rows are left untouched so the
// command can run repeatedly.
func Seed(ctx context.Context, db Execer, logger *slog.Logger) error {
	if db == nil {
		return errors.New("seed: database not configured")
	}
	for _, u := range demoUnits {
		if _, err := db.Exec(ctx, `INSERT INTO units (code, name, kind, active, created_at)
VALUES ($1, $2, $3, TRUE, NOW()) ON CONFLICT (code) DO NOTHING`, u.code, u.name, string(u.kind)); err != nil {
			return fmt.Errorf("seed unit %s: %w", u.code, err)
		}
	}
	logger.Info("seeded units", slog.Int("count", len(demoUnits)))

	for _, d := range demoDepartments {
		if _, err := db.Exec(ctx, `INSERT INTO departments (unit_id, code, name, created_at)
SELECT id, $2, $3, NOW() FROM units WHERE code = $1
ON CONFLICT (unit_id, code) DO NOTHING`, d.unit, d.code, d.name); err != nil {
			return fmt.Errorf("seed department %s/%s: %w", d.unit, d.code, err)
		}
	}
	logger.Info("seeded departments", slog.Int("count", len(demoDepartments)))

	for _, p := range demoProducts {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return fmt.Errorf("seed product %s/%s: %w", p.unit, p.code, err)
		}
		if _, err := db.Exec(ctx, `INSERT INTO products (unit_id, code, name, nature, uom, unit_price, min_stock, stock_quantity, active, created_at, updated_at)
SELECT id, $2, $3, $4, $5, $6, $7, 0, TRUE, NOW(), NOW() FROM units WHERE code = $1
ON CONFLICT (unit_id, code) DO NOTHING`, p.unit, p.code, p.name, string(p.nature), p.uom, price, p.minStock); err != nil {
			return fmt.Errorf("seed product %s/%s: %w", p.unit, p.code, err)
		}
	}
	logger.Info("seeded products", slog.Int("count", len(demoProducts)))
	return nil
}

func newSeedCommand(rt Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo units, departments and products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.NewExecer == nil {
				return errors.New("seed: not configured")
			}
			db, closeFn, err := rt.NewExecer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			logger := rt.Logger
			if logger == nil {
				logger = slog.Default()
			}
			if err := Seed(cmd.Context(), db, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}

package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// ReferenceTable names one external table and the column in it that points
// at files.id.
type ReferenceTable struct {
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
}

// TableProbe implements biz.ReferenceProbe by counting rows in the
// configured referencing tables. Tables that do not exist yet are skipped,
// so deployments can roll the referencing schemas out independently.
type TableProbe struct {
	db     *database.DB
	tables []ReferenceTable
	logger *logger.Logger
}

func NewTableProbe(db *database.DB, tables []ReferenceTable, log *logger.Logger) biz.ReferenceProbe {
	return &TableProbe{
		db:     db,
		tables: tables,
		logger: log,
	}
}

func (p *TableProbe) IsReferenced(ctx context.Context, fileID string) (bool, error) {
	conn := p.db.GetDBFromContext(ctx)
	for _, ref := range p.tables {
		if !conn.Migrator().HasTable(ref.Table) {
			p.logger.WithContext(ctx).Debug("reference table absent, skipping",
				zap.String("table", ref.Table))
			continue
		}

		var count int64
		err := conn.Table(ref.Table).
			Where(fmt.Sprintf("%s = ?", ref.Column), fileID).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("count references in %s: %w", ref.Table, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

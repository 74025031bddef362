package fails

import (
	"context"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookshelf/internal/types"
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxRecord struct {
	Id         int64     `db:"id" goqu:"skipinsert"`
	StartTime  time.Time `db:"start_time"`
	Term       string    `db:"term"`
	Language   string    `db:"language"`
	Page       int       `db:"page"`
	ExternalId *int64    `db:"external_id"`
	Error      string    `db:"error"`
}

func (p *pgxRepo) Save(ctx context.Context, startTime time.Time, src types.HarvestSource, err error) error {
	sql, params, qerr := p.g.Insert("harvest_fail").
		Rows(pgxRecord{
			StartTime:  startTime,
			Term:       src.Term,
			Language:   src.Language,
			Page:       src.Page,
			ExternalId: src.ExternalId,
			Error:      err.Error(),
		}).
		ToSQL()
	if qerr != nil {
		return qerr
	}

	_, qerr = p.pg.Exec(ctx, sql, params...)
	return qerr
}

func (p *pgxRepo) GetFails(ctx context.Context, notAfter time.Time, limit uint) ([]*Record, error) {
	qb := p.g.From("harvest_fail").
		Where(goqu.C("start_time").Lte(notAfter)).
		Order(goqu.C("start_time").Asc(), goqu.C("id").Asc())

	if limit > 0 {
		qb = qb.Limit(limit)
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxRecord

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*Record, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, &Record{
			Id:        row.Id,
			StartTime: row.StartTime,
			Source: types.HarvestSource{
				Term:       row.Term,
				Language:   row.Language,
				Page:       row.Page,
				ExternalId: row.ExternalId,
			},
			Error: row.Error,
		})
	}

	return ret, nil
}

func (p *pgxRepo) DeleteById(ctx context.Context, id int64) error {
	sql, params, err := p.g.Delete("harvest_fail").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

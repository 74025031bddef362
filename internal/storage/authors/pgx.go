package authors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookshelf/internal/storage"
	"bookshelf/internal/types"
)

var orderByName = []exp.OrderedExpression{
	goqu.L(`name collate "C"`).Asc(),
	goqu.C("id").Asc(),
}

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxAuthor struct {
	Id        int64  `db:"id" goqu:"skipinsert"`
	Name      string `db:"name"`
	NameKey   string `db:"name_key"`
	BirthYear *int   `db:"birth_year"`
	DeathYear *int   `db:"death_year"`
}

func (a *pgxAuthor) intoCommon(l *slog.Logger, ctx context.Context) *types.Author {
	if a.BirthYear != nil && a.DeathYear != nil && *a.DeathYear < *a.BirthYear {
		l.WarnContext(ctx, fmt.Sprintf("Author %d stored with death year %d before birth year %d",
			a.Id, *a.DeathYear, *a.BirthYear))
	}

	return &types.Author{
		Id:        a.Id,
		Name:      a.Name,
		BirthYear: a.BirthYear,
		DeathYear: a.DeathYear,
	}
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Author, error) {
	return p.getOne(ctx, goqu.C("id").Eq(id))
}

func (p *pgxRepo) FindByName(ctx context.Context, name string) (*types.Author, error) {
	return p.getOne(ctx, goqu.C("name_key").Eq(types.NameKey(name)))
}

func (p *pgxRepo) getOne(ctx context.Context, where exp.Expression) (*types.Author, error) {
	sql, params, err := p.g.From("author").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxAuthor

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.intoCommon(p.l, ctx), nil
}

func (p *pgxRepo) GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error) {
	if len(ids) == 0 {
		return make(map[int64]*types.Author), nil
	}

	rows, err := p.selectMany(ctx, p.g.From("author").Where(goqu.C("id").In(ids)))
	if err != nil {
		return nil, err
	}

	ret := make(map[int64]*types.Author, len(rows))
	for _, row := range rows {
		ret[row.Id] = row
	}

	return ret, nil
}

func (p *pgxRepo) Save(ctx context.Context, author *types.Author) (*types.Author, error) {
	sql, params, err := p.g.Insert("author").
		Rows(pgxAuthor{
			Name:      author.Name,
			NameKey:   types.NameKey(author.Name),
			BirthYear: author.BirthYear,
			DeathYear: author.DeathYear,
		}).
		Returning("*").
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxAuthor

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: author %q", types.ErrConflict, author.Name)
		}
		return nil, err
	}

	return row.intoCommon(p.l, ctx), nil
}

func (p *pgxRepo) List(ctx context.Context) ([]*types.Author, error) {
	return p.selectMany(ctx, p.g.From("author").Order(orderByName...))
}

func (p *pgxRepo) AliveInYear(ctx context.Context, year int) ([]*types.Author, error) {
	return p.selectMany(ctx, p.g.From("author").
		Where(aliveIn(year)).
		Order(orderByName...))
}

func aliveIn(year int) exp.Expression {
	return goqu.And(
		goqu.C("birth_year").IsNotNull(),
		goqu.C("birth_year").Lte(year),
		goqu.Or(
			goqu.C("death_year").IsNull(),
			goqu.C("death_year").Gte(year),
		),
	)
}

func (p *pgxRepo) SearchByName(ctx context.Context, fragment string) ([]*types.Author, error) {
	qb := p.g.From("author").Order(orderByName...)

	for _, word := range strings.Fields(fragment) {
		qb = qb.Where(goqu.C("name").ILike("%" + storage.EscapeLike(word) + "%"))
	}

	return p.selectMany(ctx, qb)
}

func (p *pgxRepo) selectMany(ctx context.Context, qb *goqu.SelectDataset) ([]*types.Author, error) {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxAuthor

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Author, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon(p.l, ctx))
	}

	return ret, nil
}

func (p *pgxRepo) Count(ctx context.Context) (int, error) {
	return p.count(ctx, nil)
}

func (p *pgxRepo) CountAlive(ctx context.Context) (int, error) {
	return p.count(ctx, goqu.C("death_year").IsNull())
}

func (p *pgxRepo) count(ctx context.Context, where exp.Expression) (int, error) {
	qb := p.g.From("author").Select(goqu.COUNT("*"))
	if where != nil {
		qb = qb.Where(where)
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return 0, err
	}

	var n int
	err = pgxscan.Get(ctx, p.pg, &n, sql, params...)
	return n, err
}

func (p *pgxRepo) CountByCentury(ctx context.Context) (map[int]int, error) {
	sql, params, err := p.g.From("author").
		Select(
			goqu.L("(birth_year - 1) / 100 + 1").As("century"),
			goqu.COUNT("*").As("count"),
		).
		Where(goqu.C("birth_year").Gt(0)).
		GroupBy(goqu.C("century")).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Century int `db:"century"`
		Count   int `db:"count"`
	}

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[int]int, len(rows))
	for _, row := range rows {
		ret[row.Century] = row.Count
	}

	return ret, nil
}

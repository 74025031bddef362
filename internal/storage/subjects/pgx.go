package subjects

import (
	"context"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxSubject struct {
	Id    int64  `db:"id"`
	Title string `db:"title"`
}

var colLowerTitle = goqu.L("lower(title)")

func (p *pgxRepo) GetIdByTitles(ctx context.Context, titles ...string) (map[string]int64, error) {
	if len(titles) == 0 {
		return map[string]int64{}, nil
	}

	lowerTitles := make([]string, 0, len(titles))
	for _, title := range titles {
		lowerTitles = append(lowerTitles, strings.ToLower(title))
	}

	sql, params, err := p.g.From("subject").
		Select("id", "title").
		Where(colLowerTitle.In(lowerTitles)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxSubject

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	byLower := make(map[string]int64, len(rows))
	for _, row := range rows {
		byLower[strings.ToLower(row.Title)] = row.Id
	}

	ret := make(map[string]int64, len(titles))
	for _, title := range titles {
		if id, ok := byLower[strings.ToLower(title)]; ok {
			ret[title] = id
		}
	}

	return ret, nil
}

func (p *pgxRepo) Insert(ctx context.Context, titles ...string) (map[string]int64, error) {
	if len(titles) == 0 {
		return map[string]int64{}, nil
	}

	vals := make([][]any, 0, len(titles))
	for _, title := range titles {
		vals = append(vals, []any{title})
	}

	sql, params, err := p.g.Insert("subject").
		Cols("title").
		Vals(vals...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	if _, err = p.pg.Exec(ctx, sql, params...); err != nil {
		return nil, err
	}

	// rows skipped by the conflict clause are not returned, so read every id back
	return p.GetIdByTitles(ctx, titles...)
}

func (p *pgxRepo) Link(ctx context.Context, bookId int64, subjectIds ...int64) error {
	if len(subjectIds) == 0 {
		return nil
	}

	vals := make([][]any, 0, len(subjectIds))
	for _, subjectId := range subjectIds {
		vals = append(vals, []any{bookId, subjectId})
	}

	sql, params, err := p.g.Insert("book_subject").
		Cols("book_id", "subject_id").
		Vals(vals...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) Unlink(ctx context.Context, bookId int64) error {
	sql, params, err := p.g.Delete("book_subject").
		Where(goqu.C("book_id").Eq(bookId)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) ForBook(ctx context.Context, bookId int64) ([]string, error) {
	sql, params, err := p.g.From("subject").
		Select(goqu.T("subject").Col("title")).
		Join(goqu.T("book_subject"), goqu.On(goqu.T("book_subject").Col("subject_id").Eq(goqu.T("subject").Col("id")))).
		Where(goqu.T("book_subject").Col("book_id").Eq(bookId)).
		Order(goqu.T("subject").Col("title").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows := []string{}

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (p *pgxRepo) BookIds(ctx context.Context, title string) ([]int64, error) {
	sql, params, err := p.g.From("book_subject").
		Select(goqu.T("book_subject").Col("book_id")).
		Join(goqu.T("subject"), goqu.On(goqu.T("book_subject").Col("subject_id").Eq(goqu.T("subject").Col("id")))).
		Where(goqu.L("lower(subject.title)").Eq(strings.ToLower(strings.TrimSpace(title)))).
		Order(goqu.T("book_subject").Col("book_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows := []int64{}

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (p *pgxRepo) GetAll(ctx context.Context) ([]*Subject, error) {
	books := goqu.COUNT(goqu.T("book_subject").Col("book_id"))

	sql, params, err := p.g.From("subject").
		Select(goqu.T("subject").Col("id"), goqu.T("subject").Col("title"), books.As("books")).
		LeftJoin(goqu.T("book_subject"), goqu.On(goqu.T("book_subject").Col("subject_id").Eq(goqu.T("subject").Col("id")))).
		GroupBy(goqu.T("subject").Col("id"), goqu.T("subject").Col("title")).
		Order(books.Desc(), goqu.T("subject").Col("title").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows := []*Subject{}

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

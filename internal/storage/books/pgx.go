package books

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

var (
	colBookId    = goqu.T("book").Col("id")
	colBookTitle = goqu.T("book").Col("title")
	colDownloads = goqu.T("book").Col("download_count")

	byTitle = []exp.OrderedExpression{
		goqu.L(`book.title collate "C"`).Asc(),
		colBookId.Asc(),
	}
	byDownloads = []exp.OrderedExpression{
		colDownloads.Desc().NullsLast(),
		goqu.L(`book.title collate "C"`).Asc(),
		colBookId.Asc(),
	}
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxBook struct {
	Id            int64  `db:"id" goqu:"skipinsert"`
	Title         string `db:"title"`
	AuthorId      *int64 `db:"author_id"`
	Language      string `db:"language"`
	DownloadCount *int   `db:"download_count"`
	ExternalId    *int64 `db:"external_id"`
}

type pgxBookWithAuthor struct {
	Base            pgxBook `db:""` // follow
	AuthorName      *string `db:"author_name"`
	AuthorBirthYear *int    `db:"author_birth_year"`
	AuthorDeathYear *int    `db:"author_death_year"`
}

func (b *pgxBookWithAuthor) intoCommon(l *slog.Logger, ctx context.Context) *types.Book {
	book := &types.Book{
		Id:            b.Base.Id,
		Title:         b.Base.Title,
		AuthorId:      b.Base.AuthorId,
		Language:      b.Base.Language,
		DownloadCount: b.Base.DownloadCount,
		ExternalId:    b.Base.ExternalId,
	}

	if b.Base.AuthorId != nil {
		if b.AuthorName == nil {
			l.ErrorContext(ctx, fmt.Sprintf("Book %d references missing author %d", b.Base.Id, *b.Base.AuthorId))
		} else {
			book.Author = &types.Author{
				Id:        *b.Base.AuthorId,
				Name:      *b.AuthorName,
				BirthYear: b.AuthorBirthYear,
				DeathYear: b.AuthorDeathYear,
			}
		}
	}

	return book
}

func (p *pgxRepo) selectBooks() *goqu.SelectDataset {
	return p.g.From("book").
		LeftJoin(goqu.T("author"), goqu.On(
			goqu.T("author").Col("id").Eq(goqu.T("book").Col("author_id")),
		)).
		Select("book.*",
			goqu.T("author").Col("name").As("author_name"),
			goqu.T("author").Col("birth_year").As("author_birth_year"),
			goqu.T("author").Col("death_year").As("author_death_year"))
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Book, error) {
	return p.getOne(ctx, colBookId.Eq(id))
}

func (p *pgxRepo) GetByExternalId(ctx context.Context, externalId int64) (*types.Book, error) {
	return p.getOne(ctx, goqu.T("book").Col("external_id").Eq(externalId))
}

func (p *pgxRepo) FindByTitleAndAuthor(ctx context.Context, title string, authorId *int64) (*types.Book, error) {
	var authorCond exp.Expression = goqu.T("book").Col("author_id").IsNull()
	if authorId != nil {
		authorCond = goqu.T("book").Col("author_id").Eq(*authorId)
	}

	return p.getOne(ctx, goqu.And(colBookTitle.Eq(title), authorCond))
}

func (p *pgxRepo) getOne(ctx context.Context, where exp.Expression) (*types.Book, error) {
	sql, params, err := p.selectBooks().
		Where(where).
		Order(byTitle...).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxBookWithAuthor

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return row.intoCommon(p.l, ctx), nil
}

func (p *pgxRepo) Save(ctx context.Context, book *types.Book) (*types.Book, error) {
	sql, params, err := p.g.Insert("book").
		Rows(pgxBook{
			Title:         book.Title,
			AuthorId:      book.AuthorId,
			Language:      book.Language,
			DownloadCount: book.DownloadCount,
			ExternalId:    book.ExternalId,
		}).
		Returning("id").
		ToSQL()
	if err != nil {
		return nil, err
	}

	var id int64

	err = pgxscan.Get(ctx, p.pg, &id, sql, params...)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: book %q", types.ErrConflict, book.Title)
		}
		return nil, err
	}

	saved, err := p.GetById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading saved book %d: %w", id, err)
	}

	return saved, nil
}

func (p *pgxRepo) Delete(ctx context.Context, id int64) (bool, error) {
	sql, params, err := p.g.Delete("book").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (p *pgxRepo) List(ctx context.Context, f Filter) ([]*types.Book, error) {
	qb := p.selectBooks()

	if f.Language != "" {
		qb = qb.Where(goqu.T("book").Col("language").Eq(f.Language))
	}

	query := strings.TrimSpace(f.TitleLike)
	if query != "" {
		qb = qb.Where(colBookTitle.ILike("%" + storage.EscapeLike(query) + "%"))
	}

	if f.AuthorId != nil {
		qb = qb.Where(goqu.T("book").Col("author_id").Eq(*f.AuthorId))
	}

	if f.WithDownloads {
		qb = qb.Where(colDownloads.IsNotNull())
	}

	if f.Ids != nil {
		if len(f.Ids) == 0 {
			return []*types.Book{}, nil
		}
		qb = qb.Where(goqu.T("book").Col("id").In(f.Ids))
	}

	if f.OrderBy == OrderByDownloads {
		qb = qb.Order(byDownloads...)
	} else {
		qb = qb.Order(byTitle...)
	}

	if f.Limit > 0 {
		qb = qb.Limit(uint(f.Limit))
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBookWithAuthor

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Book, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon(p.l, ctx))
	}

	return ret, nil
}

func (p *pgxRepo) Count(ctx context.Context) (int, error) {
	sql, params, err := p.g.From("book").Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, err
	}

	var n int
	err = pgxscan.Get(ctx, p.pg, &n, sql, params...)
	return n, err
}

func (p *pgxRepo) CountByLanguage(ctx context.Context) (map[string]int, error) {
	sql, params, err := p.g.From("book").
		Select(goqu.C("language"), goqu.COUNT("*").As("count")).
		GroupBy(goqu.C("language")).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Language string `db:"language"`
		Count    int    `db:"count"`
	}

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[string]int, len(rows))
	for _, row := range rows {
		ret[row.Language] = row.Count
	}

	return ret, nil
}

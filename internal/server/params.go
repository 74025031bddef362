package server

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"bookshelf/internal/gutendex"
	"bookshelf/internal/types"
)

var (
	validate      = validator.New()
	languagesExpr = regexp.MustCompile(`^[a-z]{2,3}(,[a-z]{2,3})*$`)
)

func init() {
	err := validate.RegisterValidation("languages", func(fl validator.FieldLevel) bool {
		return languagesExpr.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

type importRequest struct {
	Title string `json:"title" validate:"required,max=300"`
}

type topQuery struct {
	N int `validate:"gte=1,lte=1000"`
}

type aliveQuery struct {
	Year int `validate:"gte=-3000,lte=3000"`
}

type periodQuery struct {
	From int `validate:"gte=-3000,lte=3000"`
	To   int `validate:"gte=-3000,lte=3000,gtefield=From"`
}

type remoteQuery struct {
	Search   string `validate:"max=300"`
	Language string `validate:"omitempty,languages"`
	Page     int    `validate:"gte=0,lte=100000"`
	Year     *int   `validate:"omitempty,gte=-3000,lte=3000"`
}

func (q remoteQuery) filters() gutendex.Filters {
	return gutendex.Filters{Language: q.Language, Page: q.Page}
}

func parseRemoteQuery(q url.Values) (remoteQuery, error) {
	page, err := getInt(q, "page", 0)
	if err != nil {
		return remoteQuery{}, err
	}

	rq := remoteQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Language: strings.ToLower(strings.ReplaceAll(q.Get("language"), " ", "")),
		Page:     page,
	}

	if strings.TrimSpace(q.Get("year")) != "" {
		year, err := getInt(q, "year", 0)
		if err != nil {
			return remoteQuery{}, err
		}
		rq.Year = &year
	}

	return rq, checkStruct(rq)
}

type extractQuery struct {
	Property string `validate:"required,max=200"`
}

// checkStruct turns the first failed rule into a types.ErrValidation error.
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", types.ErrValidation, field)
	case "gte":
		return fmt.Errorf("%w: %s must be at least %s", types.ErrValidation, field, fe.Param())
	case "lte":
		return fmt.Errorf("%w: %s must be at most %s", types.ErrValidation, field, fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", types.ErrValidation, field, fe.Param())
	case "gtefield":
		return fmt.Errorf("%w: %s must not be less than %s", types.ErrValidation, field, strings.ToLower(fe.Param()))
	case "languages":
		return fmt.Errorf("%w: %s must be comma separated language codes", types.ErrValidation, field)
	default:
		return fmt.Errorf("%w: %s is invalid", types.ErrValidation, field)
	}
}

func getInt(q url.Values, key string, default_ int) (int, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return default_, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", types.ErrValidation, key, s)
	}

	return v, nil
}

func requireInt(q url.Values, key string) (int, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return 0, fmt.Errorf("%w: %s is required", types.ErrValidation, key)
	}

	return getInt(q, key, 0)
}

func idParam(r *http.Request, key string) (int64, error) {
	s := chi.URLParam(r, key)

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", types.ErrValidation, key, s)
	}

	return id, nil
}

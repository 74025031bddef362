package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookshelf/internal/catalog"
	"bookshelf/internal/jsontree"
	"bookshelf/internal/normalize"
	"bookshelf/internal/response"
	"bookshelf/internal/types"
)

const maxBodySize = 4 << 20

func Handler(svc *catalog.Service, rr *response.Responder) http.Handler {
	r := chi.NewRouter()

	r.Route("/books", func(r chi.Router) {
		r.Post("/import", func(w http.ResponseWriter, r *http.Request) {
			var req importRequest
			if err := decodeBody(r, &req); err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}
			req.Title = strings.TrimSpace(req.Title)
			if err := checkStruct(req); err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			res, err := svc.Import(r.Context(), req.Title)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			status := http.StatusOK
			if res.Created {
				status = http.StatusCreated
			}
			rr.SendJsonStatus(w, r.Context(), status, res)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()

			var rows []*types.Book
			var err error
			switch {
			case q.Has("language"):
				rows, err = svc.ListBooksByLanguage(r.Context(), q.Get("language"))
			case q.Has("subject"):
				rows, err = svc.ListBooksBySubject(r.Context(), q.Get("subject"))
			case q.Get("author") != "":
				rows, err = svc.SearchBooksByAuthor(r.Context(), q.Get("author"))
			case q.Get("search") != "":
				rows, err = svc.SearchBooksByTitle(r.Context(), q.Get("search"))
			default:
				rows, err = svc.ListAllBooks(r.Context())
			}

			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendBooks(w, r, rr, rows)
		})

		r.Get("/top", func(w http.ResponseWriter, r *http.Request) {
			n, err := getInt(r.URL.Query(), "n", 5)
			if err == nil {
				err = checkStruct(topQuery{N: n})
			}
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rows, err := svc.TopNByDownloads(r.Context(), n)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendBooks(w, r, rr, rows)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := idParam(r, "id")
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			b, err := svc.GetBook(r.Context(), id)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), b)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := idParam(r, "id")
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			if err := svc.DeleteBook(r.Context(), id); err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/authors", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			var rows []*types.Author
			var err error
			if search := r.URL.Query().Get("search"); search != "" {
				rows, err = svc.SearchAuthorsByName(r.Context(), search)
			} else {
				rows, err = svc.ListAllAuthors(r.Context())
			}

			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendAuthors(w, r, rr, rows)
		})

		r.Get("/alive", func(w http.ResponseWriter, r *http.Request) {
			year, err := requireInt(r.URL.Query(), "year")
			if err == nil {
				err = checkStruct(aliveQuery{Year: year})
			}
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rows, err := svc.ListAuthorsAliveInYear(r.Context(), year)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendAuthors(w, r, rr, rows)
		})

		r.Get("/lived", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()

			var pq periodQuery
			var err error
			if pq.From, err = requireInt(q, "from"); err == nil {
				if pq.To, err = getInt(q, "to", pq.From); err == nil {
					err = checkStruct(pq)
				}
			}
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rows, err := svc.ListAuthorsLivedDuring(r.Context(), pq.From, pq.To)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendAuthors(w, r, rr, rows)
		})

		r.Get("/prolific", func(w http.ResponseWriter, r *http.Request) {
			n, err := getInt(r.URL.Query(), "n", 5)
			if err == nil {
				err = checkStruct(topQuery{N: n})
			}
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rows, err := svc.ProlificAuthors(r.Context(), n)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), struct {
				Authors []catalog.AuthorBooks `json:"authors"`
			}{Authors: rows})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := idParam(r, "id")
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			a, err := svc.GetAuthor(r.Context(), id)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), struct {
				*types.Author
				FormattedName string `json:"formatted_name"`
				FirstName     string `json:"first_name"`
				LastName      string `json:"last_name"`
				Description   string `json:"description"`
			}{
				Author:        a,
				FormattedName: a.FormattedName(),
				FirstName:     a.FirstName(),
				LastName:      a.LastName(),
				Description:   svc.DescribeAuthor(a),
			})
		})

		r.Get("/{id}/books", func(w http.ResponseWriter, r *http.Request) {
			id, err := idParam(r, "id")
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rows, err := svc.ListAuthorBooks(r.Context(), id)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			sendBooks(w, r, rr, rows)
		})
	})

	r.Get("/subjects", func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListSubjects(r.Context())
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), map[string]any{"subjects": rows})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stats(r.Context())
		if err != nil {
			rr.RespondError(w, r.Context(), err)
			return
		}

		rr.SendJson(w, r.Context(), st)
	})

	r.Route("/remote", func(r chi.Router) {
		r.Get("/search", func(w http.ResponseWriter, r *http.Request) {
			rq, err := parseRemoteQuery(r.URL.Query())
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			p, err := svc.SearchRemote(r.Context(), rq.Search, rq.filters())
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			if p.Books == nil {
				p.Books = make([]normalize.Book, 0)
			}
			rr.SendJson(w, r.Context(), p)
		})

		r.Get("/analysis", func(w http.ResponseWriter, r *http.Request) {
			rq, err := parseRemoteQuery(r.URL.Query())
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			a, err := svc.AnalyzeRemote(r.Context(), rq.Search, rq.filters(), rq.Year)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), a)
		})

		r.Get("/books/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := idParam(r, "id")
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			b, err := svc.RemoteBook(r.Context(), id)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), b)
		})
	})

	r.Route("/json", func(r chi.Router) {
		r.Post("/analyze", func(w http.ResponseWriter, r *http.Request) {
			raw, err := readBody(r)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			a, err := jsontree.Analyze(raw)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), a)
		})

		r.Post("/validate", func(w http.ResponseWriter, r *http.Request) {
			raw, err := readBody(r)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), jsontree.Validate(raw))
		})

		r.Post("/extract", func(w http.ResponseWriter, r *http.Request) {
			eq := extractQuery{Property: r.URL.Query().Get("property")}
			if err := checkStruct(eq); err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			raw, err := readBody(r)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			values, err := jsontree.Extract(raw, eq.Property)
			if err != nil {
				rr.RespondError(w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), struct {
				Property string   `json:"property"`
				Values   []string `json:"values"`
			}{Property: eq.Property, Values: values})
		})
	})

	return r
}

func sendBooks(w http.ResponseWriter, r *http.Request, rr *response.Responder, rows []*types.Book) {
	if rows == nil {
		rows = make([]*types.Book, 0)
	}

	rr.SendJson(w, r.Context(), struct {
		Books []*types.Book `json:"books"`
	}{Books: rows})
}

func sendAuthors(w http.ResponseWriter, r *http.Request, rr *response.Responder, rows []*types.Author) {
	if rows == nil {
		rows = make([]*types.Author, 0)
	}

	rr.SendJson(w, r.Context(), struct {
		Authors []*types.Author `json:"authors"`
	}{Authors: rows})
}

func readBody(r *http.Request) (string, error) {
	bs, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", types.ErrValidation, err)
	}
	if len(bs) > maxBodySize {
		return "", fmt.Errorf("%w: body larger than %d bytes", types.ErrValidation, maxBodySize)
	}

	return string(bs), nil
}

func decodeBody(r *http.Request, dst any) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: request body: %w", types.ErrMalformedPayload, err)
	}

	return nil
}

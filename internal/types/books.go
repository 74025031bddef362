package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	UnknownAuthor   = "unknown author"
	UnknownPeriod   = "unknown period"
	UnknownLanguage = "unknown"
)

type Author struct {
	Id        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	BirthYear *int   `json:"birth_year" yaml:"birth_year"`
	DeathYear *int   `json:"death_year" yaml:"death_year"`
}

type Book struct {
	Id            int64   `json:"id" yaml:"id"`
	Title         string  `json:"title" yaml:"title"`
	AuthorId      *int64  `json:"author_id" yaml:"author_id"`
	Author        *Author `json:"author,omitempty" yaml:"author,omitempty"`
	Language      string  `json:"language" yaml:"language"`
	DownloadCount *int    `json:"download_count" yaml:"download_count"`
	ExternalId    *int64  `json:"external_id" yaml:"external_id"`
	// Subjects is only loaded for single book lookups.
	Subjects []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
}

// FormatName turns "Last, First" into "First Last". Names without a comma are only trimmed.
func FormatName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownAuthor
	}

	last, rest, found := strings.Cut(name, ",")
	if !found {
		return name
	}

	return strings.TrimSpace(strings.TrimSpace(rest) + " " + strings.TrimSpace(last))
}

// NameKey is the dedup key of an author: formatted name in NFC, lower-cased.
func NameKey(name string) string {
	return strings.ToLower(norm.NFC.String(FormatName(name)))
}

func Lifespan(birthYear, deathYear *int) string {
	if birthYear == nil && deathYear == nil {
		return UnknownPeriod
	}

	from := "?"
	if birthYear != nil {
		from = strconv.Itoa(*birthYear)
	}

	to := "present"
	if deathYear != nil {
		to = strconv.Itoa(*deathYear)
	}

	return from + " - " + to
}

// AliveInYear reports whether someone born in birthYear and dead in deathYear (nil if alive) was alive in year.
// Unknown birth year never qualifies.
func AliveInYear(birthYear, deathYear *int, year int) bool {
	if birthYear == nil || *birthYear > year {
		return false
	}

	return deathYear == nil || *deathYear >= year
}

func (a *Author) FormattedName() string {
	return FormatName(a.Name)
}

func (a *Author) Lifespan() string {
	return Lifespan(a.BirthYear, a.DeathYear)
}

func (a *Author) IsAlive() bool {
	return a.DeathYear == nil
}

// IsClassic is true for authors dead for more than a hundred years.
func (a *Author) IsClassic(now time.Time) bool {
	return a.DeathYear != nil && now.Year()-*a.DeathYear > 100
}

func (a *Author) AliveInYear(year int) bool {
	return AliveInYear(a.BirthYear, a.DeathYear, year)
}

func (a *Author) FirstName() string {
	parts := strings.Fields(a.FormattedName())
	if len(parts) == 0 {
		return ""
	}

	return parts[0]
}

func (a *Author) LastName() string {
	parts := strings.Fields(a.FormattedName())
	if len(parts) < 2 {
		return ""
	}

	return parts[len(parts)-1]
}

// AgeLived counts years until death, or until now for living authors. Nil without a birth year.
func (a *Author) AgeLived(now time.Time) *int {
	if a.BirthYear == nil {
		return nil
	}

	end := now.Year()
	if a.DeathYear != nil {
		end = *a.DeathYear
	}

	age := end - *a.BirthYear
	return &age
}

// BirthCentury returns 1-based century of birth, 0 when unknown. Year 1600 belongs to the 16th century.
func (a *Author) BirthCentury() int {
	if a.BirthYear == nil {
		return 0
	}

	return Century(*a.BirthYear)
}

func Century(year int) int {
	if year <= 0 {
		return 0
	}

	return (year-1)/100 + 1
}

// LivedDuring reports whether the lifetime overlaps [from, to]. Living authors are counted up to now.
func (a *Author) LivedDuring(from, to int, now time.Time) bool {
	if a.BirthYear == nil {
		return false
	}

	end := now.Year()
	if a.DeathYear != nil {
		end = *a.DeathYear
	}

	return *a.BirthYear <= to && end >= from
}

func (a *Author) Description(now time.Time) string {
	sb := strings.Builder{}
	sb.WriteString(a.FormattedName())

	if span := a.Lifespan(); span != UnknownPeriod {
		sb.WriteString(" (" + span + ")")
	}

	if c := a.BirthCentury(); c > 0 {
		sb.WriteString(fmt.Sprintf(" - %d century", c))
	}

	if a.IsClassic(now) {
		sb.WriteString(" - classic")
	} else if a.IsAlive() {
		sb.WriteString(" - contemporary")
	}

	if age := a.AgeLived(now); age != nil {
		sb.WriteString(fmt.Sprintf(" - lived %d years", *age))
	}

	return sb.String()
}

func (b *Book) AuthorName() string {
	if b.Author == nil {
		return UnknownAuthor
	}

	return b.Author.FormattedName()
}

func (b *Book) Downloads() int {
	if b.DownloadCount == nil {
		return 0
	}

	return *b.DownloadCount
}

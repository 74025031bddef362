package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func year(y int) *int {
	return &y
}

func TestFormatName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"last first", "Shakespeare, William", "William Shakespeare"},
		{"single name", "Dante", "Dante"},
		{"padded", "  Dante  ", "Dante"},
		{"empty", "", UnknownAuthor},
		{"blank", "   ", UnknownAuthor},
		{"only first comma splits", "Doe, John, Jr.", "John, Jr. Doe"},
		{"trailing comma", "Homer,", "Homer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatName(tt.input))
		})
	}
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, NameKey("Shakespeare, William"), NameKey("william shakespeare"))
	assert.NotEqual(t, NameKey("Austen, Jane"), NameKey("Shakespeare, William"))
	// precomposed and combining accents
	assert.Equal(t, NameKey("Zola, \u00c9mile"), NameKey("E\u0301mile Zola"))
}

func TestLifespan(t *testing.T) {
	assert.Equal(t, "1564 - 1616", Lifespan(year(1564), year(1616)))
	assert.Equal(t, "1947 - present", Lifespan(year(1947), nil))
	assert.Equal(t, "? - 1616", Lifespan(nil, year(1616)))
	assert.Equal(t, UnknownPeriod, Lifespan(nil, nil))
}

func TestAliveInYear(t *testing.T) {
	shakespeare := &Author{Name: "Shakespeare, William", BirthYear: year(1564), DeathYear: year(1616)}

	assert.True(t, shakespeare.AliveInYear(1600))
	assert.True(t, shakespeare.AliveInYear(1564))
	assert.True(t, shakespeare.AliveInYear(1616))
	assert.False(t, shakespeare.AliveInYear(1700))
	assert.False(t, shakespeare.AliveInYear(1500))

	living := &Author{Name: "King, Stephen", BirthYear: year(1947)}
	assert.True(t, living.AliveInYear(2020))
	assert.False(t, living.AliveInYear(1900))

	for _, y := range []int{-500, 0, 1600, 2024} {
		assert.False(t, (&Author{Name: "Anonymous"}).AliveInYear(y))
		assert.False(t, (&Author{Name: "Anonymous", DeathYear: year(1700)}).AliveInYear(y))
	}
}

func TestAuthorHelpers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Author{Name: "Shakespeare, William", BirthYear: year(1564), DeathYear: year(1616)}

	assert.False(t, a.IsAlive())
	assert.True(t, a.IsClassic(now))
	assert.Equal(t, "William", a.FirstName())
	assert.Equal(t, "Shakespeare", a.LastName())
	assert.Equal(t, 52, *a.AgeLived(now))
	assert.Equal(t, 16, a.BirthCentury())
	assert.True(t, a.LivedDuring(1600, 1610, now))
	assert.False(t, a.LivedDuring(1700, 1800, now))
	assert.Equal(t, "William Shakespeare (1564 - 1616) - 16 century - classic - lived 52 years", a.Description(now))

	recent := &Author{Name: "Someone", BirthYear: year(1900), DeathYear: year(1950)}
	assert.False(t, recent.IsClassic(now))

	living := &Author{Name: "Dante"}
	assert.True(t, living.IsAlive())
	assert.False(t, living.IsClassic(now))
	assert.Nil(t, living.AgeLived(now))
	assert.Equal(t, "", living.LastName())
	assert.Equal(t, "Dante - contemporary", living.Description(now))
}

func TestCentury(t *testing.T) {
	assert.Equal(t, 16, Century(1600))
	assert.Equal(t, 17, Century(1601))
	assert.Equal(t, 1, Century(1))
	assert.Equal(t, 0, Century(0))
}

func TestBookAuthorName(t *testing.T) {
	b := &Book{Title: "Hamlet"}
	assert.Equal(t, UnknownAuthor, b.AuthorName())
	assert.Equal(t, 0, b.Downloads())

	b.Author = &Author{Name: "Shakespeare, William"}
	assert.Equal(t, "William Shakespeare", b.AuthorName())
}

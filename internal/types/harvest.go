package types

import (
	"fmt"
	"strings"
)

// HarvestSource points at what a harvest was reading when something failed:
// a search page, or a single book of that page when ExternalId is set.
type HarvestSource struct {
	Term       string `json:"term" yaml:"term"`
	Language   string `json:"language" yaml:"language"`
	Page       int    `json:"page" yaml:"page"`
	ExternalId *int64 `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

func (s HarvestSource) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "page %d", s.Page)

	if s.Term != "" {
		fmt.Fprintf(&sb, " of %q", s.Term)
	}
	if s.Language != "" {
		sb.WriteString(" [" + s.Language + "]")
	}
	if s.ExternalId != nil {
		fmt.Fprintf(&sb, ", book %d", *s.ExternalId)
	}

	return sb.String()
}

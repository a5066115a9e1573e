// Package report holds report definitions: the GAQL query to run, the
// destination table, and the mapping from API field paths to columns.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// Field maps one API field path to a destination column. A field without a
// path is unavailable: the column still exists in the destination table but
// the API has no source for it any more.
type Field struct {
	Path   FieldPath
	Column string
}

// Available reports whether the field has an API source
func (f Field) Available() bool {
	return !f.Path.IsZero()
}

// Definition is a named report query
type Definition struct {
	Name     string
	Resource string
	Table    string
	OrderBy  string
	Fields   []Field
	// Query overrides the assembled GAQL when set
	Query string
}

// Record is one flattened result row, aligned with Definition.Fields. Each
// value is either a string or nil.
type Record []interface{}

// Validate checks that the definition is usable
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "report definition requires a name")
	}
	if len(d.Fields) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "report %q has no fields", d.Name)
	}
	if d.Query == "" && d.Resource == "" {
		return errors.Newf(errors.ErrorTypeConfig, "report %q needs either a query or a resource", d.Name)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Column == "" {
			return errors.Newf(errors.ErrorTypeConfig, "report %q has a field without column (%s)", d.Name, f.Path)
		}
		key := strings.ToUpper(f.Column)
		if _, dup := seen[key]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "report %q maps column %s twice", d.Name, f.Column)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Columns returns the destination columns in field order
func (d *Definition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Column
	}
	return cols
}

// SelectFields returns the available field paths, which is what the query
// may SELECT.
func (d *Definition) SelectFields() []string {
	paths := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Available() {
			paths = append(paths, f.Path.String())
		}
	}
	return paths
}

// Flatten turns one result row into a record. Unavailable fields and fields
// absent from the row become nil.
func (d *Definition) Flatten(row Row) (Record, error) {
	rec := make(Record, len(d.Fields))
	for i, f := range d.Fields {
		if !f.Available() {
			rec[i] = nil
			continue
		}
		v, found, err := Lookup(row, f.Path)
		if err != nil {
			return nil, err
		}
		if !found {
			rec[i] = nil
			continue
		}
		rec[i] = FlattenValue(v)
	}
	return rec, nil
}

// ValidStatuses are the accepted campaign.status filter values
var ValidStatuses = []string{"ENABLED", "PAUSED", "REMOVED", "UNKNOWN", "UNSPECIFIED"}

// NormalizeStatus trims and upper-cases status and checks it against
// ValidStatuses.
func NormalizeStatus(status string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(status))
	for _, v := range ValidStatuses {
		if s == v {
			return s, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation,
		"value for campaign status is invalid, it has to be one among: %s", strings.Join(ValidStatuses, ", ")).
		WithDetail("campaign_status", status)
}

// QueryOptions parameterises query assembly
type QueryOptions struct {
	Start          time.Time
	End            time.Time
	CampaignStatus string
	// Today defaults to the current local date
	Today time.Time
}

const isoDate = "2006-01-02"

// DateRangeClause renders the segments.date condition
func (o QueryOptions) DateRangeClause() string {
	today := o.Today
	if today.IsZero() {
		today = time.Now()
	}
	start, end := o.Start.Format(isoDate), o.End.Format(isoDate)
	if start == end && start == today.Format(isoDate) {
		return "DURING TODAY"
	}
	return fmt.Sprintf("BETWEEN '%s' AND '%s'", start, end)
}

// BuildQuery returns the GAQL to run for this definition
func (d *Definition) BuildQuery(opts QueryOptions) string {
	if d.Query != "" {
		return d.Query
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(d.SelectFields(), ", "))
	b.WriteString(" FROM ")
	b.WriteString(d.Resource)
	b.WriteString(" WHERE segments.date ")
	b.WriteString(opts.DateRangeClause())
	if opts.CampaignStatus != "" {
		b.WriteString(" AND campaign.status = ")
		b.WriteString(opts.CampaignStatus)
	}
	if d.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(d.OrderBy)
	}
	return b.String()
}

// Resolve returns a copy of d whose Query is fully assembled, so workers
// never rebuild it.
func (d Definition) Resolve(opts QueryOptions) Definition {
	d.Query = d.BuildQuery(opts)
	return d
}

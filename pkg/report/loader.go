package report

import (
	"strings"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// definitionsFile is the YAML layout of a definitions file:
//
//	reports:
//	  - name: campaign_daily
//	    resource: campaign
//	    table: CAMPAIGN_DAILY
//	    order_by: metrics.clicks DESC
//	    fields:
//	      - path: campaign.id
//	        column: CAMPAIGN_ID
//	      - column: LEGACY_ONLY
type definitionsFile struct {
	Reports []struct {
		Name     string `yaml:"name"`
		Resource string `yaml:"resource"`
		Table    string `yaml:"table"`
		OrderBy  string `yaml:"order_by"`
		Query    string `yaml:"query"`
		Fields   []struct {
			Path   string `yaml:"path"`
			Column string `yaml:"column"`
		} `yaml:"fields"`
	} `yaml:"reports"`
}

// LoadDefinitions reads report definitions from a YAML file. Field paths are
// parsed here, once, so a malformed path fails before any request is made.
func LoadDefinitions(path string) ([]Definition, error) {
	var doc definitionsFile
	if err := config.Load(path, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load report definitions").
			WithDetail("file", path)
	}
	if len(doc.Reports) == 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no reports defined in %s", path)
	}

	defs := make([]Definition, 0, len(doc.Reports))
	for _, r := range doc.Reports {
		def := Definition{
			Name:     r.Name,
			Resource: r.Resource,
			Table:    r.Table,
			OrderBy:  r.OrderBy,
			Query:    strings.TrimSpace(r.Query),
			Fields:   make([]Field, 0, len(r.Fields)),
		}
		for _, f := range r.Fields {
			fld := Field{Column: f.Column}
			if strings.TrimSpace(f.Path) != "" {
				fp, err := ParseFieldPath(f.Path)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid field path").
						WithDetail("report", r.Name)
				}
				fld.Path = fp
			}
			def.Fields = append(def.Fields, fld)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Select keeps only the definitions whose names are listed. An empty list
// keeps everything.
func Select(defs []Definition, names []string) ([]Definition, error) {
	if len(names) == 0 {
		return defs, nil
	}

	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	out := make([]Definition, 0, len(names))
	for _, n := range names {
		d, ok := byName[n]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unknown report %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// Database describes one warehouse target in the databases file
type Database struct {
	// Driver is postgres, mysql, snowflake, mongodb or bigquery
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Schema   string `json:"schema,omitempty"`
	User     string `json:"user"`
	Password string `json:"passwd"`
	// Account and Warehouse are Snowflake specific
	Account   string `json:"account,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	// Project and CredentialsFile are BigQuery specific; Database names
	// the dataset
	Project         string `json:"project,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	// DSN, when set, is handed to the driver untouched
	DSN string `json:"dsn,omitempty"`
	// Params are appended to the connection string
	Params map[string]string `json:"params,omitempty"`
}

// String renders the target without credentials
func (d Database) String() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.Driver, d.User, d.Host, d.Port, d.Database)
}

// Databases maps upper-cased target names to their connection settings
type Databases map[string]Database

// LoadDatabases reads the databases file. Keys are upper-cased so the CLI
// selector is case-insensitive.
func LoadDatabases(path string) (Databases, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrorTypeNotFound,
				"database configuration file %s not found, a valid one must exist to select a target", path).
				WithDetail("file", path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read database configuration").
			WithDetail("file", path)
	}

	var raw map[string]Database
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse database configuration").
			WithDetail("file", path)
	}

	dbs := make(Databases, len(raw))
	for name, db := range raw {
		db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
		if db.Driver == "" {
			db.Driver = "postgres"
		}
		dbs[strings.ToUpper(strings.TrimSpace(name))] = db
	}
	return dbs, nil
}

// Names returns the sorted target names
func (d Databases) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a target by name, ignoring case and surrounding spaces
func (d Databases) Lookup(name string) (string, Database, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	db, ok := d[key]
	if !ok {
		return "", Database{}, errors.Newf(errors.ErrorTypeValidation,
			"database %q not available, available databases: %s", name, strings.Join(d.Names(), ", "))
	}
	return key, db, nil
}

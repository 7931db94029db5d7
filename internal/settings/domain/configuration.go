package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the process starts without a settings file.
const (
	DefaultIP              = "192.168.1.10"
	DefaultIntervalSeconds = 5
	DefaultExcelPath       = "PLC_Log.xlsx"
	DefaultSQLTable        = "plc_log"
)

// MinInterval is the shortest polling interval accepted.
const MinInterval = time.Millisecond

// StorageKind selects the persistence strategy.
type StorageKind string

const (
	StorageExcel StorageKind = "excel"
	StorageSQL   StorageKind = "sql"
)

// SQLDriver names a supported database dialect.
type SQLDriver string

const (
	DriverMySQL    SQLDriver = "mysql"
	DriverPostgres SQLDriver = "postgres"
	DriverDuckDB   SQLDriver = "duckdb"
)

// DefaultPort returns the conventional port of the dialect.
func (d SQLDriver) DefaultPort() int {
	switch d {
	case DriverPostgres:
		return 5432
	case DriverDuckDB:
		return 0
	default:
		return 3306
	}
}

// IsValid reports whether the dialect is supported.
func (d SQLDriver) IsValid() bool {
	switch d {
	case DriverMySQL, DriverPostgres, DriverDuckDB:
		return true
	default:
		return false
	}
}

// ExcelTarget writes spreadsheets.
type ExcelTarget struct {
	Path        string `yaml:"path" json:"path"`
	RolloverDir string `yaml:"rollover_dir,omitempty" json:"rollover_dir,omitempty"`
}

// SQLTarget writes to a relational table.
type SQLTarget struct {
	Driver   SQLDriver `yaml:"driver" json:"driver"`
	Host     string    `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int       `yaml:"port,omitempty" json:"port,omitempty"`
	Database string    `yaml:"database" json:"database"`
	User     string    `yaml:"user,omitempty" json:"user,omitempty"`
	Password string    `yaml:"password,omitempty" json:"password,omitempty"`
	Table    string    `yaml:"table,omitempty" json:"table,omitempty"`
}

// Address returns host:port with the dialect default port applied.
func (t SQLTarget) Address() string {
	port := t.Port
	if port <= 0 {
		port = t.Driver.DefaultPort()
	}
	return t.Host + ":" + strconv.Itoa(port)
}

// TableName returns the configured table or the default one.
func (t SQLTarget) TableName() string {
	if t.Table == "" {
		return DefaultSQLTable
	}
	return t.Table
}

// StorageTarget is either a spreadsheet file or a database.
type StorageTarget struct {
	Kind  StorageKind `yaml:"kind" json:"kind"`
	Excel ExcelTarget `yaml:"excel,omitempty" json:"excel,omitempty"`
	SQL   SQLTarget   `yaml:"sql,omitempty" json:"sql,omitempty"`
}

// Validate checks that the selected target is usable.
func (s StorageTarget) Validate() error {
	switch s.Kind {
	case StorageExcel:
		if strings.TrimSpace(s.Excel.Path) == "" {
			return fmt.Errorf("%w: excel path required", ErrInvalidStorage)
		}
	case StorageSQL:
		if !s.SQL.Driver.IsValid() {
			return fmt.Errorf("%w: unknown driver %q", ErrInvalidStorage, s.SQL.Driver)
		}
		if strings.TrimSpace(s.SQL.Database) == "" {
			return fmt.Errorf("%w: database required", ErrInvalidStorage)
		}
		if s.SQL.Driver == DriverDuckDB {
			return nil
		}
		if strings.TrimSpace(s.SQL.Host) == "" || strings.TrimSpace(s.SQL.User) == "" {
			return fmt.Errorf("%w: host and user required", ErrInvalidStorage)
		}
		if s.SQL.Port < 0 || s.SQL.Port > 65535 {
			return fmt.Errorf("%w: port out of range", ErrInvalidStorage)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStorage, s.Kind)
	}
	return nil
}

// Redacted hides credentials for display.
func (s StorageTarget) Redacted() StorageTarget {
	if s.SQL.Password != "" {
		s.SQL.Password = "******"
	}
	return s
}

// Configuration holds the connection and target settings of the logger.
type Configuration struct {
	IP string `yaml:"ip" json:"ip"`
	// IntervalSeconds is zero when the interval is absent; polling is disabled then.
	IntervalSeconds float64       `yaml:"interval_seconds" json:"interval_seconds,omitempty"`
	Tags            []TagSpec     `yaml:"tags_to_monitor" json:"tags_to_monitor"`
	Storage         StorageTarget `yaml:"storage" json:"storage"`
}

// Default returns the settings used at process start.
func Default() Configuration {
	return Configuration{
		IP:              DefaultIP,
		IntervalSeconds: DefaultIntervalSeconds,
		Tags:            []TagSpec{},
		Storage: StorageTarget{
			Kind:  StorageExcel,
			Excel: ExcelTarget{Path: DefaultExcelPath},
			SQL:   SQLTarget{Driver: DriverMySQL, Port: DriverMySQL.DefaultPort(), Table: DefaultSQLTable},
		},
	}
}

// Interval returns the polling interval when one is set and in range.
func (c Configuration) Interval() (time.Duration, bool) {
	d, err := IntervalDuration(c.IntervalSeconds)
	if err != nil {
		return 0, false
	}
	return d, true
}

// IntervalDuration converts seconds to a duration. Values below MinInterval or
// too large for time.Duration are ErrInvalidInterval.
func IntervalDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, ErrInvalidInterval
	}
	nanos := seconds * float64(time.Second)
	// float64(math.MaxInt64) rounds up to 2^63, so equality already overflows.
	if nanos >= float64(math.MaxInt64) {
		return 0, ErrInvalidInterval
	}
	d := time.Duration(nanos)
	if d < MinInterval {
		return 0, ErrInvalidInterval
	}
	return d, nil
}

// Clone returns a copy that shares no slices with c.
func (c Configuration) Clone() Configuration {
	out := c
	out.Tags = append([]TagSpec(nil), c.Tags...)
	return out
}

// ValidateForLogging reports why logging cannot start, if it cannot.
func (c Configuration) ValidateForLogging() error {
	var missing []string
	if strings.TrimSpace(c.IP) == "" {
		missing = append(missing, "ip")
	}
	if _, ok := c.Interval(); !ok {
		missing = append(missing, "interval")
	}
	if len(c.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w (%s)", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// ParseInterval parses interval text. Blank text is absent without error.
func ParseInterval(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, ErrInvalidInterval
	}
	if _, err := IntervalDuration(value); err != nil {
		return 0, err
	}
	return value, nil
}

package sqlstore

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"

	settings "plc-datalogger/internal/settings/domain"
)

type dialect struct {
	driverName  string
	numericType string
	dsn         func(t settings.SQLTarget) string
	placeholder func(n int) string
}

func question(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func dialectFor(driver settings.SQLDriver) (dialect, error) {
	switch driver {
	case settings.DriverMySQL:
		return dialect{driverName: "mysql", numericType: "DOUBLE", dsn: mysqlDSN, placeholder: question}, nil
	case settings.DriverPostgres:
		return dialect{driverName: "pgx", numericType: "DOUBLE PRECISION", dsn: postgresDSN, placeholder: dollar}, nil
	case settings.DriverDuckDB:
		return dialect{driverName: "duckdb", numericType: "DOUBLE", dsn: duckdbDSN, placeholder: question}, nil
	default:
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func mysqlDSN(t settings.SQLTarget) string {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = t.Address()
	cfg.DBName = t.Database
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

func postgresDSN(t settings.SQLTarget) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(t.User, t.Password),
		Host:   t.Address(),
		Path:   "/" + t.Database,
	}
	q := url.Values{}
	q.Set("connect_timeout", "10")
	u.RawQuery = q.Encode()
	return u.String()
}

func duckdbDSN(t settings.SQLTarget) string {
	return t.Database
}

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// HasConnection reports whether a database target is configured at all.
func (d *DatabaseConfig) HasConnection() bool {
	return strings.TrimSpace(d.DSN) != "" || strings.TrimSpace(d.User) != ""
}

// DataSourceName returns the DSN to open. An explicit DSN wins; otherwise a
// MySQL DSN is built from the discrete fields. Other drivers need an explicit DSN.
func (d *DatabaseConfig) DataSourceName() (string, error) {
	if dsn := strings.TrimSpace(d.DSN); dsn != "" {
		return dsn, nil
	}
	if !isMySQLDriver(d.Driver) {
		return "", fmt.Errorf("database.dsn is required for driver %q", d.Driver)
	}

	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	mc.DBName = d.Database
	mc.ParseTime = true
	if d.ConnectionTimeout > 0 {
		mc.Timeout = d.ConnectionTimeout
	}
	return mc.FormatDSN(), nil
}

// RedactedDSN returns the DSN with the MySQL password masked, for logging.
func (d *DatabaseConfig) RedactedDSN() string {
	dsn, err := d.DataSourceName()
	if err != nil {
		return ""
	}
	if !isMySQLDriver(d.Driver) {
		return "<redacted>"
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "<redacted>"
	}
	if mc.Passwd != "" {
		mc.Passwd = "xxxxx"
	}
	return mc.FormatDSN()
}

func isMySQLDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		return true
	default:
		return false
	}
}

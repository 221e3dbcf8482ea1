package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"strings"
)

// DSNValue resolves the MySQL DSN: the top-level dsn wins, then the
// database block, then defaults.
func (c *AppConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}
	db := c.Database
	if v := strings.TrimSpace(db.DSN); v != "" {
		return v
	}
	if v := strings.TrimSpace(db.URL); v != "" {
		return v
	}

	host := strings.TrimSpace(db.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := db.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(db.User)
	if user == "" {
		user = defaultDBUser
	}
	name := strings.TrimSpace(db.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(db.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}

	auth := user
	if pw := strings.TrimSpace(db.Password); pw != "" {
		auth += ":" + pw
	}
	return fmt.Sprintf("%s@tcp(%s)/%s?charset=%s&parseTime=True&loc=Local",
		auth, net.JoinHostPort(host, strconv.Itoa(port)), name, charset)
}

// RedisURLValue resolves the redis connection URL the same way.
func (c *AppConfig) RedisURLValue() string {
	if v := strings.TrimSpace(c.RedisURL); v != "" {
		return v
	}
	r := c.Redis
	if v := strings.TrimSpace(r.URL); v != "" {
		return v
	}

	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := r.Port
	if port == 0 {
		port = defaultRedisPort
	}
	scheme := "redis"
	if r.TLS {
		scheme = "rediss"
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(r.DB),
	}
	username := strings.TrimSpace(r.Username)
	password := strings.TrimSpace(r.Password)
	switch {
	case username != "" && password != "":
		u.User = neturl.UserPassword(username, password)
	case username != "":
		u.User = neturl.User(username)
	case password != "":
		u.User = neturl.UserPassword("", password)
	}
	return u.String()
}

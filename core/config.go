package core

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Snapshot drivers
const (
	DriverFile     = "file"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Hashers
const (
	HasherSHA256 = "sha256"
	HasherBcrypt = "bcrypt"
)

type Config struct {
	Env     string
	Debug   bool
	AppName string
	Build   string

	// Admin holds the well-known bootstrap credentials. Change them before going to production.
	Admin struct {
		Identity  string
		Password  string
		FirstName string
		LastName  string
	}

	Hasher     string
	BcryptCost int

	Snapshot struct {
		Driver string
		Path   string
	}

	Database struct {
		Host       string
		Port       int
		User       string
		Password   string
		Name       string
		DisableTLS bool
	}

	Log struct {
		Level  string
		Pretty bool
	}
}

// DSN builds the postgres connection URL.
func (conf *Config) DSN() string {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     fmt.Sprintf("%s:%d", conf.Database.Host, conf.Database.Port),
		Path:     conf.Database.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type ConfigOption func(v *viper.Viper)

// WithConfigFile reads an explicit config file (yaml, toml, json...) on top of the defaults.
func WithConfigFile(path string) ConfigOption {
	return func(v *viper.Viper) {
		if path != "" {
			v.SetConfigFile(path)
		}
	}
}

// WithOverride forces a key to a value, whatever the environment says.
func WithOverride(key string, value interface{}) ConfigOption {
	return func(v *viper.Viper) { v.Set(key, value) }
}

// NewConfig loads the configuration: defaults, then config/.env.<env> (if present),
// then an optional config file, then environment variables prefixed with the env name.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Instituto")
	v.SetDefault("build", "dev")
	v.SetDefault("admin.identity", "1234")
	v.SetDefault("admin.password", "1")
	v.SetDefault("admin.firstName", "Administrador")
	v.SetDefault("admin.lastName", "Instituto")
	v.SetDefault("hasher", HasherSHA256)
	v.SetDefault("bcryptCost", bcrypt.DefaultCost)
	v.SetDefault("snapshot.driver", DriverFile)
	v.SetDefault("snapshot.path", "instituto.dat")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "instituto")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "instituto")
	v.SetDefault("database.disableTLS", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("snapshot.driver", DriverMemory)
	case "QA", "PROD":
		v.SetDefault("debug", false)
		v.SetDefault("log.pretty", false)
	}
	v.Set("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "config.godotenv(%s)", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "config.os.Stat(%s)", dotEnvPath)
	}
	v.AutomaticEnv()

	for _, opt := range opts {
		opt(v)
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config.ReadInConfig(%s)", v.ConfigFileUsed())
		}
	}

	conf := new(Config)
	conf.Env = v.GetString("env")
	conf.Debug = v.GetBool("debug")
	conf.AppName = v.GetString("appName")
	conf.Build = v.GetString("build")
	conf.Admin.Identity = v.GetString("admin.identity")
	conf.Admin.Password = v.GetString("admin.password")
	conf.Admin.FirstName = v.GetString("admin.firstName")
	conf.Admin.LastName = v.GetString("admin.lastName")
	conf.Hasher = strings.ToLower(v.GetString("hasher"))
	conf.BcryptCost = v.GetInt("bcryptCost")
	conf.Snapshot.Driver = strings.ToLower(v.GetString("snapshot.driver"))
	conf.Snapshot.Path = v.GetString("snapshot.path")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetInt("database.port")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")
	conf.Log.Level = v.GetString("log.level")
	conf.Log.Pretty = v.GetBool("log.pretty")

	if conf.Admin.Identity == "" || conf.Admin.Password == "" {
		return nil, errors.New("config: admin identity and password are required")
	}
	if conf.Admin.Identity == conf.Admin.Password {
		return nil, errors.New("config: admin password must differ from the admin identity")
	}
	return conf, nil
}

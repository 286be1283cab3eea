package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/contasync/contasync/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultDataDir      = "./data"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the contasync service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key used to sign the OAuth state parameter
	SecretKey string

	// Environment
	Environment string

	// OAuth application credentials registered with the accounting platform
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Authorization server endpoints
	AuthURL  string
	TokenURL string

	// Accounting platform API base to extract data from
	AccountingAPIURL string

	// Directory where extracted documents land
	DataDir string

	// Basic Auth credentials for the read endpoints
	// The password is carried as a bcrypt hash, never in plain text
	APIUsername     string
	APIPasswordHash string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		DataDir:     defaultDataDir,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"CLIENT_ID":          setString(&c.ClientID),
		"CLIENT_SECRET":      setString(&c.ClientSecret),
		"REDIRECT_URI":       setString(&c.RedirectURL),
		"AUTH_URL":           setString(&c.AuthURL),
		"TOKEN_URL":          setString(&c.TokenURL),
		"ACCOUNTING_API_URL": setString(&c.AccountingAPIURL),
		"DATA_OUTPUT_PATH":   setString(&c.DataDir),
		"API_USERNAME":       setString(&c.APIUsername),
		"API_PASSWORD_HASH":  setString(&c.APIPasswordHash),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("contasync", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.DataDir, "data-dir", "o", c.DataDir, "Directory for extracted documents")

	return fs.Parse(args)
}

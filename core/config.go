package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type (
	ServerConfig struct {
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration

		// JWTRefreshExpirationDelta bounds how long after the login a token may be refreshed.
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver string // postgres | memory
	}

	SessionConfig struct {
		RedisURL string // empty: in-process store
	}

	UploadConfig struct {
		Dir          string
		MaxBytes     int64
		PublicPrefix string
	}

	FeesConfig struct {
		DraftAmount         string
		PrimaryPerCandidate int
		MiddlePerCandidate  int
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address
		AdminSchoolCode  string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Session  SessionConfig
		Upload   UploadConfig
		Fees     FeesConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the configuration of the current ENV (DEV by default).
// Values come from the environment, prefixed with the ENV name (e.g. PROD_SECRETKEY),
// optionally seeded from config/.env.<env>.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "PBL Registry")
	conf.SetDefault("secretKey", "x7#qs1-lw!m0z$e4^vd&9k2(hr)f8u+ct5b=on3yg6ja@pie")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("defaultFromEmail", "PBL Registry <noreply@localhost>")
	conf.SetDefault("adminSchoolCode", "admin_school")

	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "pbl_registry")
	conf.SetDefault("database.user", "pbl")
	conf.SetDefault("database.password", "pbl")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("storage.driver", StorageDriverPostgres)
	conf.SetDefault("session.redisURL", "")

	conf.SetDefault("upload.dir", "uploads")
	conf.SetDefault("upload.maxBytes", int64(10<<20))
	conf.SetDefault("upload.publicPrefix", "/uploads/")

	conf.SetDefault("fees.draftAmount", "20000.00")
	conf.SetDefault("fees.primaryPerCandidate", 2000)
	conf.SetDefault("fees.middlePerCandidate", 2250)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	from, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		DefaultFromEmail: *from,
		AdminSchoolCode:  conf.GetString("adminSchoolCode"),
		Server: ServerConfig{
			Address:                   conf.GetString("server.address"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{Driver: conf.GetString("storage.driver")},
		Session: SessionConfig{RedisURL: conf.GetString("session.redisURL")},
		Upload: UploadConfig{
			Dir:          conf.GetString("upload.dir"),
			MaxBytes:     conf.GetInt64("upload.maxBytes"),
			PublicPrefix: conf.GetString("upload.publicPrefix"),
		},
		Fees: FeesConfig{
			DraftAmount:         conf.GetString("fees.draftAmount"),
			PrimaryPerCandidate: conf.GetInt("fees.primaryPerCandidate"),
			MiddlePerCandidate:  conf.GetInt("fees.middlePerCandidate"),
		},
	}
}

package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
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

	AIReviewConfig struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	// RosterConfig points at the external student roster; File seeds an in-memory roster instead (dev/tests).
	RosterConfig struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
		File    string
	}

	CacheConfig struct {
		Size int
		TTL  time.Duration
	}

	// PolicyConfig holds the business rules that must not be hard-coded:
	// grade routing, readiness thresholds and the gateway checklist.
	PolicyConfig struct {
		ApprovedGrades       []string
		ResubmitGrades       []string
		ReadyThreshold       int
		NearlyReadyThreshold int
		GatewayChecklist     []string
		OptionalChecklist    []string
		OJTHoursRequired     float64
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		CatalogueFile    string // seeds the in-memory catalogue (dev/tests)
		StoreTimeout     time.Duration
		Server           ServerConfig
		Database         DatabaseConfig
		AIReview         AIReviewConfig
		Roster           RosterConfig
		Cache            CacheConfig
		Policy           PolicyConfig
		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig reads the configuration from the environment (and `config/.env.<env>` if it exists).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "EvidenceHub")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "kd9$w1l-0q@v!r6n=z2m#pe8xj&u4t+7cb(sh)fyg3o5a")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "EvidenceHub <noreply@localhost>")
	v.SetDefault("storeTimeout", 5*time.Second)
	v.SetDefault("catalogueFile", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres") // or "memory"
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "evidencehub")
	v.SetDefault("database.user", "evidencehub")
	v.SetDefault("database.password", "evidencehub")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("aiReview.baseURL", "")
	v.SetDefault("aiReview.apiKey", "")
	v.SetDefault("aiReview.timeout", 20*time.Second)

	v.SetDefault("roster.baseURL", "")
	v.SetDefault("roster.apiKey", "")
	v.SetDefault("roster.timeout", 5*time.Second)
	v.SetDefault("roster.file", "")

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("policy.approvedGrades", "distinction,merit,pass")
	v.SetDefault("policy.resubmitGrades", "refer,not_yet_competent")
	v.SetDefault("policy.readyThreshold", 90)
	v.SetDefault("policy.nearlyReadyThreshold", 70)
	v.SetDefault("policy.gatewayChecklist", "portfolio_signed_off,ojt_hours_verified,english_level2,maths_level2,employer_satisfied")
	v.SetDefault("policy.optionalChecklist", "")
	v.SetDefault("policy.ojtHoursRequired", 278.0) // 6h a week over a 12 month programme

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		CatalogueFile:    v.GetString("catalogueFile"),
		StoreTimeout:     v.GetDuration("storeTimeout"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		AIReview: AIReviewConfig{
			BaseURL: v.GetString("aiReview.baseURL"),
			APIKey:  v.GetString("aiReview.apiKey"),
			Timeout: v.GetDuration("aiReview.timeout"),
		},
		Roster: RosterConfig{
			BaseURL: v.GetString("roster.baseURL"),
			APIKey:  v.GetString("roster.apiKey"),
			Timeout: v.GetDuration("roster.timeout"),
			File:    v.GetString("roster.file"),
		},
		Cache: CacheConfig{
			Size: v.GetInt("cache.size"),
			TTL:  v.GetDuration("cache.ttl"),
		},
		Policy: PolicyConfig{
			ApprovedGrades:       splitList(v.GetString("policy.approvedGrades")),
			ResubmitGrades:       splitList(v.GetString("policy.resubmitGrades")),
			ReadyThreshold:       v.GetInt("policy.readyThreshold"),
			NearlyReadyThreshold: v.GetInt("policy.nearlyReadyThreshold"),
			GatewayChecklist:     splitList(v.GetString("policy.gatewayChecklist")),
			OptionalChecklist:    splitList(v.GetString("policy.optionalChecklist")),
			OJTHoursRequired:     v.GetFloat64("policy.ojtHoursRequired"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = CleanString(part, true /* lower */); part != "" {
			out = append(out, part)
		}
	}
	return out
}

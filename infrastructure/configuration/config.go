package configuration

import (
	"fmt"
	"os"
	"strconv"

	"crosspost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Storage     Storage     `json:"storage"`
	OAuth       OAuth       `json:"oauth"`
	Publish     Publish     `json:"publish"`
	Logger      Logger      `json:"logger"`
}

type App struct {
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey"`
	// BaseURL is this deployment's public origin; callback redirect URIs
	// registered with each provider must match it exactly.
	BaseURL     string `json:"baseURL"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql Db `json:"psql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Storage points at the S3 bucket holding uploaded videos. PublicBaseURL is
// the externally reachable origin of that bucket; provider servers fetch
// media from it.
type Storage struct {
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	AccessKey     string `json:"accessKey"`
	SecretKey     string `json:"secretKey"`
	PublicBaseURL string `json:"publicBaseURL"`
}

// OAuth holds per-provider client credentials.
type OAuth struct {
	Facebook  OAuthClient `json:"facebook"`
	Instagram OAuthClient `json:"instagram"`
	TikTok    OAuthClient `json:"tiktok"`
	YouTube   OAuthClient `json:"youtube"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	// StateSecret overrides App.SecretKey for signing this provider's
	// handshake state.
	StateSecret string `json:"stateSecret"`
}

func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

type Publish struct {
	// PipelineTimeoutSeconds bounds one provider pipeline; siblings keep
	// running when one times out.
	PipelineTimeoutSeconds int `json:"pipelineTimeoutSeconds"`
	PollIntervalSeconds    int `json:"pollIntervalSeconds"`
	PollMaxAttempts        int `json:"pollMaxAttempts"`
}

type Logger struct {
	Format string `json:"format"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initOAuth(&C)
	initStorage(&C)
	initPublish(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = "5432"
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides the config file when provided.
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		C.App.BaseURL = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if C.App.BaseURL == "" {
		C.App.BaseURL = fmt.Sprintf("http://localhost:%d", C.App.Port)
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initOAuth(C *Config) {
	fill := func(c *OAuthClient, prefix, callbackPath string) {
		if c.ClientID == "" {
			c.ClientID = os.Getenv(prefix + "_CLIENT_ID")
		}
		if c.ClientSecret == "" {
			c.ClientSecret = os.Getenv(prefix + "_CLIENT_SECRET")
		}
		if c.RedirectURI == "" {
			if v := os.Getenv(prefix + "_REDIRECT_URI"); v != "" {
				c.RedirectURI = v
			} else {
				c.RedirectURI = C.App.BaseURL + callbackPath
			}
		}
		if C.App.TLSEnabled && !hasHTTPS(c.RedirectURI) {
			c.RedirectURI = toHTTPSCallback(c.RedirectURI)
		}
	}
	fill(&C.OAuth.Facebook, "FACEBOOK", "/auth/facebook/callback")
	fill(&C.OAuth.Instagram, "INSTAGRAM", "/auth/instagram/callback")
	fill(&C.OAuth.TikTok, "TIKTOK", "/auth/tiktok/callback")
	fill(&C.OAuth.YouTube, "GOOGLE", "/auth/youtube/callback")
}

func initStorage(C *Config) {
	if C.Storage.Bucket == "" {
		C.Storage.Bucket = os.Getenv("S3_BUCKET")
	}
	if C.Storage.Region == "" {
		C.Storage.Region = os.Getenv("S3_REGION")
	}
	if C.Storage.AccessKey == "" {
		C.Storage.AccessKey = os.Getenv("S3_ACCESS_KEY")
	}
	if C.Storage.SecretKey == "" {
		C.Storage.SecretKey = os.Getenv("S3_SECRET_KEY")
	}
	if C.Storage.PublicBaseURL == "" {
		C.Storage.PublicBaseURL = os.Getenv("S3_PUBLIC_BASE_URL")
	}
	if C.Storage.PublicBaseURL == "" && C.Storage.Bucket != "" && C.Storage.Region != "" {
		C.Storage.PublicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", C.Storage.Bucket, C.Storage.Region)
	}
}

func initPublish(C *Config) {
	if C.Publish.PipelineTimeoutSeconds == 0 {
		C.Publish.PipelineTimeoutSeconds = 360
	}
	if C.Publish.PollIntervalSeconds == 0 {
		C.Publish.PollIntervalSeconds = 5
	}
	if C.Publish.PollMaxAttempts == 0 {
		C.Publish.PollMaxAttempts = 20
	}
}

// helpers to coerce local callback to https
func hasHTTPS(u string) bool { return len(u) >= 8 && u[:8] == "https://" }
func toHTTPSCallback(u string) string {
	if len(u) >= 7 && u[:7] == "http://" {
		return "https://" + u[7:]
	}
	return u
}

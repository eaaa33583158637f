package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// GlobalPropertyPrefix marks environment variables that override top-level
// report definition properties: REPORTDEF_ReportFactory.showCustomOptions=false.
const GlobalPropertyPrefix = "REPORTDEF_"

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string
	LogLevel    string
	LogToDB     bool

	// MongoTimeout bounds the initial connect and ping.
	MongoTimeout time.Duration

	// EventStore is mongo, postgres, mysql or sqlite.
	EventStore    string
	EventStoreDSN string

	ReportDefinitionPath   string
	ReportReloadSchedule   string
	ReportInstalledModules []string
	ReportIgnoreMissing    bool
	ReportShowCustomOpts   bool
	ReportShowGeozoneID    bool
	ReportDataFields       bool
	// ReportStatusCodes is a code=description list replacing the built-in
	// status code table, e.g. "0xF020=Location,0xF111=Start".
	ReportStatusCodes string
	// ReportProperties are the REPORTDEF_ overrides with the prefix removed.
	ReportProperties map[string]string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		DBName:      getEnv("DB_NAME", "fleetreport"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-fleetreport"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogToDB:     getEnv("LOG_TO_DB", "false") == "true",

		MongoTimeout: getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),

		EventStore:    strings.ToLower(getEnv("EVENT_STORE", "mongo")),
		EventStoreDSN: getEnv("EVENT_STORE_DSN", ""),

		ReportDefinitionPath:   getEnv("REPORT_DEFINITION_PATH", "./reports.xml"),
		ReportReloadSchedule:   getEnv("REPORT_RELOAD_SCHEDULE", ""),
		ReportInstalledModules: splitList(getEnv("REPORT_INSTALLED_MODULES", "")),
		ReportIgnoreMissing:    getEnv("REPORT_IGNORE_MISSING", "false") == "true",
		ReportShowCustomOpts:   getEnv("REPORT_SHOW_CUSTOM_OPTIONS", "true") == "true",
		ReportShowGeozoneID:    getEnv("REPORT_SHOW_GEOZONE_ID", "false") == "true",
		ReportDataFields:       getEnv("REPORT_DATA_FIELDS", "false") == "true",
		ReportStatusCodes:      getEnv("REPORT_STATUS_CODES", ""),
		ReportProperties:       prefixedEnv(GlobalPropertyPrefix),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func prefixedEnv(prefix string) map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			out[name] = value
		}
	}
	return out
}

package app

import (
	"strings"

	"github.com/docuchat/backend/internal/platform/envutil"
)

type Config struct {
	ServiceName  string
	Environment  string
	Version      string
	Addr         string
	UploadDir    string
	AllowOrigins []string
}

func LoadConfig() Config {
	var origins []string
	for _, origin := range strings.Split(envutil.String("CORS_ALLOW_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return Config{
		ServiceName:  envutil.String("SERVICE_NAME", "docuchat"),
		Environment:  envutil.String("ENVIRONMENT", "development"),
		Version:      envutil.String("SERVICE_VERSION", "dev"),
		Addr:         ":" + envutil.String("PORT", "8080"),
		UploadDir:    envutil.String("UPLOAD_DIR", "uploads"),
		AllowOrigins: origins,
	}
}

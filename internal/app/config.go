package app

import (
	"strings"

	"github.com/yungbote/mindgraph-backend/internal/platform/envutil"
)

type Config struct {
	Env          string
	BindAddr     string
	AllowOrigins []string

	VectorProvider string
	EmbedDim       int
}

func LoadConfig() Config {
	origins := strings.Split(envutil.Str("CORS_ALLOW_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Config{
		Env:            envutil.Str("APP_ENV", "development"),
		BindAddr:       envutil.Str("BIND_ADDR", ":8080"),
		AllowOrigins:   origins,
		VectorProvider: strings.ToLower(envutil.Str("VECTOR_PROVIDER", "neo4j")),
		EmbedDim:       envutil.Int("EMBED_DIM", 0),
	}
}

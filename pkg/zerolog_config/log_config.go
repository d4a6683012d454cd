package zerolog_config

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce *sync.Once = &sync.Once{}
var startupLoggerOnce *sync.Once = &sync.Once{}

// ElasticsearchWriter indexes each ECS log line as one document in Index
type ElasticsearchWriter struct {
	URL    string
	Index  string
	Client *http.Client
}

func (ew ElasticsearchWriter) endpoint() string {
	return strings.TrimRight(ew.URL, "/") + "/" + ew.Index + "/_doc"
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	if ew.Index == "" {
		return 0, fmt.Errorf("elasticsearch index is not set")
	}
	client := ew.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Post(ew.endpoint(), "application/json", bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch index %s returned %d", ew.Index, resp.StatusCode)
	}

	return len(p), nil
}

// IndexName builds the log index for one binary, e.g. "patient-panel-logs".
// Elasticsearch only accepts lowercase names without separators or spaces.
func IndexName(app, stream string) string {
	name := strings.ToLower(strings.Trim(app+"-"+stream, "- "))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func startupLoggerWithEnv(elasticsearchURL string, stream string, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	if elasticsearchURL == "" {
		log.Logger = zerolog.New(console).With().Str("app", appPrefix).
			Timestamp().Logger()
		return
	}

	index := IndexName(appPrefix, stream)
	shipper := ecszerolog.New(&ElasticsearchWriter{
		URL:   elasticsearchURL,
		Index: index,
	})

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(shipper, console)).
		With().Str("app", appPrefix).
		Timestamp().Logger()
	log.Info().Str("index", index).Msg("Shipping logs to Elasticsearch")
}

// SetAppPrefix names the binary in every log line and in the log index
func SetAppPrefix(app string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = app
	})
}

// StartupWithEnv sets up the global logger. stream names the log index
// together with the app prefix; an empty Elasticsearch URL logs to the
// console only. Run SetAppPrefix first.
func StartupWithEnv(elasticsearchURL string, stream string, level string) error {
	if stream == "" {
		return fmt.Errorf("log stream name is required")
	}
	startupLoggerOnce.Do(func() {
		startupLoggerWithEnv(elasticsearchURL, stream, level)
	})
	return nil
}

// Package main provides the kalbio command line tool, a thin shell over the
// Kaleidoscope client SDK. It resolves credentials from a config file, a
// .env file, or the environment, and exposes the request primitives as
// verbs:
//
//	kalbio -config config.yaml get /activities
//	kalbio -d name=ProjectX post /programs
//	kalbio -o export.csv download /exports/42/download
//	kalbio -f data.csv -t text/csv upload /imports
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kaleidoscope-bio/kalbio-go/internal/config"
	"github.com/kaleidoscope-bio/kalbio-go/internal/logging"
	"github.com/kaleidoscope-bio/kalbio-go/kalbio"
)

// repeatedFlag collects the values of a flag that may appear multiple times.
type repeatedFlag []string

func (f *repeatedFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *repeatedFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	var configPath string
	var envFile string
	var output string
	var uploadFile string
	var uploadType string
	var data repeatedFlag
	var query repeatedFlag

	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.StringVar(&envFile, "env", ".env", "Env File Path")
	flag.StringVar(&output, "o", "", "Download destination path (download verb)")
	flag.StringVar(&uploadFile, "f", "", "File to upload (upload verb)")
	flag.StringVar(&uploadType, "t", "application/octet-stream", "MIME type of the uploaded file")
	flag.Var(&data, "d", "Body field as key=value, repeatable; values parsed as JSON when valid")
	flag.Var(&query, "q", "Query parameter as key=value, repeatable")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <get|post|put|delete|download|upload> <path>\n", os.Args[0])
		os.Exit(2)
	}
	verb, path := flag.Arg(0), flag.Arg(1)

	// A missing .env file is fine; explicit values and the process
	// environment still apply.
	_ = godotenv.Load(envFile)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level := log.InfoLevel
	if cfg.LogLevel != "" {
		if level, err = log.ParseLevel(cfg.LogLevel); err != nil {
			log.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
		}
	}
	logging.Setup(level, cfg.LogFile)

	client, err := newClient(cfg)
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}

	ctx := context.Background()

	switch verb {
	case "get":
		printResult(client.Get(ctx, path, parseQuery(query)))
	case "post":
		printResult(client.Post(ctx, path, buildBody(data)))
	case "put":
		printResult(client.Put(ctx, path, buildBody(data)))
	case "delete":
		printResult(client.Delete(ctx, path, parseQuery(query)))
	case "download":
		if output == "" {
			log.Fatal("download requires -o <destination>")
		}
		dest, errGet := client.GetFile(ctx, path, output, parseQuery(query))
		if errGet != nil {
			log.Fatalf("download failed: %v", errGet)
		}
		if dest == "" {
			os.Exit(1)
		}
		fmt.Println(dest)
	case "upload":
		if uploadFile == "" {
			log.Fatal("upload requires -f <file>")
		}
		f, errOpen := os.Open(uploadFile)
		if errOpen != nil {
			log.Fatalf("failed to open upload file: %v", errOpen)
		}
		defer func() {
			_ = f.Close()
		}()
		file := kalbio.File{Name: uploadFile, Reader: f, ContentType: uploadType}
		printResult(client.PostFile(ctx, path, file, buildBody(data)))
	default:
		log.Fatalf("unknown verb %q", verb)
	}
}

// newClient maps the CLI configuration onto SDK options.
func newClient(cfg *config.Config) (*kalbio.Client, error) {
	opts := []kalbio.Option{}
	if cfg.ClientID != "" || cfg.ClientSecret != "" {
		opts = append(opts, kalbio.WithCredentials(cfg.ClientID, cfg.ClientSecret))
	}
	if cfg.APIURL != "" {
		opts = append(opts, kalbio.WithBaseURL(cfg.APIURL))
	}
	if cfg.IAPClientID != "" {
		opts = append(opts, kalbio.WithIdentityProxy(cfg.IAPClientID))
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, kalbio.WithProxyURL(cfg.ProxyURL))
	}
	if cfg.SkipTLSVerify {
		opts = append(opts, kalbio.WithInsecureSkipVerify())
	}
	if len(cfg.ExtraHeaders) > 0 {
		opts = append(opts, kalbio.WithExtraHeaders(cfg.ExtraHeaders))
	}
	return kalbio.New(opts...)
}

// buildBody assembles a JSON body from repeated key=value pairs. Keys use
// sjson path syntax, so nested fields like fields.name=x work. Values that
// parse as JSON are inserted raw; everything else becomes a string. A nil
// return means no body was given.
func buildBody(data repeatedFlag) any {
	if len(data) == 0 {
		return nil
	}

	body := "{}"
	for _, pair := range data {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			log.Fatalf("invalid -d value %q, expected key=value", pair)
		}
		var err error
		if gjson.Valid(value) {
			body, err = sjson.SetRaw(body, key, value)
		} else {
			body, err = sjson.Set(body, key, value)
		}
		if err != nil {
			log.Fatalf("invalid -d key %q: %v", key, err)
		}
	}
	return rawBody(body)
}

// rawBody marks an already-serialized JSON string so it is sent verbatim.
type rawBody string

// MarshalJSON returns the stored JSON unmodified.
func (b rawBody) MarshalJSON() ([]byte, error) {
	return []byte(b), nil
}

// parseQuery converts repeated key=value pairs into query parameters.
func parseQuery(query repeatedFlag) url.Values {
	if len(query) == 0 {
		return nil
	}
	values := url.Values{}
	for _, pair := range query {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			log.Fatalf("invalid -q value %q, expected key=value", pair)
		}
		values.Add(key, value)
	}
	return values
}

// printResult writes the response body to stdout, exiting non-zero on
// errors or when the request produced no result.
func printResult(result kalbio.Result, err error) {
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	if !result.Exists() {
		os.Exit(1)
	}
	fmt.Println(string(result.Bytes()))
}

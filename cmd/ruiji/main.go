// Package main is the ruiji CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/importer"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/ranking"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/titleindex"
	"github.com/hyperjump/ruiji/internal/watcher"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"
	defaultServerURL  = "http://localhost:5000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists, so "ruiji server" from a project dir uses
// the project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if id := os.Getenv(config.ClientIDEnv); id != "" {
				cfg.Catalog.ClientID = id
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "similar":
		runSimilar()
	case "inspect":
		runInspect()
	case "pack":
		runPack()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func mustOutputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	offline := fs.Bool("offline", false, "never call the remote catalog API")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if *offline {
		cfg.Catalog.Offline = true
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("catalog_remote", cfg.Catalog.RemoteEnabled()),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if dirs := cfg.Import.Directories; len(dirs) > 0 {
		for _, dir := range dirs {
			sum, err := components.Importer.ImportDirectory(watchCtx, dir, cfg.Import.Extensions, cfg.Import.RecursiveOrDefault())
			if err != nil {
				logger.Warn("initial import failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			logger.Info("initial import", zap.String("dir", dir), zap.Int("files", sum.Files), zap.Int("items", sum.Items))
		}
		if cfg.Import.Watch {
			watchSvc = watcher.New(dirs, cfg.Import.Extensions, cfg.Import.RecursiveOrDefault(), components.Importer,
				watcher.WithLogger(logger))
			if err := watchSvc.Start(watchCtx); err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
		}
	}

	srv := server.NewServer(
		components.Service,
		components.Lookup,
		cfg,
		logger,
		server.WithStorage(components.Storage),
		server.WithTitleIndex(components.Titles),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves flags that appear after positional arguments to the front
// so flag.Parse sees them; the flag package stops at the first non-flag.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinName joins positional args so multi-word titles work with or without quotes.
func joinName(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printSimilarUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji similar [flags] <anime name>\n       ruiji similar [flags] --id <anime id>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ruiji similar Cowboy Bebop
  ruiji similar --media-type movie "Ghost in the Shell"
  ruiji similar --id 1 --k 20 --details=false
  ruiji similar --server "" --output json Frieren   # direct mode, no server
`)
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the model directly)")
	id := fs.Int64("id", 0, "rank by catalog id instead of name")
	mediaType := fs.String("media-type", "", "preferred media type when resolving the name (tv, movie, ova, ...)")
	k := fs.Int("k", 0, "number of similar items (0 = configured default)")
	details := fs.Bool("details", true, "fetch item details (with --id)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSimilarUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := mustOutputFormat(*outputFormat)
	name := joinName(fs.Args())
	if name == "" && *id <= 0 {
		printSimilarUsage(fs)
		os.Exit(1)
	}

	var (
		resp *models.SimilarResponse
		err  error
	)
	if *serverURL != "" {
		if *id > 0 {
			resp, err = similarByIDViaHTTP(*serverURL, *id, *k, *details)
		} else {
			resp, err = similarViaHTTP(*serverURL, &models.SimilarQuery{Name: name, MediaType: *mediaType, K: *k})
		}
	} else {
		resp, err = similarDirect(*configPath, name, *mediaType, *id, *k, *details)
	}
	if err != nil {
		fail("Similar failed: %v", err)
	}
	if err := cli.WriteSimilar(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func similarDirect(configPath, name, mediaType string, id int64, k int, details bool) (*models.SimilarResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	if id > 0 {
		if k <= 0 {
			k = cfg.Recommend.DefaultK
		}
		if maxK := cfg.Recommend.MaxK; maxK > 0 && k > maxK {
			k = maxK
		}
		return components.Service.SimilarByID(ctx, embedding.ID(id), k, details)
	}
	query := models.SimilarQuery{Name: name, MediaType: mediaType, K: k}
	if err := query.Validate(cfg.Recommend.DefaultK, cfg.Recommend.MaxK); err != nil {
		return nil, err
	}
	return components.Service.Similar(ctx, recommend.Request{Name: query.Name, MediaType: query.MediaType, K: query.K})
}

func similarViaHTTP(serverURL string, query *models.SimilarQuery) (*models.SimilarResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/find_similar", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeSimilarResponse(resp)
}

func similarByIDViaHTTP(serverURL string, id int64, k int, details bool) (*models.SimilarResponse, error) {
	q := url.Values{}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	q.Set("details", strconv.FormatBool(details))
	endpoint := fmt.Sprintf("%s/api/v1/items/%d/similar?%s", serverURL, id, q.Encode())
	resp, err := http.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeSimilarResponse(resp)
}

func decodeSimilarResponse(resp *http.Response) (*models.SimilarResponse, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var out models.SimilarResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// serverError extracts the {"error": ...} message of a failed response.
func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runInspect() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := mustOutputFormat(*outputFormat)
	path := fs.Arg(0)
	if path == "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		path = cfg.Embedding.ArtifactPath
	}
	stats, err := inspectArtifact(path)
	if err != nil {
		fail("Inspect failed: %v", err)
	}
	if err := cli.WriteArtifactStats(os.Stdout, stats, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func inspectArtifact(path string) (*cli.ArtifactStats, error) {
	store, err := embedding.Load(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &cli.ArtifactStats{
		Path:       path,
		Format:     string(embedding.FormatForPath(path)),
		Items:      store.Len(),
		Dimensions: store.Dimensions(),
		Degenerate: store.Degenerate(),
		SizeBytes:  info.Size(),
	}, nil
}

func runPack() {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 2 {
		fmt.Println("Usage: ruiji pack [flags] <source.json> <destination.bin>")
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)
	stats, err := packArtifact(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fail("Pack failed: %v", err)
	}
	if err := cli.WriteArtifactStats(os.Stdout, stats, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// packArtifact converts the artifact at src into the format implied by dst.
// The source is validated as a store before anything is written.
func packArtifact(src, dst string) (*cli.ArtifactStats, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, &embedding.LoadError{Path: src, Err: err}
	}
	ids, vectors, err := embedding.Decode(data, embedding.FormatForPath(src))
	if err != nil {
		return nil, &embedding.LoadError{Path: src, Err: err}
	}
	if _, err := embedding.New(ids, vectors); err != nil {
		return nil, err
	}
	if err := embedding.Write(dst, ids, vectors); err != nil {
		return nil, err
	}
	return inspectArtifact(dst)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := mustOutputFormat(*outputFormat)
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	paths := fs.Args()
	if len(paths) == 0 {
		paths = cfg.Import.Directories
	}
	if len(paths) == 0 {
		fmt.Println("Usage: ruiji import [flags] <file-or-directory>...")
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	total := &importer.Summary{}
	ctx := context.Background()
	for _, p := range paths {
		sum, err := components.Importer.ImportPath(ctx, p, cfg.Import.Extensions, *recursive)
		if err != nil {
			fail("Import of %s failed: %v", p, err)
		}
		total.Files += sum.Files
		total.Skipped += sum.Skipped
		total.Items += sum.Items
		total.Failed += sum.Failed
	}
	if err := cli.WriteImportSummary(os.Stdout, total, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local files directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustOutputFormat(*outputFormat)
	var (
		st  *cli.Status
		err error
	)
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL)
	} else {
		st, err = statusDirect(*configPath)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func statusDirect(configPath string) (*cli.Status, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	items, err := components.Storage.CountItems(context.Background())
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	docs, err := components.Titles.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count title index docs: %w", err)
	}
	st := &cli.Status{
		CorpusSize:     components.Service.Size(),
		Dimensions:     components.Service.Dimensions(),
		CatalogItems:   items,
		TitleIndexDocs: docs,
		ArtifactPath:   cfg.Embedding.ArtifactPath,
		DatabasePath:   cfg.Storage.DatabasePath,
		TitleIndexPath: cfg.Storage.TitleIndexPath,
		CatalogOnline:  components.Lookup.Online(),
	}
	if disk, err := storage.DiskUsageBytes(cfg.Embedding.ArtifactPath, cfg.Storage.DatabasePath, cfg.Storage.TitleIndexPath); err == nil {
		st.DiskUsageBytes = disk
	}
	return st, nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	CorpusSize     int    `json:"corpus_size"`
	Dimensions     int    `json:"dimensions"`
	CatalogItems   int64  `json:"catalog_items"`
	TitleIndexDocs uint64 `json:"title_index_docs"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	CatalogOnline  bool   `json:"catalog_online"`
	Config         struct {
		ArtifactPath   string `json:"artifact_path"`
		DatabasePath   string `json:"database_path"`
		TitleIndexPath string `json:"title_index_path"`
	} `json:"config"`
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &cli.Status{
		CorpusSize:     s.CorpusSize,
		Dimensions:     s.Dimensions,
		CatalogItems:   s.CatalogItems,
		TitleIndexDocs: s.TitleIndexDocs,
		DiskUsageBytes: s.DiskUsageBytes,
		ArtifactPath:   s.Config.ArtifactPath,
		DatabasePath:   s.Config.DatabasePath,
		TitleIndexPath: s.Config.TitleIndexPath,
		CatalogOnline:  s.CatalogOnline,
	}, nil
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Titles   *titleindex.Index
	Lookup   *catalog.Lookup
	Importer *importer.Importer
	// Set only when embeddings were requested.
	Embeddings *embedding.Store
	Service    *recommend.Service
}

func (c *Components) Close() {
	if c.Titles != nil {
		_ = c.Titles.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withEmbeddings bool) (*Components, error) {
	logger = utils.LoggerOrNop(logger)
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	titles, err := titleindex.Open(cfg.Storage.TitleIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize title index: %w", err)
	}
	c := &Components{Storage: store, Titles: titles}

	lookupOpts := []catalog.LookupOption{
		catalog.WithCache(catalog.NewDetailCache(cfg.Catalog.CacheSize)),
		catalog.WithLogger(logger),
	}
	if cfg.Catalog.RemoteEnabled() {
		client := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.ClientID,
			catalog.WithTimeout(cfg.Catalog.Timeout),
			catalog.WithClientLogger(logger),
		)
		lookupOpts = append(lookupOpts, catalog.WithRemote(client))
	} else {
		logger.Info("catalog API disabled, using local catalog only",
			zap.Bool("offline", cfg.Catalog.Offline),
			zap.Bool("client_id_set", cfg.Catalog.ClientID != ""))
	}
	c.Lookup = catalog.NewLookup(store, titles, lookupOpts...)
	c.Importer = importer.New(store, titles,
		importer.WithInvalidator(c.Lookup.Forget),
		importer.WithLogger(logger),
	)

	if !withEmbeddings {
		return c, nil
	}
	emb, err := embedding.Load(cfg.Embedding.ArtifactPath)
	if err != nil {
		c.Close()
		return nil, err
	}
	if want := cfg.Embedding.Dimensions; want > 0 && emb.Dimensions() != want {
		c.Close()
		return nil, fmt.Errorf("artifact %s has %d dimensions, config expects %d",
			cfg.Embedding.ArtifactPath, emb.Dimensions(), want)
	}
	if n := emb.Degenerate(); n > 0 {
		logger.Warn("artifact contains zero or non-finite vectors", zap.Int("count", n))
	}
	logger.Info("embeddings loaded",
		zap.String("path", cfg.Embedding.ArtifactPath),
		zap.Int("items", emb.Len()),
		zap.Int("dimensions", emb.Dimensions()))
	c.Embeddings = emb
	c.Service = recommend.New(
		ranking.NewRanker(emb, ranking.WithLogger(logger)),
		c.Lookup,
		recommend.WithLogger(logger),
		recommend.WithConcurrency(cfg.Recommend.EnrichConcurrency),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`ruiji - anime similarity recommender

Usage:
  ruiji server [flags]                 Start the HTTP server
  ruiji similar [flags] <name>         Find anime similar to a title
  ruiji similar [flags] --id <id>      Find anime similar to a catalog id
  ruiji inspect [flags] [artifact]     Show embedding artifact statistics
  ruiji pack <src.json> <dst.bin>      Convert an embedding artifact
  ruiji import [flags] [path...]       Import catalog JSON files into the local catalog
  ruiji status [flags]                 Show corpus/catalog/index status
  ruiji version                        Show version
  ruiji help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging
  --offline          Never call the remote catalog API

Similar Flags:
  --server string      Server URL (default: http://localhost:5000). Use --server "" to load the model directly.
  --id int             Rank by catalog id instead of name
  --media-type string  Preferred media type when several titles match
  --k int              Number of similar items (default from config)
  --details            Fetch item details when ranking by id (default: true)
  --output string      Output format: text or json (default: text)

Environment:
  RUIJI_CATALOG_CLIENT_ID   Catalog API client id (overrides catalog.client_id)

Examples:
  ruiji server
  ruiji similar Cowboy Bebop
  ruiji similar --media-type movie --k 5 Akira
  ruiji similar --id 1 --output json
  ruiji inspect ./anime_embeddings.json
  ruiji pack anime_embeddings.json anime_embeddings.bin
  ruiji import ./catalog
  ruiji status --output json`)
}

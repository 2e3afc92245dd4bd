// Package config loads plan requests from TOML files and JSON bodies.
//
// A request file names the sources to gather from, what to install, and
// what is already installed:
//
//	framework = "net8.0"
//	action = "install"
//	packages_folder = "./packages"
//	allow_downgrades = false
//
//	[[source]]
//	name = "nuget"
//	url = "https://feed.example.com/v3"
//	primary = true
//
//	[[target]]
//	id = "Newtonsoft.Json"
//	version = "13.0.3"
//
//	[[installed]]
//	id = "Serilog"
//	version = "3.1.1"
//
//	[gather]
//	max_concurrency = 8
//	request_timeout = "30s"
//
//	[cache]
//	backend = "file"
//	ttl = "1h"
//
// The same shape, in JSON, is the body of the HTTP API's plan endpoint.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/core/prune"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/pipeline"
	"github.com/matzehuels/pkggather/pkg/source"
	"github.com/matzehuels/pkggather/pkg/source/local"
	"github.com/matzehuels/pkggather/pkg/source/memory"
	"github.com/matzehuels/pkggather/pkg/source/remote"
)

// DefaultFeedTTL is how long feed responses stay in the HTTP cache.
const DefaultFeedTTL = 30 * time.Minute

// Config is a plan request.
type Config struct {
	Framework         string    `toml:"framework" json:"framework,omitempty"`
	Action            string    `toml:"action" json:"action,omitempty"`
	PackagesFolder    string    `toml:"packages_folder" json:"packages_folder,omitempty"`
	Sources           []Source  `toml:"source" json:"sources"`
	Targets           []Package `toml:"target" json:"targets,omitempty"`
	TargetIDs         []string  `toml:"target_ids" json:"target_ids,omitempty"`
	Installed         []Package `toml:"installed" json:"installed,omitempty"`
	Allowed           []Allowed `toml:"allowed" json:"allowed,omitempty"`
	AllowDowngrades   *bool     `toml:"allow_downgrades" json:"allow_downgrades,omitempty"`
	UpdateAll         bool      `toml:"update_all" json:"update_all,omitempty"`
	IncludePrerelease bool      `toml:"include_prerelease" json:"include_prerelease,omitempty"`
	Constraints       []string  `toml:"constraints" json:"constraints,omitempty"`
	Refresh           bool      `toml:"refresh" json:"refresh,omitempty"`

	Gather Gather `toml:"gather" json:"gather,omitempty"`
	Cache  Cache  `toml:"cache" json:"-"`

	// baseDir resolves relative paths; set by Load.
	baseDir string
}

// Source is a package source. Exactly one of URL, Path or Packages is set.
type Source struct {
	Name     string          `toml:"name" json:"name,omitempty"`
	URL      string          `toml:"url" json:"url,omitempty"`
	Path     string          `toml:"path" json:"path,omitempty"`
	Primary  bool            `toml:"primary" json:"primary,omitempty"`
	Packages []InlinePackage `toml:"package" json:"packages,omitempty"`
}

// Package names a package, optionally at an exact version.
type Package struct {
	ID      string `toml:"id" json:"id"`
	Version string `toml:"version" json:"version,omitempty"`
}

// Allowed restricts an id to a version range.
type Allowed struct {
	ID    string `toml:"id" json:"id"`
	Range string `toml:"range" json:"range"`
}

// InlinePackage is one version served by an inline source.
type InlinePackage struct {
	ID           string       `toml:"id" json:"id"`
	Version      string       `toml:"version" json:"version"`
	Unlisted     bool         `toml:"unlisted" json:"unlisted,omitempty"`
	Dependencies []Dependency `toml:"dependency" json:"dependencies,omitempty"`
}

// Dependency is an inline package dependency.
type Dependency struct {
	ID    string `toml:"id" json:"id"`
	Range string `toml:"range" json:"range,omitempty"`
}

// Gather tunes the gatherer.
type Gather struct {
	MaxConcurrency int      `toml:"max_concurrency" json:"max_concurrency,omitempty"`
	RequestTimeout Duration `toml:"request_timeout" json:"request_timeout,omitempty"`
}

// Options converts the section to gatherer options.
func (g Gather) Options() gather.Options {
	return gather.Options{
		MaxConcurrency: g.MaxConcurrency,
		RequestTimeout: g.RequestTimeout.Duration,
	}
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads a TOML request file. Relative paths in the file are resolved
// against its directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.baseDir = filepath.Dir(path)
	return c, nil
}

// Parse decodes a TOML request. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return &c, nil
}

// ParseJSON decodes a JSON request, as sent to the HTTP API.
func ParseJSON(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	return &c, nil
}

// BuildOptions configures [Config.Build].
type BuildOptions struct {
	// HTTPCache backs the feed clients. Nil disables response caching.
	HTTPCache cache.Cache

	// FeedTTL is the lifetime of cached feed responses. Zero means DefaultFeedTTL.
	FeedTTL time.Duration

	// NoFilesystem rejects path sources and the packages folder. The HTTP
	// API sets it.
	NoFilesystem bool
}

// Build turns the config into a plan request.
func (c *Config) Build(opts BuildOptions) (pipeline.Request, error) {
	action, err := pipeline.ParseAction(c.Action)
	if err != nil {
		return pipeline.Request{}, err
	}
	constraints, err := prune.ParseConstraints(c.Constraints...)
	if err != nil {
		return pipeline.Request{}, err
	}
	if opts.FeedTTL == 0 {
		opts.FeedTTL = DefaultFeedTTL
	}

	gc := gather.NewContext()
	if gc.Framework, err = packaging.ParseFramework(c.Framework); err != nil {
		return pipeline.Request{}, err
	}
	if c.AllowDowngrades != nil {
		gc.AllowDowngrades = *c.AllowDowngrades
	}
	gc.IsUpdateAll = c.UpdateAll

	if len(c.Sources) == 0 {
		return pipeline.Request{}, errors.New(errors.ErrCodeInvalidConfig, "no sources configured")
	}
	anyPrimary := false
	for _, s := range c.Sources {
		anyPrimary = anyPrimary || s.Primary
	}
	for i, s := range c.Sources {
		src, err := c.buildSource(s, opts)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("source %d: %w", i+1, err)
		}
		if s.Primary || !anyPrimary {
			gc.PrimarySources = append(gc.PrimarySources, src)
		}
		gc.AllSources = append(gc.AllSources, src)
	}

	if c.PackagesFolder != "" {
		if opts.NoFilesystem {
			return pipeline.Request{}, errors.New(errors.ErrCodeInvalidInput, "packages_folder is not allowed here")
		}
		gc.PackagesFolder = local.New(c.resolve(c.PackagesFolder))
	}

	if gc.PrimaryTargets, err = identities("target", c.Targets); err != nil {
		return pipeline.Request{}, err
	}
	gc.PrimaryTargetIDs = append(gc.PrimaryTargetIDs, c.TargetIDs...)
	if gc.InstalledPackages, err = identities("installed", c.Installed); err != nil {
		return pipeline.Request{}, err
	}

	var allowed []packaging.Dependency
	for _, a := range c.Allowed {
		r, err := packaging.ParseVersionRange(a.Range)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("allowed %s: %w", a.ID, err)
		}
		allowed = append(allowed, packaging.Dependency{ID: a.ID, Range: r})
	}

	req := pipeline.Request{
		Context:           gc,
		Action:            action,
		IncludePrerelease: c.IncludePrerelease,
		Allowed:           allowed,
		Constraints:       constraints,
		Refresh:           c.Refresh,
	}
	if err := req.Validate(); err != nil {
		return pipeline.Request{}, err
	}
	return req, nil
}

func (c *Config) buildSource(s Source, opts BuildOptions) (source.Source, error) {
	set := 0
	for _, v := range []bool{s.URL != "", s.Path != "", len(s.Packages) > 0} {
		if v {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "exactly one of url, path or packages must be set")
	}

	switch {
	case s.URL != "":
		if err := errors.ValidateURL(s.URL); err != nil {
			return nil, err
		}
		return remote.New(opts.HTTPCache, s.URL, opts.FeedTTL).Refresh(c.Refresh), nil
	case s.Path != "":
		if opts.NoFilesystem {
			return nil, errors.New(errors.ErrCodeInvalidInput, "path sources are not allowed here")
		}
		return local.New(c.resolve(s.Path)), nil
	default:
		name := s.Name
		if name == "" {
			name = "inline"
		}
		if err := errors.ValidateSourceName(name); err != nil {
			return nil, err
		}
		return inlineSource(name, s.Packages)
	}
}

func inlineSource(name string, pkgs []InlinePackage) (*memory.Source, error) {
	src := memory.New(name)
	for _, p := range pkgs {
		id, err := packaging.ParseIdentity(p.ID, p.Version)
		if err != nil {
			return nil, err
		}
		if !id.HasVersion() {
			return nil, errors.New(errors.ErrCodeInvalidVersion, "inline package %s has no version", p.ID)
		}
		deps := make([]packaging.Dependency, 0, len(p.Dependencies))
		for _, d := range p.Dependencies {
			r, err := packaging.ParseVersionRange(d.Range)
			if err != nil {
				return nil, err
			}
			deps = append(deps, packaging.Dependency{ID: d.ID, Range: r})
		}
		src.AddPackage(memory.Package{
			Identity: id,
			Groups:   []packaging.DependencyGroup{{Framework: packaging.AnyFramework, Dependencies: deps}},
			Unlisted: p.Unlisted,
		})
	}
	return src, nil
}

func identities(kind string, pkgs []Package) ([]packaging.Identity, error) {
	out := make([]packaging.Identity, 0, len(pkgs))
	for _, p := range pkgs {
		id, err := packaging.ParseIdentity(p.ID, p.Version)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, p.ID, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (c *Config) resolve(path string) string {
	if c.baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// Cache selects the cache backend.
type Cache struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	TTL           Duration `toml:"ttl"`
	Entries       int      `toml:"entries"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPrefix   string   `toml:"redis_prefix"`
	MongoURI      string   `toml:"mongo_uri"`
	MongoDatabase string   `toml:"mongo_database"`
}

// Cache backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// Open connects the configured backend. An empty backend means file, and
// an empty dir means defaultDir.
func (c Cache) Open(ctx context.Context, defaultDir string) (cache.Cache, error) {
	switch strings.ToLower(c.Backend) {
	case "", BackendFile:
		dir := c.Dir
		if dir == "" {
			dir = defaultDir
		}
		if dir == "" {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	case BackendMemory:
		return cache.NewMemoryCache(c.Entries, c.TTL.Duration), nil
	case BackendRedis:
		if c.RedisAddr == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
		rc, err := cache.NewRedisCache(ctx, c.RedisAddr, c.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendMongo:
		if c.MongoURI == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "cache.mongo_uri is required for the mongo backend")
		}
		db := c.MongoDatabase
		if db == "" {
			db = "pkggather"
		}
		mc, err := cache.NewMongoCache(ctx, c.MongoURI, db)
		if err != nil {
			return nil, err
		}
		return mc, nil
	case BackendNone:
		return cache.NewNullCache(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (must be one of: file, memory, redis, mongo, none)", c.Backend)
	}
}

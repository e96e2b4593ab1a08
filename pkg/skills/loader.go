package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/telemetry"
)

const (
	// DefaultSkillFileName is the well-known definition file name looked
	// for in each skill folder.
	DefaultSkillFileName = "SKILL.md"
	// DefaultCacheDuration is how long a completed discovery pass stays
	// authoritative before the next call re-reads the filesystem.
	DefaultCacheDuration = 5 * time.Minute
)

// Loader discovers skill packages under a base directory and serves them
// through the three disclosure levels. It owns two caches keyed by skill
// id: the metadata cache filled by Discover and the full-skill cache
// filled by Load. Both are time-boxed together; changes on disk within
// the window are invisible until the window expires or InvalidateCache is
// called.
//
// A Loader is safe for concurrent use.
type Loader struct {
	basePath      string
	skillFileName string
	cacheDuration time.Duration
	eagerLoad     bool
	categories    []Category

	mu            sync.RWMutex
	metadataCache map[string]*Skill
	fullCache     map[string]*Skill
	catalogOrder  []string
	lastDiscovery time.Time

	// discovering serializes discovery passes. Callers that race for it
	// re-check the cache after acquiring so only the first does the work.
	discovering sync.Mutex

	// stat/read indirection so tests can count filesystem access
	statFile func(string) (os.FileInfo, error)
	readFile func(string) ([]byte, error)
}

// Option configures a Loader.
type Option func(*Loader) error

// WithBasePath sets the directory scanned for skill folders.
func WithBasePath(path string) Option {
	return func(l *Loader) error {
		if path == "" {
			return errors.New("base path cannot be empty")
		}
		l.basePath = path
		return nil
	}
}

// WithSkillFileName overrides the definition file name.
func WithSkillFileName(name string) Option {
	return func(l *Loader) error {
		if name == "" {
			return errors.New("skill file name cannot be empty")
		}
		if strings.ContainsRune(name, os.PathSeparator) {
			return errors.Errorf("skill file name %q must not contain a path separator", name)
		}
		l.skillFileName = name
		return nil
	}
}

// WithCacheDuration overrides the discovery cache window. A zero duration
// disables caching entirely.
func WithCacheDuration(d time.Duration) Option {
	return func(l *Loader) error {
		if d < 0 {
			return errors.New("cache duration cannot be negative")
		}
		l.cacheDuration = d
		return nil
	}
}

// WithEagerResourceLoading makes Load materialize every resource's content
// before returning. Load latency becomes proportional to the skill's total
// resource bytes, so this is an opt-in escape hatch rather than a default.
func WithEagerResourceLoading(enabled bool) Option {
	return func(l *Loader) error {
		l.eagerLoad = enabled
		return nil
	}
}

// WithCategory replaces the definition of one resource category, matched
// by its Type.
func WithCategory(cat Category) Option {
	return func(l *Loader) error {
		if cat.Folder == "" || cat.Pattern == "" {
			return errors.New("category folder and pattern cannot be empty")
		}
		for i := range l.categories {
			if l.categories[i].Type == cat.Type {
				l.categories[i] = cat
				return nil
			}
		}
		return errors.Errorf("unknown resource category %q", cat.Type)
	}
}

// NewLoader builds a Loader. The base path is resolved to an absolute path
// so that skill and resource records always carry absolute locations.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		basePath:      "skills",
		skillFileName: DefaultSkillFileName,
		cacheDuration: DefaultCacheDuration,
		categories:    DefaultCategories(),
		metadataCache: make(map[string]*Skill),
		fullCache:     make(map[string]*Skill),
		statFile:      os.Stat,
		readFile:      os.ReadFile,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(l.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "resolving skills base path")
	}
	l.basePath = abs

	return l, nil
}

// BasePath returns the absolute directory the loader scans.
func (l *Loader) BasePath() string {
	return l.basePath
}

// Discover returns the catalog of skills as metadata-only records:
// Instructions empty, IsFullyLoaded false, resource inventories populated
// from stat calls for count display. Results come from the metadata cache
// when a prior pass completed within the cache window; an empty catalog is
// never cached, so a base directory created after a miss becomes visible
// on the next call.
func (l *Loader) Discover(ctx context.Context) ([]*Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if catalog, ok := l.cachedCatalog(); ok {
		return catalog, nil
	}

	l.discovering.Lock()
	defer l.discovering.Unlock()

	// another caller may have finished a pass while this one waited
	if catalog, ok := l.cachedCatalog(); ok {
		return catalog, nil
	}

	ctx, span := telemetry.Tracer("satchel.skills").Start(ctx, "skills.discover",
		trace.WithAttributes(attribute.String("base_path", l.basePath)))
	defer span.End()

	discovered, order, err := l.discoverAll(ctx)
	if err != nil {
		// nothing is published on a cancelled pass; the previous cache
		// stays intact
		return nil, err
	}

	l.mu.Lock()
	l.metadataCache = discovered
	l.fullCache = make(map[string]*Skill)
	l.catalogOrder = order
	l.lastDiscovery = time.Now()
	catalog := l.catalogLocked()
	l.mu.Unlock()

	span.SetAttributes(attribute.Int("skill_count", len(catalog)))
	return catalog, nil
}

// cachedCatalog returns the catalog when the cache window is still open
// and at least one skill is cached.
func (l *Loader) cachedCatalog() ([]*Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.cacheValidLocked() || len(l.metadataCache) == 0 {
		return nil, false
	}
	return l.catalogLocked(), true
}

func (l *Loader) cacheValidLocked() bool {
	return !l.lastDiscovery.IsZero() && time.Since(l.lastDiscovery) < l.cacheDuration
}

func (l *Loader) catalogLocked() []*Skill {
	out := make([]*Skill, 0, len(l.catalogOrder))
	for _, id := range l.catalogOrder {
		if skill, ok := l.metadataCache[id]; ok {
			out = append(out, skill)
		}
	}
	return out
}

// discoverAll walks the base path and parses every definition file into a
// metadata-only record. Unparseable definitions are skipped and logged,
// never surfaced. Only context cancellation aborts the pass.
func (l *Loader) discoverAll(ctx context.Context) (map[string]*Skill, []string, error) {
	log := logger.G(ctx)

	if info, err := l.statFile(l.basePath); err != nil || !info.IsDir() {
		log.WithField("base_path", l.basePath).Debug("skill base directory is not available")
		return map[string]*Skill{}, nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(l.basePath), "**/"+l.skillFileName)
	if err != nil {
		log.WithError(err).WithField("base_path", l.basePath).Warn("failed to enumerate skill definitions")
		return map[string]*Skill{}, nil, nil
	}
	sort.Strings(matches)

	discovered := make(map[string]*Skill)
	var order []string
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		filePath := filepath.Join(l.basePath, filepath.FromSlash(rel))
		skill, err := l.parseSkill(ctx, filePath, false)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.WithError(err).WithField("path", filePath).Debug("skipping unparseable skill definition")
			continue
		}

		if _, exists := discovered[skill.ID]; exists {
			log.WithField("skill", skill.ID).WithField("path", filePath).Debug("skipping duplicate skill id")
			continue
		}
		discovered[skill.ID] = skill
		order = append(order, skill.ID)
	}

	log.WithField("count", len(order)).Debug("discovered skills")
	return discovered, order, nil
}

// parseSkill builds a fresh record from the definition file at filePath.
// The full pass additionally populates the instructions body and flips
// IsFullyLoaded; both passes run resource discovery.
func (l *Loader) parseSkill(ctx context.Context, filePath string, full bool) (*Skill, error) {
	raw, err := l.readFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "reading skill definition")
	}

	meta, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(filePath)
	skill := &Skill{
		ID:            filepath.Base(dir),
		FilePath:      filePath,
		BaseDirectory: dir,
		LoadedAt:      time.Now(),
	}
	if info, err := l.statFile(filePath); err == nil {
		skill.LastModified = info.ModTime()
	}
	applyMetadata(skill, meta)

	if full {
		skill.Instructions = strings.TrimSpace(body)
		skill.IsFullyLoaded = true
	}

	if err := l.discoverResources(ctx, skill); err != nil {
		return nil, err
	}
	return skill, nil
}

// Load promotes the skill with the given id to a fully-loaded record:
// instructions populated, IsFullyLoaded true, fresh resource handles. An
// unknown id or a definition that fails to parse yields (nil, nil); the
// error return carries context cancellation only.
//
// Concurrent Loads for the same uncached id may both do the parse work and
// both insert; the cache is last-write-wins, which wastes a parse but is
// correctness-neutral.
func (l *Loader) Load(ctx context.Context, id string) (*Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	if skill, ok := l.fullCache[id]; ok && l.cacheValidLocked() {
		l.mu.RUnlock()
		return skill, nil
	}
	l.mu.RUnlock()

	if _, err := l.Discover(ctx); err != nil {
		return nil, err
	}

	l.mu.RLock()
	meta, known := l.metadataCache[id]
	l.mu.RUnlock()
	if !known {
		return nil, nil
	}

	ctx, span := telemetry.Tracer("satchel.skills").Start(ctx, "skills.load",
		trace.WithAttributes(attribute.String("skill_id", id)))
	defer span.End()

	skill, err := l.parseSkill(ctx, meta.FilePath, true)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.G(ctx).WithError(err).WithField("skill", id).Debug("skill definition failed to load")
		return nil, nil
	}

	if l.eagerLoad {
		for _, res := range skill.AllResources() {
			if _, _, err := l.LoadResourceContent(ctx, res); err != nil {
				return nil, err
			}
		}
	}

	l.mu.Lock()
	l.fullCache[id] = skill
	l.mu.Unlock()

	return skill, nil
}

// LoadResourceContent materializes the content of one resource. The first
// successful call reads the file and caches the text on the handle; every
// later call is served from memory without touching the filesystem. A file
// deleted since discovery yields ok == false and leaves the handle
// unloaded so a later call can retry.
func (l *Loader) LoadResourceContent(ctx context.Context, res *Resource) (content string, ok bool, err error) {
	if res == nil {
		return "", false, nil
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	res.mu.Lock()
	defer res.mu.Unlock()

	if res.content != nil {
		return *res.content, true, nil
	}

	ctx, span := telemetry.Tracer("satchel.skills").Start(ctx, "skills.load_resource",
		trace.WithAttributes(attribute.String("path", res.RelativePath)))
	defer span.End()

	if _, err := l.statFile(res.FilePath); err != nil {
		logger.G(ctx).WithField("path", res.FilePath).Debug("resource file is no longer present")
		return "", false, nil
	}

	raw, err := l.readFile(res.FilePath)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("path", res.FilePath).Debug("failed to read resource file")
		return "", false, nil
	}

	text := string(raw)
	res.content = &text
	return text, true, nil
}

// GetSkillMetadata returns the record for id without forcing a full load,
// preferring the full cache, then the metadata cache, then a discovery
// pass. Unknown ids yield (nil, nil).
func (l *Loader) GetSkillMetadata(ctx context.Context, id string) (*Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	if l.cacheValidLocked() {
		if skill, ok := l.fullCache[id]; ok {
			l.mu.RUnlock()
			return skill, nil
		}
		if skill, ok := l.metadataCache[id]; ok {
			l.mu.RUnlock()
			return skill, nil
		}
	}
	l.mu.RUnlock()

	if _, err := l.Discover(ctx); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if skill, ok := l.fullCache[id]; ok {
		return skill, nil
	}
	return l.metadataCache[id], nil
}

// FindSkillsByTag filters the discovered catalog by case-insensitive exact
// tag match.
func (l *Loader) FindSkillsByTag(ctx context.Context, tag string) ([]*Skill, error) {
	catalog, err := l.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Skill
	for _, skill := range catalog {
		if skill.HasTag(tag) {
			out = append(out, skill)
		}
	}
	return out, nil
}

// InvalidateCache clears both caches and resets the last-discovery
// timestamp so the next Discover hits the filesystem regardless of the
// elapsed window.
func (l *Loader) InvalidateCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metadataCache = make(map[string]*Skill)
	l.fullCache = make(map[string]*Skill)
	l.catalogOrder = nil
	l.lastDiscovery = time.Time{}
}

// Package skills implements progressive disclosure for agent skill packages.
// Skills are packaged as directories containing a SKILL.md file with YAML
// frontmatter describing the skill, plus optional categorized resource
// folders (templates, references, scripts, assets).
//
// Disclosure happens in three levels: Discover returns metadata-only
// records cheap enough to list in a prompt, Load promotes one skill to a
// fully-loaded record carrying its instructions body, and
// LoadResourceContent materializes a single resource file's content on
// demand. Both catalog levels are cached behind a time-boxed window so
// repeated calls stay off the filesystem.
package skills

import (
	"strings"
	"sync"
	"time"
)

// ResourceType categorizes a bundled resource file by the folder it was
// discovered in.
type ResourceType string

const (
	// ResourceTypeTemplate marks files under the templates folder
	ResourceTypeTemplate ResourceType = "template"
	// ResourceTypeReference marks files under the references folder
	ResourceTypeReference ResourceType = "reference"
	// ResourceTypeScript marks files under the scripts folder
	ResourceTypeScript ResourceType = "script"
	// ResourceTypeAsset marks files under the assets folder
	ResourceTypeAsset ResourceType = "asset"
)

// Resource describes one bundled file belonging to a skill. Size and
// modification time are captured by stat at discovery time; the content
// cell stays empty until LoadResourceContent materializes it. The cell is
// write-once: after the first successful load every subsequent request is
// served from memory, and the mutation is visible to every holder of the
// same handle.
type Resource struct {
	FileName     string       // base name of the file
	FilePath     string       // absolute path
	RelativePath string       // path relative to the skill's base directory, slash-separated
	Type         ResourceType // category fixed at discovery time
	FileSize     int64
	LastModified time.Time

	mu      sync.Mutex
	content *string
}

// IsLoaded reports whether the resource content has been materialized.
func (r *Resource) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content != nil
}

// Content returns the cached content and whether it has been loaded.
func (r *Resource) Content() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.content == nil {
		return "", false
	}
	return *r.content, true
}

// Skill is the in-memory representation of one skill package. Records are
// created fresh on every discovery or load pass; a record is never
// promoted in place, so IsFullyLoaded distinguishes a metadata-only
// catalog entry from a fully-loaded one.
type Skill struct {
	ID          string // derived from the containing folder name, unique across the catalog
	Name        string // display name, falls back to ID when frontmatter omits it
	Description string
	// Instructions is the markdown body after the frontmatter block. Empty
	// until the skill is fully loaded.
	Instructions string
	Version      string
	Author       string
	Category     string
	Tags         []string // insertion order from frontmatter preserved

	FilePath      string // absolute path of the skill definition file
	BaseDirectory string // absolute path of the skill folder

	LoadedAt     time.Time // when this record was built
	LastModified time.Time // modification time of the definition file

	Templates  []*Resource
	References []*Resource
	Scripts    []*Resource
	Assets     []*Resource

	IsFullyLoaded bool

	// Metadata preserves frontmatter keys that do not map to a named
	// field. Nil when the frontmatter carries no extra keys.
	Metadata map[string]any
}

// HasTemplates reports whether the skill bundles any template resources.
func (s *Skill) HasTemplates() bool { return len(s.Templates) > 0 }

// HasReferences reports whether the skill bundles any reference documents.
func (s *Skill) HasReferences() bool { return len(s.References) > 0 }

// HasScripts reports whether the skill bundles any scripts.
func (s *Skill) HasScripts() bool { return len(s.Scripts) > 0 }

// HasAssets reports whether the skill bundles any assets.
func (s *Skill) HasAssets() bool { return len(s.Assets) > 0 }

// TotalResourceCount returns the number of resources across all four
// categories.
func (s *Skill) TotalResourceCount() int {
	return len(s.Templates) + len(s.References) + len(s.Scripts) + len(s.Assets)
}

// AllResources concatenates the four categories in fixed order: templates,
// references, scripts, assets.
func (s *Skill) AllResources() []*Resource {
	out := make([]*Resource, 0, s.TotalResourceCount())
	out = append(out, s.Templates...)
	out = append(out, s.References...)
	out = append(out, s.Scripts...)
	out = append(out, s.Assets...)
	return out
}

// HasTag reports whether the skill carries the tag, compared
// case-insensitively.
func (s *Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// FindResource returns the resource with the given relative path, matching
// the slash-separated form recorded at discovery time.
func (s *Skill) FindResource(relativePath string) (*Resource, bool) {
	for _, res := range s.AllResources() {
		if res.RelativePath == relativePath {
			return res, true
		}
	}
	return nil, false
}

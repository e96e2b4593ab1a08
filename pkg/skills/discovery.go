package skills

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/satchel-sh/satchel/pkg/logger"
)

// Category defines one resource folder searched during discovery: the
// subfolder name relative to the skill directory, a glob pattern matched
// against file names, and whether the search descends into nested folders.
type Category struct {
	Type      ResourceType
	Folder    string
	Pattern   string
	Recursive bool
}

// DefaultCategories returns the four standard resource categories. Only
// assets are searched recursively, which allows nested grouping such as
// assets/img/logo.png.
func DefaultCategories() []Category {
	return []Category{
		{Type: ResourceTypeTemplate, Folder: "templates", Pattern: "*.template.*"},
		{Type: ResourceTypeReference, Folder: "references", Pattern: "*.md"},
		{Type: ResourceTypeScript, Folder: "scripts", Pattern: "*.*"},
		{Type: ResourceTypeAsset, Folder: "assets", Pattern: "*.*", Recursive: true},
	}
}

// discoverResources populates the skill's four resource collections. Only
// stat calls are made; no resource content is read. A missing category
// folder yields an empty collection.
func (l *Loader) discoverResources(ctx context.Context, skill *Skill) error {
	for _, cat := range l.categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		resources, err := l.discoverCategory(ctx, skill, cat)
		if err != nil {
			return err
		}
		switch cat.Type {
		case ResourceTypeTemplate:
			skill.Templates = resources
		case ResourceTypeReference:
			skill.References = resources
		case ResourceTypeScript:
			skill.Scripts = resources
		case ResourceTypeAsset:
			skill.Assets = resources
		}
	}
	return nil
}

func (l *Loader) discoverCategory(ctx context.Context, skill *Skill, cat Category) ([]*Resource, error) {
	root := filepath.Join(skill.BaseDirectory, cat.Folder)
	info, err := l.statFile(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var out []*Resource
	if cat.Recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if matched, _ := doublestar.Match(cat.Pattern, d.Name()); !matched {
				return nil
			}
			if res := l.newResource(skill, cat, path); res != nil {
				out = append(out, res)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("folder", root).Debug("cannot read resource folder")
			return nil, nil
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if matched, _ := doublestar.Match(cat.Pattern, entry.Name()); !matched {
				continue
			}
			if res := l.newResource(skill, cat, filepath.Join(root, entry.Name())); res != nil {
				out = append(out, res)
			}
		}
	}

	// filesystem enumeration order is not stable across platforms
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out, nil
}

func (l *Loader) newResource(skill *Skill, cat Category, path string) *Resource {
	info, err := l.statFile(path)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(skill.BaseDirectory, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return &Resource{
		FileName:     filepath.Base(path),
		FilePath:     path,
		RelativePath: filepath.ToSlash(rel),
		Type:         cat.Type,
		FileSize:     info.Size(),
		LastModified: info.ModTime(),
	}
}

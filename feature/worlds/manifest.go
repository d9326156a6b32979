package worlds

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	"gopkg.in/ini.v1"
)

// World is one entry of the manifest. A world is either tracked against a
// GitHub repo (Repo and Asset set) or manually managed (ManualFile set).
type World struct {
	// Name is the section name from the manifest.
	Name string
	// Repo is the GitHub repository in owner/repo form.
	Repo string
	// Asset is the release asset file name to install.
	Asset string
	// ManualFile is the file name of a hand-installed world.
	ManualFile string
	// Constraint optionally pins acceptable release tags, semver style.
	Constraint *semver.Constraints
}

// IsManual reports whether this world is hand-installed rather than tracked
// against a GitHub repo.
func (w World) IsManual() bool {
	return w.ManualFile != ""
}

// FileName returns the on-disk file name of the world.
func (w World) FileName() string {
	if w.IsManual() {
		return w.ManualFile
	}
	return w.Asset
}

// Manifest is the parsed world list, in declaration order.
type Manifest struct {
	Worlds []World
}

// Find returns the named world.
func (m *Manifest) Find(name string) (World, bool) {
	for _, w := range m.Worlds {
		if w.Name == name {
			return w, true
		}
	}
	return World{}, false
}

// Repos returns the set of GitHub repos referenced by the manifest.
func (m *Manifest) Repos() map[string]bool {
	repos := make(map[string]bool)
	for _, w := range m.Worlds {
		if !w.IsManual() {
			repos[w.Repo] = true
		}
	}
	return repos
}

var (
	sectionRe  = regexp.MustCompile(`^world "(.*)"$`)
	repoURLRe  = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)`)
	repoSpecRe = regexp.MustCompile(`^([^/]+)/([^/]+)$`)
)

// LoadManifest parses the world list from an ini file. A missing file yields
// an empty manifest, the same as an empty file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	// Duplicate sections must surface as errors instead of silently
	// merging, so they are kept distinct here and rejected below.
	file, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: true}, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	manifest := &Manifest{}
	seen := make(map[string]bool)
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		world, err := parseWorld(section)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		if seen[world.Name] {
			return nil, fmt.Errorf("manifest %s: world %q declared twice", path, world.Name)
		}
		seen[world.Name] = true
		manifest.Worlds = append(manifest.Worlds, world)
	}
	return manifest, nil
}

func parseWorld(section *ini.Section) (World, error) {
	m := sectionRe.FindStringSubmatch(section.Name())
	if m == nil {
		return World{}, fmt.Errorf(`section [%s] must be of the form [world "<name>"]`, section.Name())
	}
	world := World{Name: m[1]}

	isGitHub := section.HasKey("github_repo")
	hasAsset := section.HasKey("github_repo_asset")
	isManual := section.HasKey("manual_file_name")
	if isGitHub != hasAsset {
		return World{}, fmt.Errorf("world %q: must set github_repo and github_repo_asset together", world.Name)
	}
	if isGitHub == isManual {
		return World{}, fmt.Errorf("world %q: set either github_repo or manual_file_name, not both or neither", world.Name)
	}

	if isGitHub {
		repo, err := parseRepo(section.Key("github_repo").String())
		if err != nil {
			return World{}, fmt.Errorf("world %q: %w", world.Name, err)
		}
		world.Repo = repo
		world.Asset = section.Key("github_repo_asset").String()
		if !strings.HasSuffix(world.Asset, ".apworld") {
			return World{}, fmt.Errorf("world %q: github_repo_asset must name an .apworld file, found %q", world.Name, world.Asset)
		}
	} else {
		world.ManualFile = section.Key("manual_file_name").String()
		if !strings.HasSuffix(world.ManualFile, ".apworld") {
			return World{}, fmt.Errorf("world %q: manual_file_name must name an .apworld file, found %q", world.Name, world.ManualFile)
		}
	}

	if section.HasKey("version_constraint") {
		if world.IsManual() {
			return World{}, fmt.Errorf("world %q: version_constraint makes no sense for a manual world", world.Name)
		}
		raw := section.Key("version_constraint").String()
		constraint, err := semver.NewConstraint(raw)
		if err != nil {
			return World{}, fmt.Errorf("world %q: invalid version_constraint %q: %w", world.Name, raw, err)
		}
		world.Constraint = constraint
	}

	return world, nil
}

// parseRepo accepts either a full https://github.com/owner/repo URL or the
// short owner/repo form and normalizes to owner/repo.
func parseRepo(value string) (string, error) {
	if m := repoURLRe.FindStringSubmatch(value); m != nil {
		return m[1] + "/" + m[2], nil
	}
	if m := repoSpecRe.FindStringSubmatch(value); m != nil {
		return m[1] + "/" + m[2], nil
	}
	return "", fmt.Errorf("github_repo must be a github.com URL or owner/repo, found %q", value)
}

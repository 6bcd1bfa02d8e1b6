package test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// =============================================================================
// STRUCTURAL VERIFICATION TESTS
// =============================================================================
//
// These tests read the source tree rather than importing it, so they run
// as their own module.

// getRepoRoot returns the repository root directory (parent of test/)
func getRepoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "test" {
		return filepath.Dir(wd)
	}
	for dir := wd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "pkg", "framing")); err == nil {
			return dir
		}
	}
	t.Fatalf("could not find repository root from %s", wd)
	return ""
}

// goPackages returns every directory under roots holding non-test Go files.
func goPackages(t *testing.T, repoRoot string, roots ...string) []string {
	t.Helper()
	var dirs []string
	for _, root := range roots {
		err := filepath.Walk(filepath.Join(repoRoot, root), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return nil
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if isGoSource(e.Name()) {
					dirs = append(dirs, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", root, err)
		}
	}
	return dirs
}

func isGoSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

// TestAllPackagesHaveTests verifies each package ships *_test.go files.
func TestAllPackagesHaveTests(t *testing.T) {
	repoRoot := getRepoRoot(t)

	var missing []string
	packages := goPackages(t, repoRoot, "pkg", "internal", "cmd")
	for _, dir := range packages {
		matches, _ := filepath.Glob(filepath.Join(dir, "*_test.go"))
		if len(matches) == 0 {
			rel, _ := filepath.Rel(repoRoot, dir)
			missing = append(missing, rel)
		}
	}
	t.Logf("packages: %d, without tests: %d", len(packages), len(missing))
	for _, m := range missing {
		t.Errorf("package %s has no tests", m)
	}
}

// TestJSONGoesThroughJSONUtil keeps encoding/json out of the tree so every
// document is encoded the same, deterministic way.
func TestJSONGoesThroughJSONUtil(t *testing.T) {
	repoRoot := getRepoRoot(t)
	importPattern := regexp.MustCompile(`"encoding/json"`)

	for _, dir := range goPackages(t, repoRoot, "pkg", "internal", "cmd") {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if !strings.HasSuffix(e.Name(), ".go") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if importPattern.Match(content) {
				rel, _ := filepath.Rel(repoRoot, path)
				t.Errorf("%s imports encoding/json; use pkg/jsonutil", rel)
			}
		}
	}
}

// TestVersion_Consistent verifies the version is declared once.
func TestVersion_Consistent(t *testing.T) {
	repoRoot := getRepoRoot(t)

	defaultsContent, err := os.ReadFile(filepath.Join(repoRoot, "pkg", "defaults", "defaults.go"))
	if err != nil {
		t.Fatalf("failed to read defaults.go: %v", err)
	}
	matches := regexp.MustCompile(`const\s+Version\s*=\s*"([^"]+)"`).FindSubmatch(defaultsContent)
	if matches == nil {
		t.Fatal("could not find Version constant in defaults.go")
	}
	version := string(matches[1])
	t.Logf("defaults.Version = %s", version)

	if !regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`).MatchString(version) {
		t.Errorf("defaults.Version (%s) is not valid semver format", version)
	}

	bannerContent, err := os.ReadFile(filepath.Join(repoRoot, "pkg", "ui", "banner.go"))
	if err != nil {
		t.Fatalf("failed to read banner.go: %v", err)
	}
	if !strings.Contains(string(bannerContent), "defaults.Version") {
		t.Error("ui/banner.go should reference defaults.Version, not hardcode version")
	}
}

// TestBundledAssets checks the embedded presets and templates exist.
func TestBundledAssets(t *testing.T) {
	repoRoot := getRepoRoot(t)
	for pattern, min := range map[string]int{
		filepath.Join("presets", "*.yaml"):            5,
		filepath.Join("templates", "output", "*.tmpl"): 2,
	} {
		matches, err := filepath.Glob(filepath.Join(repoRoot, pattern))
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) < min {
			t.Errorf("%s: found %d files, want at least %d", pattern, len(matches), min)
		}
	}
}

// TestGoModConsistency verifies go.mod is properly configured.
func TestGoModConsistency(t *testing.T) {
	repoRoot := getRepoRoot(t)
	content, err := os.ReadFile(filepath.Join(repoRoot, "go.mod"))
	if err != nil {
		t.Fatalf("failed to read go.mod: %v", err)
	}
	goMod := string(content)

	if !strings.Contains(goMod, "module github.com/waftester/desyncsim\n") {
		t.Error("go.mod should have module github.com/waftester/desyncsim")
	}
	if matches := regexp.MustCompile(`go\s+(\d+)\.(\d+)`).FindStringSubmatch(goMod); matches == nil {
		t.Error("could not find Go version in go.mod")
	}
}

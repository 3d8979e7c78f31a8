// Package project checks the GlistEngine folder layout and finds the
// application projects that can be built.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrNoProjects means the apps directory holds no buildable project.
	ErrNoProjects = errors.New("no projects with CMakeLists.txt found")
	// ErrNoSelection means no project was chosen.
	ErrNoSelection = errors.New("no project selected")
)

// Folder names of the expected layout:
//
//	dev/
//	  glist/
//	    glistengine/
//	    myglistapps/<project>/CMakeLists.txt
//	    zbin/glistzbin-*/
//	    glistplugins/
//	      gipWebGL/          # work directory
const (
	PluginDirName  = "gipWebGL"
	PluginsDirName = "glistplugins"
	GlistDirName   = "glist"
	DevDirName     = "dev"
	EngineDirName  = "glistengine"
	AppsDirName    = "myglistapps"
	VendorDirName  = "zbin"
)

// ValidationError reports a work directory outside the expected layout.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("folder structure: %s: %s", e.Path, e.Reason)
}

// Layout is the set of directories derived from the work directory.
type Layout struct {
	WorkDir string
	Glist   string
	Engine  string
	Apps    string
	Vendor  string
}

// NewLayout derives the layout from workDir, which should be
// dev/glist/glistplugins/gipWebGL.
func NewLayout(workDir string) Layout {
	glist := filepath.Dir(filepath.Dir(workDir))
	return Layout{
		WorkDir: workDir,
		Glist:   glist,
		Engine:  filepath.Join(glist, EngineDirName),
		Apps:    filepath.Join(glist, AppsDirName),
		Vendor:  filepath.Join(glist, VendorDirName),
	}
}

// Validate checks the folder names from the work directory up to dev, and
// that glist holds the engine and apps directories.
func (l Layout) Validate() error {
	dir := l.WorkDir
	for _, want := range []string{PluginDirName, PluginsDirName, GlistDirName, DevDirName} {
		if got := filepath.Base(dir); got != want {
			return &ValidationError{Path: dir, Reason: fmt.Sprintf("directory must be named %q", want)}
		}
		dir = filepath.Dir(dir)
	}
	for _, d := range []string{l.Engine, l.Apps} {
		fi, err := os.Stat(d)
		if err != nil || !fi.IsDir() {
			return &ValidationError{Path: d, Reason: "directory not found"}
		}
	}
	return nil
}

// Project is a buildable application.
type Project struct {
	Name string
	Dir  string
}

// Discover lists the direct subdirectories of appsDir holding a
// CMakeLists.txt, sorted by name.
func Discover(appsDir string) ([]Project, error) {
	entries, err := os.ReadDir(appsDir)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var projects []Project
	for _, e := range entries {
		dir := filepath.Join(appsDir, e.Name())
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		if fi, err := os.Stat(filepath.Join(dir, "CMakeLists.txt")); err != nil || fi.IsDir() {
			continue
		}
		projects = append(projects, Project{Name: e.Name(), Dir: dir})
	}
	if len(projects) == 0 {
		return nil, ErrNoProjects
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// Find returns the project called name.
func Find(projects []Project, name string) (Project, error) {
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %q is not a project", ErrNoSelection, name)
}

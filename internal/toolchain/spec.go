package toolchain

import (
	"strings"

	"github.com/glistengine/gipwebgl/internal/provision"
)

// Kind is the role a tool plays in the build.
type Kind string

const (
	KindSDK       Kind = "sdk"
	KindGenerator Kind = "generator"
	KindBuilder   Kind = "builder"
)

// Spec describes where a tool may live and how to obtain it.
type Spec struct {
	Name string
	Kind Kind
	// Executables are bare names tried on the search path, in order.
	Executables []string
	// VendorPaths are tried under each vendor directory, in order.
	VendorPaths []string
	// CacheNames are tried relative to the work directory, in order.
	CacheNames []string
	// MinVersion is the oldest acceptable version; empty accepts any.
	MinVersion string
	// Generator is the CMake generator name; builders only.
	Generator string
	// Package describes network provisioning; nil when none exists.
	Package *provision.Package
}

// Override applies a configured version floor and per-platform archive
// URLs. Keys of urls are "goos" or "goos/goarch"; the executable path inside
// the archive is kept from the existing entry for that key or its goos.
func (s *Spec) Override(minVersion string, urls map[string]string) {
	if minVersion != "" {
		s.MinVersion = minVersion
	}
	if len(urls) == 0 {
		return
	}
	if s.Package == nil {
		s.Package = &provision.Package{Name: s.Name, Executable: s.Name}
	}
	if s.Package.Archives == nil {
		s.Package.Archives = map[string]provision.Archive{}
	}
	for key, url := range urls {
		a := s.Package.Archives[key]
		if a.Exe == "" {
			goos, _, _ := strings.Cut(key, "/")
			a.Exe = s.Package.Archives[goos].Exe
		}
		if a.Exe == "" {
			a.Exe = s.Name
		}
		a.URL = url
		s.Package.Archives[key] = a
	}
}

const (
	ninjaRelease = "https://github.com/ninja-build/ninja/releases/latest/download/"
	cmakeVersion = "3.30.5"
	cmakeRelease = "https://github.com/Kitware/CMake/releases/download/v" + cmakeVersion + "/"
)

func cmakeArchive(suffix, exe string) provision.Archive {
	dir := "cmake-" + cmakeVersion + "-" + suffix
	ext := ".tar.gz"
	if suffix == "windows-x86_64" || suffix == "windows-arm64" {
		ext = ".zip"
	}
	return provision.Archive{URL: cmakeRelease + dir + ext, Exe: dir + "/" + exe}
}

// EmccSpec is the Emscripten compiler driver.
func EmccSpec() *Spec {
	return &Spec{
		Name:        "emcc",
		Kind:        KindSDK,
		Executables: []string{"emcc"},
		CacheNames: []string{
			"emsdk/upstream/emscripten/emcc",
			"emsdk/upstream/emscripten/emcc.bat",
		},
	}
}

// CMakeSpec is the build-file generator. Version 3.13 introduced -S/-B.
func CMakeSpec() *Spec {
	return &Spec{
		Name:        "cmake",
		Kind:        KindGenerator,
		Executables: []string{"cmake"},
		VendorPaths: []string{
			"cmake/bin/cmake",
			"cmake/bin/cmake.exe",
			"CMake/bin/cmake",
			"CMake/bin/cmake.exe",
			"bin/cmake",
			"bin/cmake.exe",
		},
		CacheNames: []string{
			"cmake-" + cmakeVersion + "-linux-x86_64/bin/cmake",
			"cmake-" + cmakeVersion + "-linux-aarch64/bin/cmake",
			"cmake-" + cmakeVersion + "-macos-universal/CMake.app/Contents/bin/cmake",
			"cmake-" + cmakeVersion + "-windows-x86_64/bin/cmake.exe",
		},
		MinVersion: "3.13",
		Package: &provision.Package{
			Name:       "cmake",
			Executable: "cmake",
			Packages: map[string]string{
				"apt-get": "cmake",
				"yum":     "cmake",
				"dnf":     "cmake",
				"pacman":  "cmake",
				"zypper":  "cmake",
				"brew":    "cmake",
			},
			Archives: map[string]provision.Archive{
				"linux":       cmakeArchive("linux-x86_64", "bin/cmake"),
				"linux/arm64": cmakeArchive("linux-aarch64", "bin/cmake"),
				"darwin":      cmakeArchive("macos-universal", "CMake.app/Contents/bin/cmake"),
				"windows":     cmakeArchive("windows-x86_64", "bin/cmake.exe"),
			},
		},
	}
}

// NinjaSpec is the preferred native build driver.
func NinjaSpec() *Spec {
	return &Spec{
		Name:        "ninja",
		Kind:        KindBuilder,
		Executables: []string{"ninja"},
		VendorPaths: []string{
			"bin/ninja.exe",
			"bin/ninja",
			"clang64/bin/ninja.exe",
			"clang64/bin/ninja",
		},
		CacheNames: []string{"ninja", "ninja.exe"},
		Generator:  "Ninja",
		Package: &provision.Package{
			Name:       "ninja",
			Executable: "ninja",
			Packages: map[string]string{
				"apt-get": "ninja-build",
				"yum":     "ninja-build",
				"dnf":     "ninja-build",
				"pacman":  "ninja",
				"zypper":  "ninja",
				"brew":    "ninja",
			},
			Archives: map[string]provision.Archive{
				"windows":     {URL: ninjaRelease + "ninja-win.zip", Exe: "ninja.exe"},
				"linux":       {URL: ninjaRelease + "ninja-linux.zip", Exe: "ninja"},
				"linux/arm64": {URL: ninjaRelease + "ninja-linux-aarch64.zip", Exe: "ninja"},
				"darwin":      {URL: ninjaRelease + "ninja-mac.zip", Exe: "ninja"},
			},
		},
	}
}

// MakeSpec is the fallback build driver used when ninja cannot be found or
// provisioned. It is never provisioned itself.
func MakeSpec() *Spec {
	return &Spec{
		Name:        "make",
		Kind:        KindBuilder,
		Executables: []string{"make", "mingw32-make"},
		VendorPaths: []string{
			"clang64/bin/mingw32-make.exe",
			"clang64/bin/make.exe",
			"bin/mingw32-make.exe",
			"bin/make.exe",
			"bin/make",
		},
		CacheNames: []string{"make", "make.exe", "mingw32-make.exe"},
		Generator:  "Unix Makefiles",
	}
}

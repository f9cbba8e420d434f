package sandbox

import (
	"errors"
	"sort"
)

// Isolation modes.
const (
	IsolationHost   = "host"
	IsolationDocker = "docker"
)

var (
	ErrUnknownIsolation = errors.New("unknown isolation mode")
	ErrImageNotAllowed  = errors.New("image not allowed")
)

// Policy defines how untrusted code is isolated.
type Policy struct {
	Isolation string            // "host" or "docker"
	MaxMemory string            // Docker memory limit (e.g. "256m")
	PidsLimit int               // max processes per container
	Network   bool              // whether network access is allowed
	Images    map[string]string // language id -> Docker image
}

// DefaultPolicy returns host isolation with docker settings ready to switch on.
func DefaultPolicy() Policy {
	return Policy{
		Isolation: IsolationHost,
		MaxMemory: "256m",
		PidsLimit: 64,
		Network:   false,
		Images:    DefaultImages(),
	}
}

// DefaultImages maps every built-in language to an image carrying its toolchain.
func DefaultImages() map[string]string {
	return map[string]string{
		"python":     "python:3.12-slim",
		"javascript": "node:22-slim",
		"java":       "eclipse-temurin:21-jdk",
		"cpp":        "gcc:14",
		"c":          "gcc:14",
		"go":         "golang:1.23-alpine",
		"rust":       "rust:1-slim",
		"php":        "php:8.3-cli",
		"ruby":       "ruby:3.3-slim",
	}
}

// ImageFor returns the image configured for a language.
func (p Policy) ImageFor(language string) (string, bool) {
	img, ok := p.Images[language]
	return img, ok && img != ""
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	for _, allowed := range p.Images {
		if allowed == image {
			return true
		}
	}
	return false
}

// AllowedImages returns the distinct configured images, sorted.
func (p Policy) AllowedImages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, img := range p.Images {
		if img != "" && !seen[img] {
			seen[img] = true
			out = append(out, img)
		}
	}
	sort.Strings(out)
	return out
}

// Package loader resolves file/dir/glob arguments and parses manifests and
// policy documents into the in-memory forms the prover consumes. The prover
// core itself never touches the filesystem.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/u2takey/go-utils/filesystem/homedir"
	"go.uber.org/zap"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/aonescu/tip/internal/types"
)

var (
	manifestExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}
	policyExtensions   = map[string]bool{".yaml": true, ".yml": true, ".json": true, ".rego": true}
)

type Loader struct {
	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Loader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{log: log}
}

// Manifests expands the given paths and returns one map per YAML/JSON
// document; multi-document files are split.
func (l *Loader) Manifests(patterns []string) ([]map[string]any, error) {
	files, err := expand(patterns, manifestExtensions)
	if err != nil {
		return nil, err
	}

	var docs []map[string]any
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", path, err)
		}
		fileDocs, err := splitDocuments(data)
		if err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		docs = append(docs, fileDocs...)
	}

	l.log.Debugw("loaded manifests", "files", len(files), "documents", len(docs))
	return docs, nil
}

// Policies expands the given paths into policy documents. Rego files are
// loaded as opaque text modules with a nil body; they are never evaluated.
func (l *Loader) Policies(patterns []string) ([]types.PolicyDocument, error) {
	files, err := expand(patterns, policyExtensions)
	if err != nil {
		return nil, err
	}

	var policies []types.PolicyDocument
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", path, err)
		}

		if strings.EqualFold(filepath.Ext(path), ".rego") {
			policies = append(policies, types.PolicyDocument{
				Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
				Kind: "RegoModule",
				Path: path,
				Raw:  string(data),
			})
			continue
		}

		fileDocs, err := splitDocuments(data)
		if err != nil {
			return nil, fmt.Errorf("parse policy %s: %w", path, err)
		}
		for _, doc := range fileDocs {
			policies = append(policies, policyDocument(path, string(data), doc))
		}
	}

	l.log.Debugw("loaded policies", "files", len(files), "documents", len(policies))
	return policies, nil
}

func policyDocument(path, raw string, doc map[string]any) types.PolicyDocument {
	kind, _ := doc["kind"].(string)
	if kind == "" {
		kind = "Policy"
	}
	meta, _ := doc["metadata"].(map[string]any)
	name, _ := meta["name"].(string)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return types.PolicyDocument{
		Name: name,
		Kind: kind,
		Path: path,
		Raw:  raw,
		Body: doc,
	}
}

// splitDocuments decodes a possibly multi-document YAML or JSON stream into
// one map per document, skipping empty documents. Values come out with
// encoding/json semantics (string keys, float64 numbers), which is what the
// indexer and proof canonicalizer expect.
func splitDocuments(data []byte) ([]map[string]any, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(data)))
	var docs []map[string]any
	for {
		chunk, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := sigsyaml.Unmarshal(chunk, &doc); err != nil {
			return nil, err
		}
		if len(doc) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// expand resolves each pattern through ~ expansion, globbing, and directory
// walking, filtered to the allowed extensions. A pattern that matches nothing
// is an input error.
func expand(patterns []string, extensions map[string]bool) ([]string, error) {
	seen := map[string]bool{}
	var files []string

	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "~/") {
			pattern = filepath.Join(homedir.HomeDir(), pattern[2:])
		}

		matches, err := resolve(pattern, extensions)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files matched %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func resolve(pattern string, extensions map[string]bool) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil {
		if info.IsDir() {
			return walkDir(pattern, extensions)
		}
		if extensions[strings.ToLower(filepath.Ext(pattern))] {
			return []string{pattern}, nil
		}
		return nil, nil
	}

	globbed, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
	}

	var files []string
	for _, match := range globbed {
		info, err := os.Stat(match)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			sub, err := walkDir(match, extensions)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if extensions[strings.ToLower(filepath.Ext(match))] {
			files = append(files, match)
		}
	}
	return files, nil
}

func walkDir(dir string, extensions map[string]bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && extensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

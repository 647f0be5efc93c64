package actions

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/agentd/internal/models"
)

// maxSearchFileSize bounds content scanning so the search handler does
// not read huge binaries line by line.
const maxSearchFileSize = 1 << 20

// ReadHandler returns the contents of a workspace file.
type ReadHandler struct {
	Root string
}

// Execute reads the file named by the "path" param.
func (h *ReadHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", action.Param("path"), err)
	}

	return &models.ActionResult{
		Output:   string(data),
		Metadata: map[string]string{"path": action.Param("path")},
	}, nil
}

// WriteHandler writes a workspace file, remembering what it replaced so
// the write can be undone.
type WriteHandler struct {
	Root string
}

// Execute writes the "content" param to the file named by "path". The
// prior contents, if any, are captured in the result metadata for Undo.
func (h *WriteHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return nil, err
	}

	content, hasContent := action.Params["content"].(string)
	if !hasContent {
		return nil, fmt.Errorf("content parameter is required")
	}

	meta := map[string]string{"path": action.Param("path")}
	if prior, err := os.ReadFile(full); err == nil {
		meta["existed"] = "true"
		meta["prior_content"] = string(prior)
	} else if os.IsNotExist(err) {
		meta["existed"] = "false"
	} else {
		return nil, fmt.Errorf("inspect %s before write: %w", action.Param("path"), err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", action.Param("path"), err)
	}

	return &models.ActionResult{
		Output:   fmt.Sprintf("wrote %d bytes to %s", len(content), action.Param("path")),
		Metadata: meta,
	}, nil
}

// Undo restores the file to its pre-write state: prior contents if it
// existed, removal if it did not.
func (h *WriteHandler) Undo(ctx context.Context, action models.Action, result *models.ActionResult) error {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return err
	}
	if result == nil || result.Metadata == nil {
		return fmt.Errorf("write undo requires the original result metadata")
	}

	if result.Metadata["existed"] == "true" {
		if err := os.WriteFile(full, []byte(result.Metadata["prior_content"]), 0644); err != nil {
			return fmt.Errorf("restore %s: %w", action.Param("path"), err)
		}
		return nil
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", action.Param("path"), err)
	}
	return nil
}

// DeleteHandler removes a workspace file, keeping its contents so the
// delete can be undone.
type DeleteHandler struct {
	Root string
}

// Execute deletes the file named by the "path" param.
func (h *DeleteHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return nil, err
	}

	prior, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s before delete: %w", action.Param("path"), err)
	}
	if err := os.Remove(full); err != nil {
		return nil, fmt.Errorf("delete %s: %w", action.Param("path"), err)
	}

	return &models.ActionResult{
		Output: fmt.Sprintf("deleted %s", action.Param("path")),
		Metadata: map[string]string{
			"path":          action.Param("path"),
			"prior_content": string(prior),
		},
	}, nil
}

// Undo recreates the deleted file with its captured contents.
func (h *DeleteHandler) Undo(ctx context.Context, action models.Action, result *models.ActionResult) error {
	full, err := resolvePath(h.Root, action.Param("path"))
	if err != nil {
		return err
	}
	if result == nil || result.Metadata == nil {
		return fmt.Errorf("delete undo requires the original result metadata")
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(result.Metadata["prior_content"]), 0644); err != nil {
		return fmt.Errorf("recreate %s: %w", action.Param("path"), err)
	}
	return nil
}

// SearchHandler scans workspace files for a query string. Matches are
// reported as path:line: text, one per line.
type SearchHandler struct {
	Root string
}

// Execute searches for the "query" param under the optional "path" param
// (default: workspace root). Files above maxSearchFileSize and anything
// under .git are skipped.
func (h *SearchHandler) Execute(ctx context.Context, action models.Action) (*models.ActionResult, error) {
	query := action.Param("query")
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	root := h.Root
	if sub := action.Param("path"); sub != "" {
		full, err := resolvePath(h.Root, sub)
		if err != nil {
			return nil, err
		}
		root = full
	}

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileSize {
			return nil
		}

		rel, relErr := filepath.Rel(h.Root, path)
		if relErr != nil {
			rel = path
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), maxSearchFileSize)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if strings.Contains(scanner.Text(), query) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, lineNo, strings.TrimSpace(scanner.Text())))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search for %q: %w", query, err)
	}

	return &models.ActionResult{
		Output:   strings.Join(matches, "\n"),
		Metadata: map[string]string{"matches": fmt.Sprintf("%d", len(matches))},
	}, nil
}

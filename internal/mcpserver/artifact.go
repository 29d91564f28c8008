package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fathom/internal/checksum"
)

const maxArtifactSize = 10 << 20 // 10 MB

var (
	mimeToExt = map[string]string{
		"image/png":        ".png",
		"image/jpeg":       ".jpg",
		"image/gif":        ".gif",
		"image/webp":       ".webp",
		"image/svg+xml":    ".svg",
		"application/pdf":  ".pdf",
		"application/json": ".json",
		"text/csv":         ".csv",
		"text/plain":       ".txt",
		"text/markdown":    ".md",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type artifactResult struct {
	Path   string `json:"path"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

func (s *Server) saveArtifact(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if session != filepath.Base(session) || strings.HasPrefix(session, ".") {
		return mcp.NewToolResultError(fmt.Sprintf("invalid session: %s", session)), nil
	}
	dir := filepath.Join(session, "artifacts")
	if ok, _ := s.fs.Exists(dir); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", session)), nil
	}

	data := []byte(content)
	ext := ".txt"
	if strings.HasPrefix(content, "data:") {
		data, ext, err = decodeDataURI(content)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if len(data) > maxArtifactSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxArtifactSize)), nil
	}

	filename := sanitizeFilename(req.GetString("filename", ""), ext)
	rel := filepath.Join(dir, filename)
	if err := s.fs.Write(rel, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save artifact: %v", err)), nil
	}

	out, _ := json.Marshal(artifactResult{Path: rel, Size: len(data), SHA256: checksum.Sum(data)})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		ext = ".bin"
	}
	return data, ext, nil
}

// sanitizeFilename strips path separators and unsafe characters. An empty
// name becomes a random one with ext.
func sanitizeFilename(name, ext string) string {
	name = filepath.Base(name)
	name = safeFilenameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.New().String() + ext
	}
	return name
}

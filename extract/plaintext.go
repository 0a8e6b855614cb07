package extract

import (
	"os"

	"ragify/types"
)

var plainTextExtensions = map[string]bool{
	"txt": true, "md": true, "mdx": true, "markdown": true,
	"json": true, "yaml": true, "yml": true, "ini": true, "toml": true,
	"js": true, "jsx": true, "ts": true, "tsx": true,
	"c": true, "cpp": true, "cc": true, "h": true, "hpp": true,
	"java": true, "py": true, "rb": true, "php": true, "go": true,
	"rs": true, "swift": true, "kt": true, "kts": true, "scala": true,
	"cs": true, "sql": true, "sh": true, "bash": true, "zsh": true,
	"env": true, "log": true,
}

// PlainTextHandler passes file contents through unchanged.
type PlainTextHandler struct{}

func (h *PlainTextHandler) ID() string { return "plain-text" }

func (h *PlainTextHandler) Supports(ext string) bool { return plainTextExtensions[ext] }

func (h *PlainTextHandler) Extract(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", types.WrapError(types.ErrNotFound, err, "failed to read %s", filePath)
	}
	return string(data), nil
}
